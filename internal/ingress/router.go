// Package ingress decides, once per inbound event, whether the event
// goes to the bound AI agent or to the tenant's webhooks. The router
// holds no state of its own; everything durable lives in collaborators.
package ingress

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/whatsdex/gateway/internal/event"
)

// FeatureMessaging is the tenant flag gating all ingress routing.
const FeatureMessaging = "messagingEnabled"

// EventMessageReceived is the webhook event dispatched when no agent is
// bound to the originating channel.
const EventMessageReceived = "message.received"

// agentTimeout bounds agent invocation so one slow tenant's agent cannot
// starve the worker goroutine indefinitely.
const agentTimeout = 60 * time.Second

// Router is the ingress routing decision.
type Router struct {
	agents   AgentService
	invoker  AgentInvoker
	bindings BindingService
	webhooks WebhookDispatcher
	flags    FeatureFlags
	builder  ContextBuilder
}

// NewRouter wires the router to its collaborators.
func NewRouter(agents AgentService, invoker AgentInvoker, bindings BindingService,
	webhooks WebhookDispatcher, flags FeatureFlags, builder ContextBuilder) *Router {
	return &Router{
		agents:   agents,
		invoker:  invoker,
		bindings: bindings,
		webhooks: webhooks,
		flags:    flags,
		builder:  builder,
	}
}

// HandleMessage routes one normalized inbound event. The decision is
// made exactly once: feature gate first, then explicit path addressing,
// then the channel binding lookup, then the webhook fallback.
func (r *Router) HandleMessage(ctx context.Context, ev event.Inbound) error {
	// Cheap tenant gate before any agent/webhook lookups.
	enabled, err := r.flags.IsFeatureEnabled(ctx, ev.TenantID, FeatureMessaging)
	if err != nil {
		return fmt.Errorf("feature flag check for %s: %w", ev.TenantID, err)
	}
	if !enabled {
		slog.Debug("routing skipped, messaging disabled", "tenant", ev.TenantID)
		return nil
	}

	agent, err := r.resolveAgent(ctx, ev)
	if err != nil {
		return err
	}

	if agent == nil {
		return r.dispatchWebhook(ctx, ev)
	}

	ec, err := r.builder.BuildContext(ctx, ev.TenantID, ev.BotID, ev.Raw)
	if err != nil {
		return fmt.Errorf("build execution context: %w", err)
	}

	agentCtx, cancel := context.WithTimeout(ctx, agentTimeout)
	defer cancel()

	// The router's responsibility ends at invocation: agent failures are
	// the agent's own concern and never reach the chat.
	if err := r.invoker.ProcessMessage(agentCtx, ev.TenantID, agent, ec); err != nil {
		slog.Error("agent processing failed",
			"tenant", ev.TenantID,
			"agent", agent.ID,
			"channel", ev.ChannelID,
			"error", err,
		)
	}
	return nil
}

// resolveAgent picks the agent answering on this channel. Explicit path
// addressing always wins and bypasses the binding lookup entirely.
func (r *Router) resolveAgent(ctx context.Context, ev event.Inbound) (*Agent, error) {
	if ev.FullPath != "" {
		agentID, ok := parseAgentPath(ev.FullPath)
		if !ok {
			return nil, fmt.Errorf("malformed agent path %q", ev.FullPath)
		}
		agent, err := r.agents.GetAgent(ctx, ev.TenantID, agentID)
		if err != nil {
			return nil, fmt.Errorf("resolve agent %s: %w", agentID, err)
		}
		return agent, nil
	}

	agent, err := r.bindings.ActiveAgentForChannel(ctx, ev.TenantID, ev.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("resolve channel binding %s/%s: %w", ev.TenantID, ev.ChannelID, err)
	}
	return agent, nil
}

// parseAgentPath extracts the agent ID from a
// "tenants/{t}/agents/{a}/channels/{c}" locator.
func parseAgentPath(fullPath string) (string, bool) {
	parts := strings.Split(fullPath, "/")
	if len(parts) < 4 || parts[0] != "tenants" || parts[2] != "agents" || parts[3] == "" {
		return "", false
	}
	return parts[3], true
}

// dispatchWebhook is the designed default when no agent is bound.
func (r *Router) dispatchWebhook(ctx context.Context, ev event.Inbound) error {
	payload := map[string]any{
		"channelId": ev.ChannelID,
		"botId":     ev.BotID,
		"sender":    ev.Sender,
		"message":   ev.Content,
		"timestamp": ev.Timestamp.UnixMilli(),
	}
	if err := r.webhooks.Dispatch(ctx, ev.TenantID, EventMessageReceived, payload); err != nil {
		return fmt.Errorf("dispatch webhook for %s: %w", ev.TenantID, err)
	}
	return nil
}
