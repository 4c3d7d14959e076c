package ingress

import (
	"context"
	"log/slog"

	"github.com/whatsdex/gateway/internal/config"
)

// Config-backed collaborators for standalone mode. Managed deployments
// replace these with service-backed implementations.

// StaticAgents resolves agents declared in the config file.
type StaticAgents struct {
	byTenant map[string]map[string]*Agent
}

// NewStaticAgents indexes configured agents by tenant and ID.
func NewStaticAgents(agents []config.AgentConfig) *StaticAgents {
	idx := make(map[string]map[string]*Agent)
	for _, a := range agents {
		if idx[a.TenantID] == nil {
			idx[a.TenantID] = make(map[string]*Agent)
		}
		idx[a.TenantID][a.ID] = &Agent{ID: a.ID, Name: a.Name}
	}
	return &StaticAgents{byTenant: idx}
}

func (s *StaticAgents) GetAgent(_ context.Context, tenantID, agentID string) (*Agent, error) {
	return s.byTenant[tenantID][agentID], nil
}

// StaticBindings resolves channel-to-agent bindings declared in config.
type StaticBindings struct {
	agents   *StaticAgents
	byTenant map[string]map[string]string // tenant -> channel instance key -> agent ID
}

// NewStaticBindings indexes configured bindings.
func NewStaticBindings(bindings []config.AgentBinding, agents *StaticAgents) *StaticBindings {
	idx := make(map[string]map[string]string)
	for _, b := range bindings {
		if idx[b.TenantID] == nil {
			idx[b.TenantID] = make(map[string]string)
		}
		idx[b.TenantID][b.ChannelID] = b.AgentID
	}
	return &StaticBindings{agents: agents, byTenant: idx}
}

func (s *StaticBindings) ActiveAgentForChannel(ctx context.Context, tenantID, channelID string) (*Agent, error) {
	agentID, ok := s.byTenant[tenantID][channelID]
	if !ok {
		return nil, nil
	}
	return s.agents.GetAgent(ctx, tenantID, agentID)
}

// StaticFlags enables messaging for every tenant except those listed.
type StaticFlags struct {
	disabled map[string]bool
}

// NewStaticFlags builds the flag check from the features config.
func NewStaticFlags(features config.FeaturesConfig) *StaticFlags {
	disabled := make(map[string]bool, len(features.MessagingDisabledTenants))
	for _, t := range features.MessagingDisabledTenants {
		disabled[t] = true
	}
	return &StaticFlags{disabled: disabled}
}

func (s *StaticFlags) IsFeatureEnabled(_ context.Context, tenantID, feature string) (bool, error) {
	if feature == FeatureMessaging {
		return !s.disabled[tenantID], nil
	}
	return false, nil
}

// PassthroughBuilder hands the raw protocol event to the agent layer
// unchanged. Standalone mode has no richer context to attach.
type PassthroughBuilder struct{}

func (PassthroughBuilder) BuildContext(_ context.Context, _, _ string, raw any) (ExecutionContext, error) {
	return raw, nil
}

// LoggingInvoker is the standalone agent sink: it logs the invocation.
// Managed mode wires the real agent runtime here.
type LoggingInvoker struct{}

func (LoggingInvoker) ProcessMessage(_ context.Context, tenantID string, agent *Agent, _ ExecutionContext) error {
	slog.Info("agent invoked", "tenant_id", tenantID, "agent_id", agent.ID, "agent", agent.Name)
	return nil
}

// compile-time interface checks
var (
	_ AgentService   = (*StaticAgents)(nil)
	_ BindingService = (*StaticBindings)(nil)
	_ FeatureFlags   = (*StaticFlags)(nil)
	_ ContextBuilder = PassthroughBuilder{}
	_ AgentInvoker   = LoggingInvoker{}
)
