package ingress

import "context"

// Agent is the AI agent bound to a channel. The gateway only invokes it;
// reasoning and skill execution live elsewhere.
type Agent struct {
	ID   string
	Name string
}

// ExecutionContext is the opaque per-message context the agent layer
// consumes. The ContextBuilder collaborator produces it from the raw
// protocol event; the router never looks inside.
type ExecutionContext any

// AgentService resolves agents by ID.
type AgentService interface {
	// GetAgent returns (nil, nil) when the agent does not exist.
	GetAgent(ctx context.Context, tenantID, agentID string) (*Agent, error)
}

// AgentInvoker runs the bound agent against one message.
type AgentInvoker interface {
	ProcessMessage(ctx context.Context, tenantID string, agent *Agent, ec ExecutionContext) error
}

// BindingService looks up the per-channel agent binding. A nil agent is
// a valid, meaningful state: no agent, forward to webhook.
type BindingService interface {
	ActiveAgentForChannel(ctx context.Context, tenantID, channelID string) (*Agent, error)
}

// WebhookDispatcher forwards events to the tenant's configured webhooks.
type WebhookDispatcher interface {
	Dispatch(ctx context.Context, tenantID, eventName string, payload map[string]any) error
}

// FeatureFlags is the tenant capability check consumed before routing.
type FeatureFlags interface {
	IsFeatureEnabled(ctx context.Context, tenantID, feature string) (bool, error)
}

// ContextBuilder converts a raw protocol event into the shape the agent
// and command layer expect.
type ContextBuilder interface {
	BuildContext(ctx context.Context, tenantID, botID string, raw any) (ExecutionContext, error)
}
