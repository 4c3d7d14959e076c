// Package middleware implements the ordered, short-circuiting pipeline
// of cross-cutting checks applied to every inbound event before business
// logic runs: cooldown, permissions, moderation.
package middleware

import (
	"context"

	"github.com/whatsdex/gateway/internal/event"
	"github.com/whatsdex/gateway/internal/ratelimit"
)

// Replier sends the user-visible side of a middleware denial back to the
// originating chat. Implementations go through the channel registry.
type Replier interface {
	Reply(ctx context.Context, text string) error
	React(ctx context.Context, emoji string) error
}

// Permissions is the declarative permission set attached to a command.
// A zero value means the command is open to everyone.
type Permissions struct {
	Owner    bool // bot owner only
	Group    bool // group chats only
	Private  bool // private chats only
	Admin    bool // sender must be a group admin
	BotAdmin bool // the bot itself must be a group admin
	Premium  bool // premium users only
}

// Command describes the resolved command an event addresses, if any.
type Command struct {
	Name        string
	Permissions Permissions
	Cooldown    *ratelimit.Budget // per-command override, nil = bot-wide only
}

// Context is the per-event state the pipeline stages read and act on.
// One Context flows through one pipeline execution; stages never run
// concurrently for the same event.
type Context struct {
	Event   event.Inbound
	Command *Command // nil when the event is not a command
	Replier Replier

	UserID  string
	GroupID string // empty in private chats

	IsGroup    bool
	IsOwner    bool
	IsAdmin    bool
	IsBotAdmin bool
	Premium    bool
	Banned     bool
}

// Next advances a pipeline execution to the following stage.
type Next func(ctx context.Context) error

// Middleware is one pipeline stage. Calling next proceeds; returning
// without calling it terminates the pipeline (a denial, not an error).
// A returned error aborts the whole pipeline and propagates to the
// caller; stages must not swallow unexpected errors, only their own
// well-defined denial conditions.
type Middleware func(ctx context.Context, mc *Context, next Next) error

// Pipeline is an explicit ordered list of stages with an index-driven
// dispatcher. Multiple events run through the same Pipeline value
// concurrently; each execution is sequential within itself.
type Pipeline struct {
	stages []Middleware
	final  func(ctx context.Context, mc *Context) error
}

// New builds a pipeline from stages in execution order.
func New(stages ...Middleware) *Pipeline {
	return &Pipeline{stages: stages}
}

// Use appends a stage.
func (p *Pipeline) Use(mw Middleware) { p.stages = append(p.stages, mw) }

// SetFinal registers the terminal handler reached when every stage calls
// next — typically the ingress router.
func (p *Pipeline) SetFinal(f func(ctx context.Context, mc *Context) error) { p.final = f }

// Run executes the pipeline for one event.
func (p *Pipeline) Run(ctx context.Context, mc *Context) error {
	var dispatch func(ctx context.Context, i int) error
	dispatch = func(ctx context.Context, i int) error {
		if i < len(p.stages) {
			return p.stages[i](ctx, mc, func(ctx context.Context) error {
				return dispatch(ctx, i+1)
			})
		}
		if p.final != nil {
			return p.final(ctx, mc)
		}
		return nil
	}
	return dispatch(ctx, 0)
}
