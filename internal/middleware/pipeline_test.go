package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/whatsdex/gateway/internal/event"
	"github.com/whatsdex/gateway/internal/moderation"
	"github.com/whatsdex/gateway/internal/ratelimit"
)

type fakeReplier struct {
	replies   []string
	reactions []string
}

func (f *fakeReplier) Reply(_ context.Context, text string) error {
	f.replies = append(f.replies, text)
	return nil
}

func (f *fakeReplier) React(_ context.Context, emoji string) error {
	f.reactions = append(f.reactions, emoji)
	return nil
}

type denyAllLimiter struct{}

func (denyAllLimiter) Check(string, ratelimit.Budget) bool { return false }

type allowAllLimiter struct{}

func (allowAllLimiter) Check(string, ratelimit.Budget) bool { return true }

type fakeModerator struct {
	result moderation.Result
	err    error
	calls  int
}

func (f *fakeModerator) Moderate(_ context.Context, _ string, _ moderation.Scope) (moderation.Result, error) {
	f.calls++
	return f.result, f.err
}

func testContext() *Context {
	return &Context{
		Event: event.Inbound{
			TenantID:  "tenant-123",
			ChannelID: "telegram",
			BotID:     "bot-1",
			Sender:    "user1",
			Content:   "hello",
			Timestamp: time.Now(),
		},
		UserID:  "user1",
		Replier: &fakeReplier{},
	}
}

func TestPipelineRunsStagesInOrder(t *testing.T) {
	var order []string
	stage := func(name string) Middleware {
		return func(ctx context.Context, mc *Context, next Next) error {
			order = append(order, name)
			return next(ctx)
		}
	}

	finalCalled := false
	p := New(stage("a"), stage("b"), stage("c"))
	p.SetFinal(func(context.Context, *Context) error {
		finalCalled = true
		return nil
	})

	if err := p.Run(context.Background(), testContext()); err != nil {
		t.Fatal(err)
	}
	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Errorf("stage order wrong: %v", order)
	}
	if !finalCalled {
		t.Error("final handler not reached")
	}
}

func TestCooldownDenialShortCircuits(t *testing.T) {
	permCalls, modCalls, finalCalls := 0, 0, 0

	counting := func(counter *int, inner Middleware) Middleware {
		return func(ctx context.Context, mc *Context, next Next) error {
			*counter++
			return inner(ctx, mc, next)
		}
	}

	mod := &fakeModerator{result: moderation.Result{Safe: true}}
	p := New(
		Cooldown(denyAllLimiter{}, CooldownConfig{BotWide: ratelimit.Budget{Points: 1, Duration: time.Minute}}),
		counting(&permCalls, CheckPermissions()),
		counting(&modCalls, Moderation(mod)),
	)
	p.SetFinal(func(context.Context, *Context) error {
		finalCalls++
		return nil
	})

	mc := testContext()
	if err := p.Run(context.Background(), mc); err != nil {
		t.Fatal(err)
	}

	if permCalls != 0 || modCalls != 0 || finalCalls != 0 {
		t.Errorf("later stages ran after cooldown denial: perms=%d mod=%d final=%d",
			permCalls, modCalls, finalCalls)
	}
	r := mc.Replier.(*fakeReplier)
	if len(r.reactions) != 1 || r.reactions[0] != cooldownReaction {
		t.Errorf("expected one throttle reaction, got %v", r.reactions)
	}
}

func TestBannedUserGetsOneDenial(t *testing.T) {
	finalCalls := 0
	p := New(Cooldown(allowAllLimiter{}, CooldownConfig{BotWide: ratelimit.Budget{Points: 1, Duration: time.Minute}}))
	p.SetFinal(func(context.Context, *Context) error {
		finalCalls++
		return nil
	})

	mc := testContext()
	mc.Banned = true
	if err := p.Run(context.Background(), mc); err != nil {
		t.Fatal(err)
	}

	if finalCalls != 0 {
		t.Error("banned event reached the final handler")
	}
	r := mc.Replier.(*fakeReplier)
	if len(r.replies) != 1 || r.replies[0] != msgBanned {
		t.Errorf("replies = %v, want exactly the banned message", r.replies)
	}
	if len(r.reactions) != 1 || r.reactions[0] != bannedReaction {
		t.Errorf("reactions = %v, want the banned marker", r.reactions)
	}
}

func TestOwnerBypassesCooldown(t *testing.T) {
	reached := false
	p := New(Cooldown(denyAllLimiter{}, CooldownConfig{BotWide: ratelimit.Budget{Points: 1, Duration: time.Minute}}))
	p.SetFinal(func(context.Context, *Context) error {
		reached = true
		return nil
	})

	mc := testContext()
	mc.IsOwner = true
	if err := p.Run(context.Background(), mc); err != nil {
		t.Fatal(err)
	}
	if !reached {
		t.Error("owner should bypass cooldown")
	}
}

func TestPermissionDenials(t *testing.T) {
	tests := []struct {
		name    string
		perms   Permissions
		setup   func(*Context)
		wantMsg string
	}{
		{"owner only", Permissions{Owner: true}, func(mc *Context) {}, msgOwnerOnly},
		{"group only", Permissions{Group: true}, func(mc *Context) {}, msgGroupOnly},
		{"private only", Permissions{Private: true}, func(mc *Context) { mc.IsGroup = true }, msgPrivateOnly},
		{"admin required", Permissions{Admin: true}, func(mc *Context) { mc.IsGroup = true }, msgAdminOnly},
		{"bot admin required", Permissions{BotAdmin: true}, func(mc *Context) { mc.IsGroup = true }, msgBotAdminOnly},
		{"premium required", Permissions{Premium: true}, func(mc *Context) {}, msgPremiumOnly},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached := false
			p := New(CheckPermissions())
			p.SetFinal(func(context.Context, *Context) error {
				reached = true
				return nil
			})

			mc := testContext()
			mc.Command = &Command{Name: "x", Permissions: tt.perms}
			tt.setup(mc)

			if err := p.Run(context.Background(), mc); err != nil {
				t.Fatal(err)
			}
			if reached {
				t.Fatal("pipeline should have terminated on denial")
			}
			r := mc.Replier.(*fakeReplier)
			if len(r.replies) != 1 || r.replies[0] != tt.wantMsg {
				t.Errorf("got replies %v, want one %q", r.replies, tt.wantMsg)
			}
		})
	}
}

func TestPermissionsPassThrough(t *testing.T) {
	reached := false
	p := New(CheckPermissions())
	p.SetFinal(func(context.Context, *Context) error {
		reached = true
		return nil
	})

	mc := testContext()
	mc.IsGroup = true
	mc.IsAdmin = true
	mc.Command = &Command{Name: "kick", Permissions: Permissions{Group: true, Admin: true}}

	if err := p.Run(context.Background(), mc); err != nil {
		t.Fatal(err)
	}
	if !reached {
		t.Error("all checks pass, pipeline should continue")
	}
}

func TestModerationFailsOpen(t *testing.T) {
	mod := &fakeModerator{err: errors.New("moderation backend down")}
	reached := false
	p := New(Moderation(mod))
	p.SetFinal(func(context.Context, *Context) error {
		reached = true
		return nil
	})

	if err := p.Run(context.Background(), testContext()); err != nil {
		t.Fatal(err)
	}
	if !reached {
		t.Error("moderator error must fail open and reach the router")
	}
}

func TestModerationBlocksUnsafe(t *testing.T) {
	mod := &fakeModerator{result: moderation.Result{
		Safe:       false,
		Categories: []string{"harassment", "spam"},
		Score:      0.93,
	}}
	reached := false
	p := New(Moderation(mod))
	p.SetFinal(func(context.Context, *Context) error {
		reached = true
		return nil
	})

	mc := testContext()
	if err := p.Run(context.Background(), mc); err != nil {
		t.Fatal(err)
	}
	if reached {
		t.Error("unsafe verdict must terminate the pipeline")
	}
	r := mc.Replier.(*fakeReplier)
	if len(r.replies) != 1 {
		t.Fatalf("expected one denial reply, got %v", r.replies)
	}
	if r.replies[0] != "Your message was flagged for: harassment, spam" {
		t.Errorf("denial reply = %q", r.replies[0])
	}
}

func TestStageErrorAbortsPipeline(t *testing.T) {
	boom := errors.New("boom")
	failing := func(ctx context.Context, mc *Context, next Next) error {
		return boom
	}
	afterCalls := 0
	after := func(ctx context.Context, mc *Context, next Next) error {
		afterCalls++
		return next(ctx)
	}

	p := New(failing, after)
	err := p.Run(context.Background(), testContext())
	if !errors.Is(err, boom) {
		t.Errorf("error must propagate to the caller, got %v", err)
	}
	if afterCalls != 0 {
		t.Error("stages after a failing stage must not run")
	}
}
