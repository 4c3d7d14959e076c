package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/whatsdex/gateway/internal/channels"
	"github.com/whatsdex/gateway/internal/channels/discord"
	"github.com/whatsdex/gateway/internal/channels/telegram"
	"github.com/whatsdex/gateway/internal/channels/whatsapp"
	"github.com/whatsdex/gateway/internal/config"
	"github.com/whatsdex/gateway/internal/event"
	"github.com/whatsdex/gateway/internal/gateway"
	"github.com/whatsdex/gateway/internal/ingress"
	"github.com/whatsdex/gateway/internal/middleware"
	"github.com/whatsdex/gateway/internal/moderation"
	"github.com/whatsdex/gateway/internal/ratelimit"
	"github.com/whatsdex/gateway/internal/store"
	"github.com/whatsdex/gateway/internal/store/pg"
	"github.com/whatsdex/gateway/internal/store/sqlite"
	"github.com/whatsdex/gateway/internal/webhook"
)

func runGateway() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	stores, err := openStores(cfg)
	if err != nil {
		slog.Error("failed to open storage", "error", err)
		os.Exit(1)
	}

	registry := channels.NewRegistry()
	pipeline := buildPipeline(cfg, buildRouter(cfg, stores))
	commands := buildCommandSet(cfg.Commands)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler := func(ev event.Inbound) {
		// One goroutine per event: a slow agent or moderation backend
		// must not stall the adapter's receive loop.
		go func() {
			mc := buildEventContext(cfg, registry, commands, ev)
			if err := pipeline.Run(ctx, mc); err != nil {
				slog.Error("event processing failed",
					"tenant", ev.TenantID,
					"channel", ev.ChannelID,
					"error", err,
				)
			}
		}()
	}

	loader := channels.NewInstanceLoader(stores.Instances, registry, handler)
	loader.RegisterFactory("whatsapp", whatsapp.Factory(stores.Credentials))
	loader.RegisterFactory("telegram", telegram.Factory())
	loader.RegisterFactory("discord", discord.Factory())

	if err := loader.LoadAll(ctx); err != nil {
		slog.Error("channel instance load failed", "error", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Gateway.Host, cfg.Gateway.Port)
	srv := gateway.NewServer(addr, registry)
	if err := srv.Start(ctx); err != nil {
		slog.Error("gateway server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	loader.Stop(shutdownCtx)
	slog.Info("gateway stopped")
}

// openStores selects the storage backend: Postgres in managed mode, a
// local SQLite file otherwise.
func openStores(cfg *config.Config) (*store.Stores, error) {
	if cfg.IsManagedMode() {
		return pg.NewPGStores(store.StoreConfig{PostgresDSN: cfg.Database.PostgresDSN})
	}

	path := config.ExpandHome(cfg.Database.SQLitePath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return sqlite.NewSQLiteStores(store.StoreConfig{SQLitePath: path})
}

// buildRouter assembles the ingress router over config-backed
// collaborators. Managed deployments swap in service-backed ones.
func buildRouter(cfg *config.Config, stores *store.Stores) *ingress.Router {
	agents := ingress.NewStaticAgents(cfg.Agents)
	return ingress.NewRouter(
		agents,
		ingress.LoggingInvoker{},
		ingress.NewStaticBindings(cfg.Bindings, agents),
		webhook.NewDispatcher(stores.Webhooks),
		ingress.NewStaticFlags(cfg.Features),
		ingress.PassthroughBuilder{},
	)
}

// buildPipeline assembles the middleware stages in execution order:
// cooldown, permissions, moderation, then the ingress router.
func buildPipeline(cfg *config.Config, router *ingress.Router) *middleware.Pipeline {
	limiter := ratelimit.NewKeyedLimiter()
	pipeline := middleware.New(
		middleware.Cooldown(limiter, middleware.CooldownConfig{
			BotWide: ratelimit.Budget{
				Points:   cfg.Cooldown.Points,
				Duration: time.Duration(cfg.Cooldown.DurationSeconds) * time.Second,
			},
		}),
		middleware.CheckPermissions(),
	)

	if cfg.Moderation.Enabled && cfg.Moderation.Endpoint != "" {
		pipeline.Use(middleware.Moderation(
			moderation.NewClient(cfg.Moderation.Endpoint, cfg.Moderation.APIKey, 0)))
	}

	pipeline.SetFinal(func(ctx context.Context, mc *middleware.Context) error {
		return router.HandleMessage(ctx, mc.Event)
	})
	return pipeline
}

// buildCommandSet converts the declared command configs into the
// pipeline's resolver.
func buildCommandSet(configs []config.CommandConfig) *middleware.CommandSet {
	commands := make([]middleware.Command, 0, len(configs))
	for _, c := range configs {
		commands = append(commands, middleware.Command{
			Name: c.Name,
			Permissions: middleware.Permissions{
				Owner:    c.Owner,
				Group:    c.Group,
				Private:  c.Private,
				Admin:    c.Admin,
				BotAdmin: c.BotAdmin,
				Premium:  c.Premium,
			},
			Cooldown: middleware.CommandBudget(c.CooldownPoints, c.CooldownDuration),
		})
	}
	return middleware.NewCommandSet(commands)
}

// buildEventContext seeds the per-event middleware state from the
// process-wide access lists.
func buildEventContext(cfg *config.Config, registry *channels.Registry, commands *middleware.CommandSet, ev event.Inbound) *middleware.Context {
	var groupID string
	if ev.Group {
		groupID = ev.ChatID
	}
	return &middleware.Context{
		Event:   ev,
		Command: commands.Resolve(ev.Content),
		Replier: middleware.NewChannelReplier(registry, ev),
		UserID:  ev.Sender,
		GroupID: groupID,
		IsGroup: ev.Group,
		IsOwner: contains(cfg.Access.Owners, ev.Sender),
		// Standalone mode has no live group metadata; configured bot
		// admins stand in for group admins.
		IsAdmin: contains(cfg.Access.BotAdmins, ev.Sender),
		Banned:  contains(cfg.Access.Banned, ev.Sender),
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
