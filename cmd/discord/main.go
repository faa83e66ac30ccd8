package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/keshon/interkit/internal/command/core"
	"github.com/keshon/interkit/internal/config"
	"github.com/keshon/interkit/internal/cooldown"
	"github.com/keshon/interkit/internal/discord"
	"github.com/keshon/interkit/internal/dispatch"
	"github.com/keshon/interkit/internal/logging"
	"github.com/keshon/interkit/internal/module"
	"github.com/keshon/interkit/internal/notify"
	"github.com/keshon/interkit/internal/permission"
	"github.com/keshon/interkit/internal/storage"
	"github.com/keshon/interkit/internal/telemetry"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const serviceName = "interkit"

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("failed to load config")
	}
	log := logging.New(logging.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty, File: cfg.LogFile})

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("bot stopped")
	}
	log.Info().Msg("bot exited cleanly")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.OTelEndpoint)
	if err != nil {
		return err
	}
	defer shutdownTracing(context.Background())

	owners := permission.NewOwnerSet(cfg.OwnerIDs...)

	var (
		engine  *cooldown.Engine
		starter dispatch.Starter
		cdAdmin core.CooldownAdmin
	)
	if cfg.CooldownsEnabled {
		store, err := storage.Open(cfg.StoreDriver, cfg.StoragePath, log.With().Str("component", "store").Logger())
		if err != nil {
			return err
		}
		defer store.Close()
		log.Info().Str("driver", cfg.StoreDriver).Str("path", cfg.StoragePath).Msg("cooldown store opened")

		ccfg := cooldown.DefaultConfig()
		ccfg.Owners = owners
		ccfg.BypassOwners = cfg.OwnersBypass
		if cfg.CooldownMessage != "" {
			ccfg.Message = cfg.CooldownMessage
		}
		ccfg.Logger = log.With().Str("component", "cooldown").Logger()

		engine, err = cooldown.New(ctx, store, ccfg)
		if err != nil {
			return err
		}
		starter, cdAdmin = engine, engine
	} else {
		log.Warn().Msg("cooldowns disabled")
	}

	registry := module.NewRegistry(log)
	var bot *discord.Bot
	latency := func() time.Duration { return bot.Session().HeartbeatLatency() }
	if err := registry.Load(core.Modules(core.Deps{Latency: latency, Cooldowns: cdAdmin})...); err != nil {
		return err
	}

	// Owner DMs need the session, which only exists once the router is built.
	notifiers := notify.Multi{notify.Log{Logger: log}}
	router := dispatch.New(dispatch.Config{
		Registry:  registry,
		Gate:      permission.NewGate(owners),
		Cooldowns: starter,
		Notifier:  &notifiers,
		Logger:    log,
	})

	bot, err = discord.New(cfg.DiscordToken, discord.Options{
		AppID:            cfg.AppID,
		DevGuildID:       cfg.DevGuildID,
		Prefix:           cfg.Prefix,
		RegisterCommands: cfg.RegisterCommands,
		CacheDir:         cfg.CommandCacheDir,
	}, router, registry, log.With().Str("component", "discord").Logger())
	if err != nil {
		return err
	}
	if cfg.NotifyOwnerDM && len(owners) > 0 {
		notifiers = append(notifiers, notify.NewOwnerDM(bot.Session(), owners.IDs(), log))
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return bot.Run(ctx) })
	if engine != nil {
		g.Go(func() error { return engine.RunJanitor(ctx, cfg.JanitorInterval) })
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
