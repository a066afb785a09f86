package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/focusguard/go/internal/focus"
	"github.com/mcdev12/focusguard/go/internal/focus/config"
	"github.com/mcdev12/focusguard/go/internal/focus/escalation"
	"github.com/mcdev12/focusguard/go/internal/focus/mirror"
	"github.com/mcdev12/focusguard/go/internal/focus/sequencer"
	"github.com/mcdev12/focusguard/go/internal/focus/tap"
	"github.com/mcdev12/focusguard/go/internal/focus/view"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	clock := clockwork.NewRealClock()

	client, err := focus.New(clientConfig(cfg), clock)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create focus client")
	}

	client.SubscribeExecutions(func(r focus.ExecutionResult) {
		switch {
		case r.Err == nil:
			log.Info().Int("platforms", len(r.Platforms)).Msg("penalty sequence finished")
		case errors.Is(r.Err, sequencer.ErrNothingToExecute):
			log.Info().Msg("penalty sequence had nothing to execute")
		default:
			log.Warn().Err(r.Err).Msg("penalty sequence did not execute")
		}
	})
	client.SubscribeExpired(func(sessionID string) {
		log.Info().Str("session_id", sessionID).Msg("session time is up, waiting for server to complete it")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	var eventTap *tap.Tap
	if cfg.NATS.URL != "" {
		tapCfg := tap.DefaultConfig()
		tapCfg.URL = cfg.NATS.URL
		tapCfg.SubjectPrefix = cfg.NATS.SubjectPrefix
		tapCfg.StreamName = cfg.NATS.Stream

		eventTap, err = tap.New(tapCfg)
		if err != nil {
			log.Error().Err(err).Msg("event tap disabled")
		} else {
			client.Connection().SubscribeAll(eventTap.Handle)
			wg.Add(1)
			go func() {
				defer wg.Done()
				eventTap.Run(ctx)
			}()
		}
	}

	broadcaster := view.NewBroadcaster(client, clock, view.DefaultStreamConfig())
	client.SubscribeMirror(func(mirror.Snapshot) { broadcaster.Notify() })
	client.SubscribePenalty(func(escalation.Status) { broadcaster.Notify() })
	client.SubscribeSequencer(func(sequencer.Snapshot) { broadcaster.Notify() })
	client.Connection().SubscribeStatus(func(bool) { broadcaster.Notify() })

	handler := view.NewHandler(client, client, broadcaster).
		WithStats("connection", client.Connection().Stats)
	if eventTap != nil {
		handler.WithStats("tap", eventTap.Diagnostics)
	}
	server := view.NewServer(cfg.View.Addr, cfg.View.AllowedOrigins, handler)

	log.Info().
		Str("server_url", cfg.Server.URL).
		Str("view_addr", cfg.View.Addr).
		Bool("nats", eventTap != nil).
		Msg("starting focus client")

	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := client.Run(ctx); err != nil {
			log.Error().Err(err).Msg("focus client failed")
		}
	}()
	go func() {
		defer wg.Done()
		broadcaster.Run(ctx)
	}()

	go func() {
		log.Info().Str("addr", server.Addr).Msg("view server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("view server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("view server shutdown failed")
	}

	cancel()
	wg.Wait()

	if eventTap != nil {
		if err := eventTap.Close(); err != nil {
			log.Error().Err(err).Msg("event tap close failed")
		}
	}

	log.Info().Msg("focus client shutdown complete")
}

func clientConfig(cfg config.Config) focus.Config {
	out := focus.DefaultConfig()

	out.Connection.ServerURL = cfg.Server.URL
	out.Connection.SocketPath = cfg.Server.SocketPath
	out.Connection.ReconnectAttempts = cfg.Reconnect.Attempts
	out.Connection.ReconnectDelay = cfg.Reconnect.Delay
	out.Connection.ManualReconnectDelay = cfg.Reconnect.Cooldown
	out.Connection.UpgradeInterval = cfg.Reconnect.Upgrade

	out.CommandTimeout = cfg.Commands.Timeout
	out.ConfirmTimeout = cfg.Commands.ConfirmTimeout

	out.Sequencer = sequencer.Config{
		StepDelay:   cfg.Sequencer.StepDelay,
		SettleDelay: cfg.Sequencer.SettleDelay,
		EmptyDelay:  cfg.Sequencer.EmptyDelay,
		StallAfter:  cfg.Sequencer.StallAfter,
	}
	out.HistoryCapacity = cfg.HistoryCapacity
	return out
}
