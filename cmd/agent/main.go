package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/driver-agent/internal/api"
	"github.com/example/driver-agent/internal/availability"
	"github.com/example/driver-agent/internal/config"
	"github.com/example/driver-agent/internal/dispatch"
	"github.com/example/driver-agent/internal/fallback"
	"github.com/example/driver-agent/internal/geomath"
	httpapi "github.com/example/driver-agent/internal/http"
	"github.com/example/driver-agent/internal/journal"
	"github.com/example/driver-agent/internal/location"
	"github.com/example/driver-agent/internal/logging"
	"github.com/example/driver-agent/internal/models"
	"github.com/example/driver-agent/internal/offer"
	"github.com/example/driver-agent/internal/payouts"
	"github.com/example/driver-agent/internal/realtime"
)

func main() {
	cfg, err := config.LoadAgentConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.NewLogger(cfg.LogLevel, cfg.DriverID)
	session := models.DriverSession{DriverID: cfg.DriverID, Token: cfg.Token}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// last-good cache: redis when configured, in-process otherwise
	var cache fallback.Store
	if cfg.RedisAddr != "" {
		rc := fallback.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.FallbackTTL, logging.Component(logger, "fallback"))
		defer rc.Close()
		cache = rc
	} else {
		cache = fallback.NewMemory(cfg.FallbackTTL)
	}

	exec := api.NewExecutor(api.RetryPolicy{
		MaxAttempts:       cfg.RetryMaxAttempts,
		BaseDelay:         cfg.RetryBaseDelay,
		Backoff:           api.Backoff(cfg.RetryBackoff),
		PerAttemptTimeout: cfg.PerAttemptTimeout,
	}, logging.Component(logger, "executor"))
	client := api.NewClient(cfg.APIBaseURL, exec, cache, session)

	channel := realtime.NewChannel(cfg.WSURL, session, realtime.ReconnectPolicy{
		MaxAttempts: cfg.ReconnectMaxAttempts,
		BaseDelay:   cfg.ReconnectBaseDelay,
	}, logging.Component(logger, "realtime"))
	defer channel.Close()

	var forwarders location.MultiForwarder
	forwarders = append(forwarders, location.NewAPIForwarder(client, logging.Component(logger, "location")))
	if len(cfg.KafkaBrokers) > 0 {
		kf := location.NewKafkaForwarder(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.DriverID, logging.Component(logger, "telemetry"))
		defer kf.Close()
		forwarders = append(forwarders, kf)
	}
	tracker := location.NewTracker(forwarders)

	var jnl journal.Journal
	if cfg.PGDSN != "" {
		pj, err := journal.NewPostgres(cfg.PGDSN, cfg.DriverID)
		if err != nil {
			log.Fatalf("journal: %v", err)
		}
		defer pj.Close()
		jnl = pj
	} else {
		jnl = journal.NewMemory()
	}

	avail := availability.NewSynchronizer(client, channel, tracker, session, logging.Component(logger, "availability"))
	channel.Subscribe(realtime.EventAvailabilityAck, avail.HandleAck)

	coord := dispatch.NewCoordinator(channel, tracker, jnl, client, offer.Config{
		CountdownSeconds: cfg.OfferCountdownSeconds,
		TickInterval:     time.Second,
		SpeedKph:         cfg.AssumedSpeedKph,
		Rates:            geomath.FareRates{Base: cfg.FareBase, PerMile: cfg.FarePerMile, PerMinute: cfg.FarePerMinute},
	}, logging.Component(logger, "dispatch"))
	coord.Start()
	defer coord.Close()

	var payer httpapi.PayoutInitiator
	if cfg.StripeAPIKey != "" {
		payer = payouts.NewStripeClient(cfg.StripeAPIKey)
	}

	srv := &http.Server{
		Addr:    cfg.StatusAddr,
		Handler: httpapi.NewServer(avail, coord, channel, tracker, payer, logging.Component(logger, "http")),
	}
	go func() {
		logger.Info("status server listening", "addr", cfg.StatusAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("status server stopped", "error", err)
			stop()
		}
	}()

	if err := channel.Connect(ctx); err != nil {
		// the bounded reconnect policy takes it from here; the agent
		// still serves cached data meanwhile
		logger.Warn("initial connect failed", "error", err)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("status server shutdown", "error", err)
	}
}
