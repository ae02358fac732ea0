// Command server boots the payment intermediary: loads configuration,
// wires the five request-path components and the idempotency cache, and
// serves the HTTP surface from spec §6 until SIGINT/SIGTERM, draining
// in-flight requests before exit. Grounded on the teacher's main.go
// (newAggregator wiring + http.ListenAndServe) generalized into the full
// component graph and a graceful-shutdown contract in the style of
// LerianStudio-midaz's pkg/server shutdown tests.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kayleemclaren/payment-intermediary/internal/breaker"
	"github.com/kayleemclaren/payment-intermediary/internal/config"
	"github.com/kayleemclaren/payment-intermediary/internal/hedge"
	"github.com/kayleemclaren/payment-intermediary/internal/httpapi"
	"github.com/kayleemclaren/payment-intermediary/internal/idempotency"
	"github.com/kayleemclaren/payment-intermediary/internal/ledger"
	"github.com/kayleemclaren/payment-intermediary/internal/logging"
	"github.com/kayleemclaren/payment-intermediary/internal/metrics"
	"github.com/kayleemclaren/payment-intermediary/internal/payment"
	"github.com/kayleemclaren/payment-intermediary/internal/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logging.New(os.Getenv("ENV") == "dev")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	m := metrics.New()

	listener := &breakerLogListener{log: log, metrics: m}
	breakers := map[payment.UpstreamID]*breaker.Breaker{
		payment.UpstreamDefault: breaker.New(breaker.Settings{
			Name:         string(payment.UpstreamDefault),
			MinSamples:   cfg.CBMinSamples,
			FailRate:     cfg.CBFailRate,
			OpenDuration: cfg.CBOpenSeconds,
			Listener:     listener,
		}),
		payment.UpstreamFallback: breaker.New(breaker.Settings{
			Name:         string(payment.UpstreamFallback),
			MinSamples:   cfg.CBMinSamples,
			FailRate:     cfg.CBFailRate,
			OpenDuration: cfg.CBOpenSeconds,
			Listener:     listener,
		}),
	}

	clients := map[payment.UpstreamID]*upstream.Client{
		payment.UpstreamDefault:  upstream.NewClient(payment.UpstreamDefault, cfg.UpstreamDefaultURL, cfg.UpstreamPayPath, cfg.RequestTimeout),
		payment.UpstreamFallback: upstream.NewClient(payment.UpstreamFallback, cfg.UpstreamFallbackURL, cfg.UpstreamPayPath, cfg.RequestTimeout),
	}

	dispatcher := hedge.New(clients, breakers, func() <-chan time.Time {
		return time.After(cfg.HedgeDelay)
	})

	cache := idempotency.New(cfg.CacheCapacity, cfg.CacheTTL)
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		mirror := idempotency.NewAsyncMirror(client, log, cfg.CacheTTL)
		cache.WithAsyncMirror(mirror)
		go mirror.Run(context.Background())
	}

	led := ledger.New()

	h := httpapi.New(httpapi.Config{
		Log:             log,
		AuthHeaderName:  cfg.AuthHeaderName,
		AuthHeaderValue: cfg.AuthHeaderValue,
		RequestTimeout:  cfg.RequestTimeout,
		ConcurrencyCap:  cfg.ConcurrencyLimit,
		Cache:           cache,
		Ledger:          led,
		Breakers:        breakers,
		Dispatcher:      dispatcher,
		Metrics:         m,
	})

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go cache.Run(sweepCtx, cfg.CacheTTL/2)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: httpapi.NewRouter(h, m),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("listening", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server exited", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}

// breakerLogListener bridges breaker state transitions to structured logs
// and the Prometheus gauge, in the style of LerianStudio-midaz's
// mcircuitbreaker.StateListener adapter.
type breakerLogListener struct {
	log     *zap.Logger
	metrics *metrics.Metrics
}

func (l *breakerLogListener) OnCircuitBreakerStateChange(event breaker.StateChangeEvent) {
	l.log.Warn("circuit breaker state change",
		zap.String("upstream", event.Name),
		zap.String("from", event.From.String()),
		zap.String("to", event.To.String()),
		zap.Uint32("requests", event.Counts.Requests),
		zap.Uint32("totalFailures", event.Counts.TotalFailures),
	)
	l.metrics.ObserveBreakerState(payment.UpstreamID(event.Name), event.To == breaker.Open)
}
