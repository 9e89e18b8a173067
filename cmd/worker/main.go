package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/djedi-go/djedi"
	"github.com/briangreenhill/djedi-go/internal/config"
	"github.com/briangreenhill/djedi-go/internal/jobs"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "djedi-worker").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	if !cfg.HasRedis() {
		logger.Fatal().Msg("REDIS_ADDR is required for the worker")
	}
	logger = logger.Level(cfg.Level())

	// Warming only pays off when the cache is shared with the proxies
	if cfg.Cache.Backend != "redis" && cfg.Cache.Backend != "tiered" {
		logger.Warn().Str("cache", cfg.Cache.Backend).Msg("cache backend is not shared; warmed nodes stay in this process")
	}

	client, err := cfg.NewClient(logger, djedi.WithBatchInterval(0))
	if err != nil {
		logger.Fatal().Err(err).Msg("create djedi client")
	}

	srv := asynq.NewServer(asynq.RedisClientOpt{Addr: cfg.RedisAddr}, asynq.Config{
		Concurrency: 4,
		Queues: map[string]int{
			jobs.QueueWarm: 10,
			"default":      1,
		},
		Logger:   asynqLogger{logger},
		LogLevel: asynq.InfoLevel,
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(jobs.TaskWarmNodes, warmHandler(client, logger))

	logger.Info().Msg("worker running")
	if err := srv.Run(mux); err != nil {
		logger.Fatal().Err(err).Msg("worker stopped")
	}
}

// warmHandler prefetches the nodes of a warm task into the client's cache.
func warmHandler(client *djedi.Client, logger zerolog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		p, err := jobs.ParseWarmNodesPayload(t)
		if err != nil {
			logger.Error().Err(err).Msg("bad warm payload, dropping")
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}

		extra := make([]djedi.Node, 0, len(p.Nodes))
		for raw, value := range p.Nodes {
			extra = append(extra, djedi.Node{URI: raw, Value: value})
		}

		start := time.Now()
		results, err := client.Prefetch(ctx, djedi.PrefetchOptions{Extra: extra})
		duration := time.Since(start)

		if err != nil {
			if isRetryableError(err) {
				logger.Warn().Err(err).Int("nodes", len(extra)).Dur("duration", duration).Msg("warm failed, retrying")
				return err
			}
			logger.Error().Err(err).Int("nodes", len(extra)).Dur("duration", duration).Msg("warm failed permanently, dropping")
			return nil
		}

		logger.Info().Int("nodes", len(extra)).Int("fetched", len(results)).Dur("duration", duration).Msg("warm done")
		return nil
	}
}

// isRetryableError determines if a failed warm should be retried
func isRetryableError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var reqErr *djedi.RequestError
	if !errors.As(err, &reqErr) {
		return false
	}
	switch reqErr.Kind() {
	case djedi.ErrTransport:
		return true
	case djedi.ErrStatus:
		return reqErr.StatusCode == http.StatusTooManyRequests || reqErr.StatusCode >= 500
	default:
		return false
	}
}

// asynqLogger routes asynq's logs through zerolog
type asynqLogger struct {
	l zerolog.Logger
}

func (a asynqLogger) Debug(args ...interface{}) { a.l.Debug().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Info(args ...interface{})  { a.l.Info().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Warn(args ...interface{})  { a.l.Warn().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Error(args ...interface{}) { a.l.Error().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Fatal(args ...interface{}) { a.l.Fatal().Msg(fmt.Sprint(args...)) }
