package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"trendforge/importer/internal/ingest"
)

// cronLogger routes scheduler messages to zerolog.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

// scheduleFetch registers the periodic import. Overlapping runs are skipped.
func scheduleFetch(ctx context.Context, a *app) (*cron.Cron, error) {
	logger := cronLogger{logger: log.Logger.With().Str("component", "cron").Logger()}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	_, err := c.AddFunc(a.cfg.CronSchedule, func() {
		log.Info().Msg("Starting scheduled trends fetch")
		if _, err := a.ingestor.FetchAndSaveTrends(ctx); err != nil &&
			!errors.Is(err, ingest.ErrImportDisabled) && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Scheduled trends fetch failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", a.cfg.CronSchedule, err)
	}
	return c, nil
}
