// Package workers holds the bridge's scheduled background jobs.
package workers

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/threadline/courier-bridge/pkg/courier/swiftship"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// CityCacheWarmer refreshes the city cache on a cron schedule so the
// shipment form rarely pays the fetch on the operator's time.
type CityCacheWarmer struct {
	locations *swiftship.LocationCache
	logger    *otelzap.Logger
	cron      *cron.Cron
}

// NewCityCacheWarmer creates a warmer around the location cache.
func NewCityCacheWarmer(locations *swiftship.LocationCache, logger *otelzap.Logger) *CityCacheWarmer {
	return &CityCacheWarmer{
		locations: locations,
		logger:    logger,
		cron:      cron.New(),
	}
}

// Start schedules the warmer and begins running it. A failed warm run
// is logged and retried at the next tick; the serving path has its own
// stale-cache fallback.
func (w *CityCacheWarmer) Start(schedule string) error {
	_, err := w.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := w.locations.Refresh(ctx); err != nil {
			w.logger.Warn("City cache warm failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	w.cron.Start()
	w.logger.Info("City cache warmer scheduled", zap.String("schedule", schedule))
	return nil
}

// Stop halts the schedule and waits for a running job to finish.
func (w *CityCacheWarmer) Stop() {
	ctx := w.cron.Stop()
	<-ctx.Done()
}
