package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/alphaview/alphaview/internal/modules/prices"
)

// PriceRefreshJob pulls fresh daily closes for every held symbol
type PriceRefreshJob struct {
	refresh *prices.RefreshService
	timeout time.Duration
	log     zerolog.Logger
}

// NewPriceRefreshJob creates a new price refresh job
func NewPriceRefreshJob(refresh *prices.RefreshService, log zerolog.Logger) *PriceRefreshJob {
	return &PriceRefreshJob{
		refresh: refresh,
		timeout: 10 * time.Minute,
		log:     log.With().Str("job", "price_refresh").Logger(),
	}
}

// Name returns the job name
func (j *PriceRefreshJob) Name() string {
	return "price_refresh"
}

// Run executes the refresh pass
func (j *PriceRefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	return j.refresh.RefreshAll(ctx)
}
