package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/zoff-tech/queue-admin/pkg/store"
)

// SummarySource computes the dashboard summary.
type SummarySource interface {
	Summary(ctx context.Context) (store.Summary, error)
}

// Reporter logs the dashboard summary on a fixed interval. Each run reads the store afresh.
type Reporter struct {
	source   SummarySource
	cron     *cron.Cron
	interval time.Duration
	logger   zerolog.Logger
}

func NewReporter(source SummarySource, interval time.Duration, logger zerolog.Logger) *Reporter {
	return &Reporter{
		source: source,
		// a slow store must not stack up overlapping runs
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		interval: interval,
		logger:   logger.With().Str("component", "reporter").Logger(),
	}
}

func (r *Reporter) Start() error {
	if _, err := r.cron.AddFunc(fmt.Sprintf("@every %s", r.interval), r.report); err != nil {
		return fmt.Errorf("schedule summary report: %w", err)
	}
	r.cron.Start()
	r.logger.Info().Dur("interval", r.interval).Msg("summary reporter started")
	return nil
}

// Stop halts the schedule and waits for a running report to finish or ctx to end.
func (r *Reporter) Stop(ctx context.Context) {
	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (r *Reporter) report() {
	ctx, cancel := context.WithTimeout(context.Background(), r.interval)
	defer cancel()

	summary, err := r.source.Summary(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to compute summary")
		return
	}

	r.logger.Info().
		Int64("total_dead_letters", summary.TotalDeadLetters).
		Int64("replayable_dead_letters", summary.ReplayableDeadLetters).
		Int64("total_incoming_envelopes", summary.TotalIncomingEnvelopes).
		Int64("active_nodes", summary.ActiveNodes).
		Time("generated_at", summary.GeneratedAt).
		Msg("queue summary")
}
