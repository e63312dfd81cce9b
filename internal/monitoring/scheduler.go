package monitoring

import (
	"context"
	"time"

	"github.com/isdelr/recipe-api-be/internal/metrics"
	"github.com/isdelr/recipe-api-be/internal/services"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Scheduler runs housekeeping jobs on a cron schedule.
type Scheduler struct {
	eventSvc  services.EventServiceProvider
	retention time.Duration
	cron      *cron.Cron
	now       func() time.Time
}

// NewScheduler creates a scheduler that prunes events older than retention
// whenever schedule fires. schedule is a standard five-field cron expression.
func NewScheduler(eventSvc services.EventServiceProvider, schedule string, retention time.Duration) (*Scheduler, error) {
	s := &Scheduler{
		eventSvc:  eventSvc,
		retention: retention,
		cron:      cron.New(),
		now:       time.Now,
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.PruneEvents(context.Background()) }); err != nil {
		return nil, err
	}
	return s, nil
}

// Run starts the cron loop in the background.
func (s *Scheduler) Run() {
	log.Info().Dur("retention", s.retention).Msg("Starting housekeeping scheduler")
	s.cron.Start()
}

// Stop halts the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("Stopped housekeeping scheduler")
}

// PruneEvents deletes events past the retention window and returns how many
// were removed.
func (s *Scheduler) PruneEvents(ctx context.Context) int64 {
	cutoff := s.now().Add(-s.retention)
	n, err := s.eventSvc.PruneEvents(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Time("cutoff", cutoff).Msg("Scheduler: Failed to prune events")
		return 0
	}
	metrics.EventsPruned.Add(float64(n))
	if n > 0 {
		log.Info().Int64("pruned", n).Time("cutoff", cutoff).Msg("Scheduler: Pruned old events")
	}
	return n
}
