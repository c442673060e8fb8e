// Package scheduler runs recurring ingestion of all allowed sources. Each run
// is tracked as a job like any manually triggered ingestion, so operators see
// scheduled and ad-hoc runs in the same place.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/gridwire/gridwire/internal/database"
	"github.com/gridwire/gridwire/internal/ingest"
)

// Scheduler triggers ingestion on a fixed interval.
type Scheduler struct {
	db       *database.DB
	orch     *ingest.Orchestrator
	log      *zap.SugaredLogger
	interval time.Duration
	limit    int
}

// New creates a scheduler. The limit bounds candidates taken per source on
// each run; zero means no limit.
func New(db *database.DB, orch *ingest.Orchestrator, log *zap.SugaredLogger, interval time.Duration, limit int) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &Scheduler{db: db, orch: orch, log: log, interval: interval, limit: limit}
}

// Run executes scheduled ingestion until the context is cancelled. The first
// run happens after one full interval, not at startup, so a crash-looping
// process does not hammer upstreams. Runs execute synchronously within the
// loop, which also prevents overlapping runs.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Infow("scheduler started", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Infow("scheduler stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// runOnce performs one scheduled ingestion under a tracked job.
func (s *Scheduler) runOnce(ctx context.Context) {
	params := ingest.Params{Scope: ingest.ScopeAllowed, Limit: s.limit}
	job, err := s.db.CreateJob(ingest.JobTypeIngest, params)
	if err != nil {
		s.log.Errorw("creating scheduled job failed", "error", err)
		return
	}

	s.log.Infow("scheduled ingestion started", "job", job.ID)
	s.orch.Execute(ctx, job.ID, params)

	done, err := s.db.GetJob(job.ID)
	if err != nil || done == nil {
		s.log.Warnw("reading scheduled job outcome failed", "job", job.ID, "error", err)
		return
	}
	s.log.Infow("scheduled ingestion finished", "job", done.ID, "status", done.Status)
}
