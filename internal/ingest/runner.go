package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gridwire/gridwire/internal/database"
)

// Ingestion scopes accepted by Trigger.
const (
	ScopeOne     = "one"
	ScopeAllowed = "allowed"
	ScopeAll     = "all"
)

// JobTypeIngest is the job type recorded for ingestion runs.
const JobTypeIngest = "ingest"

// Params are the input parameters of an ingestion job.
type Params struct {
	Scope    string `json:"scope"`
	SourceID int64  `json:"source_id,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// Validate checks the scope and its required parameters.
func (p Params) Validate() error {
	switch p.Scope {
	case ScopeOne:
		if p.SourceID <= 0 {
			return fmt.Errorf("scope %q requires a source id", p.Scope)
		}
		return nil
	case ScopeAllowed, ScopeAll:
		return nil
	default:
		return fmt.Errorf("unknown ingest scope %q", p.Scope)
	}
}

// Trigger creates a job for the given parameters and starts the work in a
// background goroutine. The job is returned immediately so callers can poll
// before the first event exists. In-flight work always reaches a terminal
// job status, even if every caller stops polling.
func (o *Orchestrator) Trigger(ctx context.Context, p Params) (*database.Job, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	job, err := o.db.CreateJob(JobTypeIngest, p)
	if err != nil {
		return nil, err
	}

	go o.Execute(ctx, job.ID, p)
	return job, nil
}

// Execute runs an ingestion job to completion, transitioning it through
// running into exactly one terminal state.
func (o *Orchestrator) Execute(ctx context.Context, jobID string, p Params) {
	if err := o.db.StartJob(jobID); err != nil {
		o.log.Errorw("starting job failed", "job", jobID, "error", err)
	}
	rec := newRecorder(o.db, jobID, o.log)

	switch p.Scope {
	case ScopeOne:
		o.executeOne(ctx, jobID, p, rec)
	default:
		o.executeBatch(ctx, jobID, p, rec)
	}
}

func (o *Orchestrator) executeOne(ctx context.Context, jobID string, p Params, rec *recorder) {
	counts, err := o.ingestSource(ctx, p.SourceID, p.Limit, rec)
	if err != nil {
		o.finishFailed(jobID, fmt.Sprintf("ingestion failed: %v", err), err)
		return
	}
	o.finishSucceeded(jobID, summarize(counts))
}

func (o *Orchestrator) executeBatch(ctx context.Context, jobID string, p Params, rec *recorder) {
	result, err := o.ingestBatch(ctx, p.Limit, p.Scope == ScopeAllowed, rec)
	if err != nil {
		o.finishFailed(jobID, fmt.Sprintf("ingestion failed: %v", err), err)
		return
	}

	failed := 0
	for _, s := range result.Sources {
		if s.Err != nil {
			failed++
		}
	}

	// A batch fails only when every source failed; partial failure is a
	// successful run with failure events on record.
	if len(result.Sources) > 0 && failed == len(result.Sources) {
		o.finishFailed(jobID, "all sources failed", fmt.Errorf("%d of %d sources failed", failed, len(result.Sources)))
		return
	}

	summary := fmt.Sprintf("%s across %d sources", summarize(result.Totals), len(result.Sources))
	if failed > 0 {
		summary += fmt.Sprintf(" (%d failed)", failed)
	}
	o.finishSucceeded(jobID, summary)
}

func (o *Orchestrator) finishSucceeded(jobID, message string) {
	if err := o.db.FinishJob(jobID, message); err != nil {
		o.log.Errorw("finishing job failed", "job", jobID, "error", err)
	}
}

func (o *Orchestrator) finishFailed(jobID, message string, cause error) {
	if err := o.db.FailJob(jobID, message, cause.Error()); err != nil {
		o.log.Errorw("failing job failed", "job", jobID, "error", err)
	}
}

func summarize(c Counts) string {
	return fmt.Sprintf("%d inserted, %d updated, %d skipped, %d failed",
		c.Inserted, c.Updated, c.Skipped, c.Failed)
}

// DecodeParams parses stored job parameters.
func DecodeParams(raw *string) (Params, error) {
	var p Params
	if raw == nil {
		return p, fmt.Errorf("job has no parameters")
	}
	if err := json.Unmarshal([]byte(*raw), &p); err != nil {
		return p, fmt.Errorf("decoding job parameters: %w", err)
	}
	return p, nil
}
