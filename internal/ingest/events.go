package ingest

import (
	"go.uber.org/zap"

	"github.com/gridwire/gridwire/internal/database"
)

// Event severity levels.
const (
	levelInfo  = "info"
	levelWarn  = "warn"
	levelError = "error"
)

// recorder appends progress events to a job. Outside a job (direct CLI
// ingestion) a recorder with no job ID swallows events, so pipeline code can
// emit unconditionally.
type recorder struct {
	db    *database.DB
	jobID string
	log   *zap.SugaredLogger
}

func newRecorder(db *database.DB, jobID string, log *zap.SugaredLogger) *recorder {
	return &recorder{db: db, jobID: jobID, log: log}
}

func noopRecorder() *recorder {
	return &recorder{}
}

// event appends one progress event. Append failures are logged and dropped:
// losing a progress line must never fail the work it describes.
func (r *recorder) event(level, message string, meta map[string]any) {
	if r.jobID == "" {
		return
	}
	if _, err := r.db.AppendEvent(r.jobID, level, message, meta); err != nil {
		r.log.Warnw("appending job event failed", "job", r.jobID, "error", err)
	}
}

// message replaces the job's status line while it is still live. Terminal
// transitions write their own summary, so a late message never clobbers it.
func (r *recorder) message(text string) {
	if r.jobID == "" {
		return
	}
	if err := r.db.SetJobMessage(r.jobID, text); err != nil {
		r.log.Warnw("updating job message failed", "job", r.jobID, "error", err)
	}
}

// progress records the monotonic processed-source count for UI display.
func (r *recorder) progress(processed int) {
	if r.jobID == "" {
		return
	}
	if err := r.db.SetJobProgress(r.jobID, processed); err != nil {
		r.log.Warnw("recording job progress failed", "job", r.jobID, "error", err)
	}
}
