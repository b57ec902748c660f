package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/crewboard/crewboard/internal/session"
)

// SessionPruneJob sweeps stored sessions: loading each record forces the
// store to discard corrupt or half-written entries, and the sweep reports
// how many survived. Expired records age out through the store TTL.
type SessionPruneJob struct {
	Store  *session.Store
	Logger *slog.Logger
}

// NewSessionPruneJob wires dependencies for the prune handler.
func NewSessionPruneJob(store *session.Store, logger *slog.Logger) *SessionPruneJob {
	return &SessionPruneJob{Store: store, Logger: logger}
}

// Handle processes TaskSessionPrune tasks.
func (j *SessionPruneJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("session prune: handler not configured")
	}
	logger := j.logger()
	started := time.Now()

	ids, err := j.Store.ActiveSessionIDs(ctx)
	if err != nil {
		logger.Error("list sessions", slog.Any("error", err))
		return err
	}

	healthy := 0
	for _, sid := range ids {
		if j.Store.Load(ctx, sid).IsAuthenticated() {
			healthy++
		}
	}

	logger.Info("completed session sweep",
		slog.Int("sessions", len(ids)),
		slog.Int("healthy", healthy),
		slog.Duration("duration", time.Since(started)))
	return nil
}

func (j *SessionPruneJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskSessionPrune))
	}
	return slog.Default().With(slog.String("job", TaskSessionPrune))
}
