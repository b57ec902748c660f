package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/crewboard/crewboard/internal/notify"
	"github.com/crewboard/crewboard/internal/session"
)

// NotifySyncJob refreshes unread-aggregate snapshots for sessions that are
// currently logged in, so the badge is warm before the browser's next poll.
type NotifySyncJob struct {
	Store  *session.Store
	Engine *notify.Engine
	Logger *slog.Logger
	clock  func() time.Time
}

// NewNotifySyncJob wires dependencies for the sync handler.
func NewNotifySyncJob(store *session.Store, engine *notify.Engine, logger *slog.Logger) *NotifySyncJob {
	return &NotifySyncJob{
		Store:  store,
		Engine: engine,
		Logger: logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskNotifySync tasks.
func (j *NotifySyncJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil || j.Engine == nil {
		return errors.New("notify sync: handler not configured")
	}
	var payload NotifySyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.MaxSessions <= 0 {
		payload.MaxSessions = 500
	}

	logger := j.logger()
	started := j.now()

	ids, err := j.Store.ActiveSessionIDs(ctx)
	if err != nil {
		logger.Error("list active sessions", slog.Any("error", err))
		return err
	}
	if len(ids) > payload.MaxSessions {
		ids = ids[:payload.MaxSessions]
	}

	refreshed := 0
	var lastErr error
	for _, sid := range ids {
		sess := j.Store.Load(ctx, sid)
		if !sess.IsAuthenticated() {
			continue
		}
		// Each session gets its own timeout so one slow upstream call
		// cannot starve the rest of the sweep.
		sessCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		_, err := j.Engine.Refresh(sessCtx, sess)
		cancel()
		if err != nil {
			lastErr = err
			logger.Warn("refresh aggregate", slog.String("session_id", sid), slog.Any("error", err))
			continue
		}
		refreshed++
	}

	logger.Info("completed notify sync sweep",
		slog.Int("sessions", len(ids)),
		slog.Int("refreshed", refreshed),
		slog.Duration("duration", time.Since(started)))
	return lastErr
}

func (j *NotifySyncJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskNotifySync))
	}
	return slog.Default().With(slog.String("job", TaskNotifySync))
}

func (j *NotifySyncJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
