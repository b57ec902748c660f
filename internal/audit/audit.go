// Package audit records session and notification events into postgres.
// Recording is best-effort: a failed insert is logged and never blocks the
// user-facing operation.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Event actions recorded by the gateway.
const (
	ActionLogin       = "session.login"
	ActionLogout      = "session.logout"
	ActionRoleChange  = "session.role_change"
	ActionMarkAllRead = "notify.mark_all_read"
	ActionDeleteRead  = "notify.delete_read"
)

// Event is one row in audit_events.
type Event struct {
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Recorder writes events into audit_events.
type Recorder struct {
	db     execer
	logger *slog.Logger
}

// NewRecorder returns a new Recorder. A nil pool disables recording.
func NewRecorder(pool *pgxpool.Pool, logger *slog.Logger) *Recorder {
	rec := &Recorder{logger: logger}
	if pool != nil {
		rec.db = pool
	}
	return rec
}

// Record persists the event. An unset At is stamped with the current time.
// Duplicate events (retried requests carrying the same idempotency key in
// EntityID) are tolerated silently.
func (r *Recorder) Record(ctx context.Context, event Event) {
	if r == nil || r.db == nil {
		return
	}
	if event.Action == "" || event.Entity == "" {
		r.warn("audit event requires action/entity", nil)
		return
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	metaJSON, err := json.Marshal(event.Meta)
	if err != nil {
		r.warn("marshal audit meta", err)
		return
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO audit_events (actor_id, action, entity, entity_id, meta, occurred_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ActorID, event.Action, event.Entity, event.EntityID, metaJSON, event.At)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return
		}
		r.warn("record audit event", err)
	}
}

func (r *Recorder) warn(msg string, err error) {
	if r.logger == nil {
		return
	}
	if err != nil {
		r.logger.Warn(msg, slog.Any("error", err))
		return
	}
	r.logger.Warn(msg)
}
