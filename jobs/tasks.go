package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskNotifySync warms unread-aggregate snapshots for active sessions.
	TaskNotifySync = "notify:sync"
	// TaskSessionPrune sweeps corrupt or half-written session records.
	TaskSessionPrune = "session:prune"
)

// NotifySyncPayload bounds one synchronization sweep.
type NotifySyncPayload struct {
	// MaxSessions caps how many active sessions a single sweep refreshes.
	MaxSessions int `json:"max_sessions"`
}

// NewNotifySyncTask constructs an Asynq task for a sync sweep.
func NewNotifySyncTask(payload NotifySyncPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotifySync, data), nil
}

// SessionPrunePayload is currently empty; the sweep is self-describing.
type SessionPrunePayload struct{}

// NewSessionPruneTask constructs an Asynq task for a session sweep.
func NewSessionPruneTask() (*asynq.Task, error) {
	data, err := json.Marshal(SessionPrunePayload{})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionPrune, data), nil
}
