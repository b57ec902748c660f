package notify

import "time"

// Category classifies the notification source.
type Category string

const (
	CategoryTask       Category = "task"
	CategoryTeam       Category = "team"
	CategoryProject    Category = "project"
	CategoryEvaluation Category = "evaluation"
	CategoryGithub     Category = "github"
	CategorySystem     Category = "system"
	CategoryAttendance Category = "attendance"
)

// Priority orders notifications for display.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Notification is created server-side and fetched read-only; the client only
// flips is_read (one way) or deletes it.
type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Category  Category  `json:"category"`
	Priority  Priority  `json:"priority"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	ActionURL string    `json:"action_url"`
	CreatedAt time.Time `json:"created_at"`
}

// UnreadAggregate is the server-computed unread summary.
type UnreadAggregate struct {
	Total      int              `json:"total"`
	ByPriority map[Priority]int `json:"by_priority"`
	ByCategory map[Category]int `json:"by_category"`
}

// Consistent reports whether the counter invariant holds: total equals the
// sum of both breakdowns and nothing is negative.
func (a UnreadAggregate) Consistent() bool {
	if a.Total < 0 {
		return false
	}
	prioritySum := 0
	for _, n := range a.ByPriority {
		if n < 0 {
			return false
		}
		prioritySum += n
	}
	categorySum := 0
	for _, n := range a.ByCategory {
		if n < 0 {
			return false
		}
		categorySum += n
	}
	return a.Total == prioritySum && a.Total == categorySum
}

// ListFilter narrows a notification list or a bulk mark-read.
type ListFilter struct {
	Category   Category `json:"category,omitempty" validate:"omitempty,oneof=task team project evaluation github system attendance"`
	Priority   Priority `json:"priority,omitempty" validate:"omitempty,oneof=urgent high medium low"`
	UnreadOnly bool     `json:"unread_only,omitempty"`
	Page       int      `json:"page,omitempty" validate:"omitempty,min=1"`
	PerPage    int      `json:"per_page,omitempty" validate:"omitempty,min=1,max=100"`
}
