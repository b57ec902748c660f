// Package http exposes the notification panel endpoints. Every route sits
// behind the authentication guard; mutation responses always include the
// refetched aggregate so the panel and the badge can never disagree for
// longer than one round trip.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"

	"github.com/crewboard/crewboard/internal/audit"
	"github.com/crewboard/crewboard/internal/notify"
	"github.com/crewboard/crewboard/internal/platform/httpx"
	"github.com/crewboard/crewboard/internal/session"
	"github.com/crewboard/crewboard/jobs"
)

// SyncEnqueuer schedules an out-of-band snapshot warmup after bulk mutations.
type SyncEnqueuer interface {
	EnqueueNotifySync(ctx context.Context, payload jobs.NotifySyncPayload) (*asynq.TaskInfo, error)
}

// Handler wires the notification endpoints.
type Handler struct {
	logger    *slog.Logger
	engine    *notify.Engine
	recorder  *audit.Recorder
	syncQueue SyncEnqueuer
	validator *validator.Validate
}

// NewHandler constructs a Handler instance. syncQueue may be nil, which skips
// the background warmup after bulk operations.
func NewHandler(logger *slog.Logger, engine *notify.Engine, recorder *audit.Recorder, syncQueue SyncEnqueuer) *Handler {
	return &Handler{logger: logger, engine: engine, recorder: recorder, syncQueue: syncQueue, validator: validator.New()}
}

// MountRoutes registers notification routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Get("/unread-count", h.handleUnreadCount)
	r.Post("/refresh", h.handleRefresh)
	r.Post("/{id}/read", h.handleMarkRead)
	r.Post("/{id}/click", h.handleClick)
	r.Post("/mark-all-read", h.handleMarkAllRead)
	r.Delete("/read", h.handleDeleteAllRead)
	r.Delete("/{id}", h.handleDelete)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter := notify.ListFilter{
		Category:   notify.Category(r.URL.Query().Get("category")),
		Priority:   notify.Priority(r.URL.Query().Get("priority")),
		UnreadOnly: r.URL.Query().Get("unread_only") == "true",
	}
	if err := h.validator.Struct(filter); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	items, err := h.engine.List(r.Context(), session.FromContext(r.Context()), filter)
	if err != nil {
		h.respondEngineError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"notifications": items})
}

func (h *Handler) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	aggregate, err := h.engine.Snapshot(r.Context(), session.FromContext(r.Context()))
	if err != nil {
		h.respondEngineError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"unread": aggregate})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	aggregate, err := h.engine.Refresh(r.Context(), session.FromContext(r.Context()))
	if err != nil {
		h.respondEngineError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"unread": aggregate})
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	aggregate, err := h.engine.MarkAsRead(r.Context(), session.FromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.respondEngineError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"unread": aggregate})
}

func (h *Handler) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	var filter notify.ListFilter
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &filter); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "request body must be JSON")
			return
		}
		if err := h.validator.Struct(filter); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
	}
	marked, aggregate, err := h.engine.MarkAllAsRead(r.Context(), sess, filter)
	if err != nil {
		h.respondEngineError(w, err)
		return
	}
	if marked > 0 {
		h.recorder.Record(r.Context(), audit.Event{
			ActorID: sess.User.ID,
			Action:  audit.ActionMarkAllRead,
			Entity:  "notification",
			Meta:    map[string]any{"marked_count": marked},
		})
		h.enqueueSync(r.Context())
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"marked_count": marked, "unread": aggregate})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	aggregate, err := h.engine.Delete(r.Context(), session.FromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.respondEngineError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"unread": aggregate})
}

func (h *Handler) handleDeleteAllRead(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	deleted, err := h.engine.DeleteAllRead(r.Context(), sess)
	if err != nil {
		h.respondEngineError(w, err)
		return
	}
	if deleted > 0 {
		h.recorder.Record(r.Context(), audit.Event{
			ActorID: sess.User.ID,
			Action:  audit.ActionDeleteRead,
			Entity:  "notification",
			Meta:    map[string]any{"deleted_count": deleted},
		})
		h.enqueueSync(r.Context())
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted_count": deleted})
}

type clickRequest struct {
	Notification notify.Notification `json:"notification"`
}

func (h *Handler) handleClick(w http.ResponseWriter, r *http.Request) {
	var req clickRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "request body must be JSON")
		return
	}
	req.Notification.ID = chi.URLParam(r, "id")
	target, err := h.engine.ResolveClick(r.Context(), session.FromContext(r.Context()), req.Notification)
	if err != nil {
		h.respondEngineError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"target": target, "close_panel": true})
}

func (h *Handler) enqueueSync(ctx context.Context) {
	if h.syncQueue == nil {
		return
	}
	if _, err := h.syncQueue.EnqueueNotifySync(ctx, jobs.NotifySyncPayload{}); err != nil {
		h.logger.Warn("enqueue notify sync", slog.Any("error", err))
	}
}

// respondEngineError surfaces the extracted human-readable message and logs
// the raw error; the engine already left local state untouched.
func (h *Handler) respondEngineError(w http.ResponseWriter, err error) {
	if errors.Is(err, notify.ErrNoSession) {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	h.logger.Error("notification operation failed", slog.Any("error", err))
	httpx.Problem(w, http.StatusBadGateway, "Notification Service Error", notify.UserMessage(err))
}
