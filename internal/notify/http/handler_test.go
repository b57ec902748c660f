package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/crewboard/crewboard/internal/audit"
	"github.com/crewboard/crewboard/internal/notify"
	"github.com/crewboard/crewboard/internal/session"
)

// memoryAPI mimics the collaborator's read/delete semantics so the handler's
// refetched aggregates can be asserted end to end.
type memoryAPI struct {
	items   []notify.Notification
	failAll error
}

func (m *memoryAPI) List(_ context.Context, _, _ string, filter notify.ListFilter) ([]notify.Notification, error) {
	if m.failAll != nil {
		return nil, m.failAll
	}
	var out []notify.Notification
	for _, n := range m.items {
		if filter.UnreadOnly && n.IsRead {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (m *memoryAPI) UnreadCount(context.Context, string, string) (notify.UnreadAggregate, error) {
	if m.failAll != nil {
		return notify.UnreadAggregate{}, m.failAll
	}
	aggregate := notify.UnreadAggregate{
		ByPriority: map[notify.Priority]int{},
		ByCategory: map[notify.Category]int{},
	}
	for _, n := range m.items {
		if n.IsRead {
			continue
		}
		aggregate.Total++
		aggregate.ByPriority[n.Priority]++
		aggregate.ByCategory[n.Category]++
	}
	return aggregate, nil
}

func (m *memoryAPI) Get(_ context.Context, _, _, id string) (*notify.Notification, error) {
	for i := range m.items {
		if m.items[i].ID == id {
			n := m.items[i]
			return &n, nil
		}
	}
	return nil, &notify.Error{Status: 404, Message: "notification not found"}
}

func (m *memoryAPI) MarkRead(_ context.Context, _, _, id string) error {
	if m.failAll != nil {
		return m.failAll
	}
	for i := range m.items {
		if m.items[i].ID == id {
			m.items[i].IsRead = true
		}
	}
	return nil
}

func (m *memoryAPI) MarkAllRead(_ context.Context, _, _ string, filter notify.ListFilter) (int, error) {
	if m.failAll != nil {
		return 0, m.failAll
	}
	marked := 0
	for i := range m.items {
		if m.items[i].IsRead {
			continue
		}
		if filter.Category != "" && m.items[i].Category != filter.Category {
			continue
		}
		m.items[i].IsRead = true
		marked++
	}
	return marked, nil
}

func (m *memoryAPI) Delete(_ context.Context, _, _, id string) error {
	if m.failAll != nil {
		return m.failAll
	}
	kept := m.items[:0]
	for _, n := range m.items {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	m.items = kept
	return nil
}

func (m *memoryAPI) DeleteAllRead(context.Context, string, string) (int, error) {
	if m.failAll != nil {
		return 0, m.failAll
	}
	deleted := 0
	kept := m.items[:0]
	for _, n := range m.items {
		if n.IsRead {
			deleted++
			continue
		}
		kept = append(kept, n)
	}
	m.items = kept
	return deleted, nil
}

func seedItems() []notify.Notification {
	return []notify.Notification{
		{ID: "n1", Category: notify.CategoryTask, Priority: notify.PriorityUrgent, ActionURL: "/team-lead/tasks/T-1"},
		{ID: "n2", Category: notify.CategoryTask, Priority: notify.PriorityMedium},
		{ID: "n3", Category: notify.CategoryGithub, Priority: notify.PriorityHigh, IsRead: true},
	}
}

func newNotifyRouter(api notify.API, sess session.Session) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := notify.NewEngine(api, nil, 0, logger)
	handler := NewHandler(logger, engine, audit.NewRecorder(nil, nil), nil)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(session.ContextWith(req.Context(), sess)))
		})
	})
	handler.MountRoutes(r)
	return r
}

func leadSession() session.Session {
	return session.Session{
		ID:    "sid",
		Token: "tok",
		User:  &session.User{ID: 10, Role: session.RoleTeamLead},
	}
}

func perform(t *testing.T, router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeUnread(t *testing.T, rec *httptest.ResponseRecorder) notify.UnreadAggregate {
	t.Helper()
	var res struct {
		Unread notify.UnreadAggregate `json:"unread"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res.Unread
}

func TestHandlerUnreadCount(t *testing.T) {
	router := newNotifyRouter(&memoryAPI{items: seedItems()}, leadSession())

	rec := perform(t, router, http.MethodGet, "/unread-count", "")
	require.Equal(t, http.StatusOK, rec.Code)
	aggregate := decodeUnread(t, rec)
	require.Equal(t, 2, aggregate.Total)
	require.Equal(t, 2, aggregate.ByCategory[notify.CategoryTask])
}

func TestHandlerList(t *testing.T) {
	router := newNotifyRouter(&memoryAPI{items: seedItems()}, leadSession())

	rec := perform(t, router, http.MethodGet, "/?unread_only=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res struct {
		Notifications []notify.Notification `json:"notifications"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Notifications, 2)
}

func TestHandlerListRejectsUnknownCategory(t *testing.T) {
	router := newNotifyRouter(&memoryAPI{items: seedItems()}, leadSession())

	rec := perform(t, router, http.MethodGet, "/?category=gossip", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerMarkReadReturnsFreshAggregate(t *testing.T) {
	router := newNotifyRouter(&memoryAPI{items: seedItems()}, leadSession())

	rec := perform(t, router, http.MethodPost, "/n1/read", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, decodeUnread(t, rec).Total)
}

func TestHandlerMarkAllRead(t *testing.T) {
	router := newNotifyRouter(&memoryAPI{items: seedItems()}, leadSession())

	rec := perform(t, router, http.MethodPost, "/mark-all-read", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"marked_count":2`)
	require.Zero(t, decodeUnread(t, rec).Total)
}

func TestHandlerDelete(t *testing.T) {
	router := newNotifyRouter(&memoryAPI{items: seedItems()}, leadSession())

	rec := perform(t, router, http.MethodDelete, "/n1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, decodeUnread(t, rec).Total)
}

func TestHandlerDeleteAllRead(t *testing.T) {
	router := newNotifyRouter(&memoryAPI{items: seedItems()}, leadSession())

	rec := perform(t, router, http.MethodDelete, "/read", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"deleted_count":1`)
}

func TestHandlerClick(t *testing.T) {
	api := &memoryAPI{items: seedItems()}
	router := newNotifyRouter(api, leadSession())

	rec := perform(t, router, http.MethodPost, "/n1/click",
		`{"notification":{"id":"n1","is_read":false,"action_url":"/team-lead/tasks/T-1"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"target":"/dashboard/team-lead/tasks/T-1"`)
	require.Contains(t, rec.Body.String(), `"close_panel":true`)
	require.True(t, api.items[0].IsRead, "click on an unread notification marks it read")
}

func TestHandlerUnauthenticated(t *testing.T) {
	router := newNotifyRouter(&memoryAPI{items: seedItems()}, session.Session{ID: "sid"})

	rec := perform(t, router, http.MethodGet, "/unread-count", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlerUpstreamFailure(t *testing.T) {
	api := &memoryAPI{failAll: &notify.Error{Status: 502, Message: "notifications temporarily unavailable"}}
	router := newNotifyRouter(api, leadSession())

	rec := perform(t, router, http.MethodPost, "/n1/read", "")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Contains(t, rec.Body.String(), "notifications temporarily unavailable")
}
