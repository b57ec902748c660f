package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/crewboard/crewboard/internal/rolepolicy"
	"github.com/crewboard/crewboard/internal/session"
)

// Engine keeps the unread aggregate and notification list consistent under
// concurrent user actions. It never patches counters by hand: every mutation
// is followed by an authoritative refetch, so the last completed fetch wins
// and a stale in-flight poll cannot resurrect undone state.
type Engine struct {
	api      API
	cache    *redis.Client
	cacheTTL time.Duration
	group    singleflight.Group
	logger   *slog.Logger
}

// NewEngine constructs an Engine. cache may be nil, which disables snapshot
// caching and makes every read a refetch.
func NewEngine(api API, cache *redis.Client, cacheTTL time.Duration, logger *slog.Logger) *Engine {
	if cacheTTL <= 0 {
		cacheTTL = 2 * time.Minute
	}
	return &Engine{api: api, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// The snapshot key carries the role, so a role switch (promotion or
// impersonation) reads a fresh scope instead of merging stale data.
func snapshotKey(sess session.Session) string {
	return fmt.Sprintf("notify:aggregate:%d:%s", sess.User.ID, session.NormalizeRole(string(sess.User.Role)))
}

// Refresh refetches the unread aggregate from the collaborator and stores it
// as the authoritative snapshot. Concurrent refreshes for the same user and
// role collapse into one upstream call.
func (e *Engine) Refresh(ctx context.Context, sess session.Session) (UnreadAggregate, error) {
	if !sess.IsAuthenticated() {
		return UnreadAggregate{}, ErrNoSession
	}
	key := snapshotKey(sess)
	result, err, _ := e.group.Do(key, func() (any, error) {
		aggregate, err := e.api.UnreadCount(ctx, sess.Token, rolepolicy.APINamespace(sess.User.Role))
		if err != nil {
			return UnreadAggregate{}, err
		}
		if !aggregate.Consistent() {
			e.warn("inconsistent unread aggregate from upstream", sess, nil)
			aggregate = repair(aggregate)
		}
		e.storeSnapshot(ctx, key, aggregate)
		return aggregate, nil
	})
	if err != nil {
		return UnreadAggregate{}, err
	}
	return result.(UnreadAggregate), nil
}

// Snapshot returns the cached aggregate when present, refetching otherwise.
func (e *Engine) Snapshot(ctx context.Context, sess session.Session) (UnreadAggregate, error) {
	if !sess.IsAuthenticated() {
		return UnreadAggregate{}, ErrNoSession
	}
	if e.cache != nil {
		payload, err := e.cache.Get(ctx, snapshotKey(sess)).Bytes()
		if err == nil {
			var aggregate UnreadAggregate
			if err := json.Unmarshal(payload, &aggregate); err == nil {
				return aggregate, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			e.warn("read aggregate snapshot", sess, err)
		}
	}
	return e.Refresh(ctx, sess)
}

// List fetches the notification list for the session's role scope.
func (e *Engine) List(ctx context.Context, sess session.Session, filter ListFilter) ([]Notification, error) {
	if !sess.IsAuthenticated() {
		return nil, ErrNoSession
	}
	items, err := e.api.List(ctx, sess.Token, rolepolicy.APINamespace(sess.User.Role), filter)
	if err != nil {
		return nil, e.mutationError("list notifications", sess, err)
	}
	return items, nil
}

// MarkAsRead marks one notification read. Idempotent on the aggregate:
// marking an already-read notification leaves every counter untouched,
// because the refetched aggregate is authoritative rather than a local
// decrement.
func (e *Engine) MarkAsRead(ctx context.Context, sess session.Session, id string) (UnreadAggregate, error) {
	if !sess.IsAuthenticated() {
		return UnreadAggregate{}, ErrNoSession
	}
	if err := e.api.MarkRead(ctx, sess.Token, rolepolicy.APINamespace(sess.User.Role), id); err != nil {
		return UnreadAggregate{}, e.mutationError("mark notification read", sess, err)
	}
	return e.Refresh(ctx, sess)
}

// MarkAllAsRead marks every unread notification in the filtered scope read
// and reports the affected count for user feedback.
func (e *Engine) MarkAllAsRead(ctx context.Context, sess session.Session, filter ListFilter) (int, UnreadAggregate, error) {
	if !sess.IsAuthenticated() {
		return 0, UnreadAggregate{}, ErrNoSession
	}
	marked, err := e.api.MarkAllRead(ctx, sess.Token, rolepolicy.APINamespace(sess.User.Role), filter)
	if err != nil {
		return 0, UnreadAggregate{}, e.mutationError("mark all notifications read", sess, err)
	}
	aggregate, err := e.Refresh(ctx, sess)
	return marked, aggregate, err
}

// Delete removes one notification. Deleting an unread notification shrinks
// the aggregate exactly like MarkAsRead; deleting a read one leaves it
// unchanged. Both fall out of the refetch.
func (e *Engine) Delete(ctx context.Context, sess session.Session, id string) (UnreadAggregate, error) {
	if !sess.IsAuthenticated() {
		return UnreadAggregate{}, ErrNoSession
	}
	if err := e.api.Delete(ctx, sess.Token, rolepolicy.APINamespace(sess.User.Role), id); err != nil {
		return UnreadAggregate{}, e.mutationError("delete notification", sess, err)
	}
	return e.Refresh(ctx, sess)
}

// DeleteAllRead removes all read notifications and reports the count.
func (e *Engine) DeleteAllRead(ctx context.Context, sess session.Session) (int, error) {
	if !sess.IsAuthenticated() {
		return 0, ErrNoSession
	}
	deleted, err := e.api.DeleteAllRead(ctx, sess.Token, rolepolicy.APINamespace(sess.User.Role))
	if err != nil {
		return 0, e.mutationError("delete read notifications", sess, err)
	}
	if _, err := e.Refresh(ctx, sess); err != nil {
		return deleted, err
	}
	return deleted, nil
}

// ResolveClick marks an unread notification read and returns the navigation
// target with the action URL rewritten into the client route convention.
func (e *Engine) ResolveClick(ctx context.Context, sess session.Session, n Notification) (string, error) {
	if !sess.IsAuthenticated() {
		return "", ErrNoSession
	}
	// A click may arrive with only the id; resolve the rest upstream.
	if n.ActionURL == "" && n.ID != "" {
		fetched, err := e.api.Get(ctx, sess.Token, rolepolicy.APINamespace(sess.User.Role), n.ID)
		if err != nil {
			return "", e.mutationError("resolve notification", sess, err)
		}
		n = *fetched
	}
	if !n.IsRead {
		if _, err := e.MarkAsRead(ctx, sess, n.ID); err != nil {
			return "", err
		}
	}
	return RemapActionURL(n.ActionURL, sess.User.Role), nil
}

// Invalidate drops the cached snapshot, forcing the next read to refetch.
// Called on logout and role change.
func (e *Engine) Invalidate(ctx context.Context, sess session.Session) {
	if e.cache == nil || sess.User == nil {
		return
	}
	if err := e.cache.Del(ctx, snapshotKey(sess)).Err(); err != nil {
		e.warn("invalidate aggregate snapshot", sess, err)
	}
}

func (e *Engine) storeSnapshot(ctx context.Context, key string, aggregate UnreadAggregate) {
	if e.cache == nil {
		return
	}
	payload, err := json.Marshal(aggregate)
	if err != nil {
		return
	}
	if err := e.cache.Set(ctx, key, payload, e.cacheTTL).Err(); err != nil && e.logger != nil {
		e.logger.Warn("store aggregate snapshot", slog.String("key", key), slog.Any("error", err))
	}
}

// mutationError is the single funnel for collaborator failures: the raw
// error is logged for diagnostics and the returned error carries the
// human-readable message. Local state stays as it was before the attempt.
func (e *Engine) mutationError(op string, sess session.Session, err error) error {
	e.warn(op, sess, err)
	return fmt.Errorf("%s: %w", UserMessage(err), err)
}

func (e *Engine) warn(msg string, sess session.Session, err error) {
	if e.logger == nil {
		return
	}
	attrs := []any{}
	if sess.User != nil {
		attrs = append(attrs, slog.Int64("user_id", sess.User.ID), slog.String("role", string(sess.User.Role)))
	}
	if err != nil {
		attrs = append(attrs, slog.Any("error", err))
	}
	e.logger.Warn(msg, attrs...)
}

// repair rebuilds a consistent aggregate from a bad upstream payload: both
// breakdowns are clamped to non-negative, the priority sum becomes the total,
// and the category breakdown is reconciled against it so the counter
// invariant holds on the returned value.
func repair(aggregate UnreadAggregate) UnreadAggregate {
	fixed := UnreadAggregate{
		ByPriority: make(map[Priority]int, len(aggregate.ByPriority)),
		ByCategory: make(map[Category]int, len(aggregate.ByCategory)),
	}
	for priority, n := range aggregate.ByPriority {
		if n < 0 {
			n = 0
		}
		fixed.ByPriority[priority] = n
		fixed.Total += n
	}
	categorySum := 0
	for category, n := range aggregate.ByCategory {
		if n < 0 {
			n = 0
		}
		fixed.ByCategory[category] = n
		categorySum += n
	}
	if overflow := categorySum - fixed.Total; overflow > 0 {
		for _, category := range slices.Sorted(maps.Keys(fixed.ByCategory)) {
			if overflow == 0 {
				break
			}
			take := min(fixed.ByCategory[category], overflow)
			fixed.ByCategory[category] -= take
			overflow -= take
		}
	} else if overflow < 0 {
		// Unattributed unread items land in the system bucket.
		fixed.ByCategory[CategorySystem] -= overflow
	}
	return fixed
}
