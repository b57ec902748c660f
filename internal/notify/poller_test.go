package notify

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/crewboard/crewboard/internal/session"
)

func TestPollerStopsWhenSessionBecomesUnauthenticated(t *testing.T) {
	api := &fakeAPI{items: teamLeadItems()}
	engine := NewEngine(api, nil, 0, nil)

	var cycles atomic.Int32
	source := func(context.Context) session.Session {
		if cycles.Add(1) > 2 {
			return session.Session{ID: "sid"}
		}
		return teamLeadSession()
	}

	poller := NewPoller(engine, source, 5*time.Millisecond, nil)

	done := make(chan error, 1)
	go func() { done <- poller.Run(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err, "logout stops the poller cleanly")
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop after logout")
	}
	require.Equal(t, 2, api.countCalls)
}

func TestPollerStopsOnContextCancellation(t *testing.T) {
	engine := NewEngine(&fakeAPI{}, nil, 0, nil)
	poller := NewPoller(engine, func(context.Context) session.Session {
		return teamLeadSession()
	}, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- poller.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not honor cancellation")
	}
}

func TestPollerKeepsPollingThroughRefreshErrors(t *testing.T) {
	api := &fakeAPI{failWith: &Error{Status: 502, Message: "upstream down"}}
	engine := NewEngine(api, nil, 0, nil)

	var cycles atomic.Int32
	source := func(context.Context) session.Session {
		if cycles.Add(1) > 3 {
			return session.Session{ID: "sid"}
		}
		return teamLeadSession()
	}

	poller := NewPoller(engine, source, 5*time.Millisecond, nil)
	require.NoError(t, poller.Run(context.Background()))
	require.Equal(t, 3, api.countCalls, "a failed cycle must not stop the loop")
}
