package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/crewboard/crewboard/internal/session"
)

// SessionSource re-hydrates the session at the start of each poll cycle so
// a cycle never runs with a stale or absent role.
type SessionSource func(ctx context.Context) session.Session

// Poller drives the background refresh for one consumer. Run returns when
// the context is cancelled (view unmounted) or the session becomes
// unauthenticated, so no request can race a cleared token.
type Poller struct {
	engine   *Engine
	source   SessionSource
	interval time.Duration
	logger   *slog.Logger
}

// NewPoller constructs a Poller. The default interval is 30 seconds.
func NewPoller(engine *Engine, source SessionSource, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Poller{engine: engine, source: source, interval: interval, logger: logger}
}

// Run polls until cancellation or logout. Each cycle is independent: it gets
// its own timeout shorter than the interval, so a hung request cannot block
// the next poll.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			sess := p.source(ctx)
			if !sess.IsAuthenticated() {
				if p.logger != nil {
					p.logger.Info("session no longer authenticated, stopping poller")
				}
				return nil
			}
			p.cycle(ctx, sess)
		}
	}
}

func (p *Poller) cycle(ctx context.Context, sess session.Session) {
	cycleCtx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()
	if _, err := p.engine.Refresh(cycleCtx, sess); err != nil && p.logger != nil {
		p.logger.Warn("poll unread aggregate", slog.Any("error", err))
	}
}
