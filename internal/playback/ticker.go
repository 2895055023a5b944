package playback

import (
	"context"

	"github.com/jonboulle/clockwork"

	"storyapi/internal/logging"
)

// ticker delivers Tick events for one session until stopped.
type ticker struct {
	done chan struct{}
}

// startTicker must be called with e.mu held.
func (e *Engine) startTicker(session uint64) {
	t := &ticker{done: make(chan struct{})}
	e.ticker = t
	go e.runTicker(e.ctx, t, e.clock.NewTicker(e.opts.TickInterval), session)
}

// stopTicker must be called with e.mu held. Once it returns no tick from the
// stopped ticker can change state: the session has moved on, so a tick already
// waiting on the lock is discarded.
func (e *Engine) stopTicker() {
	if e.ticker == nil {
		return
	}
	close(e.ticker.done)
	e.ticker = nil
}

func (e *Engine) runTicker(ctx context.Context, t *ticker, tk clockwork.Ticker, session uint64) {
	defer tk.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-tk.Chan():
			select {
			case <-t.done:
				return
			default:
			}
			if _, err := e.Dispatch(ctx, Tick{Session: session}); err != nil {
				logging.FromContext(ctx).Warn("playback_tick_failed", "session", session, "error", err.Error())
			}
		}
	}
}
