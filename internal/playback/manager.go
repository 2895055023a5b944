package playback

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"
)

// Manager owns one Engine per viewer. Engines are dropped once they are idle
// and no dispatch is using them.
type Manager struct {
	source GroupSource
	marker ViewMarker
	clock  clockwork.Clock
	opts   Options

	mu      sync.Mutex
	engines map[string]*managed
}

type managed struct {
	engine *Engine
	users  int
}

// NewManager returns a Manager whose engines share source, marker, clock and opts.
func NewManager(source GroupSource, marker ViewMarker, clock clockwork.Clock, opts Options) *Manager {
	return &Manager{
		source:  source,
		marker:  marker,
		clock:   clock,
		opts:    opts,
		engines: make(map[string]*managed),
	}
}

// Engine returns viewerID's engine, creating an idle one on first use.
func (m *Manager) Engine(viewerID string) *Engine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engineLocked(viewerID).engine
}

// Dispatch sends ev to viewerID's engine.
func (m *Manager) Dispatch(ctx context.Context, viewerID string, ev Event) (State, error) {
	m.mu.Lock()
	me := m.engineLocked(viewerID)
	me.users++
	m.mu.Unlock()

	st, err := me.engine.Dispatch(ctx, ev)

	m.mu.Lock()
	me.users--
	if me.users == 0 && me.engine.idle() && m.engines[viewerID] == me {
		delete(m.engines, viewerID)
	}
	m.mu.Unlock()
	return st, err
}

func (m *Manager) engineLocked(viewerID string) *managed {
	me, ok := m.engines[viewerID]
	if !ok {
		m.pruneLocked()
		me = &managed{engine: NewEngine(viewerID, m.source, m.marker, m.clock, m.opts)}
		m.engines[viewerID] = me
	}
	return me
}

// pruneLocked drops engines that finished on their own, e.g. by ticking past
// the last story.
func (m *Manager) pruneLocked() {
	for id, me := range m.engines {
		if me.users == 0 && me.engine.idle() {
			delete(m.engines, id)
		}
	}
}

// Len returns the number of engines held.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.engines)
}

// State returns viewerID's current state without creating an engine.
func (m *Manager) State(viewerID string) State {
	m.mu.Lock()
	me, ok := m.engines[viewerID]
	m.mu.Unlock()
	if !ok {
		return State{}
	}
	return me.engine.State()
}

// Shutdown closes every open session.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	engines := make([]*Engine, 0, len(m.engines))
	for _, me := range m.engines {
		engines = append(engines, me.engine)
	}
	m.mu.Unlock()

	for _, e := range engines {
		_, _ = e.Dispatch(ctx, Close{})
	}
}
