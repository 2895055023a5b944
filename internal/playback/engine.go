// Package playback runs the story viewer: a per-viewer state machine that
// auto-advances through story groups on a cancellable ticker and marks stories
// viewed as they are entered.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"storyapi/internal/errs"
	"storyapi/internal/logging"
	"storyapi/internal/model"
)

// MaxProgress is the progress value at which the current story is finished.
const MaxProgress = 100

var (
	ErrGroupNotFound = errors.New("story group not found")
	ErrNotPlaying    = errors.New("no playback session is open")
	// ErrMarkViewed wraps a view-marking failure. The transition it came
	// from has still been applied.
	ErrMarkViewed = errors.New("mark viewed")
)

// GroupSource supplies the viewer's story groups when a session opens.
type GroupSource interface {
	Groups(ctx context.Context, viewerID string) ([]model.StoryGroup, error)
}

// ViewMarker records that the viewer has seen a story.
type ViewMarker interface {
	MarkViewed(ctx context.Context, story model.Story, viewerID string) error
}

// Options tunes an Engine.
type Options struct {
	TickInterval time.Duration
	ProgressStep int
	Logger       *slog.Logger
}

// State is a snapshot of the engine. When Playing is false every other field
// except Session is zero.
type State struct {
	Playing    bool         `json:"playing"`
	Session    uint64       `json:"session"`
	GroupIndex int          `json:"group_index"`
	StoryIndex int          `json:"story_index"`
	Progress   int          `json:"progress"`
	AuthorID   string       `json:"author_id,omitempty"`
	Story      *model.Story `json:"story,omitempty"`
}

// Engine is the playback state machine of one viewer. All events are
// serialised; view marking done while entering a story completes before the
// next event is handled.
type Engine struct {
	viewerID string
	source   GroupSource
	marker   ViewMarker
	clock    clockwork.Clock
	opts     Options
	logger   *slog.Logger

	mu      sync.Mutex
	state   State
	groups  []model.StoryGroup
	session uint64
	ticker  *ticker
	ctx     context.Context

	// playing mirrors state.Playing for readers that must not wait on mu.
	playing atomic.Bool
}

// NewEngine returns an idle engine for viewerID.
func NewEngine(viewerID string, source GroupSource, marker ViewMarker, clock clockwork.Clock, opts Options) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = 100 * time.Millisecond
	}
	if opts.ProgressStep <= 0 {
		opts.ProgressStep = 2
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	logger := opts.Logger.With("component", "playback", "viewer_id", viewerID)
	return &Engine{
		viewerID: viewerID,
		source:   source,
		marker:   marker,
		clock:    clock,
		opts:     opts,
		logger:   logger,
		ctx:      logging.WithLogger(context.Background(), logger),
	}
}

// State returns the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Dispatch applies ev and returns the resulting state. A failed view mark is
// returned as the error but the transition is still applied.
func (e *Engine) Dispatch(ctx context.Context, ev Event) (State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer func() { e.playing.Store(e.state.Playing) }()

	var err error
	switch ev := ev.(type) {
	case Open:
		err = e.open(ctx, ev)
	case Tick:
		err = e.tick(ev)
	case Next:
		if !e.state.Playing {
			return e.state, ErrNotPlaying
		}
		err = e.next()
	case Previous:
		if !e.state.Playing {
			return e.state, ErrNotPlaying
		}
		e.previous()
	case Close:
		e.close()
	default:
		return e.state, fmt.Errorf("unknown playback event %T", ev)
	}
	return e.state, err
}

func (e *Engine) open(ctx context.Context, ev Open) error {
	const op = "playback.Open"

	groups, err := e.source.Groups(ctx, e.viewerID)
	if err != nil {
		return err
	}

	gi := -1
	for i, g := range groups {
		if g.AuthorID == ev.AuthorID {
			gi = i
			break
		}
	}
	if gi < 0 {
		return ErrGroupNotFound
	}
	if ev.StartIndex < 0 || ev.StartIndex >= len(groups[gi].Stories) {
		return errs.Validation(op, fmt.Sprintf("start index %d out of range for %d stories", ev.StartIndex, len(groups[gi].Stories)))
	}

	// The session outlives the request that opened it.
	e.ctx = logging.WithLogger(context.WithoutCancel(ctx), e.logger)
	e.groups = groups
	return e.enter(gi, ev.StartIndex, true)
}

func (e *Engine) tick(ev Tick) error {
	if !e.state.Playing || ev.Session != e.session {
		return nil
	}
	e.state.Progress += e.opts.ProgressStep
	if e.state.Progress < MaxProgress {
		return nil
	}
	return e.next()
}

func (e *Engine) next() error {
	gi, si := e.state.GroupIndex, e.state.StoryIndex
	switch {
	case si < len(e.groups[gi].Stories)-1:
		return e.enter(gi, si+1, true)
	case gi < len(e.groups)-1:
		return e.enter(gi+1, 0, true)
	default:
		e.close()
		return nil
	}
}

func (e *Engine) previous() {
	gi, si := e.state.GroupIndex, e.state.StoryIndex
	switch {
	case si > 0:
		_ = e.enter(gi, si-1, false)
	case gi > 0:
		_ = e.enter(gi-1, len(e.groups[gi-1].Stories)-1, false)
	}
}

// enter moves to (gi, si) with progress 0 under a new session and restarts the
// ticker. When mark is set and the story is not the viewer's own it is marked
// viewed before the new ticker starts.
func (e *Engine) enter(gi, si int, mark bool) error {
	e.stopTicker()
	e.session++

	story := e.groups[gi].Stories[si]
	e.state = State{
		Playing:    true,
		Session:    e.session,
		GroupIndex: gi,
		StoryIndex: si,
		AuthorID:   e.groups[gi].AuthorID,
		Story:      &story,
	}

	var err error
	if mark && story.AuthorID != e.viewerID && e.marker != nil {
		if err = e.marker.MarkViewed(e.ctx, story, e.viewerID); err != nil {
			e.logger.Warn("playback_mark_viewed_failed", "story_id", story.ID, "error", err.Error())
			err = fmt.Errorf("%w: %w", ErrMarkViewed, err)
		}
	}

	e.startTicker(e.session)
	return err
}

func (e *Engine) idle() bool { return !e.playing.Load() }

func (e *Engine) close() {
	e.stopTicker()
	e.session++
	e.groups = nil
	e.state = State{Session: e.session}
}
