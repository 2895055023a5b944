// Package feed holds the in-process story store: one flat list of active
// stories plus the viewed set of each viewer. Story groups are always derived
// from that state on read and never stored.
package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"storyapi/internal/grouping"
	"storyapi/internal/model"
	"storyapi/internal/repository"
)

const storiesKey = "stories"

// Options tunes a Store.
type Options struct {
	// MaxAge is how long a loaded story list is served before the next read
	// refetches it. Zero keeps it until Invalidate.
	MaxAge time.Duration
	Logger *slog.Logger
}

// Store is the single source of truth for active stories and viewed sets.
// It is safe for concurrent use.
type Store struct {
	repo   repository.StoryRepository
	clock  clockwork.Clock
	maxAge time.Duration
	logger *slog.Logger

	mu       sync.RWMutex
	stories  []model.Story
	loadedAt time.Time
	loaded   bool
	stale    bool
	viewed   map[string]map[string]struct{}

	// seq orders loads. A result is committed only when its sequence number is
	// newer than the one that produced the current state.
	seq        uint64
	storiesSeq uint64
	viewedSeq  map[string]uint64

	flight singleflight.Group
}

// New returns an empty Store. Nothing is fetched until the first read.
func New(repo repository.StoryRepository, clock clockwork.Clock, opts Options) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		repo:      repo,
		clock:     clock,
		maxAge:    opts.MaxAge,
		logger:    logger.With("component", "feed"),
		viewed:    make(map[string]map[string]struct{}),
		viewedSeq: make(map[string]uint64),
	}
}

// Load fetches the active stories and viewerID's viewed set concurrently and
// replaces both only if both fetches succeed. On error the previous state is
// kept and the error is returned. A load that finishes after a newer one does
// not overwrite it.
func (s *Store) Load(ctx context.Context, viewerID string) error {
	var (
		stories []model.Story
		viewed  map[string]struct{}
	)

	seq := s.nextSeq()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stories, err = s.fetchStories(gctx)
		return err
	})
	if viewerID != "" {
		g.Go(func() error {
			var err error
			viewed, err = s.fetchViewed(gctx, viewerID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Warn("feed_load_failed", "viewer_id", viewerID, "error", err.Error())
		return err
	}

	s.mu.Lock()
	if seq > s.storiesSeq {
		s.stories = stories
		s.storiesSeq = seq
		s.loadedAt = s.clock.Now()
		s.loaded = true
		s.stale = false
	}
	if viewerID != "" {
		s.commitViewedLocked(viewerID, viewed, seq)
	}
	s.mu.Unlock()

	s.logger.Debug("feed_loaded", "viewer_id", viewerID, "stories", len(stories))
	return nil
}

// RefreshViewed reloads only viewerID's viewed set after a view was recorded.
// It never reuses a fetch that was already running. On error the previous set
// is kept.
func (s *Store) RefreshViewed(ctx context.Context, viewerID string) error {
	s.mu.Lock()
	s.flight.Forget(viewedKey(viewerID))
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	viewed, err := s.fetchViewed(ctx, viewerID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.commitViewedLocked(viewerID, viewed, seq)
	s.mu.Unlock()
	return nil
}

// Invalidate marks the story list stale so the next read refetches it. Loads
// already running when it is called cannot clear the mark.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.flight.Forget(storiesKey)
	s.seq++
	s.storiesSeq = s.seq
	s.stale = true
	s.mu.Unlock()
}

// Lookup finds an active story by id, asking the repository when it is not in
// the loaded list. A story found that way marks the list stale.
func (s *Store) Lookup(ctx context.Context, id string) (model.Story, bool, error) {
	if st, ok := s.Story(id); ok {
		return st, true, nil
	}
	st, err := s.repo.FetchStory(ctx, id)
	if err != nil {
		return model.Story{}, false, err
	}
	if st == nil || st.Expired(s.clock.Now()) {
		return model.Story{}, false, nil
	}
	s.Invalidate()
	return *st, true, nil
}

// Groups returns viewerID's story groups, loading first when the store has
// never been loaded, was invalidated, has aged out, or has no viewed set for
// the viewer.
func (s *Store) Groups(ctx context.Context, viewerID string) ([]model.StoryGroup, error) {
	if s.needsLoad(viewerID) {
		if err := s.Load(ctx, viewerID); err != nil {
			return nil, err
		}
	}
	return s.Snapshot(viewerID), nil
}

// Snapshot derives viewerID's groups from the current state without any I/O.
// Stories that have expired since they were loaded are left out.
func (s *Store) Snapshot(viewerID string) []model.StoryGroup {
	now := s.clock.Now()

	s.mu.RLock()
	active := make([]model.Story, 0, len(s.stories))
	for _, st := range s.stories {
		if !st.Expired(now) {
			active = append(active, st)
		}
	}
	viewed := s.viewed[viewerID]
	s.mu.RUnlock()

	return grouping.Group(active, viewed, viewerID)
}

// Story looks up an active story in the current state.
func (s *Store) Story(id string) (model.Story, bool) {
	now := s.clock.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.stories {
		if st.ID == id && !st.Expired(now) {
			return st, true
		}
	}
	return model.Story{}, false
}

func (s *Store) needsLoad(viewerID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.loaded || s.stale {
		return true
	}
	if s.maxAge > 0 && s.clock.Since(s.loadedAt) >= s.maxAge {
		return true
	}
	if viewerID == "" {
		return false
	}
	_, ok := s.viewed[viewerID]
	return !ok
}

func (s *Store) nextSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

func (s *Store) commitViewedLocked(viewerID string, viewed map[string]struct{}, seq uint64) {
	if seq <= s.viewedSeq[viewerID] {
		return
	}
	s.viewed[viewerID] = viewed
	s.viewedSeq[viewerID] = seq
}

func viewedKey(viewerID string) string { return "viewed:" + viewerID }

func (s *Store) fetchStories(ctx context.Context) ([]model.Story, error) {
	v, err, _ := s.flight.Do(storiesKey, func() (any, error) {
		return s.repo.FetchActiveStories(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.Story), nil
}

func (s *Store) fetchViewed(ctx context.Context, viewerID string) (map[string]struct{}, error) {
	v, err, _ := s.flight.Do(viewedKey(viewerID), func() (any, error) {
		return s.repo.FetchViewedIDs(ctx, viewerID)
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]struct{}), nil
}
