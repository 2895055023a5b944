// Package memory implements repository.StoryRepository on in-process maps for
// tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"storyapi/internal/errs"
	"storyapi/internal/model"
	"storyapi/internal/repository"
)

type viewKey struct {
	storyID  string
	viewerID string
}

// Profile is the author metadata joined onto stories.
type Profile struct {
	DisplayName string
	AvatarURL   string
}

// StoryMemory keeps stories, profiles and view records in memory. It mirrors
// the PostgreSQL implementation: stories without a profile are not returned and
// a view is recorded at most once per (story, viewer).
type StoryMemory struct {
	mu       sync.RWMutex
	clock    clockwork.Clock
	stories  map[string]model.Story
	profiles map[string]Profile
	views    map[viewKey]time.Time
}

var _ repository.StoryRepository = (*StoryMemory)(nil)

// NewStoryMemory returns an empty StoryMemory.
func NewStoryMemory(clock clockwork.Clock) *StoryMemory {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &StoryMemory{
		clock:    clock,
		stories:  make(map[string]model.Story),
		profiles: make(map[string]Profile),
		views:    make(map[viewKey]time.Time),
	}
}

// PutProfile creates or replaces a user's profile.
func (m *StoryMemory) PutProfile(userID string, p Profile) {
	m.mu.Lock()
	m.profiles[userID] = p
	m.mu.Unlock()
}

func (m *StoryMemory) FetchActiveStories(_ context.Context) ([]model.Story, error) {
	now := m.clock.Now()

	m.mu.RLock()
	out := make([]model.Story, 0, len(m.stories))
	for _, s := range m.stories {
		p, ok := m.profiles[s.AuthorID]
		if !ok || !s.ExpiresAt.After(now) {
			continue
		}
		s.DisplayName = p.DisplayName
		s.AvatarURL = p.AvatarURL
		out = append(out, s)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *StoryMemory) FetchViewedIDs(_ context.Context, viewerID string) (map[string]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	viewed := make(map[string]struct{})
	for k := range m.views {
		if k.viewerID == viewerID {
			viewed[k.storyID] = struct{}{}
		}
	}
	return viewed, nil
}

func (m *StoryMemory) FetchStory(_ context.Context, id string) (*model.Story, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.stories[id]
	if !ok || !s.ExpiresAt.After(m.clock.Now()) {
		return nil, nil
	}
	p, ok := m.profiles[s.AuthorID]
	if !ok {
		return nil, nil
	}
	s.DisplayName = p.DisplayName
	s.AvatarURL = p.AvatarURL
	return &s, nil
}

func (m *StoryMemory) RecordView(_ context.Context, storyID, viewerID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stories[storyID]
	if !ok {
		return false, errs.Persistence("repository.RecordView", errStoryNotFound(storyID))
	}
	k := viewKey{storyID: storyID, viewerID: viewerID}
	if _, seen := m.views[k]; seen {
		return false, nil
	}
	m.views[k] = m.clock.Now()
	s.ViewCount++
	m.stories[storyID] = s
	return true, nil
}

func (m *StoryMemory) CreateStory(_ context.Context, story *model.Story) (*model.Story, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.stories[story.ID]; exists {
		return nil, errs.Persistence("repository.CreateStory", errDuplicateStory(story.ID))
	}
	if _, ok := m.profiles[story.AuthorID]; !ok {
		return nil, errs.Persistence("repository.CreateStory", errUnknownAuthor(story.AuthorID))
	}
	stored := *story
	stored.HasViewed = false
	m.stories[stored.ID] = stored
	return &stored, nil
}

func (m *StoryMemory) ListExpired(_ context.Context, before time.Time, limit int) ([]model.Story, error) {
	m.mu.RLock()
	out := make([]model.Story, 0)
	for _, s := range m.stories {
		if !s.ExpiresAt.After(before) {
			out = append(out, s)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *StoryMemory) DeleteStories(_ context.Context, ids []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, id := range ids {
		if _, ok := m.stories[id]; !ok {
			continue
		}
		delete(m.stories, id)
		n++
		for k := range m.views {
			if k.storyID == id {
				delete(m.views, k)
			}
		}
	}
	return n, nil
}

// ViewCount returns the stored view count of a story. Useful for tests.
func (m *StoryMemory) ViewCount(storyID string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stories[storyID].ViewCount
}

// ViewRecords returns the number of view records held for a story. Useful for tests.
func (m *StoryMemory) ViewRecords(storyID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for k := range m.views {
		if k.storyID == storyID {
			n++
		}
	}
	return n
}
