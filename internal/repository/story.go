package repository

import (
	"context"
	"time"

	"storyapi/internal/model"
)

// StoryRepository defines data access for stories and their view records.
// No business logic here, strictly persistence operations. Every error it
// returns is an *errs.Error of kind persistence or network.
type StoryRepository interface {
	// FetchActiveStories returns every story whose expiry is in the future, joined
	// with its author's profile, newest first.
	FetchActiveStories(ctx context.Context) ([]model.Story, error)

	// FetchViewedIDs returns the ids of the stories viewerID has already seen.
	FetchViewedIDs(ctx context.Context, viewerID string) (map[string]struct{}, error)

	// FetchStory returns one unexpired story joined with its author's profile,
	// or nil when no such story exists.
	FetchStory(ctx context.Context, id string) (*model.Story, error)

	// RecordView inserts a view record and bumps the story's view count, both at
	// most once per (storyID, viewerID). It reports whether a new record was created.
	RecordView(ctx context.Context, storyID, viewerID string) (bool, error)

	// CreateStory inserts a new story row and returns the stored record.
	CreateStory(ctx context.Context, story *model.Story) (*model.Story, error)

	// ListExpired returns up to limit stories that expired at or before before, oldest first.
	ListExpired(ctx context.Context, before time.Time, limit int) ([]model.Story, error)

	// DeleteStories removes the given story rows and their view records.
	DeleteStories(ctx context.Context, ids []string) (int64, error)
}
