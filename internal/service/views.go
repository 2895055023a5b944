package service

import (
	"context"

	"storyapi/internal/logging"
	"storyapi/internal/model"
	"storyapi/internal/repository"
)

// ViewedRefresher reloads a viewer's viewed set after a new view is recorded.
type ViewedRefresher interface {
	RefreshViewed(ctx context.Context, viewerID string) error
}

// ViewTracker records story views at most once per viewer and keeps the
// viewer's viewed set current.
type ViewTracker struct {
	repo      repository.StoryRepository
	refresher ViewedRefresher
	metrics   *Metrics
}

// NewViewTracker constructs a ViewTracker. refresher may be nil.
func NewViewTracker(repo repository.StoryRepository, refresher ViewedRefresher, metrics *Metrics) *ViewTracker {
	return &ViewTracker{repo: repo, refresher: refresher, metrics: metrics}
}

// MarkViewed records that viewerID has seen story. Authors viewing their own
// stories are never recorded. Calling it again for the same pair is a no-op.
func (t *ViewTracker) MarkViewed(ctx context.Context, story model.Story, viewerID string) error {
	if viewerID == "" || story.AuthorID == viewerID {
		return nil
	}

	created, err := t.repo.RecordView(ctx, story.ID, viewerID)
	if err != nil {
		return err
	}
	if created {
		t.metrics.viewRecorded()
		logging.FromContext(ctx).Debug("story_view_recorded", "story_id", story.ID, "viewer_id", viewerID)
	}

	if t.refresher == nil {
		return nil
	}
	return t.refresher.RefreshViewed(ctx, viewerID)
}
