package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"storyapi/internal/model"
)

type MockStoryRepository struct {
	mock.Mock
}

func (m *MockStoryRepository) FetchActiveStories(ctx context.Context) ([]model.Story, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Story), args.Error(1)
}

func (m *MockStoryRepository) FetchViewedIDs(ctx context.Context, viewerID string) (map[string]struct{}, error) {
	args := m.Called(ctx, viewerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]struct{}), args.Error(1)
}

func (m *MockStoryRepository) FetchStory(ctx context.Context, id string) (*model.Story, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Story), args.Error(1)
}

func (m *MockStoryRepository) RecordView(ctx context.Context, storyID, viewerID string) (bool, error) {
	args := m.Called(ctx, storyID, viewerID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStoryRepository) CreateStory(ctx context.Context, story *model.Story) (*model.Story, error) {
	args := m.Called(ctx, story)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Story), args.Error(1)
}

func (m *MockStoryRepository) ListExpired(ctx context.Context, before time.Time, limit int) ([]model.Story, error) {
	args := m.Called(ctx, before, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Story), args.Error(1)
}

func (m *MockStoryRepository) DeleteStories(ctx context.Context, ids []string) (int64, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).(int64), args.Error(1)
}
