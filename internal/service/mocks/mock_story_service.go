package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"storyapi/internal/model"
)

type MockStoryService struct {
	mock.Mock
}

func (m *MockStoryService) CreateStory(ctx context.Context, authorID string, blob model.MediaBlob, caption string) (*model.Story, error) {
	args := m.Called(ctx, authorID, blob, caption)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Story), args.Error(1)
}
