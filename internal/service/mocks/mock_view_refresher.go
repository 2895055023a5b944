package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockViewedRefresher struct {
	mock.Mock
}

func (m *MockViewedRefresher) RefreshViewed(ctx context.Context, viewerID string) error {
	args := m.Called(ctx, viewerID)
	return args.Error(0)
}
