package upload

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"storyapi/internal/errs"
	"storyapi/internal/model"
	svcMocks "storyapi/internal/service/mocks"
)

type fakeFeed struct {
	invalidated int
	loads       []string
	loadErr     error
}

func (f *fakeFeed) Invalidate() { f.invalidated++ }

func (f *fakeFeed) Load(_ context.Context, viewerID string) error {
	f.loads = append(f.loads, viewerID)
	return f.loadErr
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func jpeg() model.MediaBlob {
	return model.MediaBlob{Filename: "a.jpg", MimeType: "image/jpeg", Size: 3, Body: strings.NewReader("abc")}
}

func TestPipeline_HappyPath(t *testing.T) {
	ctx := context.Background()
	creator := new(svcMocks.MockStoryService)
	feed := &fakeFeed{}
	p := New("alice", creator, feed, quiet())
	assert.Equal(t, PhaseSelectFile, p.Phase())

	preview, err := p.SelectFile(jpeg())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(preview, "blob:"))
	assert.Equal(t, PhasePreview, p.Phase())
	assert.Zero(t, feed.invalidated)
	creator.AssertNotCalled(t, "CreateStory", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	created := &model.Story{ID: "s1", AuthorID: "alice"}
	creator.On("CreateStory", ctx, "alice", mock.AnythingOfType("model.MediaBlob"), "hello").Return(created, nil).Once()

	story, err := p.Share(ctx, "hello")

	require.NoError(t, err)
	assert.Same(t, created, story)
	assert.Equal(t, PhaseSuccess, p.Phase())
	assert.Empty(t, p.Preview())
	assert.Equal(t, 1, feed.invalidated)
	assert.Equal(t, []string{"alice"}, feed.loads)
	creator.AssertExpectations(t)
}

func TestPipeline_FailureLeavesFeedUntouched(t *testing.T) {
	ctx := context.Background()
	creator := new(svcMocks.MockStoryService)
	feed := &fakeFeed{}
	p := New("alice", creator, feed, quiet())

	_, err := p.SelectFile(jpeg())
	require.NoError(t, err)

	uploadErr := errs.Upload("service.CreateStory", errors.New("bucket missing"))
	creator.On("CreateStory", ctx, "alice", mock.Anything, "").Return(nil, uploadErr).Once()

	story, err := p.Share(ctx, "")

	assert.Nil(t, story)
	assert.ErrorIs(t, err, errs.ErrUpload)
	assert.Equal(t, PhaseFailure, p.Phase())
	assert.ErrorIs(t, p.Err(), errs.ErrUpload)
	assert.Zero(t, feed.invalidated)
	assert.Empty(t, feed.loads)
	assert.NotEmpty(t, p.Preview())
}

func TestPipeline_RetryAfterFailure(t *testing.T) {
	ctx := context.Background()
	creator := new(svcMocks.MockStoryService)
	feed := &fakeFeed{}
	p := New("alice", creator, feed, quiet())

	_, err := p.SelectFile(jpeg())
	require.NoError(t, err)

	var bodies []string
	readBody := func(args mock.Arguments) {
		b, err := io.ReadAll(args.Get(2).(model.MediaBlob).Body)
		require.NoError(t, err)
		bodies = append(bodies, string(b))
	}
	dbErr := errs.Persistence("service.CreateStory", errors.New("insert failed"))
	creator.On("CreateStory", ctx, "alice", mock.Anything, "again").Run(readBody).Return(nil, dbErr).Once()
	creator.On("CreateStory", ctx, "alice", mock.Anything, "again").Run(readBody).Return(&model.Story{ID: "s1"}, nil).Once()

	_, err = p.Share(ctx, "again")
	require.ErrorIs(t, err, errs.ErrPersistence)
	require.Equal(t, PhaseFailure, p.Phase())

	story, err := p.Share(ctx, "again")

	require.NoError(t, err)
	assert.Equal(t, "s1", story.ID)
	assert.Equal(t, []string{"abc", "abc"}, bodies)
	assert.Equal(t, PhaseSuccess, p.Phase())
	assert.Equal(t, 1, feed.invalidated)
}

func TestPipeline_UnseekableBodyDroppedAfterFailure(t *testing.T) {
	ctx := context.Background()
	creator := new(svcMocks.MockStoryService)
	p := New("alice", creator, &fakeFeed{}, quiet())

	_, err := p.SelectFile(model.MediaBlob{Filename: "a.jpg", MimeType: "image/jpeg", Size: -1, Body: io.LimitReader(strings.NewReader("abc"), 3)})
	require.NoError(t, err)
	creator.On("CreateStory", ctx, "alice", mock.Anything, "").Return(nil, errs.Upload("service.CreateStory", errors.New("timeout"))).Once()

	_, err = p.Share(ctx, "")
	require.ErrorIs(t, err, errs.ErrUpload)

	_, err = p.Share(ctx, "")
	assert.ErrorIs(t, err, ErrNoFile)
	assert.Empty(t, p.Preview())
	creator.AssertNumberOfCalls(t, "CreateStory", 1)
}

func TestPipeline_ReloadFailureDoesNotFailShare(t *testing.T) {
	ctx := context.Background()
	creator := new(svcMocks.MockStoryService)
	feed := &fakeFeed{loadErr: errors.New("db down")}
	p := New("alice", creator, feed, quiet())

	_, err := p.SelectFile(jpeg())
	require.NoError(t, err)
	creator.On("CreateStory", ctx, "alice", mock.Anything, "").Return(&model.Story{ID: "s1"}, nil)

	story, err := p.Share(ctx, "")

	require.NoError(t, err)
	assert.Equal(t, "s1", story.ID)
	assert.Equal(t, PhaseSuccess, p.Phase())
}

func TestPipeline_ShareWithoutFile(t *testing.T) {
	p := New("alice", new(svcMocks.MockStoryService), &fakeFeed{}, quiet())

	_, err := p.Share(context.Background(), "")

	assert.ErrorIs(t, err, ErrNoFile)
	assert.Equal(t, PhaseSelectFile, p.Phase())
}

func TestPipeline_SelectFileRequiresBody(t *testing.T) {
	p := New("alice", new(svcMocks.MockStoryService), &fakeFeed{}, quiet())

	_, err := p.SelectFile(model.MediaBlob{Filename: "a.jpg"})

	assert.ErrorIs(t, err, errs.ErrValidation)
	assert.Equal(t, PhaseSelectFile, p.Phase())
}

func TestPipeline_Reset(t *testing.T) {
	p := New("alice", new(svcMocks.MockStoryService), &fakeFeed{}, quiet())

	_, err := p.SelectFile(jpeg())
	require.NoError(t, err)
	p.Reset()

	assert.Equal(t, PhaseSelectFile, p.Phase())
	assert.Empty(t, p.Preview())
	_, err = p.Share(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoFile)
}

func TestPipeline_BusyWhileUploading(t *testing.T) {
	ctx := context.Background()
	creator := new(svcMocks.MockStoryService)
	p := New("alice", creator, &fakeFeed{}, quiet())

	entered := make(chan struct{})
	release := make(chan struct{})
	creator.On("CreateStory", ctx, "alice", mock.Anything, "").Run(func(mock.Arguments) {
		close(entered)
		<-release
	}).Return(&model.Story{ID: "s1"}, nil)

	_, err := p.SelectFile(jpeg())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := p.Share(ctx, "")
		done <- err
	}()
	<-entered

	assert.Equal(t, PhaseUploading, p.Phase())
	_, err = p.SelectFile(jpeg())
	assert.ErrorIs(t, err, ErrBusy)
	_, err = p.Share(ctx, "")
	assert.ErrorIs(t, err, ErrBusy)
	p.Reset()
	assert.Equal(t, PhaseUploading, p.Phase())

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, PhaseSuccess, p.Phase())
}
