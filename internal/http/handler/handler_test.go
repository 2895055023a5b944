package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"storyapi/internal/errs"
	"storyapi/internal/feed"
	"storyapi/internal/http/middleware"
	"storyapi/internal/model"
	"storyapi/internal/playback"
	"storyapi/internal/repository/memory"
	"storyapi/internal/service"
	serviceMocks "storyapi/internal/service/mocks"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	clock   *clockwork.FakeClock
	repo    *memory.StoryMemory
	store   *feed.Store
	tracker *service.ViewTracker
}

// newFixture seeds alice with a1 and bob with b1, b2 (b2 newest).
func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(t0)
	repo := memory.NewStoryMemory(clock)
	repo.PutProfile("alice", memory.Profile{DisplayName: "Alice"})
	repo.PutProfile("bob", memory.Profile{DisplayName: "Bob"})
	repo.PutProfile("carol", memory.Profile{DisplayName: "Carol"})

	seedStory(t, repo, "a1", "alice", t0.Add(-3*time.Hour))
	seedStory(t, repo, "b1", "bob", t0.Add(-2*time.Hour))
	seedStory(t, repo, "b2", "bob", t0.Add(-time.Hour))

	store := feed.New(repo, clock, feed.Options{})
	return &fixture{
		clock:   clock,
		repo:    repo,
		store:   store,
		tracker: service.NewViewTracker(repo, store, nil),
	}
}

func seedStory(t *testing.T, repo *memory.StoryMemory, id, author string, createdAt time.Time) {
	t.Helper()
	_, err := repo.CreateStory(context.Background(), &model.Story{
		ID:          id,
		AuthorID:    author,
		ContentType: model.ContentTypeImage,
		CreatedAt:   createdAt,
		ExpiresAt:   createdAt.Add(model.StoryTTL),
	})
	require.NoError(t, err)
}

func newApp() *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Use(middleware.Viewer())
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, target, viewer string, body *bytes.Buffer, contentType string) *http.Response {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, body)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if viewer != "" {
		req.Header.Set(middleware.ViewerHeader, viewer)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func decodeError(t *testing.T, resp *http.Response) errorPayload {
	t.Helper()
	var body errorPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func mediaForm(t *testing.T, filename, mimeType string, data []byte, caption string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	h.Set("Content-Type", mimeType)
	part, err := writer.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)

	if caption != "" {
		require.NoError(t, writer.WriteField("caption", caption))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestHealthCheck(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	app := fiber.New()
	app.Get("/health", HealthCheck(db))

	t.Run("healthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(nil)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "SERVICE_UNAVAILABLE", body.Error.Code)
	})
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListStories(t *testing.T) {
	f := newFixture(t)
	app := newApp()
	app.Get("/stories", ListStories(f.store))

	t.Run("own group first", func(t *testing.T) {
		resp := doRequest(t, app, http.MethodGet, "/stories", "bob", nil, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var res StoryFeedResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
		require.Equal(t, 2, res.Total)
		assert.Equal(t, "bob", res.Data[0].AuthorID)
		assert.Equal(t, "Bob", res.Data[0].DisplayName)
		assert.Equal(t, "b2", res.Data[0].Stories[0].ID)
		assert.Equal(t, "alice", res.Data[1].AuthorID)
		assert.True(t, res.Data[1].HasUnviewed)
	})

	t.Run("viewed flags follow the viewer", func(t *testing.T) {
		_, err := f.repo.RecordView(context.Background(), "a1", "carol")
		require.NoError(t, err)

		resp := doRequest(t, app, http.MethodGet, "/stories", "carol", nil, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var res StoryFeedResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
		require.Equal(t, 2, res.Total)
		for _, g := range res.Data {
			if g.AuthorID == "alice" {
				assert.False(t, g.HasUnviewed)
				assert.True(t, g.Stories[0].HasViewed)
			}
		}
	})

	t.Run("expired stories drop out", func(t *testing.T) {
		f.clock.Advance(22*time.Hour + 30*time.Minute)

		resp := doRequest(t, app, http.MethodGet, "/stories", "carol", nil, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var res StoryFeedResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
		require.Equal(t, 1, res.Total)
		require.Len(t, res.Data[0].Stories, 1)
		assert.Equal(t, "b2", res.Data[0].Stories[0].ID)
	})
}

type fakeFeed struct {
	StoryFeed
	invalidated int
	loaded      []string
}

func (f *fakeFeed) Invalidate() { f.invalidated++ }

func (f *fakeFeed) Load(_ context.Context, viewerID string) error {
	f.loaded = append(f.loaded, viewerID)
	return nil
}

func TestCreateStory(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		mockSvc := new(serviceMocks.MockStoryService)
		ff := &fakeFeed{}
		app := newApp()
		app.Post("/stories", CreateStory(mockSvc, ff, nil))

		body, ct := mediaForm(t, "sunset.png", "image/png", []byte("png-bytes"), "evening")
		created := &model.Story{ID: "s1", AuthorID: "alice", ContentType: model.ContentTypeImage, Caption: "evening"}
		mockSvc.On("CreateStory", mock.Anything, "alice", mock.MatchedBy(func(b model.MediaBlob) bool {
			return b.Filename == "sunset.png" && b.MimeType == "image/png" && b.Size == int64(len("png-bytes"))
		}), "evening").Return(created, nil).Once()

		resp := doRequest(t, app, http.MethodPost, "/stories", "alice", body, ct)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		var result model.Story
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		assert.Equal(t, "s1", result.ID)
		assert.Equal(t, 1, ff.invalidated)
		assert.Equal(t, []string{"alice"}, ff.loaded)
		mockSvc.AssertExpectations(t)
	})

	t.Run("no file", func(t *testing.T) {
		app := newApp()
		app.Post("/stories", CreateStory(new(serviceMocks.MockStoryService), &fakeFeed{}, nil))

		resp := doRequest(t, app, http.MethodPost, "/stories", "alice", nil, "")

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "FILE_REQUIRED", decodeError(t, resp).Error.Code)
	})

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name:       "unsupported media",
			err:        errs.Validation("service.CreateStory", "unsupported media type application/pdf"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
			wantMsg:    "unsupported media type application/pdf",
		},
		{
			name:       "object store rejected upload",
			err:        errs.Upload("storage.Put", errors.New("access denied")),
			wantStatus: http.StatusBadGateway,
			wantCode:   "UPLOAD_FAILED",
			wantMsg:    "media upload failed",
		},
		{
			name:       "insert failed",
			err:        errs.Persistence("repository.CreateStory", errors.New("constraint")),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "PERSISTENCE_ERROR",
		},
		{
			name:       "transport failure",
			err:        errs.Persistence("repository.CreateStory", context.DeadlineExceeded),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "SERVICE_UNAVAILABLE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc := new(serviceMocks.MockStoryService)
			ff := &fakeFeed{}
			app := newApp()
			app.Post("/stories", CreateStory(mockSvc, ff, nil))

			body, ct := mediaForm(t, "doc.pdf", "application/pdf", []byte("%PDF"), "")
			mockSvc.On("CreateStory", mock.Anything, "alice", mock.Anything, "").Return(nil, tt.err).Once()

			resp := doRequest(t, app, http.MethodPost, "/stories", "alice", body, ct)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			res := decodeError(t, resp)
			assert.Equal(t, tt.wantCode, res.Error.Code)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, res.Error.Message)
			}
			assert.NotContains(t, res.Error.Message, "constraint")
			assert.Zero(t, ff.invalidated)
			assert.Empty(t, ff.loaded)
			mockSvc.AssertExpectations(t)
		})
	}
}

func TestRecordView(t *testing.T) {
	f := newFixture(t)
	app := newApp()
	app.Post("/stories/:id/views", RecordView(f.store, f.tracker))

	t.Run("records once", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			resp := doRequest(t, app, http.MethodPost, "/stories/b1/views", "alice", nil, "")
			assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		}
		assert.EqualValues(t, 1, f.repo.ViewCount("b1"))
		assert.Equal(t, 1, f.repo.ViewRecords("b1"))

		groups := f.store.Snapshot("alice")
		for _, g := range groups {
			for _, s := range g.Stories {
				if s.ID == "b1" {
					assert.True(t, s.HasViewed)
				}
			}
		}
	})

	t.Run("own story is not recorded", func(t *testing.T) {
		resp := doRequest(t, app, http.MethodPost, "/stories/a1/views", "alice", nil, "")

		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		assert.EqualValues(t, 0, f.repo.ViewCount("a1"))
	})

	t.Run("story newer than loaded list", func(t *testing.T) {
		seedStory(t, f.repo, "c1", "carol", t0)

		resp := doRequest(t, app, http.MethodPost, "/stories/c1/views", "bob", nil, "")

		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		assert.EqualValues(t, 1, f.repo.ViewCount("c1"))
	})

	t.Run("unknown story", func(t *testing.T) {
		resp := doRequest(t, app, http.MethodPost, "/stories/missing/views", "alice", nil, "")

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp).Error.Code)
	})
}

// countingRepo counts full story list fetches.
type countingRepo struct {
	*memory.StoryMemory
	fetches atomic.Int32
}

func (r *countingRepo) FetchActiveStories(ctx context.Context) ([]model.Story, error) {
	r.fetches.Add(1)
	return r.StoryMemory.FetchActiveStories(ctx)
}

func TestRecordView_UnknownStoryDoesNotReloadFeed(t *testing.T) {
	f := newFixture(t)
	repo := &countingRepo{StoryMemory: f.repo}
	store := feed.New(repo, f.clock, feed.Options{})
	app := newApp()
	app.Post("/stories/:id/views", RecordView(store, service.NewViewTracker(repo, store, nil)))

	_, err := store.Groups(context.Background(), "alice")
	require.NoError(t, err)
	require.EqualValues(t, 1, repo.fetches.Load())

	for i := 0; i < 5; i++ {
		resp := doRequest(t, app, http.MethodPost, "/stories/missing/views", "alice", nil, "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	}

	assert.EqualValues(t, 1, repo.fetches.Load())
}

func decodeState(t *testing.T, resp *http.Response) PlaybackResponse {
	t.Helper()
	var res PlaybackResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	return res
}

func TestPlaybackRoutes(t *testing.T) {
	f := newFixture(t)
	manager := playback.NewManager(f.store, f.tracker, f.clock, playback.Options{})
	t.Cleanup(func() { manager.Shutdown(context.Background()) })

	app := newApp()
	app.Get("/playback", PlaybackState(manager))
	app.Post("/playback/open", PlaybackOpen(manager))
	app.Post("/playback/next", PlaybackNext(manager))
	app.Post("/playback/previous", PlaybackPrevious(manager))
	app.Post("/playback/close", PlaybackClose(manager))

	open := func(author string, start int) *http.Response {
		body := bytes.NewBufferString(fmt.Sprintf(`{"author_id":%q,"start_index":%d}`, author, start))
		return doRequest(t, app, http.MethodPost, "/playback/open", "alice", body, fiber.MIMEApplicationJSON)
	}

	resp := doRequest(t, app, http.MethodGet, "/playback", "alice", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decodeState(t, resp).State.Playing)

	resp = open("bob", 0)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decodeState(t, resp)
	assert.True(t, res.State.Playing)
	assert.Equal(t, 1, res.State.GroupIndex)
	require.NotNil(t, res.State.Story)
	assert.Equal(t, "b2", res.State.Story.ID)
	assert.Empty(t, res.Warning)
	assert.EqualValues(t, 1, f.repo.ViewCount("b2"))

	resp = doRequest(t, app, http.MethodPost, "/playback/next", "alice", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "b1", decodeState(t, resp).State.Story.ID)
	assert.EqualValues(t, 1, f.repo.ViewCount("b1"))

	resp = doRequest(t, app, http.MethodPost, "/playback/previous", "alice", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "b2", decodeState(t, resp).State.Story.ID)
	assert.EqualValues(t, 1, f.repo.ViewCount("b2"))

	resp = doRequest(t, app, http.MethodPost, "/playback/close", "alice", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decodeState(t, resp).State.Playing)

	resp = doRequest(t, app, http.MethodPost, "/playback/next", "alice", nil, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "NOT_PLAYING", decodeError(t, resp).Error.Code)

	resp = open("nobody", 0)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = open("bob", 5)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, resp).Error.Code)

	resp = open("", 0)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doRequest(t, app, http.MethodPost, "/playback/open", "alice", bytes.NewBufferString("{"), fiber.MIMEApplicationJSON)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "BAD_REQUEST", decodeError(t, resp).Error.Code)
}

type failingMarker struct{}

func (failingMarker) MarkViewed(context.Context, model.Story, string) error {
	return errs.Persistence("repository.RecordView", errors.New("db down"))
}

func TestPlaybackOpen_MarkFailureStillMoves(t *testing.T) {
	f := newFixture(t)
	manager := playback.NewManager(f.store, failingMarker{}, f.clock, playback.Options{})
	t.Cleanup(func() { manager.Shutdown(context.Background()) })

	app := newApp()
	app.Post("/playback/open", PlaybackOpen(manager))

	body := bytes.NewBufferString(`{"author_id":"bob"}`)
	resp := doRequest(t, app, http.MethodPost, "/playback/open", "alice", body, fiber.MIMEApplicationJSON)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decodeState(t, resp)
	assert.True(t, res.State.Playing)
	assert.NotEmpty(t, res.Warning)
}

func TestRouting(t *testing.T) {
	limiter := middleware.NewKeyedLimiter(1, time.Minute, 1, clockwork.NewFakeClockAt(t0))
	app := newApp()
	RegisterRoutes(app, Deps{UploadLimiter: limiter})

	t.Run("not found route", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/non-existent", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp).Error.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		// Health endpoint only allows GET
		req := httptest.NewRequest(http.MethodPost, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		assert.Equal(t, "METHOD_NOT_ALLOWED", decodeError(t, resp).Error.Code)
	})

	t.Run("viewer required", func(t *testing.T) {
		for _, target := range []string{"/stories", "/playback"} {
			resp := doRequest(t, app, http.MethodGet, target, "", nil, "")
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, target)
			assert.Equal(t, "UNAUTHORIZED", decodeError(t, resp).Error.Code)
		}
	})

	t.Run("upload rate limit", func(t *testing.T) {
		resp := doRequest(t, app, http.MethodPost, "/stories", "alice", nil, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp = doRequest(t, app, http.MethodPost, "/stories", "alice", nil, "")
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		assert.Equal(t, "TOO_MANY_REQUESTS", decodeError(t, resp).Error.Code)

		resp = doRequest(t, app, http.MethodPost, "/stories", "bob", nil, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestErrorHandler_DomainErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", errs.Validation("op", "caption too long"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"upload", errs.Upload("op", errors.New("boom")), http.StatusBadGateway, "UPLOAD_FAILED"},
		{"persistence", errs.Persistence("op", errors.New("boom")), http.StatusInternalServerError, "PERSISTENCE_ERROR"},
		{"network", &errs.Error{Kind: errs.KindNetwork, Op: "op", Err: errors.New("reset")}, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
			app.Get("/", func(c *fiber.Ctx) error { return tt.err })

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			body := decodeError(t, resp)
			assert.Equal(t, tt.wantCode, body.Error.Code)
			assert.False(t, strings.Contains(body.Error.Message, "boom"))
		})
	}
}
