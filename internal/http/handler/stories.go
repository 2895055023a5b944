package handler

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"storyapi/internal/http/middleware"
	"storyapi/internal/model"
	"storyapi/internal/playback"
	"storyapi/internal/upload"
)

// StoryFeed is the story store as seen by the HTTP layer.
type StoryFeed interface {
	Groups(ctx context.Context, viewerID string) ([]model.StoryGroup, error)
	Lookup(ctx context.Context, id string) (model.Story, bool, error)
	Invalidate()
	Load(ctx context.Context, viewerID string) error
}

// StoryFeedResponse is the body of GET /stories.
type StoryFeedResponse struct {
	Data  []model.StoryGroup `json:"data"`
	Total int                `json:"total"`
}

// ListStories godoc
// @Summary List story groups
// @Description Active stories grouped by author. The caller's own group comes first.
// @Tags stories
// @Produce json
// @Param X-User-ID header string true "Viewer id"
// @Success 200 {object} StoryFeedResponse
// @Failure 401 {object} errorPayload
// @Failure 500 {object} errorPayload
// @Failure 503 {object} errorPayload
// @Router /stories [get]
func ListStories(feed StoryFeed) fiber.Handler {
	return func(c *fiber.Ctx) error {
		groups, err := feed.Groups(c.UserContext(), middleware.ViewerID(c))
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(StoryFeedResponse{Data: groups, Total: len(groups)})
	}
}

// CreateStory godoc
// @Summary Publish a story
// @Description Uploads an image or video (multipart field "file") with an optional caption.
// @Tags stories
// @Accept mpfd
// @Produce json
// @Param X-User-ID header string true "Author id"
// @Param file formData file true "Image or video"
// @Param caption formData string false "Caption, at most 200 characters"
// @Success 201 {object} model.Story
// @Failure 400 {object} errorPayload
// @Failure 429 {object} errorPayload
// @Failure 502 {object} errorPayload
// @Router /stories [post]
func CreateStory(creator upload.StoryCreator, feed StoryFeed, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}

		pipeline := upload.New(middleware.ViewerID(c), creator, feed, logger)
		if _, err := pipeline.SelectFile(model.MediaBlob{
			Filename: fh.Filename,
			MimeType: ct,
			Size:     fh.Size,
			Body:     f,
		}); err != nil {
			return writeDomainError(c, err)
		}

		story, err := pipeline.Share(c.UserContext(), c.FormValue("caption"))
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(story)
	}
}

// RecordView godoc
// @Summary Mark a story viewed
// @Description Records the caller's view once. Viewing one's own story is accepted and not recorded.
// @Tags stories
// @Param X-User-ID header string true "Viewer id"
// @Param id path string true "Story id"
// @Success 204
// @Failure 404 {object} errorPayload
// @Failure 500 {object} errorPayload
// @Router /stories/{id}/views [post]
func RecordView(feed StoryFeed, marker playback.ViewMarker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		viewer := middleware.ViewerID(c)
		id := c.Params("id")

		story, ok, err := feed.Lookup(ctx, id)
		if err != nil {
			return writeDomainError(c, err)
		}
		if !ok {
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "story not found")
		}

		if err := marker.MarkViewed(ctx, story, viewer); err != nil {
			return writeDomainError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
