package handler

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"storyapi/internal/http/middleware"
	"storyapi/internal/logging"
	"storyapi/internal/playback"
)

// Playback drives per-viewer playback sessions.
type Playback interface {
	Dispatch(ctx context.Context, viewerID string, ev playback.Event) (playback.State, error)
	State(viewerID string) playback.State
}

// PlaybackResponse carries the state after an event. Warning is set when the
// transition was applied but recording the view failed.
type PlaybackResponse struct {
	State   playback.State `json:"state"`
	Warning string         `json:"warning,omitempty"`
}

type openRequest struct {
	AuthorID   string `json:"author_id"`
	StartIndex int    `json:"start_index"`
}

// PlaybackState godoc
// @Summary Current playback state
// @Tags playback
// @Produce json
// @Param X-User-ID header string true "Viewer id"
// @Success 200 {object} PlaybackResponse
// @Router /playback [get]
func PlaybackState(p Playback) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(PlaybackResponse{State: p.State(middleware.ViewerID(c))})
	}
}

// PlaybackOpen godoc
// @Summary Open an author's story group
// @Tags playback
// @Accept json
// @Produce json
// @Param X-User-ID header string true "Viewer id"
// @Param body body openRequest true "Group to open"
// @Success 200 {object} PlaybackResponse
// @Failure 400 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Router /playback/open [post]
func PlaybackOpen(p Playback) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req openRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		}
		req.AuthorID = strings.TrimSpace(req.AuthorID)
		if req.AuthorID == "" {
			return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "author_id is required")
		}
		return dispatch(c, p, playback.Open{AuthorID: req.AuthorID, StartIndex: req.StartIndex})
	}
}

// PlaybackNext godoc
// @Summary Advance to the next story
// @Tags playback
// @Produce json
// @Param X-User-ID header string true "Viewer id"
// @Success 200 {object} PlaybackResponse
// @Failure 409 {object} errorPayload
// @Router /playback/next [post]
func PlaybackNext(p Playback) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return dispatch(c, p, playback.Next{})
	}
}

// PlaybackPrevious godoc
// @Summary Go back to the previous story
// @Tags playback
// @Produce json
// @Param X-User-ID header string true "Viewer id"
// @Success 200 {object} PlaybackResponse
// @Failure 409 {object} errorPayload
// @Router /playback/previous [post]
func PlaybackPrevious(p Playback) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return dispatch(c, p, playback.Previous{})
	}
}

// PlaybackClose godoc
// @Summary Close the viewer
// @Tags playback
// @Produce json
// @Param X-User-ID header string true "Viewer id"
// @Success 200 {object} PlaybackResponse
// @Router /playback/close [post]
func PlaybackClose(p Playback) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return dispatch(c, p, playback.Close{})
	}
}

func dispatch(c *fiber.Ctx, p Playback, ev playback.Event) error {
	st, err := p.Dispatch(c.UserContext(), middleware.ViewerID(c), ev)
	switch {
	case err == nil:
		return c.JSON(PlaybackResponse{State: st})
	case errors.Is(err, playback.ErrMarkViewed):
		logging.FromContext(c.UserContext()).Warn("playback_view_not_recorded", "error", err.Error())
		return c.JSON(PlaybackResponse{State: st, Warning: "view could not be recorded"})
	default:
		return writeDomainError(c, err)
	}
}
