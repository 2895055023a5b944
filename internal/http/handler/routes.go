package handler

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storyapi/internal/http/middleware"
	"storyapi/internal/playback"
	"storyapi/internal/upload"
)

// Deps are the collaborators the routes are served from.
type Deps struct {
	DB       Pinger
	Creator  upload.StoryCreator
	Feed     StoryFeed
	Views    playback.ViewMarker
	Playback Playback
	// UploadLimiter throttles POST /stories per author. Nil disables it.
	UploadLimiter *middleware.KeyedLimiter
	// Gatherer backs /metrics. Nil leaves the route out.
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	app.Get("/health", HealthCheck(d.DB))
	app.Get("/healthz", LivenessProbe())

	if d.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	stories := app.Group("/stories", middleware.RequireViewer())
	stories.Get("/", ListStories(d.Feed))
	create := []fiber.Handler{CreateStory(d.Creator, d.Feed, d.Logger)}
	if d.UploadLimiter != nil {
		create = append([]fiber.Handler{middleware.RateLimit(d.UploadLimiter)}, create...)
	}
	stories.Post("/", create...)
	stories.Post("/:id/views", RecordView(d.Feed, d.Views))

	pb := app.Group("/playback", middleware.RequireViewer())
	pb.Get("/", PlaybackState(d.Playback))
	pb.Post("/open", PlaybackOpen(d.Playback))
	pb.Post("/next", PlaybackNext(d.Playback))
	pb.Post("/previous", PlaybackPrevious(d.Playback))
	pb.Post("/close", PlaybackClose(d.Playback))
}
