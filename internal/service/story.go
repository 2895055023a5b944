package service

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"storyapi/internal/errs"
	"storyapi/internal/logging"
	"storyapi/internal/model"
	"storyapi/internal/repository"
	"storyapi/internal/storage"
)

// mediaExtensions maps common media types to the extension used when the
// uploaded filename carries none. Other image/* and video/* types are accepted
// and stored without one.
var mediaExtensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"image/heic":      ".heic",
	"image/heif":      ".heif",
	"video/mp4":       ".mp4",
	"video/quicktime": ".mov",
	"video/webm":      ".webm",
	"video/3gpp":      ".3gp",
}

// StoryService defines the story creation use case.
type StoryService interface {
	// CreateStory validates blob, uploads it to object storage and inserts the story
	// row. If the insert fails the uploaded object is removed again.
	CreateStory(ctx context.Context, authorID string, blob model.MediaBlob, caption string) (*model.Story, error)
}

// StoryOptions tunes story creation.
type StoryOptions struct {
	TTL            time.Duration
	MaxUploadBytes int64
}

type storyService struct {
	store   storage.Storage
	repo    repository.StoryRepository
	clock   clockwork.Clock
	opts    StoryOptions
	metrics *Metrics
}

// NewStoryService constructs a new StoryService.
func NewStoryService(store storage.Storage, repo repository.StoryRepository, clock clockwork.Clock, opts StoryOptions, metrics *Metrics) StoryService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if opts.TTL <= 0 {
		opts.TTL = model.StoryTTL
	}
	return &storyService{store: store, repo: repo, clock: clock, opts: opts, metrics: metrics}
}

func (s *storyService) CreateStory(ctx context.Context, authorID string, blob model.MediaBlob, caption string) (_ *model.Story, err error) {
	const op = "service.CreateStory"

	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("story.author_id", authorID),
		attribute.String("story.mime_type", blob.MimeType),
	))
	defer func() { endSpan(span, err) }()

	mimeType, err := s.validate(authorID, blob, caption)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	contentType := model.ContentTypeFromMIME(mimeType)
	key := objectKey(authorID, blob.Filename, mimeType, now.UnixMilli())

	if _, err := s.store.Put(ctx, key, blob.Body, storage.PutObjectOptions{
		Size:        blob.Size,
		ContentType: mimeType,
		Metadata: map[string]string{
			"author-id":         authorID,
			"original-filename": blob.Filename,
		},
	}); err != nil {
		return nil, errs.Upload(op, err)
	}

	contentURL, err := s.store.URL(ctx, key)
	if err != nil {
		s.discard(ctx, key, err)
		return nil, errs.Upload(op, err)
	}

	story := &model.Story{
		ID:          uuid.NewString(),
		AuthorID:    authorID,
		ContentURL:  contentURL,
		StoragePath: key,
		ContentType: contentType,
		Caption:     caption,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.opts.TTL),
	}
	stored, err := s.repo.CreateStory(ctx, story)
	if err != nil {
		s.discard(ctx, key, err)
		return nil, errs.Persistence(op, err)
	}

	span.SetAttributes(attribute.String("story.id", stored.ID))
	s.metrics.storyCreated(string(stored.ContentType))
	logging.FromContext(ctx).Info("story_created",
		"story_id", stored.ID,
		"author_id", authorID,
		"content_type", string(stored.ContentType),
		"storage_path", key,
	)
	return stored, nil
}

func (s *storyService) validate(authorID string, blob model.MediaBlob, caption string) (string, error) {
	const op = "service.CreateStory"

	if strings.TrimSpace(authorID) == "" {
		return "", errs.Validation(op, "author id is required")
	}
	if blob.Body == nil {
		return "", errs.Validation(op, "media file is required")
	}
	mimeType := normalizeMIME(blob.MimeType)
	if !isMedia(mimeType) {
		return "", errs.Validation(op, fmt.Sprintf("unsupported media type %q", blob.MimeType))
	}
	if n := utf8.RuneCountInString(caption); n > model.MaxCaptionLength {
		return "", errs.Validation(op, fmt.Sprintf("caption is %d characters, at most %d allowed", n, model.MaxCaptionLength))
	}
	if s.opts.MaxUploadBytes > 0 && blob.Size > s.opts.MaxUploadBytes {
		return "", errs.Validation(op, fmt.Sprintf("media file exceeds %d bytes", s.opts.MaxUploadBytes))
	}
	return mimeType, nil
}

// discard removes an object whose story could not be completed.
func (s *storyService) discard(ctx context.Context, key string, cause error) {
	if err := s.store.Delete(ctx, key); err != nil {
		logging.FromContext(ctx).Warn("story_rollback_failed",
			"storage_path", key,
			"cause", cause.Error(),
			"error", err.Error(),
		)
	}
}

func isMedia(mimeType string) bool {
	kind, sub, ok := strings.Cut(mimeType, "/")
	return ok && sub != "" && (kind == "image" || kind == "video")
}

func normalizeMIME(mimeType string) string {
	mt, _, _ := strings.Cut(mimeType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

// objectKey builds stories/<author>/<unix-millis>-<uuid><ext>.
func objectKey(authorID, filename, mimeType string, millis int64) string {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" || len(ext) > 6 {
		ext = mediaExtensions[mimeType]
	}
	return fmt.Sprintf("stories/%s/%d-%s%s", authorID, millis, uuid.NewString(), ext)
}
