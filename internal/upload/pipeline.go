// Package upload drives story creation from file selection to a refreshed feed.
package upload

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"storyapi/internal/errs"
	"storyapi/internal/model"
)

// Phase is the pipeline position.
type Phase int

const (
	PhaseSelectFile Phase = iota
	PhasePreview
	PhaseUploading
	PhaseSuccess
	PhaseFailure
)

func (p Phase) String() string {
	switch p {
	case PhaseSelectFile:
		return "select_file"
	case PhasePreview:
		return "preview"
	case PhaseUploading:
		return "uploading"
	case PhaseSuccess:
		return "success"
	case PhaseFailure:
		return "failure"
	default:
		return "unknown"
	}
}

var (
	ErrBusy   = errors.New("an upload is already in progress")
	ErrNoFile = errors.New("no file selected")
)

// StoryCreator persists a new story.
type StoryCreator interface {
	CreateStory(ctx context.Context, authorID string, blob model.MediaBlob, caption string) (*model.Story, error)
}

// Feed is the story store refreshed after a successful upload.
type Feed interface {
	Invalidate()
	Load(ctx context.Context, viewerID string) error
}

// Pipeline is one author's story composer. The feed is only touched once the
// backend has confirmed the new story.
type Pipeline struct {
	authorID string
	creator  StoryCreator
	feed     Feed
	logger   *slog.Logger

	mu      sync.Mutex
	phase   Phase
	blob    *model.MediaBlob
	preview string
	err     error
}

// New returns a pipeline in PhaseSelectFile.
func New(authorID string, creator StoryCreator, feed Feed, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		authorID: authorID,
		creator:  creator,
		feed:     feed,
		logger:   logger.With("component", "upload", "author_id", authorID),
	}
}

// SelectFile holds blob for sharing and returns a local preview URL. No I/O is done.
func (p *Pipeline) SelectFile(blob model.MediaBlob) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.phase == PhaseUploading {
		return "", ErrBusy
	}
	if blob.Body == nil {
		return "", errs.Validation("upload.SelectFile", "media file is required")
	}

	p.blob = &blob
	p.preview = "blob:" + uuid.NewString()
	p.err = nil
	p.phase = PhasePreview
	return p.preview, nil
}

// Share uploads the selected file with caption. On success the local state is
// cleared and the feed reloaded. On failure the error is returned, the feed is
// left as it was and the selection is kept so Share can be retried. A body that
// cannot seek back to its start is dropped after a failure.
func (p *Pipeline) Share(ctx context.Context, caption string) (*model.Story, error) {
	p.mu.Lock()
	switch {
	case p.phase == PhaseUploading:
		p.mu.Unlock()
		return nil, ErrBusy
	case p.phase != PhasePreview && p.phase != PhaseFailure, p.blob == nil:
		p.mu.Unlock()
		return nil, ErrNoFile
	}
	blob := *p.blob
	if p.phase == PhaseFailure {
		if _, err := blob.Body.(io.Seeker).Seek(0, io.SeekStart); err != nil {
			p.mu.Unlock()
			return nil, errs.Validation("upload.Share", "selected file can no longer be read")
		}
	}
	p.phase = PhaseUploading
	p.mu.Unlock()

	story, err := p.creator.CreateStory(ctx, p.authorID, blob, caption)

	p.mu.Lock()
	if err != nil {
		p.phase = PhaseFailure
		p.err = err
		if _, ok := blob.Body.(io.Seeker); !ok {
			p.blob = nil
			p.preview = ""
		}
		p.mu.Unlock()
		p.logger.Warn("story_upload_failed", "kind", errs.KindOf(err).String(), "error", err.Error())
		return nil, err
	}
	p.phase = PhaseSuccess
	p.blob = nil
	p.preview = ""
	p.err = nil
	p.mu.Unlock()

	if p.feed != nil {
		p.feed.Invalidate()
		if err := p.feed.Load(ctx, p.authorID); err != nil {
			p.logger.Warn("feed_reload_failed", "story_id", story.ID, "error", err.Error())
		}
	}
	return story, nil
}

// Reset discards any selection and returns to PhaseSelectFile. It has no effect
// while an upload is in flight.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.phase == PhaseUploading {
		return
	}
	p.phase = PhaseSelectFile
	p.blob = nil
	p.preview = ""
	p.err = nil
}

// Phase returns the current phase.
func (p *Pipeline) Phase() Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase
}

// Preview returns the preview URL of the selected file, if any.
func (p *Pipeline) Preview() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.preview
}

// Err returns the error of the last failed share.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}
