package model

import (
	"io"
	"strings"
	"time"
)

// ContentType is the media kind of a story.
type ContentType string

const (
	ContentTypeImage ContentType = "image"
	ContentTypeVideo ContentType = "video"
)

// ContentTypeFromMIME derives the story content type from an uploaded file's MIME type.
// Anything that is not video/* is treated as an image.
func ContentTypeFromMIME(mimeType string) ContentType {
	if strings.HasPrefix(strings.ToLower(mimeType), "video/") {
		return ContentTypeVideo
	}
	return ContentTypeImage
}

// Story represents one ephemeral media post joined with its author's profile.
// HasViewed is relative to the requesting viewer and is never persisted.
type Story struct {
	ID          string      `json:"id"`
	AuthorID    string      `json:"author_id"`
	ContentURL  string      `json:"content_url"`
	StoragePath string      `json:"-"`
	ContentType ContentType `json:"content_type"`
	Caption     string      `json:"caption,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	ExpiresAt   time.Time   `json:"expires_at"`
	ViewCount   int64       `json:"view_count"`

	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	HasViewed   bool   `json:"has_viewed"`
}

// Expired reports whether the story is no longer visible at now.
func (s Story) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// StoryGroup is the per-author aggregate presented in the story tray.
type StoryGroup struct {
	AuthorID    string  `json:"author_id"`
	DisplayName string  `json:"display_name"`
	AvatarURL   string  `json:"avatar_url,omitempty"`
	Stories     []Story `json:"stories"`
	HasUnviewed bool    `json:"has_unviewed"`
}

// ViewRecord marks that a viewer has seen a story. At most one exists per (StoryID, ViewerID).
type ViewRecord struct {
	StoryID   string    `json:"story_id"`
	ViewerID  string    `json:"viewer_id"`
	CreatedAt time.Time `json:"created_at"`
}

// MediaBlob is a media file selected for upload.
// Size is -1 when unknown.
type MediaBlob struct {
	Filename string
	MimeType string
	Size     int64
	Body     io.Reader
}
