// Package model contains the domain models shared by the storage, service,
// playback and HTTP layers. Types here carry no persistence tags and no I/O.
package model

import "time"

// StoryTTL is the fixed lifetime of a story: ExpiresAt == CreatedAt + StoryTTL.
const StoryTTL = 24 * time.Hour

// MaxCaptionLength is the maximum caption length in characters.
const MaxCaptionLength = 200
