package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// MediaType classifies a library file
type MediaType string

const (
	MediaTypeVideo MediaType = "video"
	MediaTypeAudio MediaType = "audio"
)

var (
	videoExtensions = map[string]bool{"mp4": true, "webm": true, "mkv": true, "avi": true, "mov": true}
	audioExtensions = map[string]bool{"mp3": true, "m4a": true, "wav": true, "aac": true, "flac": true}
)

// MediaFile is a file already materialized in the download directory
type MediaFile struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	Title      string    `json:"title"`
	Size       int64     `json:"size"`
	Format     string    `json:"format"`
	Type       MediaType `json:"type"`
	CreatedAt  time.Time `json:"createdAt"`
	IsFavorite bool      `json:"isFavorite,omitempty"`
}

// ClassifyExtension returns the media type for a file name.
// The second value is false for unrecognized extensions.
func ClassifyExtension(name string) (MediaType, bool) {
	ext := FileExtension(name)
	switch {
	case videoExtensions[ext]:
		return MediaTypeVideo, true
	case audioExtensions[ext]:
		return MediaTypeAudio, true
	default:
		return "", false
	}
}

// FileExtension returns the lower-case extension without the dot
func FileExtension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// DisplayTitle derives a title from a file name
func DisplayTitle(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return strings.ReplaceAll(base, "_", " ")
}

// StorageInfo reports library usage and free space in bytes
type StorageInfo struct {
	Used      int64 `json:"used"`
	Available int64 `json:"available"`
	Total     int64 `json:"total"`
}
