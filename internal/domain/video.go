package domain

import "strings"

// Platform identifies the source site of a URL
type Platform string

const (
	PlatformYouTube   Platform = "youtube"
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformFacebook  Platform = "facebook"
	PlatformTwitter   Platform = "twitter"
	PlatformVimeo     Platform = "vimeo"
	PlatformUnknown   Platform = "unknown"
)

// DisplayName returns the platform name with a capitalized first letter
func (p Platform) DisplayName() string {
	if p == "" {
		return ""
	}
	s := string(p)
	return strings.ToUpper(s[:1]) + s[1:]
}

// Supports4K reports whether the platform offers 1440p and 2160p variants
func (p Platform) Supports4K() bool {
	return p == PlatformYouTube
}

// ParsedURL is the result of classifying a pasted URL
type ParsedURL struct {
	Platform    Platform `json:"platform"`
	VideoID     string   `json:"videoId,omitempty"`
	OriginalURL string   `json:"originalUrl"`
}

// VideoQualityInfo is one downloadable variant
type VideoQualityInfo struct {
	Quality  string `json:"quality"`
	Format   string `json:"format"`
	Size     int64  `json:"size,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	FPS      int    `json:"fps,omitempty"`
	HasAudio bool   `json:"hasAudio"`
}

// VideoMetadata describes a resolved video
type VideoMetadata struct {
	ID           string             `json:"id"`
	Title        string             `json:"title"`
	Description  string             `json:"description,omitempty"`
	Thumbnail    string             `json:"thumbnail"`
	ThumbnailHD  string             `json:"thumbnailHD,omitempty"`
	Duration     int                `json:"duration"`
	Author       string             `json:"author"`
	AuthorAvatar string             `json:"authorAvatar,omitempty"`
	ViewCount    int64              `json:"viewCount,omitempty"`
	LikeCount    int64              `json:"likeCount,omitempty"`
	UploadDate   string             `json:"uploadDate,omitempty"`
	Platform     Platform           `json:"platform"`
	OriginalURL  string             `json:"originalUrl"`
	Qualities    []VideoQualityInfo `json:"qualities"`
}

// HasVariant reports whether the quality/format pair is offered
func (m *VideoMetadata) HasVariant(quality, format string) bool {
	for _, q := range m.Qualities {
		if q.Quality == quality && q.Format == format {
			return true
		}
	}
	return false
}
