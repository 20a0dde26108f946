package resolver

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/swiftsaver/internal/domain"
	"github.com/vertextoedge/swiftsaver/internal/port"
)

// Config contains resolver configuration
type Config struct {
	// FetchDelayMin and FetchDelayMax bound the simulated metadata latency
	FetchDelayMin time.Duration
	FetchDelayMax time.Duration

	// ResolveDelay is the simulated download URL latency
	ResolveDelay time.Duration

	// MediaBaseURL is the host serving resolved media
	MediaBaseURL string
}

// DefaultConfig returns default resolver configuration
func DefaultConfig() *Config {
	return &Config{
		FetchDelayMin: time.Second,
		FetchDelayMax: 2 * time.Second,
		ResolveDelay:  500 * time.Millisecond,
		MediaBaseURL:  "https://sample-videos.com",
	}
}

// Service is a simulated metadata resolver.
// Real platform extraction can replace it behind port.MetadataResolver.
type Service struct {
	config *Config
	logger *zap.Logger

	mu       sync.RWMutex
	variants map[string][]domain.VideoQualityInfo
}

// Ensure Service implements port.MetadataResolver
var _ port.MetadataResolver = (*Service)(nil)

// New creates a new resolver Service
func New(cfg *Config, logger *zap.Logger) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.FetchDelayMax < cfg.FetchDelayMin {
		cfg.FetchDelayMax = cfg.FetchDelayMin
	}
	if cfg.MediaBaseURL == "" {
		cfg.MediaBaseURL = "https://sample-videos.com"
	}
	cfg.MediaBaseURL = strings.TrimRight(cfg.MediaBaseURL, "/")

	return &Service{
		config:   cfg,
		logger:   logger,
		variants: make(map[string][]domain.VideoQualityInfo),
	}
}

// ClassifyURL identifies the platform and content id of a pasted URL
func (s *Service) ClassifyURL(raw string) (*domain.ParsedURL, error) {
	url := strings.TrimSpace(raw)
	if url == "" {
		return nil, fmt.Errorf("%w: url is empty", domain.ErrInvalidInput)
	}
	if !urlPattern.MatchString(url) {
		return nil, fmt.Errorf("%w: %q is not a valid url", domain.ErrInvalidInput, url)
	}

	platform, id := detect(url)
	if platform == domain.PlatformUnknown {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedPlatform, url)
	}

	return &domain.ParsedURL{
		Platform:    platform,
		VideoID:     id,
		OriginalURL: url,
	}, nil
}

// FetchMetadata classifies the URL and returns simulated metadata.
// Classification errors return before any delay.
func (s *Service) FetchMetadata(ctx context.Context, raw string) (*domain.VideoMetadata, error) {
	parsed, err := s.ClassifyURL(raw)
	if err != nil {
		return nil, err
	}

	if err := sleep(ctx, s.fetchDelay()); err != nil {
		return nil, err
	}

	meta := buildMetadata(parsed, time.Now())

	s.mu.Lock()
	s.variants[parsed.OriginalURL] = meta.Qualities
	s.mu.Unlock()

	s.logger.Debug("metadata fetched",
		zap.String("platform", string(parsed.Platform)),
		zap.String("video_id", parsed.VideoID),
		zap.Int("variants", len(meta.Qualities)))

	return meta, nil
}

// ResolveDownloadURL returns a fetchable URL for a variant previously
// offered by FetchMetadata for sourceURL.
func (s *Service) ResolveDownloadURL(ctx context.Context, sourceURL, quality, format string) (string, error) {
	if err := sleep(ctx, s.config.ResolveDelay); err != nil {
		return "", err
	}

	if !s.offered(strings.TrimSpace(sourceURL), quality, format) {
		return "", fmt.Errorf("%w: %s/%s", domain.ErrVariantUnavailable, quality, format)
	}

	return fmt.Sprintf("%s/video/%s/%s/sample.%s", s.config.MediaBaseURL, quality, format, format), nil
}

// Variants returns the variants remembered for a source URL
func (s *Service) Variants(sourceURL string) []domain.VideoQualityInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.variants[strings.TrimSpace(sourceURL)]
	out := make([]domain.VideoQualityInfo, len(v))
	copy(out, v)
	return out
}

func (s *Service) offered(sourceURL, quality, format string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.variants[sourceURL] {
		if v.Quality == quality && v.Format == format {
			return true
		}
	}
	return false
}

func (s *Service) fetchDelay() time.Duration {
	lo, hi := s.config.FetchDelayMin, s.config.FetchDelayMax
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo)
}

func buildMetadata(parsed *domain.ParsedURL, now time.Time) *domain.VideoMetadata {
	shortID := parsed.VideoID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}
	if shortID == "" {
		shortID = "Demo"
	}

	id := parsed.VideoID
	if id == "" {
		id = fmt.Sprintf("%s_%d", parsed.Platform, now.UnixMilli())
	}

	return &domain.VideoMetadata{
		ID:           id,
		Title:        fmt.Sprintf("%s Video - %s", parsed.Platform.DisplayName(), shortID),
		Description:  fmt.Sprintf("Video downloaded from %s", parsed.Platform.DisplayName()),
		Thumbnail:    "https://picsum.photos/640/360",
		ThumbnailHD:  "https://picsum.photos/1280/720",
		Duration:     180 + int(rand.N(420)),
		Author:       "Content Creator",
		AuthorAvatar: "https://picsum.photos/100/100",
		ViewCount:    rand.Int64N(1_000_000),
		LikeCount:    rand.Int64N(100_000),
		UploadDate:   now.UTC().Format(time.RFC3339),
		Platform:     parsed.Platform,
		OriginalURL:  parsed.OriginalURL,
		Qualities:    qualitiesFor(parsed.Platform),
	}
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
