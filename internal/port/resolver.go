package port

import (
	"context"

	"github.com/vertextoedge/swiftsaver/internal/domain"
)

// MetadataResolver turns pasted URLs into downloadable variants
type MetadataResolver interface {
	ClassifyURL(raw string) (*domain.ParsedURL, error)
	FetchMetadata(ctx context.Context, raw string) (*domain.VideoMetadata, error)
	ResolveDownloadURL(ctx context.Context, sourceURL, quality, format string) (string, error)
}
