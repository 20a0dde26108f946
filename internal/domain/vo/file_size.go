package vo

import (
	"github.com/dustin/go-humanize"
)

// FileSize represents a byte count value object.
type FileSize struct {
	bytes int64
}

const (
	KB int64 = 1000
	MB int64 = 1000 * KB
	GB int64 = 1000 * MB
)

// NewFileSize creates a FileSize. Negative counts are treated as zero.
func NewFileSize(bytes int64) FileSize {
	if bytes < 0 {
		bytes = 0
	}
	return FileSize{bytes: bytes}
}

// Bytes returns the size in bytes.
func (fs FileSize) Bytes() int64 {
	return fs.bytes
}

// String returns a human-readable size such as "80 MB".
func (fs FileSize) String() string {
	return humanize.Bytes(uint64(fs.bytes))
}

// Rate formats a bytes-per-second value such as "1.2 MB/s".
func Rate(bytesPerSecond int64) string {
	return NewFileSize(bytesPerSecond).String() + "/s"
}
