package port

import (
	"time"
)

// DiskUsage represents disk usage statistics
type DiskUsage struct {
	Total   uint64  // Total disk space in bytes
	Used    uint64  // Used disk space in bytes
	Free    uint64  // Free disk space in bytes
	UsedPct float64 // Used percentage (0-100)
}

// DirEntry is one entry of a directory listing
type DirEntry struct {
	Name    string
	Path    string
	Size    int64
	IsDir   bool
	ModTime time.Time
}

// FileSystem defines the file system primitive used by the library and registry
type FileSystem interface {
	// RootDir returns the download directory
	RootDir() string

	// ReadDir lists the entries of dir
	ReadDir(dir string) ([]DirEntry, error)

	// Exists reports whether path exists
	Exists(path string) bool

	// Stat returns the entry for path
	Stat(path string) (*DirEntry, error)

	// MkdirAll creates dir and any missing parents
	MkdirAll(dir string) error

	// Remove deletes a file. A missing file is not an error.
	Remove(path string) error

	// Rename moves a file
	Rename(oldPath, newPath string) error

	// CopyFile copies src to dst, replacing dst
	CopyFile(src, dst string) error

	// DiskUsage returns usage statistics for the volume holding the root dir
	DiskUsage() (*DiskUsage, error)

	// CleanOldTempFiles removes temp files older than the specified duration
	// Returns the number of files deleted
	CleanOldTempFiles(olderThan time.Duration) (int, error)
}
