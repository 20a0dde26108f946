package vo

import (
	"errors"
	"path/filepath"
	"strings"
)

// TempSuffix marks files still being written by a transfer
const TempSuffix = ".downloading"

// FilePath represents a file path value object.
type FilePath struct {
	value string
}

var (
	ErrEmptyPath   = errors.New("file path cannot be empty")
	ErrInvalidPath = errors.New("invalid file path")
)

// NewFilePath creates a cleaned FilePath.
func NewFilePath(path string) (FilePath, error) {
	if strings.TrimSpace(path) == "" {
		return FilePath{}, ErrEmptyPath
	}
	if strings.ContainsRune(path, 0) {
		return FilePath{}, ErrInvalidPath
	}
	return FilePath{value: filepath.Clean(path)}, nil
}

// String returns the string representation of the path.
func (fp FilePath) String() string {
	return fp.value
}

// IsEmpty returns true if the path is empty.
func (fp FilePath) IsEmpty() bool {
	return fp.value == ""
}

// Within reports whether the path lies inside dir.
func (fp FilePath) Within(dir string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), fp.value)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// TempPath returns the in-progress path for a destination string.
func TempPath(dest string) string {
	if IsTempPath(dest) {
		return dest
	}
	return dest + TempSuffix
}

// IsTempPath reports whether path names an in-progress file.
func IsTempPath(path string) bool {
	return strings.HasSuffix(path, TempSuffix)
}
