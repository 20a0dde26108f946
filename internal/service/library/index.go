package library

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/vertextoedge/swiftsaver/internal/domain"
	"github.com/vertextoedge/swiftsaver/internal/domain/vo"
	"github.com/vertextoedge/swiftsaver/internal/port"
)

// InProgressFilter reports destination paths owned by running transfers
type InProgressFilter interface {
	InProgressPaths() []string
}

// Config contains file index configuration
type Config struct {
	// Dir is the download directory
	Dir string

	// ShareDir receives copies made for sharing
	ShareDir string
}

// Index enumerates and manages files in the download directory.
// Every operation fails soft: errors are logged and a zero value returned.
type Index struct {
	config *Config
	fs     port.FileSystem
	filter InProgressFilter
	logger *zap.Logger
}

// New creates a new Index. filter may be nil.
func New(cfg *Config, fs port.FileSystem, filter InProgressFilter, logger *zap.Logger) *Index {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Dir == "" {
		cfg.Dir = fs.RootDir()
	}
	if cfg.ShareDir == "" {
		cfg.ShareDir = filepath.Join(cfg.Dir, "shared")
	}

	return &Index{
		config: cfg,
		fs:     fs,
		filter: filter,
		logger: logger,
	}
}

// SetFilter installs the in-progress filter after construction
func (i *Index) SetFilter(filter InProgressFilter) {
	i.filter = filter
}

// Dir returns the download directory
func (i *Index) Dir() string {
	return i.config.Dir
}

// ListMediaFiles returns playable files in the download directory, newest first.
// Temp files and files still being written are excluded.
func (i *Index) ListMediaFiles(ctx context.Context) []domain.MediaFile {
	if err := i.fs.MkdirAll(i.config.Dir); err != nil {
		i.softFail(domain.NewStorageError("init", i.config.Dir, err))
		return []domain.MediaFile{}
	}

	entries, err := i.fs.ReadDir(i.config.Dir)
	if err != nil {
		i.softFail(domain.NewStorageError("list", i.config.Dir, err))
		return []domain.MediaFile{}
	}

	busy := i.inProgress()
	files := make([]domain.MediaFile, 0, len(entries))
	for _, e := range entries {
		if ctx.Err() != nil {
			return []domain.MediaFile{}
		}
		if e.IsDir || vo.IsTempPath(e.Name) || busy[filepath.Clean(e.Path)] {
			continue
		}
		mediaType, ok := domain.ClassifyExtension(e.Name)
		if !ok {
			continue
		}
		files = append(files, domain.MediaFile{
			ID:        e.Name,
			Name:      e.Name,
			Path:      e.Path,
			Title:     domain.DisplayTitle(e.Name),
			Size:      e.Size,
			Format:    domain.FileExtension(e.Name),
			Type:      mediaType,
			CreatedAt: e.ModTime,
		})
	}

	sort.SliceStable(files, func(a, b int) bool {
		return files[a].CreatedAt.After(files[b].CreatedAt)
	})
	return files
}

// DeleteFile removes a file. A missing file reports false.
func (i *Index) DeleteFile(path string) bool {
	if !i.fs.Exists(path) {
		i.softFail(domain.NewStorageError("delete", path, domain.ErrNotFound))
		return false
	}
	if err := i.fs.Remove(path); err != nil {
		i.softFail(domain.NewStorageError("delete", path, err))
		return false
	}
	i.logger.Info("file deleted", zap.String("path", path))
	return true
}

// StorageUsage reports bytes used by the download directory and free space
// on its volume. Zeros on failure.
func (i *Index) StorageUsage() domain.StorageInfo {
	entries, err := i.fs.ReadDir(i.config.Dir)
	if err != nil {
		i.softFail(domain.NewStorageError("storage usage", i.config.Dir, err))
		return domain.StorageInfo{}
	}
	usage, err := i.fs.DiskUsage()
	if err != nil {
		i.softFail(domain.NewStorageError("disk usage", "", err))
		return domain.StorageInfo{}
	}

	var used int64
	for _, e := range entries {
		if !e.IsDir {
			used += e.Size
		}
	}

	return domain.StorageInfo{
		Used:      used,
		Available: int64(usage.Free),
		Total:     int64(usage.Total),
	}
}

// CopyToShareableLocation copies a file into the share directory.
// suggestedName defaults to the base name of path.
func (i *Index) CopyToShareableLocation(path, suggestedName string) (string, bool) {
	name := filepath.Base(strings.TrimSpace(suggestedName))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = filepath.Base(path)
	}
	dst := filepath.Join(i.config.ShareDir, name)

	if err := i.fs.CopyFile(path, dst); err != nil {
		i.softFail(domain.NewStorageError("copy", path, err))
		return "", false
	}
	i.logger.Info("file copied for sharing",
		zap.String("path", path),
		zap.String("dest", dst))
	return dst, true
}

// RenameFile renames a file within its directory, keeping the extension.
func (i *Index) RenameFile(oldPath, newName string) (string, bool) {
	newName = strings.TrimSpace(newName)
	if newName == "" || strings.ContainsAny(newName, `/\`) || newName == "." || newName == ".." {
		i.softFail(domain.NewStorageError("rename", oldPath, domain.ErrInvalidInput))
		return "", false
	}

	newPath := filepath.Join(filepath.Dir(oldPath), newName+filepath.Ext(oldPath))
	if err := i.fs.Rename(oldPath, newPath); err != nil {
		i.softFail(domain.NewStorageError("rename", oldPath, err))
		return "", false
	}
	return newPath, true
}

// ClearAll deletes every finished file in the download directory.
// Files owned by running transfers are left alone.
func (i *Index) ClearAll() bool {
	entries, err := i.fs.ReadDir(i.config.Dir)
	if err != nil {
		i.softFail(domain.NewStorageError("clear", i.config.Dir, err))
		return false
	}

	busy := i.inProgress()
	ok := true
	for _, e := range entries {
		if e.IsDir || busy[filepath.Clean(e.Path)] {
			continue
		}
		if err := i.fs.Remove(e.Path); err != nil {
			i.softFail(domain.NewStorageError("clear", e.Path, err))
			ok = false
		}
	}
	return ok
}

// FileExists reports whether path exists
func (i *Index) FileExists(path string) bool {
	return i.fs.Exists(path)
}

// FileSize returns the size of path, or 0 if it cannot be read
func (i *Index) FileSize(path string) int64 {
	entry, err := i.fs.Stat(path)
	if err != nil {
		return 0
	}
	return entry.Size
}

// inProgress returns destination and temp paths of running transfers
func (i *Index) inProgress() map[string]bool {
	busy := make(map[string]bool)
	if i.filter == nil {
		return busy
	}
	for _, p := range i.filter.InProgressPaths() {
		p = filepath.Clean(p)
		busy[p] = true
		busy[vo.TempPath(p)] = true
	}
	return busy
}

func (i *Index) softFail(err *domain.StorageError) {
	i.logger.Warn("storage operation failed", zap.Error(err))
}
