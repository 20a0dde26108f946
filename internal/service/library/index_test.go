package library

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/swiftsaver/internal/adapter/filesystem"
	"github.com/vertextoedge/swiftsaver/internal/domain"
	"github.com/vertextoedge/swiftsaver/internal/port"
)

type staticFilter []string

func (f staticFilter) InProgressPaths() []string { return f }

// brokenFS fails every directory operation
type brokenFS struct {
	port.FileSystem
}

func (brokenFS) RootDir() string { return "/nowhere" }
func (brokenFS) MkdirAll(string) error { return errors.New("read-only") }
func (brokenFS) ReadDir(string) ([]port.DirEntry, error) { return nil, errors.New("read-only") }
func (brokenFS) DiskUsage() (*port.DiskUsage, error) { return nil, errors.New("no statfs") }
func (brokenFS) CopyFile(string, string) error { return errors.New("read-only") }
func (brokenFS) Stat(string) (*port.DirEntry, error) { return nil, os.ErrNotExist }
func (brokenFS) Exists(string) bool { return false }

func writeFile(t *testing.T, path string, size int, mtime time.Time) {
	t.Helper()
	if err := os.WriteFile(path, make([]byte, size), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

func newTestIndex(t *testing.T, filter InProgressFilter) (*Index, string) {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "SwiftSaver")
	fs, err := filesystem.NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	idx := New(&Config{Dir: dir, ShareDir: filepath.Join(root, "shared", "Download")}, fs, filter, zap.NewNop())
	return idx, dir
}

func TestIndex_ListMediaFiles(t *testing.T) {
	idx, dir := newTestIndex(t, nil)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	writeFile(t, filepath.Join(dir, "old_clip.mp4"), 10, base)
	writeFile(t, filepath.Join(dir, "new_song.MP3"), 20, base.Add(time.Hour))
	writeFile(t, filepath.Join(dir, "notes.txt"), 5, base)
	writeFile(t, filepath.Join(dir, "partial.mp4.downloading"), 7, base)
	active := filepath.Join(dir, "running.webm")
	writeFile(t, active, 3, base.Add(2*time.Hour))
	if err := os.Mkdir(filepath.Join(dir, "folder.mp4"), 0755); err != nil {
		t.Fatal(err)
	}
	idx.SetFilter(staticFilter{active})

	files := idx.ListMediaFiles(context.Background())
	if len(files) != 2 {
		t.Fatalf("ListMediaFiles() = %d files, want 2: %+v", len(files), files)
	}

	first, second := files[0], files[1]
	if first.Name != "new_song.MP3" || second.Name != "old_clip.mp4" {
		t.Errorf("order = [%s %s], want newest first", first.Name, second.Name)
	}
	if first.Type != domain.MediaTypeAudio || first.Format != "mp3" {
		t.Errorf("audio file = %+v", first)
	}
	if second.Type != domain.MediaTypeVideo || second.Title != "old clip" || second.Size != 10 {
		t.Errorf("video file = %+v", second)
	}
	if second.ID != second.Name || second.Path != filepath.Join(dir, "old_clip.mp4") {
		t.Errorf("identity fields = %+v", second)
	}
}

func TestIndex_ListMediaFiles_CreatesDir(t *testing.T) {
	idx, dir := newTestIndex(t, nil)
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}

	files := idx.ListMediaFiles(context.Background())
	if files == nil || len(files) != 0 {
		t.Errorf("ListMediaFiles() = %v, want empty slice", files)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("download dir not created: %v", err)
	}
}

func TestIndex_FailSoft(t *testing.T) {
	idx := New(&Config{Dir: "/nowhere"}, brokenFS{}, nil, zap.NewNop())

	if files := idx.ListMediaFiles(context.Background()); files == nil || len(files) != 0 {
		t.Errorf("ListMediaFiles() = %v, want empty slice", files)
	}
	if got := idx.StorageUsage(); got != (domain.StorageInfo{}) {
		t.Errorf("StorageUsage() = %+v, want zeros", got)
	}
	if idx.DeleteFile("/nowhere/a.mp4") {
		t.Error("DeleteFile() = true, want false")
	}
	if _, ok := idx.CopyToShareableLocation("/nowhere/a.mp4", ""); ok {
		t.Error("CopyToShareableLocation() ok = true, want false")
	}
	if idx.ClearAll() {
		t.Error("ClearAll() = true, want false")
	}
	if got := idx.FileSize("/nowhere/a.mp4"); got != 0 {
		t.Errorf("FileSize() = %d, want 0", got)
	}
}

func TestIndex_DeleteFile(t *testing.T) {
	idx, dir := newTestIndex(t, nil)
	path := filepath.Join(dir, "clip.mp4")
	writeFile(t, path, 4, time.Now())

	if !idx.DeleteFile(path) {
		t.Fatal("DeleteFile() = false, want true")
	}
	if idx.FileExists(path) {
		t.Error("file still exists after delete")
	}
	if idx.DeleteFile(path) {
		t.Error("DeleteFile() on missing file = true, want false")
	}
}

func TestIndex_StorageUsage(t *testing.T) {
	idx, dir := newTestIndex(t, nil)
	writeFile(t, filepath.Join(dir, "a.mp4"), 100, time.Now())
	writeFile(t, filepath.Join(dir, "b.txt"), 50, time.Now())

	got := idx.StorageUsage()
	if got.Used != 150 {
		t.Errorf("Used = %d, want 150", got.Used)
	}
	if got.Available <= 0 || got.Total < got.Available {
		t.Errorf("Available = %d, Total = %d", got.Available, got.Total)
	}
}

func TestIndex_CopyToShareableLocation(t *testing.T) {
	idx, dir := newTestIndex(t, nil)
	src := filepath.Join(dir, "clip.mp4")
	writeFile(t, src, 8, time.Now())

	tests := []struct {
		name      string
		suggested string
		wantBase  string
	}{
		{"default name", "", "clip.mp4"},
		{"suggested name", "holiday.mp4", "holiday.mp4"},
		{"path in name is flattened", "../../escape.mp4", "escape.mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst, ok := idx.CopyToShareableLocation(src, tt.suggested)
			if !ok {
				t.Fatal("CopyToShareableLocation() ok = false")
			}
			if filepath.Base(dst) != tt.wantBase || filepath.Dir(dst) != idx.config.ShareDir {
				t.Errorf("dst = %s, want %s in %s", dst, tt.wantBase, idx.config.ShareDir)
			}
			if got := idx.FileSize(dst); got != 8 {
				t.Errorf("copied size = %d, want 8", got)
			}
		})
	}

	if !idx.FileExists(src) {
		t.Error("source removed by copy")
	}
}

func TestIndex_RenameFile(t *testing.T) {
	idx, dir := newTestIndex(t, nil)
	src := filepath.Join(dir, "clip.mp4")
	writeFile(t, src, 8, time.Now())

	if _, ok := idx.RenameFile(src, "a/b"); ok {
		t.Error("RenameFile() with separator ok = true, want false")
	}

	dst, ok := idx.RenameFile(src, "My Clip")
	if !ok {
		t.Fatal("RenameFile() ok = false")
	}
	if dst != filepath.Join(dir, "My Clip.mp4") {
		t.Errorf("RenameFile() = %s", dst)
	}
	if idx.FileExists(src) || !idx.FileExists(dst) {
		t.Error("rename did not move the file")
	}
}

func TestIndex_ClearAll(t *testing.T) {
	idx, dir := newTestIndex(t, nil)
	active := filepath.Join(dir, "running.mp4")
	writeFile(t, filepath.Join(dir, "a.mp4"), 1, time.Now())
	writeFile(t, filepath.Join(dir, "b.mp3"), 1, time.Now())
	writeFile(t, active+".downloading", 1, time.Now())
	idx.SetFilter(staticFilter{active})

	if !idx.ClearAll() {
		t.Fatal("ClearAll() = false")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "running.mp4.downloading" {
		t.Errorf("remaining entries = %v, want only the running temp file", entries)
	}
}
