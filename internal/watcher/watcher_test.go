package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	changed []string
	removed []string
}

func (r *recorder) change(rel string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changed = append(r.changed, rel)
}

func (r *recorder) remove(rel string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, rel)
}

func (r *recorder) snapshot() (changed, removed []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.changed...), append([]string(nil), r.removed...)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func startWatcher(t *testing.T, dir string, rec *recorder) *VaultWatcher {
	t.Helper()
	w := New(dir, []string{".md"}, rec.change, rec.remove, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, w.Start(ctx))
	t.Cleanup(w.Stop)
	return w
}

func TestVaultWatcher_debouncesChanges(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))
	rec := &recorder{}
	startWatcher(t, dir, rec)

	path := filepath.Join(dir, "sub", "note.md")
	for i := 0; i < 3; i++ {
		writeFile(t, path, "draft")
	}
	writeFile(t, filepath.Join(dir, "image.png"), "x")

	assert.Eventually(t, func() bool {
		changed, _ := rec.snapshot()
		return len(changed) == 1
	}, 2*time.Second, 20*time.Millisecond)

	changed, _ := rec.snapshot()
	assert.Equal(t, []string{"sub/note.md"}, changed)
}

func TestVaultWatcher_reportsRemoval(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.md")
	writeFile(t, path, "bye")
	rec := &recorder{}
	startWatcher(t, dir, rec)

	require.NoError(t, os.Remove(path))
	assert.Eventually(t, func() bool {
		_, removed := rec.snapshot()
		return len(removed) == 1 && removed[0] == "gone.md"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestVaultWatcher_newDirectory(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatcher(t, dir, rec)

	staging := t.TempDir()
	writeFile(t, filepath.Join(staging, "folder", "a.md"), "a")
	writeFile(t, filepath.Join(staging, "folder", "deep", "b.md"), "b")
	require.NoError(t, os.Rename(filepath.Join(staging, "folder"), filepath.Join(dir, "folder")))

	assert.Eventually(t, func() bool {
		changed, _ := rec.snapshot()
		return len(changed) == 2
	}, 2*time.Second, 20*time.Millisecond)
	changed, _ := rec.snapshot()
	assert.ElementsMatch(t, []string{"folder/a.md", "folder/deep/b.md"}, changed)
}

func TestVaultWatcher_ignoresHidden(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".obsidian"), 0755))
	rec := &recorder{}
	startWatcher(t, dir, rec)

	writeFile(t, filepath.Join(dir, ".obsidian", "workspace.md"), "{}")
	writeFile(t, filepath.Join(dir, "visible.md"), "hi")

	assert.Eventually(t, func() bool {
		changed, _ := rec.snapshot()
		return len(changed) == 1
	}, 2*time.Second, 20*time.Millisecond)
	changed, _ := rec.snapshot()
	assert.Equal(t, []string{"visible.md"}, changed)
}

func TestVaultWatcher_startMissingRoot(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "missing"), nil, nil, nil)
	assert.Error(t, w.Start(context.Background()))
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.md"), "a")
	writeFile(t, filepath.Join(dir, "nested", "b.MD"), "b")
	writeFile(t, filepath.Join(dir, "nested", "c.txt"), "c")
	writeFile(t, filepath.Join(dir, ".trash", "d.md"), "d")

	files, err := Scan(dir, []string{".md"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md", "nested/b.MD"}, files)
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.md", []string{".md"}, true},
		{"/a/b.MD", []string{"md"}, true},
		{"/a/b.canvas", []string{".md"}, false},
		{"/a/b", nil, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchExtension(tt.path, tt.extensions), tt.path)
	}
}
