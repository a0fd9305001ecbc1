// Package watcher reports note changes inside a vault directory using fsnotify.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// VaultWatcher watches a vault recursively and calls back with vault-relative slash paths.
type VaultWatcher struct {
	root        string
	extensions  []string
	onChange    func(rel string)
	onRemove    func(rel string)
	debounce    time.Duration
	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
	logger      *zap.Logger
}

// Option configures a VaultWatcher.
type Option func(*VaultWatcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(w *VaultWatcher) { w.logger = l }
}

// WithDebounce sets how long a file must be quiet before onChange fires.
func WithDebounce(d time.Duration) Option {
	return func(w *VaultWatcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New creates a watcher for the vault at root. extensions filters notes (empty = all files).
func New(root string, extensions []string, onChange, onRemove func(rel string), opts ...Option) *VaultWatcher {
	w := &VaultWatcher{
		root:        filepath.Clean(root),
		extensions:  extensions,
		onChange:    onChange,
		onRemove:    onRemove,
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		done:        make(chan struct{}),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Root returns the vault directory.
func (w *VaultWatcher) Root() string { return w.root }

// Start begins watching. It runs until ctx is cancelled or Stop is called.
func (w *VaultWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := addTree(fw, w.root); err != nil {
		_ = fw.Close()
		return err
	}
	w.watcher = fw
	w.started = true
	w.logger.Debug("watcher starting", zap.String("root", w.root), zap.Strings("extensions", w.extensions))
	go w.run(ctx, fw)
	return nil
}

func (w *VaultWatcher) run(ctx context.Context, fw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handleEvent(fw, ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Debug("watcher error", zap.Error(err))
		}
	}
}

func (w *VaultWatcher) handleEvent(fw *fsnotify.Watcher, ev fsnotify.Event) {
	rel, ok := w.relative(ev.Name)
	if !ok || hidden(rel) {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", rel))

	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(ev.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			w.handleNewDirectory(fw, ev.Name)
			return
		}
		if matchExtension(ev.Name, w.extensions) {
			w.debounceChange(rel)
		}
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		// A rename reports the old name; the new name arrives as a Create.
		w.cancelDebounce(rel)
		if matchExtension(ev.Name, w.extensions) && w.onRemove != nil {
			w.onRemove(rel)
		}
	}
}

// handleNewDirectory watches a directory created or moved into the vault and reports its notes.
func (w *VaultWatcher) handleNewDirectory(fw *fsnotify.Watcher, dir string) {
	if err := addTree(fw, dir); err != nil {
		w.logger.Debug("watcher failed to add directory", zap.String("path", dir), zap.Error(err))
	}
	files, err := Scan(dir, w.extensions)
	if err != nil {
		return
	}
	prefix, _ := w.relative(dir)
	for _, f := range files {
		w.debounceChange(prefix + "/" + f)
	}
}

func (w *VaultWatcher) relative(path string) (string, bool) {
	rel, err := filepath.Rel(w.root, filepath.Clean(path))
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (w *VaultWatcher) debounceChange(rel string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[rel]; ok {
		t.Stop()
	}
	w.debounceMap[rel] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, rel)
		w.mu.Unlock()
		w.logger.Debug("watcher file changed (debounced)", zap.String("path", rel))
		if w.onChange != nil {
			w.onChange(rel)
		}
	})
}

func (w *VaultWatcher) cancelDebounce(rel string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[rel]; ok {
		t.Stop()
		delete(w.debounceMap, rel)
	}
}

// Stop stops the watcher and drops pending callbacks.
func (w *VaultWatcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	for rel, t := range w.debounceMap {
		t.Stop()
		delete(w.debounceMap, rel)
	}
	_ = w.watcher.Close()
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}

// Scan returns the vault-relative slash paths of the notes under root, skipping hidden
// entries such as .obsidian and .trash.
func Scan(root string, extensions []string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !matchExtension(path, extensions) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	return files, err
}

func addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}

func hidden(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

func matchExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}
