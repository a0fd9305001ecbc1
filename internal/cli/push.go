package cli

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/hyperjump/vaultsync/internal/models"
	"github.com/hyperjump/vaultsync/internal/watcher"
	"go.uber.org/zap"
)

// API is the part of the server client the pusher needs.
type API interface {
	ListFiles(ctx context.Context) ([]models.FileRecord, error)
	PutFile(ctx context.Context, file models.FileInput) (*models.SyncResponse, error)
	DeleteFile(ctx context.Context, file models.FileRecord) error
}

// PushReport summarizes a full push.
type PushReport struct {
	Uploaded   []string `json:"uploaded"`
	Unchanged  int      `json:"unchanged"`
	Deleted    []string `json:"deleted"`
	Failed     []string `json:"failed,omitempty"`
	Embeddings int      `json:"embeddings"`
}

// Pusher mirrors a local vault directory onto the server.
type Pusher struct {
	api        API
	root       string
	extensions []string
	force      bool
	logger     *zap.Logger
}

// PusherOption configures a Pusher.
type PusherOption func(*Pusher)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) PusherOption {
	return func(p *Pusher) { p.logger = l }
}

// WithForce uploads every note even when the server copy is current.
func WithForce(force bool) PusherOption {
	return func(p *Pusher) { p.force = force }
}

// NewPusher creates a pusher for the vault at root.
func NewPusher(api API, root string, extensions []string, opts ...PusherOption) *Pusher {
	p := &Pusher{
		api:        api,
		root:       filepath.Clean(root),
		extensions: extensions,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Push uploads new and modified notes and deletes server files missing locally.
// A failing note is reported and the push goes on.
func (p *Pusher) Push(ctx context.Context) (*PushReport, error) {
	local, err := watcher.Scan(p.root, p.extensions)
	if err != nil {
		return nil, fmt.Errorf("scan vault: %w", err)
	}
	remote, err := p.api.ListFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list server files: %w", err)
	}
	known := make(map[string]models.FileRecord, len(remote))
	for _, f := range remote {
		known[f.Path] = f
	}

	report := &PushReport{Uploaded: []string{}, Deleted: []string{}}
	present := make(map[string]bool, len(local))
	for _, rel := range local {
		present[rel] = true
		file, err := p.ReadNote(rel)
		if err != nil {
			p.logger.Warn("read note failed", zap.String("path", rel), zap.Error(err))
			report.Failed = append(report.Failed, rel)
			continue
		}
		if prev, ok := known[rel]; ok && !p.force && prev.Mtime == file.Mtime {
			report.Unchanged++
			continue
		}
		res, err := p.api.PutFile(ctx, file)
		if err != nil {
			p.logger.Warn("upload failed", zap.String("path", rel), zap.Error(err))
			report.Failed = append(report.Failed, rel)
			continue
		}
		report.Uploaded = append(report.Uploaded, rel)
		report.Embeddings += res.Embeddings
	}

	for _, f := range remote {
		if present[f.Path] {
			continue
		}
		if err := p.api.DeleteFile(ctx, f); err != nil {
			p.logger.Warn("delete failed", zap.String("path", f.Path), zap.Error(err))
			report.Failed = append(report.Failed, f.Path)
			continue
		}
		report.Deleted = append(report.Deleted, f.Path)
	}

	p.logger.Info("push finished",
		zap.Int("uploaded", len(report.Uploaded)),
		zap.Int("unchanged", report.Unchanged),
		zap.Int("deleted", len(report.Deleted)),
		zap.Int("failed", len(report.Failed)))
	return report, ctx.Err()
}

// PushFile uploads one note given its vault-relative slash path.
func (p *Pusher) PushFile(ctx context.Context, rel string) error {
	file, err := p.ReadNote(rel)
	if err != nil {
		return err
	}
	res, err := p.api.PutFile(ctx, file)
	if err != nil {
		return err
	}
	p.logger.Info("note uploaded", zap.String("path", rel), zap.Int("embeddings", res.Embeddings))
	return nil
}

// RemoveFile deletes one note from the server.
func (p *Pusher) RemoveFile(ctx context.Context, rel string) error {
	if err := p.api.DeleteFile(ctx, NoteRecord(rel, 0)); err != nil {
		return err
	}
	p.logger.Info("note deleted", zap.String("path", rel))
	return nil
}

// ReadNote loads a note from disk.
func (p *Pusher) ReadNote(rel string) (models.FileInput, error) {
	full := filepath.Join(p.root, filepath.FromSlash(rel))
	info, err := os.Stat(full)
	if err != nil {
		return models.FileInput{}, err
	}
	content, err := os.ReadFile(full)
	if err != nil {
		return models.FileInput{}, err
	}
	return models.FileInput{
		FileRecord: NoteRecord(rel, info.ModTime().UnixMilli()),
		Content:    string(content),
	}, nil
}

// NoteRecord builds the record of a note: the basename drops the extension and the type
// is the extension without its dot.
func NoteRecord(rel string, mtime int64) models.FileRecord {
	ext := path.Ext(rel)
	return models.FileRecord{
		Path:     rel,
		Basename: strings.TrimSuffix(path.Base(rel), ext),
		Mtime:    mtime,
		Type:     strings.TrimPrefix(ext, "."),
	}
}
