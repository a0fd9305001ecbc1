package vault

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hyperjump/vaultsync/internal/indexer"
	"github.com/hyperjump/vaultsync/internal/models"
	"go.uber.org/zap"
)

// Step names one action of a replace or remove run.
type Step string

const (
	StepDeleteEmbeddings Step = "delete-embeddings"
	StepDeleteFile       Step = "delete-file"
	StepAddEmbeddings    Step = "add-embeddings"
	StepAddFile          Step = "add-file"
)

// replaceSteps is the fixed order of a replace run.
var replaceSteps = []Step{StepDeleteEmbeddings, StepDeleteFile, StepAddEmbeddings, StepAddFile}

// removeSteps is the fixed order of a remove run.
var removeSteps = []Step{StepDeleteEmbeddings, StepDeleteFile}

// StepError reports the step at which a run stopped.
type StepError struct {
	RunID string
	Step  Step
	Path  string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Step, e.Path, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Outcome describes a run. Completed lists the steps that succeeded, in order.
type Outcome struct {
	RunID      string
	Path       string
	Completed  []Step
	Embeddings *indexer.AddResult
}

// Syncer runs the ordered multi-store operations on vault files.
type Syncer struct {
	files   *Files
	indexer *indexer.Indexer
	logger  *zap.Logger
}

// NewSyncer creates a syncer. logger may be nil.
func NewSyncer(files *Files, idx *indexer.Indexer, logger *zap.Logger) *Syncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{files: files, indexer: idx, logger: logger}
}

// WithIndexer returns a copy of s that uses idx for embedding work.
func (s *Syncer) WithIndexer(idx *indexer.Indexer) *Syncer {
	c := *s
	c.indexer = idx
	return &c
}

// Files returns the file manager.
func (s *Syncer) Files() *Files { return s.files }

// Indexer returns the indexer.
func (s *Syncer) Indexer() *indexer.Indexer { return s.indexer }

// Replace deletes the old embeddings and record of file, then embeds and stores the new
// version. The first failing step stops the run and is returned as a *StepError; between
// delete-file and add-file the file is absent from both stores.
func (s *Syncer) Replace(ctx context.Context, vaultKey string, file models.FileInput) (*Outcome, error) {
	return s.ReplaceFrom(ctx, vaultKey, file, StepDeleteEmbeddings)
}

// ReplaceFrom runs a replace starting at step, for resuming a run that failed there.
func (s *Syncer) ReplaceFrom(ctx context.Context, vaultKey string, file models.FileInput, from Step) (*Outcome, error) {
	steps, err := stepsFrom(replaceSteps, from)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, vaultKey, file, steps)
}

// Remove deletes the embeddings and then the record of file.
func (s *Syncer) Remove(ctx context.Context, vaultKey string, file models.FileRecord) (*Outcome, error) {
	return s.run(ctx, vaultKey, models.FileInput{FileRecord: file}, removeSteps)
}

// RemoveAll removes every file of the vault one at a time. The first failure stops the
// batch; files removed before it stay removed.
func (s *Syncer) RemoveAll(ctx context.Context, vaultKey string) (int, error) {
	files, err := s.files.GetFiles(ctx, vaultKey)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, f := range files {
		if _, err := s.Remove(ctx, vaultKey, f); err != nil {
			s.logger.Error("remove all stopped",
				zap.String("vault", vaultKey),
				zap.Int("removed", removed),
				zap.Int("remaining", len(files)-removed))
			return removed, err
		}
		removed++
	}
	s.logger.Info("vault cleared", zap.String("vault", vaultKey), zap.Int("removed", removed))
	return removed, nil
}

func (s *Syncer) run(ctx context.Context, vaultKey string, file models.FileInput, steps []Step) (*Outcome, error) {
	out := &Outcome{RunID: uuid.NewString(), Path: file.Path}
	log := s.logger.With(
		zap.String("run_id", out.RunID),
		zap.String("vault", vaultKey),
		zap.String("path", file.Path))

	for _, step := range steps {
		var err error
		switch step {
		case StepDeleteEmbeddings:
			err = s.indexer.DeleteEmbeddings(ctx, vaultKey, file.Record())
		case StepDeleteFile:
			err = s.files.DeleteFile(ctx, vaultKey, file.Record())
		case StepAddEmbeddings:
			out.Embeddings, err = s.indexer.AddEmbeddings(ctx, vaultKey, file)
		case StepAddFile:
			err = s.files.AddFile(ctx, vaultKey, file)
		}
		if err != nil {
			log.Error("sync step failed", zap.String("step", string(step)), zap.Error(err))
			return out, &StepError{RunID: out.RunID, Step: step, Path: file.Path, Err: err}
		}
		out.Completed = append(out.Completed, step)
		log.Debug("sync step done", zap.String("step", string(step)))
	}
	return out, nil
}

func stepsFrom(steps []Step, from Step) ([]Step, error) {
	for i, s := range steps {
		if s == from {
			return steps[i:], nil
		}
	}
	return nil, fmt.Errorf("unknown step: %q", from)
}

// ParseStep converts a step name to a Step.
func ParseStep(name string) (Step, error) {
	for _, s := range replaceSteps {
		if string(s) == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown step: %q", name)
}
