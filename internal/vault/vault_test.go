package vault

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/vaultsync/internal/embedding"
	"github.com/hyperjump/vaultsync/internal/indexer"
	"github.com/hyperjump/vaultsync/internal/models"
	"github.com/hyperjump/vaultsync/internal/storage"
	"github.com/hyperjump/vaultsync/internal/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	dims  = 8
	vault = "vault-a"
)

// failingFiles wraps a FileStore and rejects writes for selected paths.
type failingFiles struct {
	storage.FileStore
	failPut    map[string]bool
	failDelete map[string]bool
}

func (f *failingFiles) Put(ctx context.Context, vaultKey string, rec models.FileRecord) error {
	if f.failPut[rec.Path] {
		return errors.New("put rejected")
	}
	return f.FileStore.Put(ctx, vaultKey, rec)
}

func (f *failingFiles) Delete(ctx context.Context, vaultKey, path string) error {
	if f.failDelete[path] {
		return errors.New("delete rejected")
	}
	return f.FileStore.Delete(ctx, vaultKey, path)
}

type fixture struct {
	syncer   *Syncer
	files    *failingFiles
	embedder *embedding.MockEmbedder
	index    *vector.MemoryIndex
	ids      storage.IDStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "vaultsync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	mem, err := vector.NewMemoryIndex(dims)
	require.NoError(t, err)
	e := embedding.NewMockEmbedder(dims)
	ff := &failingFiles{FileStore: store.Files(), failPut: map[string]bool{}, failDelete: map[string]bool{}}
	idx := indexer.NewIndexer(e, mem, store.VectorIDs())
	return &fixture{
		syncer:   NewSyncer(NewFiles(ff, nil), idx, nil),
		files:    ff,
		embedder: e,
		index:    mem,
		ids:      store.VectorIDs(),
	}
}

func input(path, content string) models.FileInput {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return models.FileInput{
		FileRecord: models.FileRecord{Path: path, Basename: base, Mtime: 1700000000000, Type: "note"},
		Content:    content,
	}
}

const body = "intro\n# Heading\nsome text long enough to be kept as its own section\n# Tail\nlast words\n"

func TestFiles_AddGetDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	files := f.syncer.Files()

	require.NoError(t, files.AddFile(ctx, vault, input("a.md", "content is not stored")))
	got, err := files.GetFiles(ctx, vault)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.FileRecord{Path: "a.md", Basename: "a", Mtime: 1700000000000, Type: "note"}, got[0])

	require.NoError(t, files.DeleteFile(ctx, vault, got[0]))
	require.NoError(t, files.DeleteFile(ctx, vault, got[0]), "deleting twice is not an error")

	got, err = files.GetFiles(ctx, vault)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFiles_AddFileRequiresPath(t *testing.T) {
	f := newFixture(t)
	err := f.syncer.Files().AddFile(context.Background(), vault, input("", "x"))
	assert.Error(t, err)
}

func TestReplace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.syncer.Replace(ctx, vault, input("notes/a.md", body))
	require.NoError(t, err)
	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, replaceSteps, out.Completed)
	require.NotNil(t, out.Embeddings)
	assert.Equal(t, 3, len(out.Embeddings.Records))
	assert.Equal(t, 3, f.index.Size())

	files, err := f.syncer.Files().GetFiles(ctx, vault)
	require.NoError(t, err)
	assert.Len(t, files, 1)

	// A new version replaces the old vectors rather than adding to them.
	out, err = f.syncer.Replace(ctx, vault, input("notes/a.md", "just one line of text"))
	require.NoError(t, err)
	assert.Len(t, out.Embeddings.Records, 1)
	assert.Equal(t, 1, f.index.Size())
}

func TestReplace_embeddingFailureLeavesFileAbsent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.syncer.Replace(ctx, vault, input("a.md", body))
	require.NoError(t, err)

	f.embedder.FailWhen(func(string) bool { return true })
	out, err := f.syncer.Replace(ctx, vault, input("a.md", body+"\nmore"))
	require.Error(t, err)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, StepAddEmbeddings, stepErr.Step)
	assert.Equal(t, out.RunID, stepErr.RunID)
	assert.ErrorIs(t, err, indexer.ErrEmbeddingFailed)
	assert.Equal(t, []Step{StepDeleteEmbeddings, StepDeleteFile}, out.Completed)

	files, err := f.syncer.Files().GetFiles(ctx, vault)
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.Equal(t, 0, f.index.Size())
}

func TestReplace_deleteFileFailureStopsRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.syncer.Replace(ctx, vault, input("a.md", body))
	require.NoError(t, err)

	f.files.failDelete["a.md"] = true
	calls := f.embedder.Calls()
	out, err := f.syncer.Replace(ctx, vault, input("a.md", body))

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, StepDeleteFile, stepErr.Step)
	assert.Equal(t, []Step{StepDeleteEmbeddings}, out.Completed)
	assert.Equal(t, calls, f.embedder.Calls(), "later steps must not run")
	assert.Equal(t, 0, f.index.Size())
}

func TestReplace_addFileFailureKeepsEmbeddings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.files.failPut["a.md"] = true
	out, err := f.syncer.Replace(ctx, vault, input("a.md", body))

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, StepAddFile, stepErr.Step)
	assert.Contains(t, stepErr.Error(), "add-file a.md")
	assert.Equal(t, 3, f.index.Size())
	assert.NotNil(t, out.Embeddings)

	// Resuming at the failed step completes the run.
	delete(f.files.failPut, "a.md")
	out, err = f.syncer.ReplaceFrom(ctx, vault, input("a.md", body), stepErr.Step)
	require.NoError(t, err)
	assert.Equal(t, []Step{StepAddFile}, out.Completed)
	assert.Equal(t, 3, f.index.Size())

	files, err := f.syncer.Files().GetFiles(ctx, vault)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestReplaceFrom_unknownStep(t *testing.T) {
	f := newFixture(t)
	_, err := f.syncer.ReplaceFrom(context.Background(), vault, input("a.md", body), Step("rollback"))
	assert.Error(t, err)
}

func TestRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.syncer.Replace(ctx, vault, input("a.md", body))
	require.NoError(t, err)

	out, err := f.syncer.Remove(ctx, vault, input("a.md", "").Record())
	require.NoError(t, err)
	assert.Equal(t, removeSteps, out.Completed)
	assert.Equal(t, 0, f.index.Size())

	ids, err := f.ids.Get(ctx, indexer.VectorIDsKey(vault, "a.md"))
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	assert.Nil(t, ids)

	// Removing an unknown file succeeds.
	_, err = f.syncer.Remove(ctx, vault, input("missing.md", "").Record())
	assert.NoError(t, err)
}

func TestRemoveAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, p := range []string{"a.md", "b.md", "c.md"} {
		_, err := f.syncer.Replace(ctx, vault, input(p, body))
		require.NoError(t, err)
	}
	_, err := f.syncer.Replace(ctx, "vault-b", input("a.md", body))
	require.NoError(t, err)

	removed, err := f.syncer.RemoveAll(ctx, vault)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	files, err := f.syncer.Files().GetFiles(ctx, vault)
	require.NoError(t, err)
	assert.Empty(t, files)

	other, err := f.syncer.Files().GetFiles(ctx, "vault-b")
	require.NoError(t, err)
	assert.Len(t, other, 1, "other vaults are untouched")
	assert.Equal(t, 3, f.index.Size())
}

func TestRemoveAll_stopsAtFirstFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, p := range []string{"a.md", "b.md", "c.md"} {
		_, err := f.syncer.Replace(ctx, vault, input(p, body))
		require.NoError(t, err)
	}
	f.files.failDelete["b.md"] = true

	removed, err := f.syncer.RemoveAll(ctx, vault)
	require.Error(t, err)
	assert.Equal(t, 1, removed)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "b.md", stepErr.Path)
	assert.Equal(t, StepDeleteFile, stepErr.Step)

	files, err := f.syncer.Files().GetFiles(ctx, vault)
	require.NoError(t, err)
	paths := make([]string, 0, len(files))
	for _, rec := range files {
		paths = append(paths, rec.Path)
	}
	assert.Equal(t, []string{"b.md", "c.md"}, paths)
}

func TestParseStep(t *testing.T) {
	s, err := ParseStep("add-file")
	require.NoError(t, err)
	assert.Equal(t, StepAddFile, s)

	_, err = ParseStep("nope")
	assert.Error(t, err)
}

func TestWithIndexer(t *testing.T) {
	f := newFixture(t)
	other := f.syncer.Indexer().WithEmbedder(embedding.NewMockEmbedder(dims))
	s := f.syncer.WithIndexer(other)
	assert.Same(t, other, s.Indexer())
	assert.NotSame(t, other, f.syncer.Indexer())
	assert.Same(t, f.syncer.Files(), s.Files())
}
