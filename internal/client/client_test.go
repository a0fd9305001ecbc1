package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/hyperjump/vaultsync/internal/config"
	"github.com/hyperjump/vaultsync/internal/embedding"
	"github.com/hyperjump/vaultsync/internal/indexer"
	"github.com/hyperjump/vaultsync/internal/models"
	"github.com/hyperjump/vaultsync/internal/server"
	"github.com/hyperjump/vaultsync/internal/storage"
	"github.com/hyperjump/vaultsync/internal/vault"
	"github.com/hyperjump/vaultsync/internal/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := storage.NewBoltStore(filepath.Join(t.TempDir(), "vaultsync.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	mem, err := vector.NewMemoryIndex(8)
	require.NoError(t, err)

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Server.APIKeys = []string{"k"}
	cfg.Vector.IndexType = "memory"

	idx := indexer.NewIndexer(embedding.NewMockEmbedder(8), mem, store.VectorIDs())
	syncer := vault.NewSyncer(vault.NewFiles(store.Files(), nil), idx, nil)
	srv := httptest.NewServer(server.NewServer(syncer, mem, cfg, nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestNew_requiresSettings(t *testing.T) {
	_, err := New(Config{VaultKey: "v"})
	assert.Error(t, err)
	_, err = New(Config{ServerURL: "http://localhost"})
	assert.Error(t, err)
}

func TestClient_roundTrip(t *testing.T) {
	srv := newServer(t)
	c, err := New(Config{ServerURL: srv.URL + "/", APIKey: "k", VaultKey: "vault"})
	require.NoError(t, err)
	ctx := context.Background()

	res, err := c.PutFile(ctx, models.FileInput{
		FileRecord: models.FileRecord{Path: "a.md", Basename: "a", Mtime: 1, Type: "note"},
		Content:    "# Title\nenough text in this note to make a section\n",
	})
	require.NoError(t, err)
	assert.Equal(t, "2 embeddings created.", res.Message)

	files, err := c.ListFiles(ctx)
	require.NoError(t, err)
	require.Len(t, files, 1)

	matches, err := c.Query(ctx, models.Query{Text: "title", IsSection: true})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Title", matches[0].Section.Heading)

	st, err := c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Files)
	assert.Equal(t, 2, st.Vectors)

	require.NoError(t, c.DeleteFile(ctx, files[0]))
	files, err = c.ListFiles(ctx)
	require.NoError(t, err)
	assert.Empty(t, files)

	_, err = c.PutFile(ctx, models.FileInput{FileRecord: models.FileRecord{Path: "b.md"}, Content: "b"})
	require.NoError(t, err)
	removed, err := c.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestClient_unauthorized(t *testing.T) {
	srv := newServer(t)
	c, err := New(Config{ServerURL: srv.URL, APIKey: "wrong", VaultKey: "vault"})
	require.NoError(t, err)

	_, err = c.ListFiles(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "unauthorized", apiErr.Body.Error)
}

func TestClient_headersAndStepErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "vault", r.Header.Get(server.HeaderVaultKey))
		assert.Equal(t, "sk-client", r.Header.Get(server.HeaderOpenAIAPIKey))
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"failed to add-embeddings","step":"add-embeddings","run_id":"r1"}`))
	}))
	defer srv.Close()

	c, err := New(Config{ServerURL: srv.URL, VaultKey: "vault", OpenAIAPIKey: "sk-client"})
	require.NoError(t, err)
	_, err = c.PutFile(context.Background(), models.FileInput{FileRecord: models.FileRecord{Path: "a.md"}})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "add-embeddings", apiErr.Body.Step)
	assert.Contains(t, err.Error(), "run r1")
}

func TestClient_queryValidatedLocally(t *testing.T) {
	c, err := New(Config{ServerURL: "http://127.0.0.1:1", VaultKey: "v"})
	require.NoError(t, err)
	_, err = c.Query(context.Background(), models.Query{})
	assert.ErrorIs(t, err, models.ErrInvalidQuery)
}
