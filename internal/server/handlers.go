package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/hyperjump/vaultsync/internal/embedding"
	"github.com/hyperjump/vaultsync/internal/indexer"
	"github.com/hyperjump/vaultsync/internal/models"
	"github.com/hyperjump/vaultsync/internal/storage"
	"github.com/hyperjump/vaultsync/internal/vault"
	"go.uber.org/zap"
)

const maxBodyBytes = 16 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.syncer.Files().GetFiles(r.Context(), vaultKeyFrom(r.Context()))
	if err != nil {
		s.logger.Error("list files failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, models.FilesResponse{Data: files})
}

func (s *Server) handlePutFile(w http.ResponseWriter, r *http.Request) {
	var file models.FileInput
	if !s.decode(w, r, &file) {
		return
	}
	if file.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	from := vault.StepDeleteEmbeddings
	if name := r.URL.Query().Get("from"); name != "" {
		step, err := vault.ParseStep(name)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		from = step
	}

	vaultKey := vaultKeyFrom(r.Context())
	s.logger.Debug("put file request",
		zap.String("vault", vaultKey),
		zap.String("path", file.Path),
		zap.String("from", string(from)))
	out, err := s.syncerFor(r).ReplaceFrom(r.Context(), vaultKey, file, from)
	if err != nil {
		s.respondSyncError(w, err, 0)
		return
	}

	resp := models.SyncResponse{RunID: out.RunID}
	if out.Embeddings != nil {
		resp.Embeddings = len(out.Embeddings.Records)
		for _, f := range out.Embeddings.Failed() {
			resp.Failed = append(resp.Failed, f.ID)
		}
	}
	resp.Message = fmt.Sprintf("%d embeddings created.", resp.Embeddings)
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	var file models.FileRecord
	if !s.decode(w, r, &file) {
		return
	}
	if file.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	out, err := s.syncer.Remove(r.Context(), vaultKeyFrom(r.Context()), file)
	if err != nil {
		s.respondSyncError(w, err, 0)
		return
	}
	s.respondJSON(w, http.StatusOK, models.SyncResponse{Message: "File deleted.", RunID: out.RunID})
}

func (s *Server) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	removed, err := s.syncer.RemoveAll(r.Context(), vaultKeyFrom(r.Context()))
	if err != nil {
		s.respondSyncError(w, err, removed)
		return
	}
	s.respondJSON(w, http.StatusOK, models.SyncResponse{
		Message: fmt.Sprintf("%d files deleted.", removed),
		Removed: removed,
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var q models.Query
	if !s.decode(w, r, &q) {
		return
	}
	if err := q.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	idx := s.syncerFor(r).Indexer()
	vaultKey := vaultKeyFrom(r.Context())
	var (
		matches []models.ChunkMetadata
		err     error
	)
	if q.IsVector() {
		if d := idx.Embedder().Dimensions(); d > 0 && len(q.Vector) != d {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("vector must have %d dimensions", d))
			return
		}
		matches, err = idx.VectorMatches(r.Context(), vaultKey, q.Vector, q.Type, q.IsSection)
	} else {
		matches, err = idx.QueryMatches(r.Context(), vaultKey, q.Text, q.Type, q.IsSection)
	}
	if err != nil {
		s.logger.Error("query failed", zap.Error(err))
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, models.MatchesResponse{Data: matches})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vaultKey := vaultKeyFrom(ctx)
	files, err := s.syncer.Files().GetFiles(ctx, vaultKey)
	if err != nil {
		s.logger.Error("status: list files failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := models.StatusResponse{
		Files:          len(files),
		IndexType:      s.index.Type(),
		EmbeddingModel: s.syncer.Indexer().Embedder().Model(),
	}
	for _, f := range files {
		ids, err := s.syncer.Indexer().VectorIDs(ctx, vaultKey, f.Path)
		if err != nil {
			s.logger.Error("status: read vector ids failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.Vectors += len(ids)
	}

	st := s.config.Storage
	paths := []string{st.DatabasePath, st.BoltPath}
	if s.config.Vector.IndexType != "pgvector" {
		paths = append(paths, s.config.Vector.IndexPath)
	}
	if size, err := storage.DiskUsageBytes(paths...); err == nil {
		resp.DiskUsageBytes = size
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// syncerFor returns the syncer to use for r, embedding with the caller's own provider key
// when one is sent and the server allows it. Such requests bypass the query cache.
func (s *Server) syncerFor(r *http.Request) *vault.Syncer {
	key := r.Header.Get(HeaderOpenAIAPIKey)
	if key == "" || !s.config.Embedding.AllowClientKey {
		return s.syncer
	}
	idx := s.syncer.Indexer()
	return s.syncer.WithIndexer(idx.WithEmbedder(embedding.WithAPIKey(idx.Embedder(), key)))
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidQuery), errors.Is(err, models.ErrInvalidMetadata):
		return http.StatusBadRequest
	case errors.Is(err, indexer.ErrEmbeddingFailed), errors.Is(err, embedding.ErrEmptyEmbedding):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondSyncError(w http.ResponseWriter, err error, removed int) {
	var stepErr *vault.StepError
	if !errors.As(err, &stepErr) {
		s.logger.Error("sync failed", zap.Error(err))
		s.respondJSON(w, statusFor(err), models.ErrorResponse{Error: err.Error(), Removed: removed})
		return
	}
	s.logger.Error("sync failed",
		zap.String("run_id", stepErr.RunID),
		zap.String("step", string(stepErr.Step)),
		zap.String("path", stepErr.Path),
		zap.Error(stepErr.Err))
	s.respondJSON(w, statusFor(err), models.ErrorResponse{
		Error:   "failed to " + string(stepErr.Step),
		Step:    string(stepErr.Step),
		RunID:   stepErr.RunID,
		Removed: removed,
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, models.ErrorResponse{Error: message})
}
