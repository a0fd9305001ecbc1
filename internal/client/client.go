// Package client talks to a vaultsync server on behalf of a vault.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hyperjump/vaultsync/internal/models"
	"github.com/hyperjump/vaultsync/internal/server"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Body       models.ErrorResponse
}

func (e *APIError) Error() string {
	if e.Body.Step != "" {
		return fmt.Sprintf("server: status %d: %s (run %s)", e.StatusCode, e.Body.Error, e.Body.RunID)
	}
	return fmt.Sprintf("server: status %d: %s", e.StatusCode, e.Body.Error)
}

// Config holds the connection settings of a client.
type Config struct {
	ServerURL    string
	APIKey       string
	VaultKey     string
	OpenAIAPIKey string
	Timeout      time.Duration
}

// Client is an HTTP client for one vault.
type Client struct {
	http *http.Client
	cfg  Config
}

// New creates a client. ServerURL and VaultKey are required.
func New(cfg Config) (*Client, error) {
	if cfg.ServerURL == "" {
		return nil, errors.New("server url is required")
	}
	if cfg.VaultKey == "" {
		return nil, errors.New("vault key is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")
	return &Client{http: &http.Client{Timeout: cfg.Timeout}, cfg: cfg}, nil
}

// ListFiles returns the file records the server holds for the vault.
func (c *Client) ListFiles(ctx context.Context) ([]models.FileRecord, error) {
	var out models.FilesResponse
	if err := c.do(ctx, http.MethodGet, "/api/files", nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// PutFile uploads a file, replacing its previous version and embeddings.
func (c *Client) PutFile(ctx context.Context, file models.FileInput) (*models.SyncResponse, error) {
	var out models.SyncResponse
	if err := c.do(ctx, http.MethodPost, "/api/files", file, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteFile removes a file and its embeddings.
func (c *Client) DeleteFile(ctx context.Context, file models.FileRecord) error {
	return c.do(ctx, http.MethodDelete, "/api/files", file, nil)
}

// DeleteAll removes every file of the vault and returns how many were removed.
func (c *Client) DeleteAll(ctx context.Context) (int, error) {
	var out models.SyncResponse
	err := c.do(ctx, http.MethodDelete, "/api/files/all", nil, &out)
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Body.Removed, err
	}
	return out.Removed, err
}

// Query returns notes related to q.
func (c *Client) Query(ctx context.Context, q models.Query) ([]models.ChunkMetadata, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	var out models.MatchesResponse
	if err := c.do(ctx, http.MethodPost, "/related", q, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// Status returns the server state for the vault.
func (c *Client) Status(ctx context.Context) (*models.StatusResponse, error) {
	var out models.StatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.ServerURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(server.HeaderVaultKey, c.cfg.VaultKey)
	if c.cfg.APIKey != "" {
		req.Header.Set(server.HeaderAPIKey, c.cfg.APIKey)
	}
	if c.cfg.OpenAIAPIKey != "" {
		req.Header.Set(server.HeaderOpenAIAPIKey, c.cfg.OpenAIAPIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if json.Unmarshal(raw, &apiErr.Body) != nil || apiErr.Body.Error == "" {
			apiErr.Body.Error = strings.TrimSpace(string(raw))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
