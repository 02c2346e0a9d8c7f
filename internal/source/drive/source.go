package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"docs_syncer/internal/domain"
)

const documentMimeType = "application/vnd.google-apps.document"

// ErrSourceUnavailable means the listing endpoint could not be reached
// or rejected our credentials; the desired-state snapshot cannot be trusted.
var ErrSourceUnavailable = errors.New("document source unavailable")

// ErrNotFound means the document no longer exists upstream.
var ErrNotFound = errors.New("document not found")

// ExportError is returned when a single document export comes back with
// a non-success status. The status code is kept for diagnostics.
type ExportError struct {
	ExternalID string
	StatusCode int
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s: unexpected status %d", e.ExternalID, e.StatusCode)
}

// Config holds document source configuration.
type Config struct {
	BaseURL        string
	Token          string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Source exports authored documents from the remote document-management API.
type Source struct {
	httpClient     *http.Client
	baseURL        string
	token          string
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger
}

// New creates a new document source.
func New(cfg Config, logger *slog.Logger) *Source {
	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:        cfg.BaseURL,
		token:          cfg.Token,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         logger.With("component", "drive_source"),
	}
}

// ListDocuments returns every live document in the folder. An empty
// folder yields an empty slice, not an error. Listing order carries no
// meaning. Failures wrap ErrSourceUnavailable.
func (s *Source) ListDocuments(ctx context.Context, folderID string) ([]domain.RemoteDocument, error) {
	var docs []domain.RemoteDocument
	pageToken := ""

	for {
		resp, err := s.listPage(ctx, folderID, pageToken)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
		}

		docs = append(docs, s.transform(resp.Files)...)

		s.logger.Debug("listed page",
			"folder", folderID,
			"files", len(resp.Files),
			"total", len(docs),
		)

		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	return docs, nil
}

// ExportDocument fetches one document's content as markup text.
func (s *Source) ExportDocument(ctx context.Context, externalID string) (string, error) {
	exportURL := fmt.Sprintf("%s/files/%s/export?mimeType=%s",
		s.baseURL, url.PathEscape(externalID), url.QueryEscape("text/markdown"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, exportURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	s.setHeaders(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("%w: %s", ErrNotFound, externalID)
	case resp.StatusCode != http.StatusOK:
		return "", &ExportError{ExternalID: externalID, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read export body: %w", err)
	}

	return string(body), nil
}

func (s *Source) listPage(ctx context.Context, folderID, pageToken string) (*ListResponse, error) {
	q := url.Values{}
	q.Set("q", fmt.Sprintf("'%s' in parents and mimeType = '%s' and trashed = false", folderID, documentMimeType))
	q.Set("fields", "nextPageToken, files(id, name, mimeType, modifiedTime, trashed)")
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}
	listURL := s.baseURL + "/files?" + q.Encode()

	var resp *ListResponse
	var err error

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		resp, err = s.doListRequest(ctx, listURL)
		if err == nil {
			return resp, nil
		}

		if attempt == s.maxAttempts {
			break
		}

		backoff := s.calculateBackoff(attempt)
		s.logger.Warn("list request failed, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("after %d attempts: %w", s.maxAttempts, err)
}

func (s *Source) doListRequest(ctx context.Context, listURL string) (*ListResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	s.setHeaders(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var listResp ListResponse
	if err := json.NewDecoder(resp.Body).Decode(&listResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &listResp, nil
}

func (s *Source) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "DocsSyncer/1.0")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
}

func (s *Source) calculateBackoff(attempt int) time.Duration {
	backoff := s.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > s.maxBackoff {
		backoff = s.maxBackoff
	}
	return backoff
}

func (s *Source) transform(files []File) []domain.RemoteDocument {
	docs := make([]domain.RemoteDocument, 0, len(files))

	for _, f := range files {
		if f.Trashed {
			continue
		}

		modified, err := time.Parse(time.RFC3339, f.ModifiedTime)
		if err != nil {
			s.logger.Warn("failed to parse modified time",
				"external_id", f.ID,
				"modified_time", f.ModifiedTime,
			)
			modified = time.Time{}
		}

		docs = append(docs, domain.RemoteDocument{
			ExternalID:   f.ID,
			Name:         f.Name,
			ModifiedTime: modified,
		})
	}

	return docs
}
