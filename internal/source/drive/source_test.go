package drive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSource(baseURL string) *Source {
	return New(Config{
		BaseURL:        baseURL,
		Token:          "test-token",
		Timeout:        5 * time.Second,
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}, testLogger())
}

func TestListDocuments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Contains(t, r.URL.Query().Get("q"), "'folder-1' in parents")

		resp := ListResponse{Files: []File{
			{ID: "doc-1", Name: "First Doc", ModifiedTime: "2024-03-01T10:00:00Z"},
			{ID: "doc-2", Name: "Second Doc", ModifiedTime: "2024-03-02T11:30:00Z"},
			{ID: "doc-3", Name: "Binned", ModifiedTime: "2024-03-02T11:30:00Z", Trashed: true},
		}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	docs, err := newTestSource(srv.URL).ListDocuments(context.Background(), "folder-1")

	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "doc-1", docs[0].ExternalID)
	assert.Equal(t, "First Doc", docs[0].Name)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), docs[0].ModifiedTime)
}

func TestListDocuments_Paginated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := ListResponse{}
		if r.URL.Query().Get("pageToken") == "" {
			resp.Files = []File{{ID: "doc-1", Name: "One", ModifiedTime: "2024-03-01T10:00:00Z"}}
			resp.NextPageToken = "page-2"
		} else {
			resp.Files = []File{{ID: "doc-2", Name: "Two", ModifiedTime: "2024-03-01T10:00:00Z"}}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	docs, err := newTestSource(srv.URL).ListDocuments(context.Background(), "folder-1")

	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestListDocuments_EmptyFolder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ListResponse{})
	}))
	defer srv.Close()

	docs, err := newTestSource(srv.URL).ListDocuments(context.Background(), "folder-1")

	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestListDocuments_UnavailableAfterRetries(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestSource(srv.URL).ListDocuments(context.Background(), "folder-1")

	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.Equal(t, 3, calls)
}

func TestExportDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Path, "/files/doc-1/export"))
		_, _ = w.Write([]byte("# Heading\n\nbody text"))
	}))
	defer srv.Close()

	content, err := newTestSource(srv.URL).ExportDocument(context.Background(), "doc-1")

	require.NoError(t, err)
	assert.Equal(t, "# Heading\n\nbody text", content)
}

func TestExportDocument_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestSource(srv.URL).ExportDocument(context.Background(), "gone")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExportDocument_ExportErrorCarriesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestSource(srv.URL).ExportDocument(context.Background(), "doc-1")

	var exportErr *ExportError
	require.True(t, errors.As(err, &exportErr))
	assert.Equal(t, http.StatusBadGateway, exportErr.StatusCode)
	assert.Equal(t, "doc-1", exportErr.ExternalID)
}
