package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/semester-planner/internal/clarify"
	"github.com/kingrea/semester-planner/internal/idgen"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(srv.URL, WithRequestIDs(idgen.Sequence("req-")))
	require.NoError(t, err)
	return client
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func TestStartSessionUploadsMultipartAndMapsClarifications(t *testing.T) {
	pdf := []byte("%PDF-1.4\n%test document\n")
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/upload", r.URL.Path)
		assert.Equal(t, "req-1", r.Header.Get(RequestIDHeader))

		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		assert.NoError(t, err)
		assert.Equal(t, pdf, data)
		assert.Equal(t, "syllabus.pdf", header.Filename)
		assert.Equal(t, "application/pdf", header.Header.Get("Content-Type"))

		writeJSON(w, http.StatusOK, map[string]any{
			"session_id": "sess-1",
			"clarifications": []map[string]any{
				{"type": "missing_info", "field": "credits", "question": "How many credits?"},
				{"field": "unit_2_importance", "question": "Is Unit 2 high priority?", "context": "Unit 2"},
			},
			"syllabus_data": map[string]any{"name": "Algorithms"},
		})
	})

	result, err := client.StartSession(context.Background(), File{Name: "/tmp/syllabus.pdf", Data: pdf})
	require.NoError(t, err)
	assert.Equal(t, "sess-1", result.SessionID)
	require.Len(t, result.Clarifications, 2)
	assert.Equal(t, clarify.Task{Field: "credits", Question: "How many credits?", Source: clarify.SourceBackend}, result.Clarifications[0])
	assert.Equal(t, "Unit 2", result.Clarifications[1].Context)
}

func TestStartSessionSurfacesDetailAsExtractionError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "unsupported format"})
	})

	_, err := client.StartSession(context.Background(), File{Name: "notes.txt", Data: []byte("hello")})
	require.ErrorIs(t, err, ErrExtraction)
	assert.Equal(t, "unsupported format", Message(err))

	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, http.StatusInternalServerError, gerr.Status)
}

func TestStartSessionWithoutDetailUsesDefaultMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]string{{"msg": "field required"}},
		})
	})

	_, err := client.StartSession(context.Background(), File{Name: "a.pdf", Data: []byte("%PDF-1.4")})
	require.ErrorIs(t, err, ErrExtraction)
	assert.Equal(t, "Failed to process syllabus.", Message(err))
}

func TestStartSessionTransportFailureIsTransferError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()
	client, err := NewClient(base)
	require.NoError(t, err)

	_, err = client.StartSession(context.Background(), File{Name: "a.pdf", Data: []byte("%PDF-1.4")})
	require.ErrorIs(t, err, ErrTransfer)
	assert.NotErrorIs(t, err, ErrExtraction)
	assert.Equal(t, "Could not reach the planner service.", Message(err))
}

func TestStartSessionMissingSessionIDIsTransferError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"clarifications": []any{}})
	})
	_, err := client.StartSession(context.Background(), File{Name: "a.pdf", Data: []byte("%PDF-1.4")})
	require.ErrorIs(t, err, ErrTransfer)
}

func TestFinalizeSessionPostsAnswersAndAcceptsNumericVersion(t *testing.T) {
	answers := map[string]string{"credits": "4", "difficulty": "yes"}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/refine", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body refineRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "sess-1", body.SessionID)
		assert.Equal(t, answers, body.Answers)
		writeJSON(w, http.StatusOK, map[string]any{"status": "success", "version": 3})
	})

	result, err := client.FinalizeSession(context.Background(), "sess-1", answers)
	require.NoError(t, err)
	assert.Equal(t, "3", result.Version)
}

func TestFinalizeSessionRejectionIsRefinementError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Session not found"})
	})

	_, err := client.FinalizeSession(context.Background(), "gone", map[string]string{"a": "b"})
	require.ErrorIs(t, err, ErrRefinement)
	assert.Equal(t, "Session not found", Message(err))
}

func TestFinalizeSessionPlainTextErrorBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	})
	_, err := client.FinalizeSession(context.Background(), "sess", nil)
	require.ErrorIs(t, err, ErrRefinement)
	assert.Equal(t, "Internal Server Error", Message(err))
}

func TestVersionUnmarshal(t *testing.T) {
	var resp refineResponse
	require.NoError(t, json.Unmarshal([]byte(`{"version":"v2"}`), &resp))
	assert.Equal(t, Version("v2"), resp.Version)
	require.NoError(t, json.Unmarshal([]byte(`{"version":12}`), &resp))
	assert.Equal(t, Version("12"), resp.Version)
	require.Error(t, json.Unmarshal([]byte(`{"version":{"x":1}}`), &resp))
}

func TestDownloadURLAndDownload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/download/v7":
			w.Header().Set("Content-Disposition", `attachment; filename="semester_plan_v7.xlsx"`)
			_, _ = w.Write([]byte("xlsx-bytes"))
		default:
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "File not found"})
		}
	})

	assert.Equal(t, client.BaseURL()+"/download/v7", client.DownloadURL("v7"))
	assert.Equal(t, client.BaseURL()+"/download/a%20b", client.DownloadURL("a b"))
	assert.Empty(t, client.DownloadURL(" "))

	var buf bytes.Buffer
	name, err := client.Download(context.Background(), "v7", &buf)
	require.NoError(t, err)
	assert.Equal(t, "semester_plan_v7.xlsx", name)
	assert.Equal(t, "xlsx-bytes", buf.String())

	_, err = client.Download(context.Background(), "v8", &buf)
	require.ErrorIs(t, err, ErrTransfer)
	assert.Equal(t, "File not found", Message(err))
}

func TestDownloadRejectsDotSegmentVersions(t *testing.T) {
	var hits int
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits++
		writeJSON(w, http.StatusOK, map[string]string{"status": "online"})
	})

	for _, version := range []string{".", "..", " .. "} {
		assert.Empty(t, client.DownloadURL(version), "version %q", version)
		var buf bytes.Buffer
		_, err := client.Download(context.Background(), version, &buf)
		require.ErrorIs(t, err, ErrTransfer, "version %q", version)
		assert.Contains(t, Message(err), "Invalid plan version")
		assert.Zero(t, buf.Len())
	}
	assert.Equal(t, client.BaseURL()+"/download/v..1", client.DownloadURL("v..1"))
	assert.Zero(t, hits, "no request reaches the service")
}

func TestSaveToWritesSuggestedName(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/download/v2" {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "File not found"})
			return
		}
		_, _ = w.Write([]byte("plan"))
	})
	dir := filepath.Join(t.TempDir(), "downloads")

	path, err := client.SaveTo(context.Background(), "v2", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "semester_plan_v2.xlsx"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "plan", string(data))

	_, err = client.SaveTo(context.Background(), "v3", dir)
	require.ErrorIs(t, err, ErrTransfer)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "failed downloads leave no files behind")
}

func TestHealth(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]string{"status": "online", "message": "Semester Planner API is active"})
	})
	h, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.True(t, h.Online())
}

func TestNewClientValidatesBaseURL(t *testing.T) {
	_, err := NewClient("")
	require.Error(t, err)
	_, err = NewClient("ftp://example.com")
	require.Error(t, err)
	c, err := NewClient("http://localhost:8000/api/")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/api/download/v1", c.DownloadURL("v1"))
}
