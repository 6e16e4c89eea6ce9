//go:build integration
// +build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/albumgrab-go/api"
	"github.com/yourusername/albumgrab-go/internal/app"
	"github.com/yourusername/albumgrab-go/internal/infrastructure"
)

func setupTestServer(t *testing.T, outDir string) *httptest.Server {
	t.Helper()

	repo, err := infrastructure.NewSQLiteRunRepository(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	cfg := fastConfig(outDir)
	cfg.Queue.CheckInterval = 20 * time.Millisecond

	orch := newOrchestrator(t, cfg)
	queue := app.NewTaskQueue(repo, orch, &cfg.Queue, zap.NewNop())
	require.NoError(t, queue.Start(context.Background()))
	t.Cleanup(func() { queue.Stop() })

	server := httptest.NewServer(api.SetupRouter(queue, zap.NewNop()))
	t.Cleanup(server.Close)
	return server
}

func TestAPI_AddAndProcessAlbum(t *testing.T) {
	outDir := t.TempDir()

	var baseURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/album", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><head><title>Via API</title></head><body>
			<a href="%s/files/pic.jpg">pic</a>
		</body></html>`, baseURL)
	})
	mux.HandleFunc("/files/pic.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pic-bytes"))
	})
	albumSrv := httptest.NewServer(mux)
	defer albumSrv.Close()
	baseURL = albumSrv.URL

	server := setupTestServer(t, outDir)

	payload := map[string]string{
		"url":        albumSrv.URL + "/album",
		"output_dir": outDir,
	}
	data, _ := json.Marshal(payload)

	resp, err := http.Post(server.URL+"/api/v1/albums", "application/json", bytes.NewBuffer(data))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var run map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
	runID, _ := run["id"].(string)
	require.NotEmpty(t, runID)
	assert.Equal(t, "queued", run["status"])

	// Wait for the queue to pick the run up and finish it.
	require.Eventually(t, func() bool {
		r, err := http.Get(server.URL + "/api/v1/albums/" + runID)
		if err != nil {
			return false
		}
		defer r.Body.Close()
		var got map[string]interface{}
		if json.NewDecoder(r.Body).Decode(&got) != nil {
			return false
		}
		return got["status"] == "completed"
	}, 5*time.Second, 50*time.Millisecond)

	// Per-resource outcomes were persisted.
	r, err := http.Get(server.URL + "/api/v1/albums/" + runID + "/outcomes")
	require.NoError(t, err)
	defer r.Body.Close()
	require.Equal(t, http.StatusOK, r.StatusCode)

	var outcomes []map[string]interface{}
	require.NoError(t, json.NewDecoder(r.Body).Decode(&outcomes))
	require.Len(t, outcomes, 1)
	assert.Equal(t, "downloaded", outcomes[0]["status"])
	assert.Equal(t, baseURL+"/files/pic.jpg", outcomes[0]["key"])
}

func TestAPI_ListAndStats(t *testing.T) {
	server := setupTestServer(t, t.TempDir())

	// Unroutable targets: the runs fail fast but still show up in listings.
	for _, url := range []string{"http://127.0.0.1:1/a/one", "http://127.0.0.1:1/a/two"} {
		payload, _ := json.Marshal(map[string]string{"url": url})
		resp, err := http.Post(server.URL+"/api/v1/albums", "application/json", bytes.NewBuffer(payload))
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, err := http.Get(server.URL + "/api/v1/albums")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var runs []map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&runs))
	assert.Len(t, runs, 2)

	statsResp, err := http.Get(server.URL + "/api/v1/albums/stats")
	require.NoError(t, err)
	defer statsResp.Body.Close()
	assert.Equal(t, http.StatusOK, statsResp.StatusCode)

	var stats map[string]interface{}
	require.NoError(t, json.NewDecoder(statsResp.Body).Decode(&stats))
	assert.Equal(t, float64(2), stats["total"])
}

func TestAPI_Validation(t *testing.T) {
	server := setupTestServer(t, t.TempDir())

	resp, err := http.Post(server.URL+"/api/v1/albums", "application/json", bytes.NewBufferString(`{}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	missing, err := http.Get(server.URL + "/api/v1/albums/no-such-run")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestAPI_Health(t *testing.T) {
	server := setupTestServer(t, t.TempDir())

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])

	ready, err := http.Get(server.URL + "/ready")
	require.NoError(t, err)
	ready.Body.Close()
	assert.Equal(t, http.StatusOK, ready.StatusCode)
}
