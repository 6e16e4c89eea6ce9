package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/albumgrab-go/internal/domain"
	"github.com/yourusername/albumgrab-go/internal/httpx"
	"github.com/yourusername/albumgrab-go/internal/infrastructure"
	"github.com/yourusername/albumgrab-go/internal/robots"
	"github.com/yourusername/albumgrab-go/internal/site"
)

func fastTestConfig(t *testing.T) *domain.Config {
	t.Helper()
	cfg := domain.DefaultConfig()
	cfg.Output.Dir = t.TempDir()
	cfg.Rate.MinDelay = time.Millisecond
	cfg.Rate.MaxDelay = 2 * time.Millisecond
	cfg.Download.RetryBackoff = time.Millisecond
	return cfg
}

func newTestOrchestrator(t *testing.T, cfg *domain.Config, respectRobots bool) *Orchestrator {
	t.Helper()
	client, err := httpx.New(httpx.Options{})
	require.NoError(t, err)
	registry := site.NewRegistry(client, cfg.Download.ChunkSize, nil)
	policy := robots.New(client, respectRobots, nil)
	o := NewOrchestrator(cfg, client, registry, policy, zap.NewNop())
	o.Headroom = func() (float64, float64) { return 0.5, 0.1 }
	return o
}

// albumServer serves an album page at /album listing the given file paths,
// and the files themselves.
func albumServer(t *testing.T, title string, files map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/album", func(w http.ResponseWriter, r *http.Request) {
		var sb strings.Builder
		fmt.Fprintf(&sb, "<html><head><title>%s</title></head><body>", title)
		for p := range files {
			fmt.Fprintf(&sb, `<a href="%s%s">link</a>`, srv.URL, p)
		}
		sb.WriteString("</body></html>")
		io.WriteString(w, sb.String())
	})
	for p, h := range files {
		mux.HandleFunc(p, h)
	}
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func serveBytes(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, body)
	}
}

func TestRunAlbum_DownloadsEverything(t *testing.T) {
	srv := albumServer(t, "Test Album", map[string]http.HandlerFunc{
		"/one.jpg": serveBytes("first-image-bytes"),
		"/two.mp4": serveBytes("second-video-bytes"),
	})

	cfg := fastTestConfig(t)
	o := newTestOrchestrator(t, cfg, false)

	stats, err := o.RunAlbum(context.Background(), domain.NewAlbumTask(srv.URL+"/album", ""))
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Found)
	assert.Equal(t, 2, stats.Downloaded)
	assert.Zero(t, stats.Failed)
	assert.Equal(t, int64(len("first-image-bytes")+len("second-video-bytes")), stats.Bytes)

	albumDir := filepath.Join(cfg.Output.Dir, "Test Album")
	data, err := os.ReadFile(filepath.Join(albumDir, "one.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "first-image-bytes", string(data))

	// Manifest lists both resource URLs.
	manifest, err := os.ReadFile(filepath.Join(albumDir, ManifestFileName))
	require.NoError(t, err)
	assert.Contains(t, string(manifest), srv.URL+"/one.jpg")
	assert.Contains(t, string(manifest), srv.URL+"/two.mp4")

	// Both settled in the ledger, no leftover .part files.
	ledger, err := infrastructure.OpenFileLedger(cfg.Output.Dir)
	require.NoError(t, err)
	defer ledger.Close()
	st, ok := ledger.Status(srv.URL + "/one.jpg")
	assert.True(t, ok)
	assert.Equal(t, domain.LedgerCompleted, st)

	entries, err := os.ReadDir(albumDir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".part"))
	}
}

func TestRunAlbum_SkipsSettledResources(t *testing.T) {
	var fetches int32
	srv := albumServer(t, "Test Album", map[string]http.HandlerFunc{
		"/done.jpg": func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&fetches, 1)
			io.WriteString(w, "x")
		},
		"/failed.jpg": func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&fetches, 1)
			io.WriteString(w, "x")
		},
		"/new.jpg": serveBytes("fresh"),
	})

	cfg := fastTestConfig(t)

	ledger, err := infrastructure.OpenFileLedger(cfg.Output.Dir)
	require.NoError(t, err)
	require.NoError(t, ledger.RecordCompleted(srv.URL+"/done.jpg"))
	require.NoError(t, ledger.RecordFailed(srv.URL+"/failed.jpg", "status 404"))
	require.NoError(t, ledger.Close())

	o := newTestOrchestrator(t, cfg, false)
	stats, err := o.RunAlbum(context.Background(), domain.NewAlbumTask(srv.URL+"/album", ""))
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Found)
	assert.Equal(t, 1, stats.SkippedDone)
	assert.Equal(t, 1, stats.SkippedFailed)
	assert.Equal(t, 1, stats.Downloaded)
	assert.Zero(t, atomic.LoadInt32(&fetches), "settled resources must not be fetched")
}

func TestRunAlbum_RetriesTransientFailure(t *testing.T) {
	var hits int32
	srv := albumServer(t, "Flaky", map[string]http.HandlerFunc{
		"/flaky.jpg": func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&hits, 1) == 1 {
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}
			io.WriteString(w, "eventually")
		},
	})

	cfg := fastTestConfig(t)
	o := newTestOrchestrator(t, cfg, false)

	stats, err := o.RunAlbum(context.Background(), domain.NewAlbumTask(srv.URL+"/album", ""))
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Downloaded)
	assert.Zero(t, stats.Failed)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestRunAlbum_PermanentFailureRecordedOnce(t *testing.T) {
	var hits int32
	srv := albumServer(t, "Gone", map[string]http.HandlerFunc{
		"/gone.jpg": func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&hits, 1)
			http.NotFound(w, r)
		},
	})

	cfg := fastTestConfig(t)
	o := newTestOrchestrator(t, cfg, false)

	stats, err := o.RunAlbum(context.Background(), domain.NewAlbumTask(srv.URL+"/album", ""))
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Failed)
	assert.Zero(t, stats.Downloaded)
	// 404 is permanent: exactly one attempt.
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	ledger, err := infrastructure.OpenFileLedger(cfg.Output.Dir)
	require.NoError(t, err)
	defer ledger.Close()
	st, ok := ledger.Status(srv.URL + "/gone.jpg")
	assert.True(t, ok)
	assert.Equal(t, domain.LedgerFailed, st)

	raw, err := os.ReadFile(filepath.Join(cfg.Output.Dir, infrastructure.LedgerFileName))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "status 404")
}

func TestRunAlbum_ConcurrentMode(t *testing.T) {
	files := map[string]http.HandlerFunc{}
	for i := 0; i < 8; i++ {
		files[fmt.Sprintf("/res%d.jpg", i)] = serveBytes("payload")
	}
	srv := albumServer(t, "Big Album", files)

	cfg := fastTestConfig(t)
	cfg.Download.Concurrent = true
	cfg.Download.MinWorkers = 2
	cfg.Download.MaxWorkers = 4
	cfg.Download.AdjustEvery = 2
	o := newTestOrchestrator(t, cfg, false)

	stats, err := o.RunAlbum(context.Background(), domain.NewAlbumTask(srv.URL+"/album", ""))
	require.NoError(t, err)
	assert.Equal(t, 8, stats.Downloaded)
	assert.Zero(t, stats.Failed)
}

func TestRunAlbum_RobotsDenied(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "User-agent: *\nDisallow: /album\n")
	})
	mux.HandleFunc("/album", func(w http.ResponseWriter, r *http.Request) {
		t.Error("album page fetched despite robots denial")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := fastTestConfig(t)
	o := newTestOrchestrator(t, cfg, true)

	_, err := o.RunAlbum(context.Background(), domain.NewAlbumTask(srv.URL+"/album", ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "robots.txt")
}

func TestRunAlbum_CancelledBeforeStart(t *testing.T) {
	srv := albumServer(t, "Never", map[string]http.HandlerFunc{
		"/a.jpg": serveBytes("x"),
	})

	cfg := fastTestConfig(t)
	o := newTestOrchestrator(t, cfg, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.RunAlbum(ctx, domain.NewAlbumTask(srv.URL+"/album", ""))
	require.Error(t, err)

	// Nothing settled: the resource stays eligible for the next run.
	ledger, lerr := infrastructure.OpenFileLedger(cfg.Output.Dir)
	require.NoError(t, lerr)
	defer ledger.Close()
	assert.Zero(t, ledger.Len())
}

func TestRunAlbum_PageFetchWaitsForGovernor(t *testing.T) {
	var (
		start        time.Time
		fetchedAfter time.Duration
	)
	mux := http.NewServeMux()
	mux.HandleFunc("/album", func(w http.ResponseWriter, r *http.Request) {
		fetchedAfter = time.Since(start)
		io.WriteString(w, `<html><head><title>Paced</title></head><body></body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := fastTestConfig(t)
	cfg.Rate.MinDelay = 60 * time.Millisecond
	cfg.Rate.MaxDelay = 60 * time.Millisecond
	o := newTestOrchestrator(t, cfg, false)

	start = time.Now()
	_, err := o.RunAlbum(context.Background(), domain.NewAlbumTask(srv.URL+"/album", ""))
	require.NoError(t, err)

	assert.GreaterOrEqual(t, fetchedAfter, 50*time.Millisecond,
		"album page fetch must wait on the rate governor")
}

func TestRunAlbum_CancelMidRun(t *testing.T) {
	started := make(chan struct{})
	srv := albumServer(t, "Interrupted", map[string]http.HandlerFunc{
		"/steady.jpg": serveBytes("steady-bytes"),
		"/stall.jpg": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			io.WriteString(w, "partial")
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
			close(started)
			<-r.Context().Done()
		},
	})

	cfg := fastTestConfig(t)
	o := newTestOrchestrator(t, cfg, false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-started
		cancel()
	}()

	stats, err := o.RunAlbum(ctx, domain.NewAlbumTask(srv.URL+"/album", ""))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	// The interrupted transfer leaves no partial file behind.
	albumDir := filepath.Join(cfg.Output.Dir, "Interrupted")
	entries, rerr := os.ReadDir(albumDir)
	require.NoError(t, rerr)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".part"),
			"partial file left behind: %s", e.Name())
	}

	// Only resources that reached a terminal state before the cancel are in
	// the ledger; the interrupted one stays eligible for the next run.
	ledger, lerr := infrastructure.OpenFileLedger(cfg.Output.Dir)
	require.NoError(t, lerr)
	defer ledger.Close()

	_, held := ledger.Status(srv.URL + "/stall.jpg")
	assert.False(t, held, "cancelled transfer must not settle in the ledger")
	assert.Equal(t, stats.Downloaded, ledger.Len())
	if stats.Downloaded == 1 {
		st, ok := ledger.Status(srv.URL + "/steady.jpg")
		require.True(t, ok)
		assert.Equal(t, domain.LedgerCompleted, st)
	}
}

// nilInfoAdapter resolves to no references, a nil info block, and a
// truncated-stream error, the loosest answer the adapter contract allows.
type nilInfoAdapter struct{}

func (nilInfoAdapter) Host() string { return "nilinfo.example" }
func (nilInfoAdapter) Resolve(_ context.Context, url string, _ func(domain.ResourceReference)) (*domain.AlbumInfo, error) {
	return nil, &domain.ExtractionError{URL: url, Err: io.ErrUnexpectedEOF}
}
func (nilInfoAdapter) DirectURL(_ context.Context, ref domain.ResourceReference) (string, error) {
	return ref.PageURL, nil
}
func (nilInfoAdapter) SuggestedFileName(domain.ResourceReference) string { return "" }

func TestRunAlbum_ToleratesNilAlbumInfo(t *testing.T) {
	cfg := fastTestConfig(t)
	client, err := httpx.New(httpx.Options{})
	require.NoError(t, err)
	registry := site.NewRegistry(client, 0, nil)
	registry.Register(nilInfoAdapter{})
	o := NewOrchestrator(cfg, client, registry, robots.New(client, false, nil), zap.NewNop())

	stats, err := o.RunAlbum(context.Background(), domain.NewAlbumTask("https://nilinfo.example/a/1", ""))
	require.NoError(t, err)
	assert.Zero(t, stats.Found)
}

func TestRunAlbum_ObserverSeesOutcomes(t *testing.T) {
	srv := albumServer(t, "Observed", map[string]http.HandlerFunc{
		"/ok.jpg": serveBytes("ok"),
		"/gone.jpg": func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		},
	})

	cfg := fastTestConfig(t)
	o := newTestOrchestrator(t, cfg, false)

	var outcomes []*domain.ResourceOutcome
	o.OnOutcome = func(out *domain.ResourceOutcome) { outcomes = append(outcomes, out) }

	task := domain.NewAlbumTask(srv.URL+"/album", "")
	_, err := o.RunAlbum(context.Background(), task)
	require.NoError(t, err)

	require.Len(t, outcomes, 2)
	byStatus := map[string]int{}
	for _, out := range outcomes {
		assert.Equal(t, task.ID, out.RunID)
		byStatus[out.Status]++
	}
	assert.Equal(t, 1, byStatus[OutcomeDownloaded])
	assert.Equal(t, 1, byStatus[OutcomeFailed])
}

func TestNameSet_SuffixesCollisions(t *testing.T) {
	names := newNameSet()
	assert.Equal(t, "pic.jpg", names.claim("pic.jpg"))
	assert.Equal(t, "pic_1.jpg", names.claim("pic.jpg"))
	assert.Equal(t, "pic_2.jpg", names.claim("pic.jpg"))
	assert.Equal(t, "other.jpg", names.claim("other.jpg"))
}

func TestFileNameFromURL(t *testing.T) {
	assert.Equal(t, "photo.jpg", fileNameFromURL("https://cdn.example.com/a/photo.jpg"))
	assert.Equal(t, "my photo.jpg", fileNameFromURL("https://cdn.example.com/my%20photo.jpg"))
	assert.Equal(t, "", fileNameFromURL("https://cdn.example.com/"))
}
