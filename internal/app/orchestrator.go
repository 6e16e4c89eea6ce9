package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/albumgrab-go/internal/domain"
	"github.com/yourusername/albumgrab-go/internal/governor"
	"github.com/yourusername/albumgrab-go/internal/httpx"
	"github.com/yourusername/albumgrab-go/internal/infrastructure"
	"github.com/yourusername/albumgrab-go/internal/pool"
	"github.com/yourusername/albumgrab-go/internal/robots"
	"github.com/yourusername/albumgrab-go/internal/site"
)

// ManifestFileName lists every resource page URL found in an album, written
// next to the downloaded files.
const ManifestFileName = "url_list.txt"

// Per-resource outcome labels recorded through OnOutcome.
const (
	OutcomeDownloaded = "downloaded"
	OutcomeSkipped    = "skipped"
	OutcomeFailed     = "failed"
)

const fallbackAlbumName = "unknown_album"

// Orchestrator runs album tasks end to end: resolve the page into
// references, skip what the ledger already settled, and transfer the rest
// under the rate governor.
type Orchestrator struct {
	cfg      *domain.Config
	client   *httpx.Client
	registry *site.Registry
	robots   *robots.Policy
	gov      *governor.Governor
	logger   *zap.Logger

	// Headroom supplies host metrics to the worker controller. Defaults to
	// live system readings.
	Headroom pool.HeadroomFunc

	// OnOutcome, when set, observes every per-resource outcome. Server mode
	// uses it to persist run reports.
	OnOutcome func(outcome *domain.ResourceOutcome)
}

// NewOrchestrator creates an orchestrator from loaded configuration.
func NewOrchestrator(cfg *domain.Config, client *httpx.Client, registry *site.Registry, policy *robots.Policy, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:      cfg,
		client:   client,
		registry: registry,
		robots:   policy,
		gov:      governor.New(cfg.Rate.MinDelay, cfg.Rate.MaxDelay),
		logger:   logger.Named("orchestrator"),
		Headroom: pool.SystemHeadroom,
	}
}

// RunAlbum processes one album task and returns its stats. The returned
// error is non-nil only when the run as a whole could not proceed (page
// unreachable, robots denial, ledger failure, cancellation); individual
// resource failures are counted in the stats instead.
func (o *Orchestrator) RunAlbum(ctx context.Context, task domain.AlbumTask) (domain.TaskStats, error) {
	start := time.Now()
	stats := domain.TaskStats{}

	adapter := o.registry.ForURL(task.URL)
	o.logger.Info("starting album run",
		zap.String("task_id", task.ID),
		zap.String("url", task.URL),
		zap.String("site", adapter.Host()))

	if !o.robots.IsAllowed(ctx, task.URL) {
		return stats, fmt.Errorf("robots.txt disallows %s", task.URL)
	}

	outputRoot := task.OutputDir
	if outputRoot == "" {
		outputRoot = o.cfg.Output.Dir
	}

	ledger, err := infrastructure.OpenFileLedger(outputRoot)
	if err != nil {
		return stats, err
	}
	defer ledger.Close()

	if err := o.gov.Wait(ctx); err != nil {
		return stats, err
	}

	var refs []domain.ResourceReference
	info, err := adapter.Resolve(ctx, task.URL, func(ref domain.ResourceReference) {
		refs = append(refs, ref)
	})
	if err != nil {
		var xerr *domain.ExtractionError
		if !errors.As(err, &xerr) {
			return stats, err
		}
		// The stream broke mid-page; whatever was emitted is still worth
		// downloading.
		o.logger.Warn("album page truncated, continuing with partial listing",
			zap.String("url", task.URL),
			zap.Int("found", len(refs)),
			zap.Error(err))
	}
	stats.Found = len(refs)

	// Custom adapters may return nil info alongside an extraction error.
	albumName := fallbackAlbumName
	if info != nil && info.Name != "" {
		albumName = info.Name
	}
	if len(refs) == 0 {
		o.logger.Warn("no downloadable items found",
			zap.String("url", task.URL),
			zap.String("album", albumName))
		stats.Elapsed = time.Since(start)
		return stats, nil
	}

	albumDir := filepath.Join(outputRoot, albumName)
	if err := os.MkdirAll(albumDir, 0o755); err != nil {
		return stats, &domain.PersistenceError{Path: albumDir, Op: "mkdir", Err: err}
	}
	if err := writeManifest(albumDir, refs); err != nil {
		o.logger.Warn("could not write manifest", zap.Error(err))
	}

	var pending []domain.ResourceReference
	for _, ref := range refs {
		st, ok := ledger.Status(ref.Key())
		switch {
		case ok && st == domain.LedgerCompleted:
			stats.SkippedDone++
			o.observe(task.ID, ref.Key(), OutcomeSkipped, "", 0, "already downloaded")
		case ok && st == domain.LedgerFailed:
			stats.SkippedFailed++
			o.observe(task.ID, ref.Key(), OutcomeSkipped, "", 0, "previously failed")
		default:
			pending = append(pending, ref)
		}
	}

	o.logger.Info("album resolved",
		zap.String("album", albumName),
		zap.Int("found", stats.Found),
		zap.Int("pending", len(pending)),
		zap.Int("skipped", stats.SkippedDone+stats.SkippedFailed))

	names := newNameSet()
	var mu sync.Mutex

	process := func(ctx context.Context, ref domain.ResourceReference) (pool.Outcome, error) {
		res := o.transfer(ctx, adapter, ledger, albumDir, ref, names)

		mu.Lock()
		if res.err == nil {
			stats.Downloaded++
			stats.Bytes += res.bytes
		} else if res.fatal == nil {
			stats.Failed++
		}
		mu.Unlock()

		if res.fatal != nil {
			return pool.Outcome{}, res.fatal
		}
		if res.err == nil {
			o.observe(task.ID, ref.Key(), OutcomeDownloaded, res.fileName, res.bytes, "")
		} else {
			o.observe(task.ID, ref.Key(), OutcomeFailed, res.fileName, 0, failureReason(res.err))
		}
		return pool.Outcome{
			Err:      res.err != nil,
			Timeout:  isTimeoutFailure(res.err),
			Bytes:    res.bytes,
			Duration: res.dur,
		}, nil
	}

	if o.cfg.Download.Concurrent && o.cfg.Download.MaxWorkers > 1 {
		err = o.dispatchConcurrent(ctx, pending, process)
	} else {
		for _, ref := range pending {
			if _, perr := process(ctx, ref); perr != nil {
				err = perr
				break
			}
		}
	}

	stats.Elapsed = time.Since(start)
	o.logger.Info("album run finished",
		zap.String("album", albumName),
		zap.Int("downloaded", stats.Downloaded),
		zap.Int("failed", stats.Failed),
		zap.Int64("bytes", stats.Bytes),
		zap.Duration("elapsed", stats.Elapsed),
		zap.Error(err))
	return stats, err
}

func (o *Orchestrator) observe(runID, key, status, fileName string, bytes int64, reason string) {
	if o.OnOutcome == nil {
		return
	}
	o.OnOutcome(&domain.ResourceOutcome{
		RunID:    runID,
		Key:      key,
		Status:   status,
		FileName: fileName,
		Bytes:    bytes,
		Reason:   reason,
	})
}

// transferResult is the terminal state of one resource.
type transferResult struct {
	fileName string
	bytes    int64
	dur      time.Duration
	// err is the final per-resource failure, already retried. nil on
	// success.
	err error
	// fatal aborts the whole run: cancellation or a ledger write failure.
	// When set, no outcome was recorded for the resource.
	fatal error
}

// transfer downloads one resource with retries and records the terminal
// outcome in the ledger. Cancellation leaves no ledger record so the
// resource is retried on the next run.
func (o *Orchestrator) transfer(ctx context.Context, adapter domain.SiteAdapter, ledger domain.Ledger, dir string, ref domain.ResourceReference, names *nameSet) transferResult {
	start := time.Now()

	var (
		claimed string
		bytes   int64
		lastErr error
	)
	for attempt := 0; attempt <= o.cfg.Download.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := o.cfg.Download.RetryBackoff * time.Duration(attempt)
			o.logger.Info("retrying resource",
				zap.String("key", ref.Key()),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return transferResult{fileName: claimed, dur: time.Since(start), fatal: ctx.Err()}
			}
		}

		claimed, bytes, lastErr = o.attempt(ctx, adapter, ref, dir, names, claimed)
		if lastErr == nil {
			break
		}
		if ctx.Err() != nil {
			return transferResult{fileName: claimed, dur: time.Since(start), fatal: ctx.Err()}
		}
		if !domain.Transient(lastErr) {
			break
		}
	}

	res := transferResult{fileName: claimed, bytes: bytes, dur: time.Since(start), err: lastErr}
	if lastErr == nil {
		if err := ledger.RecordCompleted(ref.Key()); err != nil {
			res.fatal = err
		}
	} else {
		o.logger.Warn("resource failed",
			zap.String("key", ref.Key()),
			zap.Error(lastErr))
		if err := ledger.RecordFailed(ref.Key(), failureReason(lastErr)); err != nil {
			res.fatal = err
		}
	}
	return res
}

// attempt performs one resolve-and-download cycle. The file name is claimed
// on the first attempt that reaches response headers and reused by retries.
func (o *Orchestrator) attempt(ctx context.Context, adapter domain.SiteAdapter, ref domain.ResourceReference, dir string, names *nameSet, claimed string) (string, int64, error) {
	if err := o.gov.Wait(ctx); err != nil {
		return claimed, 0, err
	}
	direct, err := adapter.DirectURL(ctx, ref)
	if err != nil {
		return claimed, 0, err
	}

	if err := o.gov.Wait(ctx); err != nil {
		return claimed, 0, err
	}
	rsp, err := o.client.Get(ctx, direct)
	if err != nil {
		return claimed, 0, err
	}
	defer rsp.Body.Close()

	if claimed == "" {
		name := fileNameFromURL(direct)
		if name == "" {
			name = adapter.SuggestedFileName(ref)
		}
		if name == "" {
			name = "resource"
		}
		claimed = names.claim(name)
	}

	final := filepath.Join(dir, claimed)
	part := final + ".part"

	f, err := os.Create(part)
	if err != nil {
		return claimed, 0, &domain.PersistenceError{Path: part, Op: "create", Err: err}
	}

	n, err := io.Copy(f, rsp.Body)
	if err != nil {
		f.Close()
		os.Remove(part)
		// Mid-body stream failure counts as a fetch failure and is
		// retryable.
		return claimed, 0, &domain.FetchError{URL: direct, Timeout: isTimeoutErr(err), Err: err}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(part)
		return claimed, 0, &domain.PersistenceError{Path: part, Op: "sync", Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(part)
		return claimed, 0, &domain.PersistenceError{Path: part, Op: "close", Err: err}
	}
	if err := os.Rename(part, final); err != nil {
		os.Remove(part)
		return claimed, 0, &domain.PersistenceError{Path: final, Op: "rename", Err: err}
	}
	return claimed, n, nil
}

// writeManifest records every discovered page URL next to the files.
func writeManifest(dir string, refs []domain.ResourceReference) error {
	var sb strings.Builder
	for _, ref := range refs {
		sb.WriteString(ref.Key())
		sb.WriteByte('\n')
	}
	path := filepath.Join(dir, ManifestFileName)
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return &domain.PersistenceError{Path: path, Op: "write", Err: err}
	}
	return nil
}

// fileNameFromURL derives a file name from the direct URL's basename.
func fileNameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." || name == "" {
		return ""
	}
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	return site.SanitizeFileName(name)
}

func failureReason(err error) string {
	var fe *domain.FetchError
	if errors.As(err, &fe) && fe.Status != 0 {
		return fmt.Sprintf("status %d", fe.Status)
	}
	msg := err.Error()
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

func isTimeoutFailure(err error) bool {
	if err == nil {
		return false
	}
	var fe *domain.FetchError
	return errors.As(err, &fe) && fe.Timeout
}

func isTimeoutErr(err error) bool {
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

// nameSet hands out unique file names within one album, suffixing
// duplicates before the extension.
type nameSet struct {
	mu   sync.Mutex
	used map[string]struct{}
}

func newNameSet() *nameSet {
	return &nameSet{used: make(map[string]struct{})}
}

func (s *nameSet) claim(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.used[name]; !taken {
		s.used[name] = struct{}{}
		return name
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		cand := fmt.Sprintf("%s_%d%s", stem, i, ext)
		if _, taken := s.used[cand]; !taken {
			s.used[cand] = struct{}{}
			return cand
		}
	}
}
