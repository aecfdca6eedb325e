package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rohmanhakim/author-index/internal/build"
	"github.com/rohmanhakim/author-index/internal/extractor"
	"github.com/rohmanhakim/author-index/internal/fetcher"
	"github.com/rohmanhakim/author-index/internal/metadata"
	"github.com/rohmanhakim/author-index/internal/parser"
	"github.com/rohmanhakim/author-index/internal/storage"
	"github.com/rohmanhakim/author-index/pkg/failure"
	"github.com/rohmanhakim/author-index/pkg/retry"
	"github.com/rohmanhakim/author-index/pkg/uuidutil"
)

/*
Pipeline is the sole orchestrator of one sync run: discover -> fetch ->
parse -> extract -> store, in that fixed order, never skipping or
reordering a stage.

Per-URL failures (a blocked fetch, a parse panic, a storage error) are
caught, counted, and logged as pipeline_stage_error; the run continues
to the next URL. Only a failure at discover() aborts the whole run as
pipeline_run_error and sets RunLog.Status = FAILED.

export is deliberately not a stage here: sync and export are separate
CLI subcommands (spec.md §6), so Pipeline.Run never calls
internal/export.Export itself.
*/
type Pipeline struct {
	discover Discoverer
	fetch    FetchStage
	parse    ParseStage
	extract  ExtractStage
	store    Store
	sink     metadata.Sink
	now      func() time.Time

	retryParam retry.RetryParam
}

func New(discover Discoverer, fetch FetchStage, parse ParseStage, extract ExtractStage, store Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		discover: discover,
		fetch:    fetch,
		parse:    parse,
		extract:  extract,
		store:    store,
		sink:     metadata.NopSink{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one full sync pass for seed/sourceID under runID. dryRun
// skips every storage write (CreateRunLog/SaveFetchLog/UpsertArticle/
// UpdateRunLog all become no-ops) so the run can be exercised without a
// Store at all, matching the dry-run contract.
func (p *Pipeline) Run(ctx context.Context, seed, sourceID, runID string, dryRun bool) (storage.RunLog, error) {
	runLog := storage.RunLog{
		ID:        runID,
		SourceID:  sourceID,
		StartedAt: p.now(),
		Status:    storage.RunStatusRunning,
	}
	if !dryRun && p.store != nil {
		if err := p.store.CreateRunLog(ctx, runLog); err != nil {
			p.recordRunError("create_run_log", err, runID)
		}
	}

	urls, err := p.discover.Discover(ctx, seed, runID)
	if err != nil {
		runLog.Status = storage.RunStatusFailed
		runLog.ErrorMessage = err.Error()
		end := p.now()
		runLog.EndedAt = &end
		p.recordRunError("run", err, runID)
		if !dryRun && p.store != nil {
			_ = p.store.UpdateRunLog(ctx, runLog)
		}
		return runLog, &RunError{Stage: "run", Message: err.Error()}
	}

	for _, url := range urls {
		if ctx.Err() != nil {
			runLog.Status = storage.RunStatusCancelled
			break
		}
		p.processURL(ctx, url, runID, dryRun, &runLog)
	}

	if runLog.Status == storage.RunStatusRunning {
		runLog.Status = storage.RunStatusCompleted
	}
	end := p.now()
	runLog.EndedAt = &end
	if !dryRun && p.store != nil {
		if err := p.store.UpdateRunLog(ctx, runLog); err != nil {
			p.recordRunError("update_run_log", err, runID)
		}
	}
	return runLog, nil
}

func (p *Pipeline) processURL(ctx context.Context, url, runID string, dryRun bool, runLog *storage.RunLog) {
	result, fetchLog := p.fetchWithRetry(ctx, runID, url)
	runLog.FetchedCount++
	if !dryRun && p.store != nil {
		if err := p.store.SaveFetchLog(ctx, toStorageFetchLog(fetchLog)); err != nil {
			p.recordStageError("fetch_log", err, runID)
		}
	}
	if result == nil {
		// Policy refusal or network failure: FetchLog.ErrorCode already
		// captures why, this is expected and not a stage defect, but it
		// still stops this URL from reaching parse/extract/store.
		runLog.ErrorCount++
		return
	}

	var doc parser.Document
	if err := callStage(func() error {
		doc = p.parse.Parse(result.Body, result.Headers["content-type"], result.FinalURL)
		return nil
	}); err != nil {
		p.recordStageError("parse", err, runID)
		runLog.ErrorCount++
		return
	}

	var draft extractor.ArticleDraft
	var evidence []extractor.Evidence
	if err := callStage(func() error {
		draft, evidence = p.extract.Extract(doc, runID)
		return nil
	}); err != nil {
		p.recordStageError("extract", err, runID)
		runLog.ErrorCount++
		return
	}

	if dryRun || p.store == nil {
		return
	}

	storedEvidence := toStorageEvidence(evidence, p.now())
	var created, updated bool
	if err := callStage(func() error {
		var storeErr error
		_, created, updated, storeErr = p.store.UpsertArticle(ctx, toStorageDraft(draft), storedEvidence, runID)
		return storeErr
	}); err != nil {
		p.recordStageError("store", err, runID)
		runLog.ErrorCount++
		return
	}
	if created {
		runLog.NewArticlesCount++
	}
	if updated {
		runLog.UpdatedArticlesCount++
	}
}

func toStorageDraft(d extractor.ArticleDraft) storage.ArticleDraft {
	return storage.ArticleDraft{
		CanonicalURL: d.CanonicalURL,
		SourceID:     d.SourceID,
		Title:        d.Title,
		AuthorHint:   d.AuthorHint,
		PublishedAt:  d.PublishedAt,
		Snippet:      d.Snippet,
	}
}

func toStorageEvidence(items []extractor.Evidence, retrievedAt time.Time) []storage.Evidence {
	out := make([]storage.Evidence, 0, len(items))
	for _, ev := range items {
		id := ev.ID
		if id == "" {
			id = uuidutil.NewV4()
		}
		out = append(out, storage.Evidence{
			ID:               id,
			ArticleID:        ev.ArticleID,
			ClaimPath:        ev.ClaimPath,
			EvidenceType:     storage.EvidenceType(ev.EvidenceType),
			SourceURL:        ev.SourceURL,
			ExtractionMethod: ev.ExtractionMethod,
			ExtractedText:    ev.ExtractedText,
			Confidence:       ev.Confidence,
			Metadata:         ev.Metadata,
			RetrievedAt:      retrievedAt,
			ExtractorVersion: build.FullVersion(),
			RunID:            ev.RunID,
			CreatedAt:        ev.CreatedAt,
		})
	}
	return out
}

// fetchOutcome bundles one fetch attempt's result pair so retry.Retry,
// which is generic over a single return value, can carry both through.
type fetchOutcome struct {
	result *fetcher.Result
	log    fetcher.Log
}

// transientFetchError marks a fetch attempt retryable. Only ErrCodeTimeout
// and ErrCodeFetchError are transient transport failures; every other
// fetcher.ErrorCode (blocked by robots, SSRF-blocked, body too large,
// redirect limit) is a policy or content decision that retrying cannot
// change.
type transientFetchError struct {
	code fetcher.ErrorCode
}

func (e *transientFetchError) Error() string {
	return fmt.Sprintf("transient fetch error: %s", e.code)
}

func (e *transientFetchError) Severity() failure.Severity { return failure.SeverityRecoverable }
func (e *transientFetchError) IsRetryable() bool          { return true }

func isTransientFetchCode(code fetcher.ErrorCode) bool {
	return code == fetcher.ErrCodeTimeout || code == fetcher.ErrCodeFetchError
}

// fetchWithRetry calls FetchStage.Fetch once when no retry policy is
// configured (the zero-value retry.RetryParam, MaxAttempts == 0), and
// through retry.Retry otherwise, retrying only transient transport
// failures up to RetryParam.MaxAttempts times with backoff+jitter between
// attempts.
func (p *Pipeline) fetchWithRetry(ctx context.Context, runID, url string) (*fetcher.Result, fetcher.Log) {
	var last fetchOutcome
	attempt := func() (fetchOutcome, failure.ClassifiedError) {
		result, log := p.fetch.Fetch(ctx, runID, url)
		last = fetchOutcome{result: result, log: log}
		if result == nil && isTransientFetchCode(log.ErrorCode) {
			return last, &transientFetchError{code: log.ErrorCode}
		}
		return last, nil
	}

	if p.retryParam.MaxAttempts <= 1 {
		attempt()
		return last.result, last.log
	}

	res := retry.Retry(p.retryParam, attempt)
	if res.IsFailure() {
		return last.result, last.log
	}
	return res.Value().result, res.Value().log
}

func toStorageFetchLog(l fetcher.Log) storage.FetchLog {
	var statusCode *int
	if l.StatusCode != 0 {
		sc := l.StatusCode
		statusCode = &sc
	}
	var bytesReceived *int64
	if l.BytesReceived > 0 {
		br := l.BytesReceived
		bytesReceived = &br
	}
	return storage.FetchLog{
		ID:            uuidutil.NewV4(),
		URL:           l.URL,
		StatusCode:    statusCode,
		LatencyMS:     l.LatencyMs,
		BytesReceived: bytesReceived,
		ErrorCode:     string(l.ErrorCode),
		CreatedAt:     l.FetchedAt,
		RunID:         l.RunID,
	}
}

func (p *Pipeline) recordStageError(stage string, err error, runID string) {
	p.sink.RecordEvent(metadata.EventPipelineStageErr, &runID, map[string]any{
		string(metadata.AttrStage): stage,
		"error_type":               errorTypeName(err),
		string(metadata.AttrMessage): err.Error(),
	})
}

func (p *Pipeline) recordRunError(stage string, err error, runID string) {
	p.sink.RecordEvent(metadata.EventPipelineRunErr, &runID, map[string]any{
		string(metadata.AttrStage): stage,
		"error_type":               errorTypeName(err),
		string(metadata.AttrMessage): err.Error(),
	})
}

// errorTypeName approximates Python's exception-class-name convention
// (ValueError, RuntimeError, ...) well enough for the structured event
// stream: the Go type name of the innermost error value.
func errorTypeName(err error) string {
	switch err.(type) {
	case *RunError:
		return "RunError"
	default:
		return "error"
	}
}
