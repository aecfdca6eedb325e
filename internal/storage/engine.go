package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rohmanhakim/author-index/internal/canonical"
	"github.com/rohmanhakim/author-index/internal/metadata"
	"github.com/rohmanhakim/author-index/pkg/hashutil"
	"github.com/rohmanhakim/author-index/pkg/uuidutil"
)

/*
Engine

Wraps a *sql.DB behind the storage operations this repo needs: article
upsert with content-hash versioning, fetch/run logging, transactional
rollback of one run's writes, and deterministic per-source author
grouping for manual review. Every multi-statement operation runs inside
one *sql.Tx; nothing here is safe to call concurrently against the same
row without the caller serializing through the politeness/pipeline layer
(SQLite itself serializes writers at the connection level).
*/

type Engine struct {
	db   *sql.DB
	now  func() time.Time
	sink metadata.Sink
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithClock overrides the time source used for created_at/updated_at
// stamps. Tests supply a fixed clock for determinism.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithSink wires a metadata.Sink that receives one storage_error event per
// failed operation, observational only per the ErrorCause contract.
func WithSink(sink metadata.Sink) Option {
	return func(e *Engine) { e.sink = sink }
}

func (e *Engine) recordError(runID string, err *StorageError) {
	if e.sink == nil || err == nil {
		return
	}
	var runIDPtr *string
	if runID != "" {
		runIDPtr = &runID
	}
	e.sink.RecordEvent("storage_error", runIDPtr, map[string]any{
		string(metadata.AttrCause):   mapStorageErrorToMetadataCause(err).String(),
		string(metadata.AttrMessage): err.Message,
		"article_id":                err.ArticleID,
	})
}

// Open creates (or reuses) a SQLite database at dbPath and applies the
// startup schema.
func Open(dbPath string, opts ...Option) (*Engine, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, &StorageError{Message: err.Error(), Retryable: false, Cause: ErrCauseSchemaInit}
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, &StorageError{Message: err.Error(), Retryable: false, Cause: ErrCauseSchemaInit}
	}

	e := &Engine{db: db, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.initializeSchema(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) Close() error {
	return e.db.Close()
}

func (e *Engine) initializeSchema() error {
	if _, err := e.db.Exec(schemaSQL); err != nil {
		return &StorageError{Message: err.Error(), Retryable: false, Cause: ErrCauseSchemaInit}
	}
	exec := func(query string, args ...any) error {
		_, err := e.db.Exec(query, args...)
		return err
	}
	columnExists := func(table, column string) (bool, error) {
		rows, err := e.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
		if err != nil {
			return false, err
		}
		defer rows.Close()
		for rows.Next() {
			var cid int
			var name, colType string
			var notNull, pk int
			var dflt sql.NullString
			if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
				return false, err
			}
			if name == column {
				return true, nil
			}
		}
		return false, rows.Err()
	}
	if err := ensureAdditiveColumns(exec, columnExists); err != nil {
		return &StorageError{Message: err.Error(), Retryable: false, Cause: ErrCauseSchemaInit}
	}
	return nil
}

// UpsertArticle canonicalizes the URL, computes the versioning content
// hash, and inserts or conditionally version-bumps the article in one
// transaction. Returns (article, created, updated).
func (e *Engine) UpsertArticle(ctx context.Context, draft ArticleDraft, evidenceList []Evidence, runID string) (article Article, created, updated bool, err error) {
	defer func() {
		if storageErr, ok := err.(*StorageError); ok {
			e.recordError(runID, storageErr)
		}
	}()

	canonicalURL := canonical.Canonicalize(draft.CanonicalURL)
	contentHash := hashArticleFields(draft)
	now := e.now()

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return Article{}, false, false, &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseTxFailure}
	}
	defer tx.Rollback()

	var existingID string
	var existingVersion int
	err = tx.QueryRowContext(ctx,
		`SELECT id, version FROM articles WHERE canonical_url = ? AND source_id = ?`,
		canonicalURL, draft.SourceID,
	).Scan(&existingID, &existingVersion)

	var articleID string
	created, updated = false, false

	switch {
	case err == sql.ErrNoRows:
		articleID = uuidutil.NewV4()
		persisted := rewriteEvidence(evidenceList, articleID, runID)

		if err := insertArticle(ctx, tx, articleID, canonicalURL, draft, 1, now); err != nil {
			return Article{}, false, false, err
		}
		if err := insertVersion(ctx, tx, articleID, 1, contentHash, draft, persisted, now, runID); err != nil {
			return Article{}, false, false, err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM evidence WHERE article_id = ?`, articleID); err != nil {
			return Article{}, false, false, &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure, ArticleID: articleID}
		}
		for _, item := range persisted {
			if err := insertEvidenceRow(ctx, tx, item); err != nil {
				return Article{}, false, false, err
			}
		}
		created = true

	case err != nil:
		return Article{}, false, false, &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure}

	default:
		articleID = existingID
		var latestHash sql.NullString
		err = tx.QueryRowContext(ctx,
			`SELECT content_hash FROM versions WHERE article_id = ? ORDER BY version DESC LIMIT 1`,
			articleID,
		).Scan(&latestHash)
		if err != nil && err != sql.ErrNoRows {
			return Article{}, false, false, &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure, ArticleID: articleID}
		}

		if latestHash.Valid && latestHash.String == contentHash {
			break
		}

		newVersion := existingVersion + 1
		persisted := rewriteEvidence(evidenceList, articleID, runID)

		if err := updateArticle(ctx, tx, articleID, draft, newVersion, now); err != nil {
			return Article{}, false, false, err
		}
		if err := insertVersion(ctx, tx, articleID, newVersion, contentHash, draft, persisted, now, runID); err != nil {
			return Article{}, false, false, err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM evidence WHERE article_id = ?`, articleID); err != nil {
			return Article{}, false, false, &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure, ArticleID: articleID}
		}
		for _, item := range persisted {
			if err := insertEvidenceRow(ctx, tx, item); err != nil {
				return Article{}, false, false, err
			}
		}
		updated = true
	}

	article, err = loadArticle(ctx, tx, articleID)
	if err != nil {
		return Article{}, false, false, err
	}

	if err := tx.Commit(); err != nil {
		return Article{}, false, false, &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseTxFailure, ArticleID: articleID}
	}
	return article, created, updated, nil
}

func rewriteEvidence(evidenceList []Evidence, articleID, runID string) []Evidence {
	out := make([]Evidence, len(evidenceList))
	for i, item := range evidenceList {
		item.ArticleID = articleID
		item.RunID = runID
		out[i] = item
	}
	return out
}

func insertArticle(ctx context.Context, tx *sql.Tx, articleID, canonicalURL string, draft ArticleDraft, version int, now time.Time) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO articles (id, canonical_url, source_id, title, author_hint, published_at, snippet, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		articleID, canonicalURL, draft.SourceID, nullableString(draft.Title), nullableString(draft.AuthorHint),
		nullableTime(draft.PublishedAt), nullableString(draft.Snippet), version, now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure, ArticleID: articleID}
	}
	return nil
}

func updateArticle(ctx context.Context, tx *sql.Tx, articleID string, draft ArticleDraft, version int, now time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE articles SET title = ?, author_hint = ?, published_at = ?, snippet = ?, version = ?, updated_at = ? WHERE id = ?`,
		nullableString(draft.Title), nullableString(draft.AuthorHint), nullableTime(draft.PublishedAt),
		nullableString(draft.Snippet), version, now.Format(time.RFC3339Nano), articleID,
	)
	if err != nil {
		return &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure, ArticleID: articleID}
	}
	return nil
}

func insertVersion(ctx context.Context, tx *sql.Tx, articleID string, version int, contentHash string, draft ArticleDraft, evidenceList []Evidence, now time.Time, runID string) error {
	snapshot, err := serializeEvidenceSnapshot(evidenceList)
	if err != nil {
		return &StorageError{Message: err.Error(), Retryable: false, Cause: ErrCauseSerializationError, ArticleID: articleID}
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO versions (id, article_id, version, content_hash, title_snapshot, author_hint_snapshot,
			published_at_snapshot, snippet_snapshot, evidence_snapshot, created_at, run_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuidutil.NewV4(), articleID, version, contentHash, nullableString(draft.Title), nullableString(draft.AuthorHint),
		nullableTime(draft.PublishedAt), nullableString(draft.Snippet), snapshot, now.Format(time.RFC3339Nano), runID,
	)
	if err != nil {
		return &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure, ArticleID: articleID}
	}
	return nil
}

func insertEvidenceRow(ctx context.Context, tx *sql.Tx, item Evidence) error {
	metadataJSON, err := canonicalJSON(item.Metadata)
	if err != nil {
		return &StorageError{Message: err.Error(), Retryable: false, Cause: ErrCauseSerializationError, ArticleID: item.ArticleID}
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO evidence (id, article_id, claim_path, evidence_type, source_url, extraction_method,
			extracted_text, confidence, metadata, retrieved_at, extractor_version, input_ref,
			snippet_max_chars_applied, created_at, run_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.ArticleID, item.ClaimPath, string(item.EvidenceType), item.SourceURL,
		nullableString(item.ExtractionMethod), item.ExtractedText, item.Confidence, metadataJSON,
		item.RetrievedAt.Format(time.RFC3339Nano), nullableString(item.ExtractorVersion), nullableString(item.InputRef),
		nullableInt(item.SnippetMaxCharsApplied), item.CreatedAt.Format(time.RFC3339Nano), item.RunID,
	)
	if err != nil {
		return &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure, ArticleID: item.ArticleID}
	}
	return nil
}

func loadArticle(ctx context.Context, tx *sql.Tx, articleID string) (Article, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT id, canonical_url, source_id, title, author_hint, published_at, snippet, version, created_at, updated_at
		 FROM articles WHERE id = ?`, articleID)

	var article Article
	var title, authorHint, publishedAt, snippet sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&article.ID, &article.CanonicalURL, &article.SourceID, &title, &authorHint,
		&publishedAt, &snippet, &article.Version, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return Article{}, &StorageError{Message: "article not found", Retryable: false, Cause: ErrCauseNotFound, ArticleID: articleID}
		}
		return Article{}, &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure, ArticleID: articleID}
	}
	article.Title = title.String
	article.AuthorHint = authorHint.String
	article.Snippet = snippet.String
	article.PublishedAt = parseISOTimePtr(publishedAt.String)
	article.CreatedAt = parseISOTime(createdAt)
	article.UpdatedAt = parseISOTime(updatedAt)

	rows, err := tx.QueryContext(ctx,
		`SELECT id, article_id, claim_path, evidence_type, source_url, extraction_method, extracted_text,
			confidence, metadata, retrieved_at, extractor_version, input_ref, snippet_max_chars_applied,
			created_at, run_id
		 FROM evidence WHERE article_id = ? ORDER BY created_at, id`, articleID)
	if err != nil {
		return Article{}, &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure, ArticleID: articleID}
	}
	defer rows.Close()

	for rows.Next() {
		item, err := scanEvidenceRow(rows)
		if err != nil {
			return Article{}, err
		}
		article.Evidence = append(article.Evidence, item)
	}
	if err := rows.Err(); err != nil {
		return Article{}, &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure, ArticleID: articleID}
	}
	return article, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvidenceRow(row rowScanner) (Evidence, error) {
	var item Evidence
	var evidenceType string
	var extractionMethod, inputRef, extractorVersion sql.NullString
	var snippetMaxChars sql.NullInt64
	var metadataJSON string
	var retrievedAt, createdAt string

	if err := row.Scan(&item.ID, &item.ArticleID, &item.ClaimPath, &evidenceType, &item.SourceURL,
		&extractionMethod, &item.ExtractedText, &item.Confidence, &metadataJSON, &retrievedAt,
		&extractorVersion, &inputRef, &snippetMaxChars, &createdAt, &item.RunID); err != nil {
		return Evidence{}, &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure}
	}
	item.EvidenceType = EvidenceType(evidenceType)
	item.ExtractionMethod = extractionMethod.String
	item.InputRef = inputRef.String
	item.ExtractorVersion = extractorVersion.String
	item.SnippetMaxCharsApplied = int(snippetMaxChars.Int64)
	item.RetrievedAt = parseISOTime(retrievedAt)
	item.CreatedAt = parseISOTime(createdAt)
	if metadataJSON != "" {
		_ = json.Unmarshal([]byte(metadataJSON), &item.Metadata)
	}
	return item, nil
}

// SaveFetchLog inserts one fetch_log row.
func (e *Engine) SaveFetchLog(ctx context.Context, log FetchLog) error {
	_, err := e.db.ExecContext(ctx,
		`INSERT INTO fetch_log (id, url, status_code, latency_ms, bytes_received, error_code, created_at, run_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.URL, nullableIntPtr(log.StatusCode), log.LatencyMS, nullableInt64Ptr(log.BytesReceived),
		nullableString(log.ErrorCode), log.CreatedAt.Format(time.RFC3339Nano), log.RunID,
	)
	if err != nil {
		storageErr := &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure, RunID: log.RunID}
		e.recordError(log.RunID, storageErr)
		return storageErr
	}
	return nil
}

// CreateRunLog inserts a new run_log row.
func (e *Engine) CreateRunLog(ctx context.Context, log RunLog) error {
	_, err := e.db.ExecContext(ctx,
		`INSERT INTO run_log (id, source_id, started_at, ended_at, status, error_message,
			fetched_count, new_articles_count, updated_articles_count, error_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.SourceID, log.StartedAt.Format(time.RFC3339Nano), nullableTime(log.EndedAt),
		string(log.Status), nullableString(log.ErrorMessage), log.FetchedCount, log.NewArticlesCount,
		log.UpdatedArticlesCount, log.ErrorCount,
	)
	if err != nil {
		storageErr := &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure, RunID: log.ID}
		e.recordError(log.ID, storageErr)
		return storageErr
	}
	return nil
}

// UpdateRunLog overwrites end-state counters and status for an existing run.
func (e *Engine) UpdateRunLog(ctx context.Context, log RunLog) error {
	_, err := e.db.ExecContext(ctx,
		`UPDATE run_log SET ended_at = ?, status = ?, error_message = ?, fetched_count = ?,
			new_articles_count = ?, updated_articles_count = ?, error_count = ? WHERE id = ?`,
		nullableTime(log.EndedAt), string(log.Status), nullableString(log.ErrorMessage),
		log.FetchedCount, log.NewArticlesCount, log.UpdatedArticlesCount, log.ErrorCount, log.ID,
	)
	if err != nil {
		storageErr := &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure, RunID: log.ID}
		e.recordError(log.ID, storageErr)
		return storageErr
	}
	return nil
}

// ApplyMergeDecision inserts one merge_decisions row. decision.ID is
// expected to be a deterministic id (uuidutil.NewV5 over the candidate's
// author pair), so replaying the same accepted candidate under a
// different run_id is a no-op: applied is false and no row is touched.
func (e *Engine) ApplyMergeDecision(ctx context.Context, decision MergeDecision) (applied bool, err error) {
	evidenceIDsJSON, err := canonicalJSON(decision.EvidenceIDs)
	if err != nil {
		storageErr := &StorageError{Message: err.Error(), Retryable: false, Cause: ErrCauseQueryFailure, RunID: decision.RunID}
		e.recordError(decision.RunID, storageErr)
		return false, storageErr
	}

	result, err := e.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO merge_decisions
			(id, from_author_id, to_author_id, evidence_ids, decision_criteria, created_at, created_by, run_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		decision.ID, decision.FromAuthorID, decision.ToAuthorID, evidenceIDsJSON,
		nullableString(decision.DecisionCriteria), decision.CreatedAt.Format(time.RFC3339Nano),
		nullableString(decision.CreatedBy), decision.RunID,
	)
	if err != nil {
		storageErr := &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure, RunID: decision.RunID}
		e.recordError(decision.RunID, storageErr)
		return false, storageErr
	}
	n, err := result.RowsAffected()
	if err != nil {
		storageErr := &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure, RunID: decision.RunID}
		e.recordError(decision.RunID, storageErr)
		return false, storageErr
	}
	return n > 0, nil
}

// RollbackRun transactionally undoes every write tagged with runID,
// restoring each affected article to its latest remaining version or
// deleting it when no version survives.
func (e *Engine) RollbackRun(ctx context.Context, runID string) (summary RollbackSummary, err error) {
	defer func() {
		if storageErr, ok := err.(*StorageError); ok {
			e.recordError(runID, storageErr)
		}
	}()

	now := e.now().Format(time.RFC3339Nano)

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return summary, &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseTxFailure, RunID: runID}
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM fetch_log WHERE run_id = ?`, runID)
	if err != nil {
		return summary, &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure, RunID: runID}
	}
	if n, err := result.RowsAffected(); err == nil {
		summary.FetchLogDeleted = int(n)
	}

	result, err = tx.ExecContext(ctx, `DELETE FROM evidence WHERE run_id = ?`, runID)
	if err != nil {
		return summary, &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure, RunID: runID}
	}
	if n, err := result.RowsAffected(); err == nil {
		summary.EvidenceDeleted = int(n)
	}

	rows, err := tx.QueryContext(ctx, `SELECT DISTINCT article_id FROM versions WHERE run_id = ?`, runID)
	if err != nil {
		return summary, &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure, RunID: runID}
	}
	var affectedArticleIDs []string
	for rows.Next() {
		var articleID string
		if err := rows.Scan(&articleID); err != nil {
			rows.Close()
			return summary, &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure, RunID: runID}
		}
		affectedArticleIDs = append(affectedArticleIDs, articleID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return summary, &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure, RunID: runID}
	}

	result, err = tx.ExecContext(ctx, `DELETE FROM versions WHERE run_id = ?`, runID)
	if err != nil {
		return summary, &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure, RunID: runID}
	}
	if n, err := result.RowsAffected(); err == nil {
		summary.VersionsDeleted = int(n)
	}

	result, err = tx.ExecContext(ctx, `DELETE FROM merge_decisions WHERE run_id = ?`, runID)
	if err != nil {
		return summary, &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure, RunID: runID}
	}
	if n, err := result.RowsAffected(); err == nil {
		summary.MergeDecisionsDeleted = int(n)
	}

	for _, articleID := range affectedArticleIDs {
		var latestVersion int
		var titleSnap, authorHintSnap, publishedAtSnap, snippetSnap, evidenceSnap sql.NullString
		err := tx.QueryRowContext(ctx,
			`SELECT version, title_snapshot, author_hint_snapshot, published_at_snapshot, snippet_snapshot, evidence_snapshot
			 FROM versions WHERE article_id = ? ORDER BY version DESC LIMIT 1`, articleID,
		).Scan(&latestVersion, &titleSnap, &authorHintSnap, &publishedAtSnap, &snippetSnap, &evidenceSnap)

		if err == sql.ErrNoRows {
			if _, err := tx.ExecContext(ctx, `DELETE FROM evidence WHERE article_id = ?`, articleID); err != nil {
				return summary, &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure, ArticleID: articleID}
			}
			result, err := tx.ExecContext(ctx, `DELETE FROM articles WHERE id = ?`, articleID)
			if err != nil {
				return summary, &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure, ArticleID: articleID}
			}
			if n, _ := result.RowsAffected(); n > 0 {
				summary.ArticlesDeleted++
			}
			continue
		}
		if err != nil {
			return summary, &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure, ArticleID: articleID}
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE articles SET title = ?, author_hint = ?, published_at = ?, snippet = ?, version = ?, updated_at = ? WHERE id = ?`,
			titleSnap, authorHintSnap, publishedAtSnap, snippetSnap, latestVersion, now, articleID,
		); err != nil {
			return summary, &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure, ArticleID: articleID}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM evidence WHERE article_id = ?`, articleID); err != nil {
			return summary, &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure, ArticleID: articleID}
		}
		restored := deserializeEvidenceSnapshot(evidenceSnap.String, articleID)
		for _, item := range restored {
			if err := insertEvidenceRow(ctx, tx, item); err != nil {
				return summary, err
			}
		}
		summary.ArticlesReverted++
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE run_log SET status = 'CANCELLED', ended_at = COALESCE(ended_at, ?), error_message = ? WHERE id = ?`,
		now, fmt.Sprintf("Rolled back run %s", runID), runID,
	); err != nil {
		return summary, &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure, RunID: runID}
	}

	if err := tx.Commit(); err != nil {
		return summary, &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseTxFailure, RunID: runID}
	}
	return summary, nil
}

// ListResolutionAuthorProfiles groups stored articles by
// (source_id, normalized author_hint, host) and materializes a
// deterministic author row per group for merge-decision FK integrity.
func (e *Engine) ListResolutionAuthorProfiles(ctx context.Context) ([]AuthorProfile, error) {
	type groupKey struct{ sourceID, normalizedHint, host string }
	type bucket struct {
		canonicalName string
		articleCount  int
		domains       map[string]struct{}
		accounts      map[string]struct{}
		profileURLs   map[string]struct{}
	}
	grouped := map[groupKey]*bucket{}

	rows, err := e.db.QueryContext(ctx,
		`SELECT source_id, author_hint, canonical_url FROM articles
		 WHERE author_hint IS NOT NULL AND TRIM(author_hint) <> ''
		 ORDER BY source_id, canonical_url`)
	if err != nil {
		return nil, &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure}
	}
	var keys []groupKey
	for rows.Next() {
		var sourceID, authorHint, canonicalURL string
		if err := rows.Scan(&sourceID, &authorHint, &canonicalURL); err != nil {
			rows.Close()
			return nil, &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure}
		}
		rawHint := strings.TrimSpace(authorHint)
		normalizedHint := normalizeAuthorHint(rawHint)
		if normalizedHint == "" {
			continue
		}
		host := extractDomain(canonicalURL)
		key := groupKey{sourceID, normalizedHint, host}
		b, ok := grouped[key]
		if !ok {
			b = &bucket{canonicalName: rawHint, domains: map[string]struct{}{}, accounts: map[string]struct{}{}, profileURLs: map[string]struct{}{}}
			grouped[key] = b
			keys = append(keys, key)
		}
		b.articleCount++
		if host != "" {
			b.domains[host] = struct{}{}
		}
		if strings.Contains(normalizedHint, "@") {
			b.accounts[normalizedHint] = struct{}{}
		}
		if strings.HasPrefix(normalizedHint, "http://") || strings.HasPrefix(normalizedHint, "https://") {
			b.accounts[normalizedHint] = struct{}{}
			if parsed, err := url.Parse(normalizedHint); err == nil {
				lowerPath := strings.ToLower(parsed.Path)
				for _, seg := range []string{"/author/", "/people/", "/profile/", "/bio"} {
					if strings.Contains(lowerPath, seg) {
						b.profileURLs[normalizedHint] = struct{}{}
						break
					}
				}
			}
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure}
	}
	if len(keys) == 0 {
		return nil, nil
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].sourceID != keys[j].sourceID {
			return keys[i].sourceID < keys[j].sourceID
		}
		if keys[i].normalizedHint != keys[j].normalizedHint {
			return keys[i].normalizedHint < keys[j].normalizedHint
		}
		return keys[i].host < keys[j].host
	})

	now := e.now().Format(time.RFC3339Nano)
	profiles := make([]AuthorProfile, 0, len(keys))
	profileByID := map[string]*AuthorProfile{}
	for _, key := range keys {
		b := grouped[key]
		authorID := reviewAuthorID(key.sourceID, key.normalizedHint, key.host)
		metadata := map[string]any{
			"source_id":       key.sourceID,
			"normalized_name": key.normalizedHint,
			"domain":          key.host,
			"article_count":   b.articleCount,
		}
		metadataJSON, _ := canonicalJSON(metadata)
		if _, err := e.db.ExecContext(ctx,
			`INSERT INTO authors (id, source_id, canonical_name, normalized_name, host, metadata, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET canonical_name = excluded.canonical_name, metadata = excluded.metadata, updated_at = excluded.updated_at`,
			authorID, key.sourceID, b.canonicalName, key.normalizedHint, key.host, metadataJSON, now, now,
		); err != nil {
			return nil, &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure}
		}
		profile := AuthorProfile{
			ID:            authorID,
			CanonicalName: b.canonicalName,
			SourceID:      key.sourceID,
			Domains:       sortedKeys(b.domains),
			Accounts:      sortedKeys(b.accounts),
			ProfileURLs:   sortedKeys(b.profileURLs),
		}
		profiles = append(profiles, profile)
		profileByID[authorID] = &profiles[len(profiles)-1]
	}

	authorIDs := make([]string, 0, len(profiles))
	for _, p := range profiles {
		authorIDs = append(authorIDs, p.ID)
	}
	placeholders := make([]string, len(authorIDs))
	args := make([]any, len(authorIDs))
	for i, id := range authorIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	accountRows, err := e.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT author_id, source_identifier FROM accounts WHERE author_id IN (%s)`, strings.Join(placeholders, ",")),
		args...,
	)
	if err != nil {
		return nil, &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure}
	}
	defer accountRows.Close()
	accountsByAuthor := map[string]map[string]struct{}{}
	for accountRows.Next() {
		var authorID, identifier string
		if err := accountRows.Scan(&authorID, &identifier); err != nil {
			return nil, &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure}
		}
		set, ok := accountsByAuthor[authorID]
		if !ok {
			set = map[string]struct{}{}
			accountsByAuthor[authorID] = set
		}
		set[strings.ToLower(strings.TrimSpace(identifier))] = struct{}{}
	}
	for i := range profiles {
		merged := map[string]struct{}{}
		for _, a := range profiles[i].Accounts {
			merged[a] = struct{}{}
		}
		for a := range accountsByAuthor[profiles[i].ID] {
			merged[a] = struct{}{}
		}
		profiles[i].Accounts = sortedKeys(merged)
	}

	return profiles, nil
}

// ForEachExportArticle streams stored articles ordered by
// (canonical_url, source_id), invoking fn for each. Stops and returns the
// first error fn returns.
func (e *Engine) ForEachExportArticle(ctx context.Context, fn func(Article) error) error {
	rows, err := e.db.QueryContext(ctx, `SELECT id FROM articles ORDER BY canonical_url, source_id`)
	if err != nil {
		return &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure}
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure}
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure}
	}

	for _, id := range ids {
		tx, err := e.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
		if err != nil {
			return &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseTxFailure, ArticleID: id}
		}
		article, err := loadArticle(ctx, tx, id)
		tx.Rollback()
		if err != nil {
			return err
		}
		if err := fn(article); err != nil {
			return err
		}
	}
	return nil
}

func hashArticleFields(draft ArticleDraft) string {
	payload := map[string]any{
		"title":       nullableAny(draft.Title),
		"author_hint": nullableAny(draft.AuthorHint),
		"snippet":     nullableAny(draft.Snippet),
	}
	if draft.PublishedAt != nil {
		payload["published_at"] = draft.PublishedAt.UTC().Format(time.RFC3339)
	} else {
		payload["published_at"] = nil
	}
	serialized, _ := canonicalJSON(payload)
	sum, _ := hashutil.HashBytes([]byte(serialized), hashutil.HashAlgoSHA256)
	return sum
}

func serializeEvidenceSnapshot(evidenceList []Evidence) (string, error) {
	rows := make([]map[string]any, 0, len(evidenceList))
	for _, item := range evidenceList {
		rows = append(rows, map[string]any{
			"id":                        item.ID,
			"claim_path":                item.ClaimPath,
			"evidence_type":             string(item.EvidenceType),
			"source_url":                item.SourceURL,
			"extraction_method":         nullableAny(item.ExtractionMethod),
			"extracted_text":            item.ExtractedText,
			"confidence":                item.Confidence,
			"metadata":                  item.Metadata,
			"retrieved_at":              item.RetrievedAt.Format(time.RFC3339Nano),
			"extractor_version":         nullableAny(item.ExtractorVersion),
			"input_ref":                 nullableAny(item.InputRef),
			"snippet_max_chars_applied": item.SnippetMaxCharsApplied,
			"created_at":                item.CreatedAt.Format(time.RFC3339Nano),
			"run_id":                    item.RunID,
		})
	}
	return canonicalJSON(rows)
}

func deserializeEvidenceSnapshot(raw, articleID string) []Evidence {
	if raw == "" {
		return nil
	}
	var rows []map[string]any
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		return nil
	}
	var restored []Evidence
	for _, row := range rows {
		item := Evidence{
			ArticleID:        articleID,
			ID:               stringOr(row["id"], uuidutil.NewV4()),
			ClaimPath:        stringOr(row["claim_path"], ""),
			EvidenceType:     EvidenceType(stringOr(row["evidence_type"], "")),
			SourceURL:        stringOr(row["source_url"], ""),
			ExtractionMethod: stringOr(row["extraction_method"], ""),
			ExtractedText:    stringOr(row["extracted_text"], ""),
			Confidence:       floatOr(row["confidence"], 1.0),
			ExtractorVersion: stringOr(row["extractor_version"], ""),
			InputRef:         stringOr(row["input_ref"], ""),
			RunID:            stringOr(row["run_id"], "snapshot"),
		}
		if meta, ok := row["metadata"].(map[string]any); ok {
			item.Metadata = meta
		}
		if snippetMax, ok := row["snippet_max_chars_applied"].(float64); ok {
			item.SnippetMaxCharsApplied = int(snippetMax)
		}
		item.RetrievedAt = parseISOTimeDefault(stringOr(row["retrieved_at"], ""))
		item.CreatedAt = parseISOTimeDefault(stringOr(row["created_at"], ""))
		restored = append(restored, item)
	}
	return restored
}

func normalizeAuthorHint(value string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(value))), " ")
}

func extractDomain(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(parsed.Hostname()))
}

func reviewAuthorID(sourceID, normalizedName, domain string) string {
	key := fmt.Sprintf("review-author|%s|%s|%s", sourceID, normalizedName, domain)
	return uuidutil.NewV5(key)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		if k != "" {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// canonicalJSON marshals v with sorted map keys and escapes every non-ASCII
// rune, matching json.dumps(sort_keys=True, ensure_ascii=True).
func canonicalJSON(v any) (string, error) {
	buf, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	var out strings.Builder
	for _, r := range string(buf) {
		if r > 127 {
			if r > 0xFFFF {
				r1, r2 := utf16Surrogates(r)
				out.WriteString(fmt.Sprintf(`\u%04x\u%04x`, r1, r2))
				continue
			}
			out.WriteString(fmt.Sprintf(`\u%04x`, r))
			continue
		}
		out.WriteRune(r)
	}
	return out.String(), nil
}

func utf16Surrogates(r rune) (rune, rune) {
	r -= 0x10000
	return 0xD800 + (r >> 10), 0xDC00 + (r & 0x3FF)
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullableAny(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(n int) sql.NullInt64 {
	if n == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(n), Valid: true}
}

func nullableIntPtr(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func nullableInt64Ptr(n *int64) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *n, Valid: true}
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339Nano), Valid: true}
}

func parseISOTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		parsed, err = time.Parse(time.RFC3339, value)
		if err != nil {
			return time.Time{}
		}
	}
	return parsed
}

func parseISOTimeDefault(value string) time.Time {
	parsed := parseISOTime(value)
	if parsed.IsZero() {
		return time.Now().UTC()
	}
	return parsed
}

func parseISOTimePtr(value string) *time.Time {
	if value == "" {
		return nil
	}
	parsed := parseISOTime(value)
	if parsed.IsZero() {
		return nil
	}
	return &parsed
}

func stringOr(v any, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}

func floatOr(v any, fallback float64) float64 {
	if f, ok := v.(float64); ok {
		return f
	}
	return fallback
}
