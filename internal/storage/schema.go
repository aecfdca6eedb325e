package storage

// schemaSQL is applied once against an empty database. Additive columns
// for older databases are handled by ensureAdditiveColumns, mirroring the
// startup migration step of every other ambient component in this repo.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS articles (
	id TEXT PRIMARY KEY,
	canonical_url TEXT NOT NULL,
	source_id TEXT NOT NULL,
	title TEXT,
	author_hint TEXT,
	published_at TEXT,
	snippet TEXT,
	version INTEGER NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	UNIQUE (canonical_url, source_id)
);

CREATE TABLE IF NOT EXISTS evidence (
	id TEXT PRIMARY KEY,
	article_id TEXT NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
	claim_path TEXT NOT NULL,
	evidence_type TEXT NOT NULL,
	source_url TEXT NOT NULL,
	extraction_method TEXT,
	extracted_text TEXT NOT NULL,
	confidence REAL NOT NULL,
	metadata TEXT NOT NULL,
	retrieved_at TEXT NOT NULL,
	extractor_version TEXT,
	input_ref TEXT,
	snippet_max_chars_applied INTEGER,
	created_at TEXT NOT NULL,
	run_id TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_evidence_article_id ON evidence(article_id);
CREATE INDEX IF NOT EXISTS idx_evidence_run_id ON evidence(run_id);

CREATE TABLE IF NOT EXISTS versions (
	id TEXT PRIMARY KEY,
	article_id TEXT NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
	version INTEGER NOT NULL,
	content_hash TEXT NOT NULL,
	title_snapshot TEXT,
	author_hint_snapshot TEXT,
	published_at_snapshot TEXT,
	snippet_snapshot TEXT,
	evidence_snapshot TEXT,
	created_at TEXT NOT NULL,
	run_id TEXT NOT NULL,
	UNIQUE (article_id, version)
);

CREATE INDEX IF NOT EXISTS idx_versions_run_id ON versions(run_id);

CREATE TABLE IF NOT EXISTS run_log (
	id TEXT PRIMARY KEY,
	source_id TEXT NOT NULL,
	started_at TEXT NOT NULL,
	ended_at TEXT,
	status TEXT NOT NULL,
	error_message TEXT,
	fetched_count INTEGER NOT NULL,
	new_articles_count INTEGER NOT NULL,
	updated_articles_count INTEGER NOT NULL,
	error_count INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS fetch_log (
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	status_code INTEGER,
	latency_ms INTEGER NOT NULL,
	bytes_received INTEGER,
	error_code TEXT,
	created_at TEXT NOT NULL,
	run_id TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fetch_log_run_id ON fetch_log(run_id);

CREATE TABLE IF NOT EXISTS authors (
	id TEXT PRIMARY KEY,
	source_id TEXT,
	canonical_name TEXT NOT NULL,
	normalized_name TEXT,
	host TEXT,
	metadata TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS accounts (
	id TEXT PRIMARY KEY,
	author_id TEXT NOT NULL REFERENCES authors(id) ON DELETE CASCADE,
	kind TEXT NOT NULL,
	source_identifier TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_accounts_author_id ON accounts(author_id);

CREATE TABLE IF NOT EXISTS merge_decisions (
	id TEXT PRIMARY KEY,
	from_author_id TEXT NOT NULL REFERENCES authors(id),
	to_author_id TEXT NOT NULL REFERENCES authors(id),
	evidence_ids TEXT NOT NULL,
	decision_criteria TEXT,
	created_at TEXT NOT NULL,
	created_by TEXT,
	run_id TEXT NOT NULL,
	reverted_at TEXT,
	reverted_by TEXT,
	reverted_reason TEXT
);

CREATE INDEX IF NOT EXISTS idx_merge_decisions_run_id ON merge_decisions(run_id);
`

// ensureAdditiveColumns applies additive schema updates for databases
// created by an earlier version of this package.
func ensureAdditiveColumns(exec func(query string, args ...any) error, columnExists func(table, column string) (bool, error)) error {
	exists, err := columnExists("versions", "evidence_snapshot")
	if err != nil {
		return err
	}
	if !exists {
		if err := exec("ALTER TABLE versions ADD COLUMN evidence_snapshot TEXT"); err != nil {
			return err
		}
	}
	return nil
}
