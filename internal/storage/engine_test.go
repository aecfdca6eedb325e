package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rohmanhakim/author-index/internal/storage"
)

func newEngine(t *testing.T) *storage.Engine {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "author-index-test.db")
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e, err := storage.Open(dbPath, storage.WithClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("open engine: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func sampleDraft() storage.ArticleDraft {
	return storage.ArticleDraft{
		CanonicalURL: "https://example.com/a",
		SourceID:     "source-1",
		Title:        "Hello World",
		AuthorHint:   "Jane Doe",
		Snippet:      "an article about something",
	}
}

func sampleEvidence() []storage.Evidence {
	return []storage.Evidence{
		{
			ID:            "ev-1",
			ClaimPath:     "/title",
			EvidenceType:  storage.EvidenceMetaTag,
			SourceURL:     "https://example.com/a",
			ExtractedText: "Hello World",
			Confidence:    1.0,
			RetrievedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			CreatedAt:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

func TestUpsertArticle_CreatesNewArticleWithEvidence(t *testing.T) {
	e := newEngine(t)
	article, created, updated, err := e.UpsertArticle(context.Background(), sampleDraft(), sampleEvidence(), "run-1")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if !created || updated {
		t.Fatalf("expected created=true updated=false, got created=%v updated=%v", created, updated)
	}
	if article.Version != 1 {
		t.Fatalf("expected version 1, got %d", article.Version)
	}
	if len(article.Evidence) != 1 || article.Evidence[0].ArticleID != article.ID {
		t.Fatalf("evidence not rewritten against new article id: %+v", article.Evidence)
	}
}

func TestUpsertArticle_SameContentHashIsNoMutation(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	first, _, _, err := e.UpsertArticle(ctx, sampleDraft(), sampleEvidence(), "run-1")
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	second, created, updated, err := e.UpsertArticle(ctx, sampleDraft(), sampleEvidence(), "run-2")
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if created || updated {
		t.Fatalf("expected no mutation on identical content, got created=%v updated=%v", created, updated)
	}
	if second.Version != first.Version {
		t.Fatalf("version changed on identical content: %d -> %d", first.Version, second.Version)
	}
}

func TestUpsertArticle_ChangedContentBumpsVersion(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	draft := sampleDraft()
	if _, _, _, err := e.UpsertArticle(ctx, draft, sampleEvidence(), "run-1"); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	draft.Title = "A Different Title"
	article, created, updated, err := e.UpsertArticle(ctx, draft, sampleEvidence(), "run-2")
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if created || !updated {
		t.Fatalf("expected updated=true created=false, got created=%v updated=%v", created, updated)
	}
	if article.Version != 2 {
		t.Fatalf("expected version 2, got %d", article.Version)
	}
	if article.Title != "A Different Title" {
		t.Fatalf("title not updated: %q", article.Title)
	}
}

func TestUpsertArticle_DedupeKeyIsCanonicalURLAndSourceID(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	draft := sampleDraft()
	draft.CanonicalURL = "https://EXAMPLE.com/a?utm_source=newsletter"
	first, created, _, err := e.UpsertArticle(ctx, draft, sampleEvidence(), "run-1")
	if err != nil || !created {
		t.Fatalf("first upsert: created=%v err=%v", created, err)
	}

	draft2 := sampleDraft()
	draft2.CanonicalURL = "https://example.com/a"
	second, created2, _, err := e.UpsertArticle(ctx, draft2, sampleEvidence(), "run-2")
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if created2 {
		t.Fatalf("expected second upsert to dedupe against the first by canonical url")
	}
	if second.ID != first.ID {
		t.Fatalf("expected same article id after canonicalization, got %s vs %s", first.ID, second.ID)
	}
}

func TestRollbackRun_DeletesArticleWithNoPriorVersion(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	article, _, _, err := e.UpsertArticle(ctx, sampleDraft(), sampleEvidence(), "run-1")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := e.CreateRunLog(ctx, storage.RunLog{ID: "run-1", SourceID: "source-1", StartedAt: time.Now(), Status: storage.RunStatusRunning}); err != nil {
		t.Fatalf("create run log: %v", err)
	}

	summary, err := e.RollbackRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if summary.ArticlesDeleted != 1 {
		t.Fatalf("expected 1 article deleted, got %+v", summary)
	}

	exported := 0
	_ = e.ForEachExportArticle(ctx, func(a storage.Article) error {
		if a.ID == article.ID {
			exported++
		}
		return nil
	})
	if exported != 0 {
		t.Fatalf("rolled-back article should no longer be exportable")
	}
}

func TestRollbackRun_RevertsArticleToPriorVersion(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	draft := sampleDraft()
	if _, _, _, err := e.UpsertArticle(ctx, draft, sampleEvidence(), "run-1"); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	draft.Title = "Changed By Run 2"
	if _, _, _, err := e.UpsertArticle(ctx, draft, sampleEvidence(), "run-2"); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if err := e.CreateRunLog(ctx, storage.RunLog{ID: "run-2", SourceID: "source-1", StartedAt: time.Now(), Status: storage.RunStatusRunning}); err != nil {
		t.Fatalf("create run log: %v", err)
	}

	summary, err := e.RollbackRun(ctx, "run-2")
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if summary.ArticlesReverted != 1 {
		t.Fatalf("expected 1 article reverted, got %+v", summary)
	}

	var reverted storage.Article
	found := false
	_ = e.ForEachExportArticle(ctx, func(a storage.Article) error {
		reverted = a
		found = true
		return nil
	})
	if !found {
		t.Fatalf("expected article to still exist after revert")
	}
	if reverted.Title != "Hello World" {
		t.Fatalf("expected title reverted to run-1's value, got %q", reverted.Title)
	}
	if reverted.Version != 1 {
		t.Fatalf("expected version reverted to 1, got %d", reverted.Version)
	}
}

func TestListResolutionAuthorProfiles_GroupsBySourceNormalizedHintAndHost(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	draft1 := sampleDraft()
	draft1.CanonicalURL = "https://example.com/a"
	draft1.AuthorHint = "  Jane   Doe "
	draft2 := sampleDraft()
	draft2.CanonicalURL = "https://example.com/b"
	draft2.AuthorHint = "jane doe"

	if _, _, _, err := e.UpsertArticle(ctx, draft1, sampleEvidence(), "run-1"); err != nil {
		t.Fatalf("upsert 1: %v", err)
	}
	if _, _, _, err := e.UpsertArticle(ctx, draft2, sampleEvidence(), "run-1"); err != nil {
		t.Fatalf("upsert 2: %v", err)
	}

	profiles, err := e.ListResolutionAuthorProfiles(ctx)
	if err != nil {
		t.Fatalf("list profiles: %v", err)
	}
	if len(profiles) != 1 {
		t.Fatalf("expected both articles to group into one profile, got %+v", profiles)
	}
	if profiles[0].Domains[0] != "example.com" {
		t.Fatalf("expected domain example.com, got %+v", profiles[0].Domains)
	}
}

func TestForEachExportArticle_OrderedByCanonicalURLThenSourceID(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	draftB := sampleDraft()
	draftB.CanonicalURL = "https://example.com/b"
	draftA := sampleDraft()
	draftA.CanonicalURL = "https://example.com/a"

	if _, _, _, err := e.UpsertArticle(ctx, draftB, sampleEvidence(), "run-1"); err != nil {
		t.Fatalf("upsert b: %v", err)
	}
	if _, _, _, err := e.UpsertArticle(ctx, draftA, sampleEvidence(), "run-1"); err != nil {
		t.Fatalf("upsert a: %v", err)
	}

	var order []string
	if err := e.ForEachExportArticle(ctx, func(a storage.Article) error {
		order = append(order, a.CanonicalURL)
		return nil
	}); err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(order) != 2 || order[0] != "https://example.com/a" || order[1] != "https://example.com/b" {
		t.Fatalf("expected export order [a, b], got %v", order)
	}
}

func TestCreateAndUpdateRunLog(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	runLog := storage.RunLog{ID: "run-1", SourceID: "source-1", StartedAt: time.Now(), Status: storage.RunStatusRunning}
	if err := e.CreateRunLog(ctx, runLog); err != nil {
		t.Fatalf("create run log: %v", err)
	}

	ended := time.Now()
	runLog.EndedAt = &ended
	runLog.Status = storage.RunStatusCompleted
	runLog.FetchedCount = 5
	runLog.NewArticlesCount = 3
	if err := e.UpdateRunLog(ctx, runLog); err != nil {
		t.Fatalf("update run log: %v", err)
	}
}

func TestSaveFetchLog(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	status := 200
	bytesReceived := int64(1024)
	err := e.SaveFetchLog(ctx, storage.FetchLog{
		ID:            "fl-1",
		URL:           "https://example.com/a",
		StatusCode:    &status,
		LatencyMS:     120,
		BytesReceived: &bytesReceived,
		CreatedAt:     time.Now(),
		RunID:         "run-1",
	})
	if err != nil {
		t.Fatalf("save fetch log: %v", err)
	}
}
