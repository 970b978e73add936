package rag

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"diary-assistant/internal/indexer"
	"diary-assistant/internal/storage"
)

type noteFixture struct {
	notes *storage.NoteRepo
	tasks *storage.TaskRepo
	index *storage.IndexRepo
	added int
}

func newNoteFixture(t *testing.T) *noteFixture {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("storage.Migrate() error = %v", err)
	}
	return &noteFixture{
		notes: storage.NewNoteRepo(db),
		tasks: storage.NewTaskRepo(db),
		index: storage.NewIndexRepo(db),
	}
}

func (f *noteFixture) add(t *testing.T, tenantID, userID, title, content string, tags ...string) *storage.Note {
	t.Helper()
	f.added++
	note := &storage.Note{
		TenantID:  tenantID,
		UserID:    userID,
		Title:     title,
		Content:   content,
		Tags:      tags,
		CreatedAt: time.Date(2024, 3, 1, 0, 0, f.added, 0, time.UTC),
	}
	if err := f.notes.Create(context.Background(), note); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return note
}

func newTestChunker(t *testing.T) *indexer.Chunker {
	t.Helper()
	chunker, err := indexer.NewChunker(200, 20)
	if err != nil {
		t.Fatalf("NewChunker() error = %v", err)
	}
	return chunker
}

func TestKeywordSearcher_Search(t *testing.T) {
	ctx := context.Background()
	f := newNoteFixture(t)
	f.add(t, "t1", "u1", "Standup", "Weekly meeting with the design team about the roadmap", "work")
	f.add(t, "t1", "u1", "Groceries", "Buy milk and eggs")
	f.add(t, "t1", "u2", "Retro", "Team retro meeting went well, roadmap approved", "work")
	f.add(t, "t2", "u3", "Other tenant", "meeting roadmap")

	searcher := NewKeywordSearcher(f.notes, newTestChunker(t))

	got, err := searcher.Search(ctx, "t1", "Meeting Roadmap", 5, Filters{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Search() returned %d results, want 2: %v", len(got), ids(got))
	}
	for _, r := range got {
		if r.TenantID != "t1" {
			t.Errorf("Search() leaked tenant %s", r.TenantID)
		}
		if r.Score != 1 {
			t.Errorf("Search() score for %q = %v, want 1", r.Text, r.Score)
		}
	}

	got, err = searcher.Search(ctx, "t1", "meeting", 5, Filters{UserID: "u2"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 || got[0].UserID != "u2" {
		t.Errorf("Search(user=u2) = %v, want one result from u2", ids(got))
	}

	got, err = searcher.Search(ctx, "t1", "milk", 5, Filters{Tags: []string{"work"}})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Search(tags=work) = %v, want none", ids(got))
	}
}

func TestKeywordSearcher_ScoresByDistinctTermFraction(t *testing.T) {
	ctx := context.Background()
	f := newNoteFixture(t)
	f.add(t, "t1", "u1", "", "alpha only here")
	f.add(t, "t1", "u1", "", "alpha and beta together")
	f.add(t, "t1", "u1", "", "nothing relevant but gamma")

	searcher := NewKeywordSearcher(f.notes, newTestChunker(t))
	got, err := searcher.Search(ctx, "t1", "alpha beta alpha gamma", 5, Filters{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Search() returned %d results, want 3", len(got))
	}
	if got[0].Text != "alpha and beta together" {
		t.Errorf("Search()[0] = %q, want the two-term chunk first", got[0].Text)
	}
	wantScores := []float32{2.0 / 3, 1.0 / 3, 1.0 / 3}
	for i, want := range wantScores {
		if diff := got[i].Score - want; diff > 1e-6 || diff < -1e-6 {
			t.Errorf("Search()[%d].Score = %v, want %v", i, got[i].Score, want)
		}
	}
	// Equal scores keep note creation order.
	if got[1].Text != "alpha only here" || got[2].Text != "nothing relevant but gamma" {
		t.Errorf("Search() tie order = %v", ids(got))
	}

	got, err = searcher.Search(ctx, "t1", "alpha beta gamma", 1, Filters{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Search(top_k=1) returned %d results", len(got))
	}
}

func TestKeywordSearcher_EmptyQuery(t *testing.T) {
	f := newNoteFixture(t)
	f.add(t, "t1", "u1", "", "content")
	searcher := NewKeywordSearcher(f.notes, newTestChunker(t))

	got, err := searcher.Search(context.Background(), "t1", "   ", 5, Filters{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Search() = %v, want empty", ids(got))
	}
}

func TestQueryTerms(t *testing.T) {
	got := queryTerms("  The the MEETING notes ")
	want := []string{"the", "meeting", "notes"}
	if !equalStrings(got, want) {
		t.Errorf("queryTerms() = %v, want %v", got, want)
	}
}
