package rag

import (
	"context"
	"errors"
	"testing"

	"diary-assistant/internal/indexer"
	"diary-assistant/internal/vectorstore"
)

// constantEmbedder gives every text the same vector, so all semantic scores tie.
type constantEmbedder struct{}

func (constantEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{0.3, 0.4, 0.5}, nil
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("provider not configured")
}

type pipeline struct {
	fixture *noteFixture
	cache   *vectorstore.Cache
	builder *indexer.Builder
	engine  Engine
}

func newPipeline(t *testing.T, embedder Embedder) *pipeline {
	t.Helper()
	f := newNoteFixture(t)
	chunker := newTestChunker(t)
	cache := vectorstore.NewCache(f.index)
	return &pipeline{
		fixture: f,
		cache:   cache,
		builder: indexer.NewBuilder(f.notes, chunker, embedder, cache, vectorstore.DefaultParams()),
		engine: NewEngine(
			NewRetriever(cache, embedder),
			NewKeywordSearcher(f.notes, chunker),
			NewLLMSummarizer(nil),
			NewLLMTaskExtractor(nil),
			NewTaskRecorder(f.notes, f.tasks),
		),
	}
}

func (p *pipeline) rebuild(t *testing.T, tenantID string) {
	t.Helper()
	if _, err := p.builder.Rebuild(context.Background(), tenantID); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
}

func TestEngine_Search_NoNotes(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, failingEmbedder{})
	p.fixture.add(t, "t1", "u1", "Empty", "   ")
	p.rebuild(t, "t1")

	for _, combine := range []bool{false, true} {
		resp, err := p.engine.Search(ctx, Query{TenantID: "t1", Text: "anything", TopK: 3, CombineWithKeyword: combine})
		if err != nil {
			t.Fatalf("Search(combine=%v) error = %v", combine, err)
		}
		if resp.Answer != NoResultsAnswer {
			t.Errorf("Search() answer = %q, want %q", resp.Answer, NoResultsAnswer)
		}
		if len(resp.Chunks) != 0 || len(resp.Tasks) != 0 {
			t.Errorf("Search() = %+v, want no chunks or tasks", resp)
		}
	}

	resp, err := p.engine.Search(ctx, Query{TenantID: "never-seen", Text: "anything"})
	if err != nil {
		t.Fatalf("Search(unknown tenant) error = %v", err)
	}
	if resp.Answer != NoResultsAnswer {
		t.Errorf("Search(unknown tenant) answer = %q", resp.Answer)
	}
}

func TestEngine_Search_KeywordBreaksSemanticTies(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, constantEmbedder{})
	p.fixture.add(t, "t1", "u1", "", "Walked the dog in the park")
	p.fixture.add(t, "t1", "u1", "", "Cooked pasta for dinner")
	meeting := p.fixture.add(t, "t1", "u1", "", "Quarterly meeting with finance.\nTODO: send the slides")
	p.rebuild(t, "t1")

	resp, err := p.engine.Search(ctx, Query{TenantID: "t1", Text: "meeting", TopK: 3, CombineWithKeyword: true})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(resp.Chunks) != 3 {
		t.Fatalf("Search() returned %d chunks, want 3", len(resp.Chunks))
	}
	if resp.Chunks[0].NoteID != meeting.ID {
		t.Errorf("Search() first chunk = %q, want the meeting note", resp.Chunks[0].Text)
	}
	if resp.Answer == NoResultsAnswer || resp.Answer == "" {
		t.Errorf("Search() answer = %q", resp.Answer)
	}
	if len(resp.Tasks) != 1 || resp.Tasks[0].Description != "send the slides" {
		t.Fatalf("Search() tasks = %+v", resp.Tasks)
	}

	open, err := p.fixture.tasks.FindOpen(ctx, "t1", meeting.ID, "send the slides")
	if err != nil {
		t.Fatalf("FindOpen() error = %v", err)
	}
	if open.UserID != "u1" {
		t.Errorf("recorded task owner = %s, want u1", open.UserID)
	}
}

func TestEngine_Search_QueryEmbeddingFailure(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, constantEmbedder{})
	p.fixture.add(t, "t1", "u1", "", "Some content")
	p.rebuild(t, "t1")

	engine := NewEngine(
		NewRetriever(p.cache, failingEmbedder{}),
		NewKeywordSearcher(p.fixture.notes, newTestChunker(t)),
		NewLLMSummarizer(nil),
		NewLLMTaskExtractor(nil),
		nil,
	)
	_, err := engine.Search(ctx, Query{TenantID: "t1", Text: "content", CombineWithKeyword: true})
	if !errors.Is(err, ErrQueryEmbedding) {
		t.Fatalf("Search() error = %v, want ErrQueryEmbedding", err)
	}
}

func TestEngine_Search_ClampsTopK(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, constantEmbedder{})
	for i := 0; i < DefaultTopK+2; i++ {
		p.fixture.add(t, "t1", "u1", "", "entry number "+string(rune('a'+i)))
	}
	p.rebuild(t, "t1")

	resp, err := p.engine.Search(ctx, Query{TenantID: "t1", Text: "entry"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(resp.Chunks) != DefaultTopK {
		t.Errorf("Search() returned %d chunks, want %d", len(resp.Chunks), DefaultTopK)
	}
}
