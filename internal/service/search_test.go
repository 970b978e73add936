package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"diary-assistant/internal/rag"
	"diary-assistant/internal/service"
	"diary-assistant/internal/service/mocks"
	storagemocks "diary-assistant/internal/storage/mocks"
)

func TestSearchService_Validation(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := service.NewSearchService(mocks.NewMockSearcher(ctrl), newResponseCache(), 0)

	tests := []struct {
		name  string
		req   service.SearchRequest
		field string
	}{
		{name: "no tenant", req: service.SearchRequest{Query: "q"}, field: "tenant_id"},
		{name: "blank query", req: service.SearchRequest{TenantID: "t1", Query: "   "}, field: "query"},
		{name: "top_k too large", req: service.SearchRequest{TenantID: "t1", Query: "q", TopK: rag.MaxTopK + 1}, field: "top_k"},
		{name: "negative top_k", req: service.SearchRequest{TenantID: "t1", Query: "q", TopK: -1}, field: "top_k"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Search(testContext(), tt.req)
			var ve *service.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Search() error = %v, want ValidationError", err)
			}
			if ve.Field != tt.field {
				t.Errorf("ValidationError.Field = %s, want %s", ve.Field, tt.field)
			}
			if !errors.Is(err, service.ErrInvalidInput) {
				t.Error("validation error should match ErrInvalidInput")
			}
		})
	}
}

func TestSearchService_BuildsQuery(t *testing.T) {
	ctrl := gomock.NewController(t)
	searcher := mocks.NewMockSearcher(ctrl)
	svc := service.NewSearchService(searcher, newResponseCache(), 0)

	searcher.EXPECT().Search(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, q rag.Query) (*rag.Response, error) {
		if q.TopK != rag.DefaultTopK {
			t.Errorf("TopK = %d, want %d", q.TopK, rag.DefaultTopK)
		}
		if q.Text != "weekly plans" {
			t.Errorf("Text = %q, want trimmed query", q.Text)
		}
		if q.Filters.UserID != "u1" || len(q.Filters.Tags) != 1 || q.Filters.Tags[0] != "work" {
			t.Errorf("Filters = %+v", q.Filters)
		}
		if !q.CombineWithKeyword {
			t.Error("CombineWithKeyword should be forwarded")
		}
		return &rag.Response{Answer: "ok", Chunks: []rag.SearchResult{}, Tasks: []rag.ExtractedTask{}}, nil
	})

	resp, err := svc.Search(testContext(), service.SearchRequest{
		TenantID:           "t1",
		Query:              "  weekly plans ",
		UserID:             "u1",
		Tags:               []string{"work", " "},
		CombineWithKeyword: true,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if resp.Answer != "ok" {
		t.Errorf("Answer = %q, want ok", resp.Answer)
	}
}

func TestSearchService_CachesUntilNoteMutation(t *testing.T) {
	ctrl := gomock.NewController(t)
	searcher := mocks.NewMockSearcher(ctrl)
	notes := storagemocks.NewMockNoteStore(ctrl)
	rebuilds := mocks.NewMockRebuildTrigger(ctrl)
	responses := newResponseCache()
	search := service.NewSearchService(searcher, responses, time.Hour)
	noteSvc := service.NewNoteService(notes, responses, rebuilds, time.Hour)
	ctx := testContext()
	req := service.SearchRequest{TenantID: "t1", Query: "groceries", TopK: 3}

	calls := 0
	searcher.EXPECT().Search(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, rag.Query) (*rag.Response, error) {
		calls++
		return &rag.Response{Answer: fmt.Sprintf("answer %d", calls)}, nil
	}).Times(2)
	notes.EXPECT().Delete(gomock.Any(), "t1", "n1").Return(nil)
	rebuilds.EXPECT().Trigger("t1")

	first, err := search.Search(ctx, req)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	second, err := search.Search(ctx, req)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if first.Answer != "answer 1" || second.Answer != "answer 1" {
		t.Fatalf("answers = %q, %q, want cached answer 1", first.Answer, second.Answer)
	}

	if err := noteSvc.Delete(ctx, "t1", "n1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	third, err := search.Search(ctx, req)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if third.Answer != "answer 2" {
		t.Errorf("answer after mutation = %q, want answer 2", third.Answer)
	}
}

func TestSearchService_TenantsDoNotShareCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	searcher := mocks.NewMockSearcher(ctrl)
	svc := service.NewSearchService(searcher, newResponseCache(), time.Hour)

	searcher.EXPECT().Search(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, q rag.Query) (*rag.Response, error) {
		return &rag.Response{Answer: q.TenantID}, nil
	}).Times(2)

	for _, tenant := range []string{"t1", "t2"} {
		resp, err := svc.Search(testContext(), service.SearchRequest{TenantID: tenant, Query: "same"})
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if resp.Answer != tenant {
			t.Errorf("Answer = %q, want %q", resp.Answer, tenant)
		}
	}
}

func TestSearchService_Errors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{name: "embedding failure", err: fmt.Errorf("%w: %w", rag.ErrQueryEmbedding, errors.New("timeout")), wantErr: service.ErrExternalService},
		{name: "other failure", err: errors.New("boom"), wantErr: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			searcher := mocks.NewMockSearcher(ctrl)
			svc := service.NewSearchService(searcher, newResponseCache(), 0)
			searcher.EXPECT().Search(gomock.Any(), gomock.Any()).Return(nil, tt.err)

			_, err := svc.Search(testContext(), service.SearchRequest{TenantID: "t1", Query: "q"})
			if err == nil {
				t.Fatal("Search() expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Search() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && errors.Is(err, service.ErrExternalService) {
				t.Errorf("Search() error = %v, should not be ErrExternalService", err)
			}
		})
	}
}
