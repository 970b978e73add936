package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"diary-assistant/internal/llm"
)

type fakeChat struct {
	configured bool
	reply      string
	err        error
	calls      int
	lastParams llm.ChatParams
}

func (c *fakeChat) Configured() bool { return c.configured }

func (c *fakeChat) ChatWithMessages(_ context.Context, _ []llm.Message, params llm.ChatParams) (string, error) {
	c.calls++
	c.lastParams = params
	return c.reply, c.err
}

func TestLLMSummarizer_Summarize(t *testing.T) {
	long := strings.Repeat("é", 250)
	tests := []struct {
		name   string
		client *fakeChat
		chunks []string
		want   string
	}{
		{
			name:   "unconfigured short text",
			client: &fakeChat{},
			chunks: []string{"first", "second"},
			want:   "first\nsecond",
		},
		{
			name:   "unconfigured truncates by rune",
			client: &fakeChat{},
			chunks: []string{long},
			want:   strings.Repeat("é", 200) + "...",
		},
		{
			name:   "model reply trimmed",
			client: &fakeChat{configured: true, reply: "  A summary.  "},
			chunks: []string{"text"},
			want:   "A summary.",
		},
		{
			name:   "model error falls back",
			client: &fakeChat{configured: true, err: errors.New("boom")},
			chunks: []string{"text"},
			want:   "text",
		},
		{
			name:   "empty reply falls back",
			client: &fakeChat{configured: true, reply: "   "},
			chunks: []string{"text"},
			want:   "text",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewLLMSummarizer(tt.client).Summarize(context.Background(), tt.chunks, "query")
			if got != tt.want {
				t.Errorf("Summarize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLLMSummarizer_NilClient(t *testing.T) {
	if got := NewLLMSummarizer(nil).Summarize(context.Background(), []string{"x"}, ""); got != "x" {
		t.Errorf("Summarize() = %q, want x", got)
	}
}

func descriptions(tasks []ExtractedTask) []string {
	out := make([]string, len(tasks))
	for i, task := range tasks {
		out[i] = task.Description
	}
	return out
}

func TestLLMTaskExtractor_Heuristic(t *testing.T) {
	text := strings.Join([]string{
		"Had a long day.",
		"TODO: call the plumber",
		"action item- send invoice",
		"Task:book flights",
		"Not a task: really",
		"",
		"- [ ] water the plants",
		"- [x] pay rent",
		"- [ ] **renew** passport",
		"* plain bullet",
		"todo: call the plumber",
	}, "\n")

	got := NewLLMTaskExtractor(nil).Extract(context.Background(), []string{text})
	want := []string{"call the plumber", "send invoice", "book flights", "water the plants", "renew passport"}
	if !equalStrings(descriptions(got), want) {
		t.Errorf("Extract() = %v, want %v", descriptions(got), want)
	}
	for _, task := range got {
		if task.DueDate != "" {
			t.Errorf("heuristic task %q has due date %q", task.Description, task.DueDate)
		}
	}
}

func TestLLMTaskExtractor_ModelReply(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  []ExtractedTask
	}{
		{
			name:  "json array",
			reply: `[{"description": "Send report", "due_date": "2024-05-01"}, {"description": "Call Bob", "due_date": null}]`,
			want:  []ExtractedTask{{Description: "Send report", DueDate: "2024-05-01"}, {Description: "Call Bob"}},
		},
		{
			name:  "fenced json",
			reply: "Here you go:\n```json\n[{\"description\": \"Fix bike\"}]\n```",
			want:  []ExtractedTask{{Description: "Fix bike"}},
		},
		{
			name:  "array of strings",
			reply: `["Buy milk", " Walk dog "]`,
			want:  []ExtractedTask{{Description: "Buy milk"}, {Description: "Walk dog"}},
		},
		{
			name:  "single object",
			reply: `{"description": "Only one"}`,
			want:  []ExtractedTask{{Description: "Only one"}},
		},
		{
			name:  "bullet fallback",
			reply: "Tasks:\n- first thing\n* second thing\n• third thing",
			want:  []ExtractedTask{{Description: "first thing"}, {Description: "second thing"}, {Description: "third thing"}},
		},
		{
			name:  "whole reply fallback",
			reply: "Remember to stretch",
			want:  []ExtractedTask{{Description: "Remember to stretch"}},
		},
		{
			name:  "empty array",
			reply: "[]",
			want:  []ExtractedTask{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeChat{configured: true, reply: tt.reply}
			got := NewLLMTaskExtractor(client).Extract(context.Background(), []string{"notes"})
			if len(got) != len(tt.want) {
				t.Fatalf("Extract() = %+v, want %+v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Extract()[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
			if client.lastParams.MaxTokens != 200 {
				t.Errorf("MaxTokens = %d, want 200", client.lastParams.MaxTokens)
			}
		})
	}
}

func TestLLMTaskExtractor_ModelErrorFallsBack(t *testing.T) {
	client := &fakeChat{configured: true, err: errors.New("timeout")}
	got := NewLLMTaskExtractor(client).Extract(context.Background(), []string{"TODO: fallback works"})
	if !equalStrings(descriptions(got), []string{"fallback works"}) {
		t.Errorf("Extract() = %v", descriptions(got))
	}
	if client.calls != 1 {
		t.Errorf("calls = %d, want 1", client.calls)
	}
}
