package rag

import (
	"context"
	"fmt"
	"strings"

	"diary-assistant/internal/contextutil"
	"diary-assistant/internal/llm"
)

// fallbackSummaryRunes is the length of the heuristic summary.
const fallbackSummaryRunes = 200

const summarySystemPrompt = "You are a helpful assistant that summarises diary entries."

// ChatClient sends chat completions. llm.Client implements it.
type ChatClient interface {
	Configured() bool
	ChatWithMessages(ctx context.Context, messages []llm.Message, params llm.ChatParams) (string, error)
}

// Summarizer condenses retrieved chunks into an answer. It never fails.
type Summarizer interface {
	Summarize(ctx context.Context, chunks []string, query string) string
}

// LLMSummarizer summarises with a chat model and falls back to truncation
// when the model is unconfigured or errors.
type LLMSummarizer struct {
	client ChatClient
}

// NewLLMSummarizer creates a summarizer. A nil client always uses the fallback.
func NewLLMSummarizer(client ChatClient) *LLMSummarizer {
	return &LLMSummarizer{client: client}
}

// Summarize returns a concise answer for query built from chunks.
func (s *LLMSummarizer) Summarize(ctx context.Context, chunks []string, query string) string {
	combined := strings.Join(chunks, "\n")
	if s.client == nil || !s.client.Configured() {
		return truncateSummary(combined)
	}

	var prompt string
	if strings.TrimSpace(query) != "" {
		prompt = fmt.Sprintf("Summarise the following text with respect to the question: '%s'.\n\nText:\n%s", query, combined)
	} else {
		prompt = "Summarise the following diary entries in a concise paragraph.\n\nText:\n" + combined
	}

	answer, err := s.client.ChatWithMessages(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: summarySystemPrompt},
		{Role: llm.RoleUser, Content: prompt},
	}, llm.ChatParams{MaxTokens: 200, Temperature: 0.3})
	if err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "summarisation failed, using truncation", "error", err)
		return truncateSummary(combined)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return truncateSummary(combined)
	}
	return answer
}

// truncateSummary keeps the first fallbackSummaryRunes runes, marking the cut with "...".
func truncateSummary(text string) string {
	runes := []rune(text)
	if len(runes) <= fallbackSummaryRunes {
		return text
	}
	return string(runes[:fallbackSummaryRunes]) + "..."
}
