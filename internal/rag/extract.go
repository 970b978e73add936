package rag

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"diary-assistant/internal/contextutil"
	"diary-assistant/internal/llm"
)

const extractSystemPrompt = "You extract actionable tasks from meeting notes or diary entries. " +
	"Return a JSON array where each item has 'description' and optional 'due_date' (ISO format). " +
	"If no due date is specified, set it to null."

var (
	taskLinePattern  = regexp.MustCompile(`(?im)^(?:TODO|Action item|Task)[:\-]\s*(.+)$`)
	fencedJSONArray  = regexp.MustCompile("(?s)```(?:json)?\\s*(\\[.*?\\])\\s*```")
	bareJSONArray    = regexp.MustCompile(`(?s)(\[.*\])`)
	bulletLinePrefix = regexp.MustCompile(`^[-*•]\s*`)
)

// TaskExtractor finds action items in retrieved chunks. It never fails.
type TaskExtractor interface {
	Extract(ctx context.Context, chunks []string) []ExtractedTask
}

// LLMTaskExtractor asks a chat model for a JSON task list and falls back to
// line-prefix and Markdown task-list heuristics when the model is unconfigured or errors.
type LLMTaskExtractor struct {
	client ChatClient
	md     goldmark.Markdown
}

// NewLLMTaskExtractor creates an extractor. A nil client always uses the heuristics.
func NewLLMTaskExtractor(client ChatClient) *LLMTaskExtractor {
	return &LLMTaskExtractor{
		client: client,
		md:     goldmark.New(goldmark.WithExtensions(extension.TaskList)),
	}
}

// Extract returns the tasks found in chunks.
func (e *LLMTaskExtractor) Extract(ctx context.Context, chunks []string) []ExtractedTask {
	combined := strings.Join(chunks, "\n")
	if e.client == nil || !e.client.Configured() {
		return e.heuristic(combined)
	}

	content, err := e.client.ChatWithMessages(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: extractSystemPrompt},
		{Role: llm.RoleUser, Content: "Extract tasks from the following text:\n\n" + combined + "\n\nReturn JSON only."},
	}, llm.ChatParams{MaxTokens: 200})
	if err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "task extraction failed, using heuristics", "error", err)
		return e.heuristic(combined)
	}
	return parseTaskReply(content)
}

// heuristic collects prefixed lines first, then unchecked task-list items, without duplicates.
func (e *LLMTaskExtractor) heuristic(content string) []ExtractedTask {
	tasks := []ExtractedTask{}
	seen := make(map[string]struct{})
	add := func(desc string) {
		desc = strings.TrimSpace(desc)
		if desc == "" {
			return
		}
		if _, dup := seen[desc]; dup {
			return
		}
		seen[desc] = struct{}{}
		tasks = append(tasks, ExtractedTask{Description: desc})
	}

	for _, m := range taskLinePattern.FindAllStringSubmatch(content, -1) {
		add(m[1])
	}
	for _, item := range e.openChecklistItems([]byte(content)) {
		add(item)
	}
	return tasks
}

// openChecklistItems returns the text of every unchecked "- [ ]" list item.
func (e *LLMTaskExtractor) openChecklistItems(source []byte) []string {
	doc := e.md.Parser().Parse(text.NewReader(source))

	var items []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		box, ok := n.(*extast.TaskCheckBox)
		if !ok || box.IsChecked {
			return ast.WalkContinue, nil
		}
		if parent := box.Parent(); parent != nil {
			items = append(items, inlineText(parent, source))
		}
		return ast.WalkSkipChildren, nil
	})
	return items
}

// inlineText concatenates the text segments below n.
func inlineText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

type taskReplyItem struct {
	Description string  `json:"description"`
	DueDate     *string `json:"due_date"`
}

// parseTaskReply decodes a model reply holding a JSON array (optionally fenced)
// of task objects or strings, or a single task object. Unparseable replies fall
// back to bullet lines, then to the whole reply as one task.
func parseTaskReply(content string) []ExtractedTask {
	payload := content
	if m := fencedJSONArray.FindStringSubmatch(content); m != nil {
		payload = m[1]
	} else if m := bareJSONArray.FindStringSubmatch(content); m != nil {
		payload = m[1]
	}
	payload = strings.TrimSpace(payload)

	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &raw); err == nil {
		tasks := make([]ExtractedTask, 0, len(raw))
		for _, item := range raw {
			if task, ok := decodeTaskItem(item); ok {
				tasks = append(tasks, task)
			}
		}
		return tasks
	}

	var single taskReplyItem
	if err := json.Unmarshal([]byte(payload), &single); err == nil {
		return []ExtractedTask{toExtractedTask(single)}
	}

	tasks := []ExtractedTask{}
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if !bulletLinePrefix.MatchString(line) {
			continue
		}
		if desc := strings.TrimSpace(bulletLinePrefix.ReplaceAllString(line, "")); desc != "" {
			tasks = append(tasks, ExtractedTask{Description: desc})
		}
	}
	if len(tasks) == 0 && strings.TrimSpace(content) != "" {
		tasks = append(tasks, ExtractedTask{Description: strings.TrimSpace(content)})
	}
	return tasks
}

func decodeTaskItem(raw json.RawMessage) (ExtractedTask, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return ExtractedTask{Description: strings.TrimSpace(s)}, true
	}
	var item taskReplyItem
	if err := json.Unmarshal(raw, &item); err == nil {
		return toExtractedTask(item), true
	}
	return ExtractedTask{}, false
}

func toExtractedTask(item taskReplyItem) ExtractedTask {
	task := ExtractedTask{Description: strings.TrimSpace(item.Description)}
	if item.DueDate != nil {
		task.DueDate = strings.TrimSpace(*item.DueDate)
	}
	return task
}
