package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"diary-assistant/internal/indexer"
)

func TestRootCmd_RequiresExactlyOneTarget(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "neither", args: []string{}},
		{name: "both", args: []string{"--tenant", "acme", "--all"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCmd()
			cmd.SetArgs(tt.args)
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})

			err := cmd.Execute()
			if err == nil || !strings.Contains(err.Error(), "exactly one of") {
				t.Errorf("Execute() error = %v, want target validation error", err)
			}
		})
	}
}

func TestPrintStats(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)

	printStats(cmd, []*indexer.RebuildStats{
		{TenantID: "acme", NotesTotal: 3, ChunksEmbedded: 7, Duration: time.Second},
		nil,
		{TenantID: "globex", Removed: true},
	}, false)

	got := out.String()
	if !strings.Contains(got, "acme\tindexed\tnotes=3 chunks=7") {
		t.Errorf("output %q missing acme line", got)
	}
	if !strings.Contains(got, "globex\tremoved") {
		t.Errorf("output %q missing globex line", got)
	}
}
