package list

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/ardanlabs/llamachat/sdk/tools/models"
)

func Test_FormatSize(t *testing.T) {
	table := []struct {
		bytes int64
		exp   string
	}{
		{bytes: 512, exp: "512 B"},
		{bytes: 2048, exp: "2.0 KB"},
		{bytes: 5 * 1024 * 1024, exp: "5.0 MB"},
		{bytes: 8_700_000_000, exp: "8.1 GB"},
	}

	for _, tt := range table {
		if got := formatSize(tt.bytes); got != tt.exp {
			t.Errorf("%d: got %q, exp %q", tt.bytes, got, tt.exp)
		}
	}
}

func Test_FormatTime(t *testing.T) {
	now := time.Date(2025, 11, 20, 12, 0, 0, 0, time.UTC)

	table := []struct {
		ago time.Duration
		exp string
	}{
		{ago: 10 * time.Second, exp: "just now"},
		{ago: time.Minute, exp: "1 minute ago"},
		{ago: 5 * time.Hour, exp: "5 hours ago"},
		{ago: 3 * 24 * time.Hour, exp: "3 days ago"},
		{ago: 14 * 24 * time.Hour, exp: "2 weeks ago"},
		{ago: 65 * 24 * time.Hour, exp: "2 months ago"},
	}

	for _, tt := range table {
		if got := formatTime(now, now.Add(-tt.ago)); got != tt.exp {
			t.Errorf("%v: got %q, exp %q", tt.ago, got, tt.exp)
		}
	}
}

func Test_PrintFiles(t *testing.T) {
	now := time.Now()

	files := []models.File{
		{ID: "qwen3-8b-q8_0", OwnedBy: "unsloth", ModelFamily: "Qwen3-8B-GGUF", Shards: 1, Size: 2048, Modified: now},
	}

	var buf bytes.Buffer
	printFiles(&buf, files, now)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, exp 2:\n%s", len(lines), buf.String())
	}

	for _, want := range []string{"qwen3-8b-q8_0", "unsloth", "Qwen3-8B-GGUF", "2.0 KB", "just now"} {
		if !strings.Contains(lines[1], want) {
			t.Errorf("row %q is missing %q", lines[1], want)
		}
	}
}
