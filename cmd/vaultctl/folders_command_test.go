package main

import (
	"strings"
	"testing"

	"image-vault/internal/collection"
)

func TestHumanBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0B"},
		{512, "512B"},
		{2048, "2.0KiB"},
		{3 * 1024 * 1024, "3.0MiB"},
		{int64(1.5 * 1024 * 1024 * 1024), "1.5GiB"},
	}
	for _, tt := range tests {
		if got := humanBytes(tt.in); got != tt.want {
			t.Errorf("humanBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPrintFolders(t *testing.T) {
	var sb strings.Builder
	printFolders(&sb, []collection.CacheFolder{
		{Name: "fast", Path: "/mnt/fast", Priority: 10, CurrentSize: 2048, FileCount: 7, Active: true},
	})
	out := sb.String()
	if !strings.Contains(out, "fast") || !strings.Contains(out, "2.0KiB") {
		t.Errorf("unexpected output:\n%s", out)
	}

	sb.Reset()
	printFolders(&sb, nil)
	if !strings.Contains(sb.String(), "no cache folders configured") {
		t.Errorf("unexpected empty output: %s", sb.String())
	}
}
