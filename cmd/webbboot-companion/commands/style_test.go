package commands

import (
	"strings"
	"testing"

	"github.com/webbboot/companion/pkg/progress"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{0, "0 B"},
		{999, "999 B"},
		{1000, "1.0 kB"},
		{16_008_609_792, "16.0 GB"},
		{2_000_000_000_000, "2.0 TB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestProgressLine(t *testing.T) {
	line := progressLine(progress.Event{Status: "Formatting device...", Progress: 10, Operation: progress.OpFormatting})
	if !strings.Contains(line, "10%") || !strings.Contains(line, "Formatting device...") {
		t.Errorf("unexpected line %q", line)
	}
}
