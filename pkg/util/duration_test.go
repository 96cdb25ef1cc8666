package util

import (
	"testing"
	"time"
)

func TestParseWindow(t *testing.T) {
	cases := map[string]time.Duration{
		"24h":     24 * time.Hour,
		"90m":     90 * time.Minute,
		"7d":      7 * 24 * time.Hour,
		" 1d ":    24 * time.Hour,
		"106751d": 106751 * 24 * time.Hour,
	}
	for in, want := range cases {
		got, err := ParseWindow(in)
		if err != nil || got != want {
			t.Fatalf("ParseWindow(%q)=%v, %v want %v", in, got, err, want)
		}
	}
}

func TestParseWindowRejects(t *testing.T) {
	for _, in := range []string{"", "d", "-1d", "0h", "-5m", "soon", "200000d", "9223372036854775807d"} {
		if _, err := ParseWindow(in); err == nil {
			t.Fatalf("ParseWindow(%q) should fail", in)
		}
	}
}
