package shared

import (
	"bytes"
	"strings"
	"testing"
)

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf)
	child := WithLogger(logger, "platform", "spotify")

	child.Info("token refreshed")

	out := buf.String()
	if !strings.Contains(out, "platform=spotify") {
		t.Errorf("expected platform field in output, got %q", out)
	}
	if !strings.Contains(out, "token refreshed") {
		t.Errorf("expected message in output, got %q", out)
	}
}

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if a == b {
		t.Error("expected distinct ids")
	}
	if len(a) != 36 {
		t.Errorf("unexpected id length %d", len(a))
	}
}

func TestBrowserCommand(t *testing.T) {
	cases := []struct {
		goos string
		name string
	}{
		{"darwin", "open"},
		{"linux", "xdg-open"},
		{"windows", "rundll32"},
	}

	for _, tc := range cases {
		t.Run(tc.goos, func(t *testing.T) {
			cmd, err := browserCommand(tc.goos, "https://example.com/auth")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := cmd.Args[0]; !strings.HasSuffix(got, tc.name) {
				t.Errorf("launcher = %q, want %q", got, tc.name)
			}
			if got := cmd.Args[len(cmd.Args)-1]; got != "https://example.com/auth" {
				t.Errorf("url = %q", got)
			}
		})
	}

	t.Run("unsupported", func(t *testing.T) {
		if _, err := browserCommand("plan9", "https://example.com"); err == nil {
			t.Error("expected an error")
		}
	})
}
