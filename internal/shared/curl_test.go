package shared

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleCurl = `curl 'https://music.apple.com/us/album/divide/1193701079' \
  -H 'accept: text/html,application/xhtml+xml' \
  -H 'accept-language: en-US,en;q=0.9' \
  -H "user-agent: Mozilla/5.0 (Macintosh)" \
  -b 'geo=us; s_vi=test'`

func TestParseCurlCommand(t *testing.T) {
	t.Run("extracts headers and cookie", func(t *testing.T) {
		headers, err := ParseCurlCommand([]byte(sampleCurl))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if headers.Headers["accept-language"] != "en-US,en;q=0.9" {
			t.Errorf("unexpected headers: %v", headers.Headers)
		}
		if headers.Headers["user-agent"] != "Mozilla/5.0 (Macintosh)" {
			t.Error("expected double-quoted header parsed")
		}
		if headers.Cookie != "geo=us; s_vi=test" {
			t.Errorf("unexpected cookie: %s", headers.Cookie)
		}
	})

	t.Run("cookie header folded into cookie field", func(t *testing.T) {
		headers, err := ParseCurlCommand([]byte(`curl 'https://x' -H 'Cookie: a=1; b=2'`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if headers.Cookie != "a=1; b=2" {
			t.Errorf("unexpected cookie: %s", headers.Cookie)
		}
		if _, ok := headers.Headers["Cookie"]; ok {
			t.Error("cookie should not remain in headers map")
		}
	})

	t.Run("no headers is an error", func(t *testing.T) {
		if _, err := ParseCurlCommand([]byte(`curl 'https://x'`)); err == nil {
			t.Error("expected error for bare curl command")
		}
	})
}

func TestHeadersRoundtrip(t *testing.T) {
	headers, err := ParseCurlCommand([]byte(sampleCurl))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "headers.json")
	if err := SaveHeaders(headers, path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := LoadHeaders(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if loaded.Cookie != headers.Cookie || len(loaded.Headers) != len(headers.Headers) {
		t.Errorf("roundtrip mismatch: %+v vs %+v", loaded, headers)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("headers file should be 0600, got %v", info.Mode().Perm())
	}
}

func TestParseCurlFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "req.sh")
	if err := os.WriteFile(path, []byte(sampleCurl), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	headers, err := ParseCurlFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(headers.Headers) == 0 {
		t.Error("expected headers parsed from file")
	}
}
