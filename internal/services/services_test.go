package services

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/crosstune/crosstune/internal/match"
	"github.com/crosstune/crosstune/internal/shared"
)

func testLogger() *log.Logger {
	return shared.NewLogger(io.Discard)
}

func TestDetectPlatform(t *testing.T) {
	cases := []struct {
		name     string
		link     string
		platform string
		wantErr  error
	}{
		{"spotify track", "https://open.spotify.com/track/4iV5W9uYEdYUVa79Axb7Rh", PlatformSpotify, nil},
		{"youtube watch", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", PlatformYouTube, nil},
		{"youtube short link", "https://youtu.be/dQw4w9WgXcQ", PlatformYouTube, nil},
		{"youtube music", "https://music.youtube.com/watch?v=abc", PlatformYouTube, nil},
		{"apple music", "https://music.apple.com/us/album/x/123", PlatformAppleMusic, nil},
		{"deezer", "https://www.deezer.com/en/track/3135556", PlatformDeezer, nil},
		{"unknown host", "https://soundcloud.com/artist/track", "", shared.ErrUnknownPlatform},
		{"not a url", "not a link", "", shared.ErrInvalidLink},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			platform, err := DetectPlatform(tc.link)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Errorf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if platform != tc.platform {
				t.Errorf("expected %s, got %s", tc.platform, platform)
			}
		})
	}
}

func TestParseLinks(t *testing.T) {
	t.Run("spotify", func(t *testing.T) {
		kind, id, err := ParseSpotifyLink("https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M?si=abc123")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if kind != "playlist" || id != "37i9dQZF1DXcBWIGoYBM5M" {
			t.Errorf("got %s/%s", kind, id)
		}

		if _, _, err := ParseSpotifyLink("https://open.spotify.com/artist/abc"); !errors.Is(err, shared.ErrInvalidLink) {
			t.Errorf("expected ErrInvalidLink for artist link, got %v", err)
		}
	})

	t.Run("deezer skips locale prefix", func(t *testing.T) {
		kind, id, err := ParseDeezerLink("https://www.deezer.com/fr/playlist/1234567")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if kind != "playlist" || id != "1234567" {
			t.Errorf("got %s/%s", kind, id)
		}
	})

	t.Run("youtube variants", func(t *testing.T) {
		cases := []struct {
			link string
			kind string
			id   string
		}{
			{"https://youtu.be/dQw4w9WgXcQ", "video", "dQw4w9WgXcQ"},
			{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "video", "dQw4w9WgXcQ"},
			{"https://www.youtube.com/playlist?list=PL123", "playlist", "PL123"},
			{"https://music.youtube.com/watch?v=abc&list=PL9", "playlist", "PL9"},
		}
		for _, tc := range cases {
			kind, id, err := ParseYouTubeLink(tc.link)
			if err != nil {
				t.Errorf("%s: unexpected error: %v", tc.link, err)
				continue
			}
			if kind != tc.kind || id != tc.id {
				t.Errorf("%s: got %s/%s, want %s/%s", tc.link, kind, id, tc.kind, tc.id)
			}
		}
	})
}

type stubTarget struct {
	mockTargetBase
	queries []QueryTransform
	results map[string][]match.Candidate
	errs    map[string]error
	calls   []string
}

type mockTargetBase struct{}

func (mockTargetBase) Name() string           { return "stub" }
func (mockTargetBase) Profile() match.Profile { return match.Default }
func (mockTargetBase) MaxBatch() int          { return 100 }
func (mockTargetBase) CurrentUser(ctx context.Context) (string, error) {
	return "user", nil
}
func (mockTargetBase) CreatePlaylist(ctx context.Context, name, description string) (string, string, error) {
	return "", "", nil
}
func (mockTargetBase) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	return nil
}

func (s *stubTarget) SearchQueries() []QueryTransform { return s.queries }

func (s *stubTarget) Search(ctx context.Context, query string) ([]match.Candidate, error) {
	s.calls = append(s.calls, query)
	if err, ok := s.errs[query]; ok {
		return nil, err
	}
	return s.results[query], nil
}

func TestSearchWithFallbacks(t *testing.T) {
	q := match.Query{Title: "Song", Artist: "Artist"}

	t.Run("stops at first strategy with candidates", func(t *testing.T) {
		target := &stubTarget{
			queries: []QueryTransform{
				func(q match.Query) string { return q.Title + " " + q.Artist },
				func(q match.Query) string { return q.Title },
			},
			results: map[string][]match.Candidate{
				"Song Artist": {{ExternalID: "hit"}},
			},
		}

		candidates, err := SearchWithFallbacks(context.Background(), target, q, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(candidates) != 1 || candidates[0].ExternalID != "hit" {
			t.Errorf("unexpected candidates: %v", candidates)
		}
		if len(target.calls) != 1 {
			t.Errorf("expected 1 search call, got %d", len(target.calls))
		}
	})

	t.Run("falls through empty strategies", func(t *testing.T) {
		target := &stubTarget{
			queries: []QueryTransform{
				func(q match.Query) string { return "" },
				func(q match.Query) string { return q.Title },
			},
			results: map[string][]match.Candidate{
				"Song": {{ExternalID: "fallback"}},
			},
		}

		candidates, err := SearchWithFallbacks(context.Background(), target, q, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(candidates) != 1 || candidates[0].ExternalID != "fallback" {
			t.Errorf("unexpected candidates: %v", candidates)
		}
	})

	t.Run("all strategies dry returns empty without error", func(t *testing.T) {
		target := &stubTarget{
			queries: []QueryTransform{
				func(q match.Query) string { return q.Title },
			},
		}

		candidates, err := SearchWithFallbacks(context.Background(), target, q, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if candidates != nil {
			t.Errorf("expected nil candidates, got %v", candidates)
		}
	})

	t.Run("error surfaces only when every strategy fails", func(t *testing.T) {
		boom := errors.New("boom")
		target := &stubTarget{
			queries: []QueryTransform{
				func(q match.Query) string { return q.Title + " " + q.Artist },
				func(q match.Query) string { return q.Title },
			},
			errs: map[string]error{"Song Artist": boom},
			results: map[string][]match.Candidate{
				"Song": {{ExternalID: "recovered"}},
			},
		}

		candidates, err := SearchWithFallbacks(context.Background(), target, q, nil)
		if err != nil {
			t.Fatalf("expected fallback to recover, got %v", err)
		}
		if len(candidates) != 1 {
			t.Errorf("unexpected candidates: %v", candidates)
		}

		target = &stubTarget{
			queries: []QueryTransform{
				func(q match.Query) string { return q.Title },
			},
			errs: map[string]error{"Song": boom},
		}
		if _, err := SearchWithFallbacks(context.Background(), target, q, nil); !errors.Is(err, boom) {
			t.Errorf("expected boom, got %v", err)
		}
	})
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	registry.AddTarget(&stubTarget{})

	t.Run("routes by platform name", func(t *testing.T) {
		if _, err := registry.TargetFor("stub"); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if _, err := registry.TargetFor("STUB"); err != nil {
			t.Errorf("lookup should be case insensitive: %v", err)
		}
	})

	t.Run("unknown platform rejected", func(t *testing.T) {
		if _, err := registry.TargetFor("tidal"); !errors.Is(err, shared.ErrUnknownPlatform) {
			t.Errorf("expected ErrUnknownPlatform, got %v", err)
		}
	})

	t.Run("resolver routing is fail fast on bad links", func(t *testing.T) {
		if _, err := registry.ResolverFor("https://soundcloud.com/x"); !errors.Is(err, shared.ErrUnknownPlatform) {
			t.Errorf("expected ErrUnknownPlatform, got %v", err)
		}
	})
}

func TestParseISO8601Duration(t *testing.T) {
	cases := []struct {
		raw  string
		want int
	}{
		{"PT3M54S", 234},
		{"PT1H2M3S", 3723},
		{"PT45S", 45},
		{"PT2M", 120},
		{"", 0},
		{"garbage", 0},
	}

	for _, tc := range cases {
		if got := parseISO8601Duration(tc.raw); got != tc.want {
			t.Errorf("parseISO8601Duration(%q) = %d, want %d", tc.raw, got, tc.want)
		}
	}
}

func TestSplitVideoTitle(t *testing.T) {
	t.Run("artist dash title convention", func(t *testing.T) {
		title, artist := splitVideoTitle("Ed Sheeran - Shape of You", "Ed Sheeran")
		if title != "Shape of You" || artist != "Ed Sheeran" {
			t.Errorf("got %q / %q", title, artist)
		}
	})

	t.Run("falls back to channel name", func(t *testing.T) {
		title, artist := splitVideoTitle("Shape of You", "Ed Sheeran - Topic")
		if title != "Shape of You" || artist != "Ed Sheeran" {
			t.Errorf("got %q / %q", title, artist)
		}
	})
}
