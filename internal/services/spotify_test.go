package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/crosstune/crosstune/internal/transport"
)

type memoryTokens struct {
	tokens map[string]transport.Tokens
}

func newMemoryTokens(platform string, t transport.Tokens) *memoryTokens {
	return &memoryTokens{tokens: map[string]transport.Tokens{platform: t}}
}

func (m *memoryTokens) Tokens(platform string) (transport.Tokens, error) {
	t, ok := m.tokens[platform]
	if !ok {
		return t, fmt.Errorf("no tokens for %s", platform)
	}
	return t, nil
}

func (m *memoryTokens) SaveTokens(platform string, t transport.Tokens) error {
	m.tokens[platform] = t
	return nil
}

func newTestSpotify(t *testing.T, handler http.Handler) *SpotifyService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := transport.New(srv.Client(), 1000, nil, nil)
	svc := NewSpotifyService(client, newMemoryTokens("spotify", transport.Tokens{Access: "tok"}), testLogger())
	svc.baseURL = srv.URL
	return svc
}

func TestSpotifyResolve(t *testing.T) {
	t.Run("single track", func(t *testing.T) {
		svc := newTestSpotify(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/tracks/4iV5W9uYEdYUVa79Axb7Rh" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			json.NewEncoder(w).Encode(SpotifyTrack{
				ID:         "4iV5W9uYEdYUVa79Axb7Rh",
				Name:       "Shape of You",
				Artists:    []SpotifyArtist{{Name: "Ed Sheeran"}},
				Album:      SpotifyAlbum{Name: "Divide"},
				DurationMS: 233712,
			})
		}))

		playlist, err := svc.Resolve(context.Background(), "https://open.spotify.com/track/4iV5W9uYEdYUVa79Axb7Rh")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(playlist.Tracks) != 1 {
			t.Fatalf("expected 1 track, got %d", len(playlist.Tracks))
		}
		track := playlist.Tracks[0]
		if track.Title != "Shape of You" || track.Artist != "Ed Sheeran" || track.Duration != 233 {
			t.Errorf("unexpected track: %+v", track)
		}
	})

	t.Run("playlist pages through all tracks", func(t *testing.T) {
		svc := newTestSpotify(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/playlists/pl1":
				fmt.Fprint(w, `{
					"id": "pl1", "name": "Mix", "description": "test",
					"tracks": {"total": 150, "items": [`+trackItems(0, 100)+`]}
				}`)
			case "/playlists/pl1/tracks":
				if r.URL.Query().Get("offset") != "100" {
					t.Errorf("unexpected offset %s", r.URL.Query().Get("offset"))
				}
				fmt.Fprint(w, `{"items": [`+trackItems(100, 50)+`], "next": null}`)
			default:
				t.Errorf("unexpected path %s", r.URL.Path)
			}
		}))

		playlist, err := svc.Resolve(context.Background(), "https://open.spotify.com/playlist/pl1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if playlist.Name != "Mix" || len(playlist.Tracks) != 150 {
			t.Errorf("expected 150 tracks in Mix, got %d in %q", len(playlist.Tracks), playlist.Name)
		}
	})
}

func trackItems(start, count int) string {
	items := ""
	for i := start; i < start+count; i++ {
		if items != "" {
			items += ","
		}
		items += fmt.Sprintf(`{"track": {"id": "t%d", "name": "Song %d", "duration_ms": 200000}}`, i, i)
	}
	return items
}

func TestSpotifySearch(t *testing.T) {
	svc := newTestSpotify(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("type") != "track" {
			t.Errorf("expected track search, got %s", r.URL.Query().Get("type"))
		}
		fmt.Fprint(w, `{"tracks": {"items": [{
			"id": "abc", "name": "Shape of You", "uri": "spotify:track:abc",
			"artists": [{"name": "Ed Sheeran"}],
			"album": {"name": "Divide"},
			"duration_ms": 233712,
			"external_urls": {"spotify": "https://open.spotify.com/track/abc"}
		}]}}`)
	}))

	candidates, err := svc.Search(context.Background(), "shape of you ed sheeran")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	c := candidates[0]
	if c.ExternalID != "spotify:track:abc" {
		t.Errorf("expected track uri as external id, got %s", c.ExternalID)
	}
	if c.Duration != 233 || c.Link == "" {
		t.Errorf("unexpected candidate: %+v", c)
	}
}

func TestSpotifyWrite(t *testing.T) {
	t.Run("create playlist for current user", func(t *testing.T) {
		svc := newTestSpotify(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/me":
				fmt.Fprint(w, `{"id": "user1"}`)
			case "/users/user1/playlists":
				var body map[string]any
				json.NewDecoder(r.Body).Decode(&body)
				if body["public"] != false {
					t.Error("expected private playlist")
				}
				fmt.Fprint(w, `{"id": "pl9", "external_urls": {"spotify": "https://open.spotify.com/playlist/pl9"}}`)
			default:
				t.Errorf("unexpected path %s", r.URL.Path)
			}
		}))

		id, url, err := svc.CreatePlaylist(context.Background(), "🔁 Mix", "converted")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if id != "pl9" || url != "https://open.spotify.com/playlist/pl9" {
			t.Errorf("got %s / %s", id, url)
		}
	})

	t.Run("add tracks posts uris and enforces cap", func(t *testing.T) {
		var gotURIs []string
		svc := newTestSpotify(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				URIs []string `json:"uris"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			gotURIs = body.URIs
			fmt.Fprint(w, `{}`)
		}))

		if err := svc.AddTracks(context.Background(), "pl9", []string{"spotify:track:a", "spotify:track:b"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(gotURIs) != 2 {
			t.Errorf("expected 2 uris, got %v", gotURIs)
		}

		tooMany := make([]string, 101)
		for i := range tooMany {
			tooMany[i] = "spotify:track:" + strconv.Itoa(i)
		}
		if err := svc.AddTracks(context.Background(), "pl9", tooMany); err == nil {
			t.Error("expected error for oversized batch")
		}
	})
}
