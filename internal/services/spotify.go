// Spotify implementation of [Resolver] and [Target].
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/crosstune/crosstune/internal/match"
	"github.com/crosstune/crosstune/internal/shared"
	"github.com/crosstune/crosstune/internal/transport"
	"golang.org/x/oauth2"
)

const (
	SpotifyAuthURL  = "https://accounts.spotify.com/authorize"
	SpotifyTokenURL = "https://accounts.spotify.com/api/token"

	spotifyBaseURL = "https://api.spotify.com/v1"
	spotifyHost    = "open.spotify.com"
)

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Artists      []SpotifyArtist `json:"artists"`
	Album        SpotifyAlbum    `json:"album"`
	DurationMS   int             `json:"duration_ms"`
	URI          string          `json:"uri"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
}

// SpotifyPlaylist represents a Spotify playlist with its first page of tracks.
type SpotifyPlaylist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Tracks      struct {
		Total int `json:"total"`
		Next  *string
		Items []struct {
			Track SpotifyTrack `json:"track"`
		} `json:"items"`
	} `json:"tracks"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
}

// NewSpotifyOAuthConfig builds the OAuth2 config for Spotify's
// authorization-code flow with the scopes conversion needs.
func NewSpotifyOAuthConfig(cfg shared.SpotifyConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes: []string{
			"user-read-private",
			"playlist-read-private",
			"playlist-modify-public",
			"playlist-modify-private",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  SpotifyAuthURL,
			TokenURL: SpotifyTokenURL,
		},
	}
}

// SpotifyService implements [Resolver] and [Target] against the Spotify Web
// API through the rate-limited authenticated client.
type SpotifyService struct {
	client  *transport.Client
	tokens  TokenStore
	logger  *log.Logger
	baseURL string

	// cached after the first CurrentUser call
	userID string
}

// NewSpotifyService creates a Spotify adapter. The transport client carries
// this platform's pacing budget and refresh endpoint.
func NewSpotifyService(client *transport.Client, tokens TokenStore, logger *log.Logger) *SpotifyService {
	return &SpotifyService{client: client, tokens: tokens, logger: logger, baseURL: spotifyBaseURL}
}

func (s *SpotifyService) Name() string { return "spotify" }

func (s *SpotifyService) Profile() match.Profile { return match.ProfileFor(s.Name()) }

func (s *SpotifyService) MaxBatch() int { return 100 }

// SearchQueries returns the single default strategy: Spotify's search copes
// well with "title artist" so no fallback chain is needed.
func (s *SpotifyService) SearchQueries() []QueryTransform {
	return []QueryTransform{
		func(q match.Query) string { return strings.TrimSpace(q.Title + " " + q.Artist) },
	}
}

// ParseSpotifyLink extracts the kind ("track" or "playlist") and id from an
// open.spotify.com URL, stripping tracking query parameters.
func ParseSpotifyLink(link string) (kind, id string, err error) {
	u, err := url.Parse(link)
	if err != nil || u.Host != spotifyHost {
		return "", "", fmt.Errorf("%w: not a spotify link: %s", shared.ErrInvalidLink, link)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("%w: %s", shared.ErrInvalidLink, link)
	}

	kind, id = parts[len(parts)-2], parts[len(parts)-1]
	if kind != "track" && kind != "playlist" {
		return "", "", fmt.Errorf("%w: unsupported spotify resource %q", shared.ErrInvalidLink, kind)
	}
	if id == "" {
		return "", "", fmt.Errorf("%w: %s", shared.ErrInvalidLink, link)
	}

	return kind, id, nil
}

// doRequest performs an authenticated request against the Spotify API,
// decoding the JSON response into result. Refreshed tokens are written back
// to the token store explicitly.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	tok, err := s.tokens.Tokens(s.Name())
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrNotAuthenticated, err)
	}

	var payload []byte
	if body != nil {
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	build := func(accessToken string) (*http.Request, error) {
		var reader *bytes.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		} else {
			reader = bytes.NewReader(nil)
		}

		req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	resp, refreshed, err := s.client.Do(ctx, build, tok)
	if refreshed != nil {
		if saveErr := s.tokens.SaveTokens(s.Name(), *refreshed); saveErr != nil {
			s.logger.Warn("failed to persist refreshed tokens", "platform", s.Name(), "err", saveErr)
		}
	}
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: spotify status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// Resolve fetches the track or playlist behind a Spotify link and
// normalizes it into canonical track queries.
func (s *SpotifyService) Resolve(ctx context.Context, link string) (*Playlist, error) {
	kind, id, err := ParseSpotifyLink(link)
	if err != nil {
		return nil, err
	}

	if kind == "track" {
		var track SpotifyTrack
		if err := s.doRequest(ctx, http.MethodGet, "/tracks/"+id, nil, &track); err != nil {
			return nil, err
		}
		q := spotifyTrackQuery(track)
		return &Playlist{Name: q.Title, Tracks: []match.Query{q}}, nil
	}

	var playlist SpotifyPlaylist
	if err := s.doRequest(ctx, http.MethodGet, "/playlists/"+id, nil, &playlist); err != nil {
		return nil, err
	}

	tracks := make([]match.Query, 0, playlist.Tracks.Total)
	for _, item := range playlist.Tracks.Items {
		tracks = append(tracks, spotifyTrackQuery(item.Track))
	}

	// The playlist endpoint returns at most 100 items; page through the rest.
	for offset := len(tracks); offset < playlist.Tracks.Total; {
		var page struct {
			Items []struct {
				Track SpotifyTrack `json:"track"`
			} `json:"items"`
			Next *string `json:"next"`
		}

		endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=100&offset=%d", id, offset)
		if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}
		if len(page.Items) == 0 {
			break
		}

		for _, item := range page.Items {
			tracks = append(tracks, spotifyTrackQuery(item.Track))
		}
		offset += len(page.Items)

		if page.Next == nil {
			break
		}
	}

	return &Playlist{
		Name:        playlist.Name,
		Description: playlist.Description,
		Tracks:      tracks,
	}, nil
}

// Search issues a track search and normalizes results into candidates. The
// ExternalID is the track URI, the destination-ready identifier AddTracks
// expects.
func (s *SpotifyService) Search(ctx context.Context, query string) ([]match.Candidate, error) {
	endpoint := fmt.Sprintf("/search?q=%s&type=track&limit=10", url.QueryEscape(query))

	var response struct {
		Tracks struct {
			Items []SpotifyTrack `json:"items"`
		} `json:"tracks"`
	}

	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	candidates := make([]match.Candidate, 0, len(response.Tracks.Items))
	for _, t := range response.Tracks.Items {
		c := match.Candidate{
			ExternalID: t.URI,
			Title:      t.Name,
			Album:      t.Album.Name,
			Duration:   t.DurationMS / 1000,
			Link:       t.ExternalURLs.Spotify,
		}
		if len(t.Artists) > 0 {
			names := make([]string, len(t.Artists))
			for i, a := range t.Artists {
				names[i] = a.Name
			}
			c.Artist = strings.Join(names, " ")
		}
		candidates = append(candidates, c)
	}

	return candidates, nil
}

// CurrentUser returns the authenticated user's id, cached per adapter.
func (s *SpotifyService) CurrentUser(ctx context.Context) (string, error) {
	if s.userID != "" {
		return s.userID, nil
	}

	var user struct {
		ID string `json:"id"`
	}
	if err := s.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return "", err
	}

	s.userID = user.ID
	return user.ID, nil
}

// CreatePlaylist creates a private playlist for the authenticated user.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, name, description string) (string, string, error) {
	userID, err := s.CurrentUser(ctx)
	if err != nil {
		return "", "", err
	}

	body := map[string]any{
		"name":        name,
		"description": description,
		"public":      false,
	}

	var created SpotifyPlaylist
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(userID))
	if err := s.doRequest(ctx, http.MethodPost, endpoint, body, &created); err != nil {
		return "", "", fmt.Errorf("%w: %v", shared.ErrDestinationWrite, err)
	}

	return created.ID, created.ExternalURLs.Spotify, nil
}

// AddTracks appends up to MaxBatch track URIs to a playlist in one call.
func (s *SpotifyService) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	if len(trackIDs) == 0 {
		return nil
	}
	if len(trackIDs) > s.MaxBatch() {
		return fmt.Errorf("%w: batch of %d exceeds spotify cap of %d", shared.ErrDestinationWrite, len(trackIDs), s.MaxBatch())
	}

	body := map[string]any{"uris": trackIDs}
	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	if err := s.doRequest(ctx, http.MethodPost, endpoint, body, nil); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrDestinationWrite, err)
	}

	return nil
}

func spotifyTrackQuery(t SpotifyTrack) match.Query {
	q := match.Query{
		Title:    t.Name,
		Album:    t.Album.Name,
		Duration: t.DurationMS / 1000,
	}
	if len(t.Artists) > 0 {
		q.Artist = t.Artists[0].Name
	}
	return q
}
