// Deezer resolver over the public unauthenticated JSON API.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/crosstune/crosstune/internal/match"
	"github.com/crosstune/crosstune/internal/shared"
)

const deezerBaseURL = "https://api.deezer.com"

type deezerTrack struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Duration int    `json:"duration"`
	Artist   struct {
		Name string `json:"name"`
	} `json:"artist"`
	Album struct {
		Title string `json:"title"`
	} `json:"album"`
}

type deezerPlaylist struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Tracks      struct {
		Data []deezerTrack `json:"data"`
	} `json:"tracks"`
}

type deezerError struct {
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// DeezerService resolves deezer.com track and playlist links.
type DeezerService struct {
	httpClient *http.Client
	logger     *log.Logger
	baseURL    string
}

func NewDeezerService(httpClient *http.Client, logger *log.Logger) *DeezerService {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &DeezerService{httpClient: httpClient, logger: logger, baseURL: deezerBaseURL}
}

func (s *DeezerService) Name() string { return "deezer" }

// ParseDeezerLink extracts the resource kind and id from a deezer.com URL.
// Locale prefixes like /en/ or /fr/ are skipped.
func ParseDeezerLink(link string) (kind, id string, err error) {
	u, err := url.Parse(link)
	if err != nil || !strings.Contains(u.Host, "deezer.com") {
		return "", "", fmt.Errorf("%w: not a deezer link: %s", shared.ErrInvalidLink, link)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, part := range parts {
		if (part == "track" || part == "playlist" || part == "album") && i+1 < len(parts) {
			return part, parts[i+1], nil
		}
	}

	return "", "", fmt.Errorf("%w: %s", shared.ErrInvalidLink, link)
}

// Resolve fetches the track or playlist behind a Deezer link.
func (s *DeezerService) Resolve(ctx context.Context, link string) (*Playlist, error) {
	kind, id, err := ParseDeezerLink(link)
	if err != nil {
		return nil, err
	}

	if kind == "track" {
		var track deezerTrack
		if err := s.get(ctx, "/track/"+id, &track); err != nil {
			return nil, err
		}
		q := deezerTrackQuery(track)
		return &Playlist{Name: q.Title, Tracks: []match.Query{q}}, nil
	}

	endpoint := "/" + kind + "/" + id
	var playlist deezerPlaylist
	if err := s.get(ctx, endpoint, &playlist); err != nil {
		return nil, err
	}

	tracks := make([]match.Query, 0, len(playlist.Tracks.Data))
	for _, t := range playlist.Tracks.Data {
		q := deezerTrackQuery(t)
		if kind == "album" && q.Album == "" {
			q.Album = playlist.Title
		}
		tracks = append(tracks, q)
	}

	return &Playlist{
		Name:        playlist.Title,
		Description: playlist.Description,
		Tracks:      tracks,
	}, nil
}

func (s *DeezerService) get(ctx context.Context, endpoint string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: deezer status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	var buf json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&buf); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	// Deezer returns HTTP 200 with an error envelope for missing resources.
	var apiErr deezerError
	if err := json.Unmarshal(buf, &apiErr); err == nil && apiErr.Error != nil {
		if apiErr.Error.Code == 800 {
			return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, apiErr.Error.Message)
		}
		return fmt.Errorf("%w: deezer: %s", shared.ErrAPIRequest, apiErr.Error.Message)
	}

	return json.Unmarshal(buf, result)
}

func deezerTrackQuery(t deezerTrack) match.Query {
	return match.Query{
		Title:    t.Title,
		Artist:   t.Artist.Name,
		Album:    t.Album.Title,
		Duration: t.Duration,
	}
}
