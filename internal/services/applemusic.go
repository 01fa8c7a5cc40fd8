// Apple Music resolver. Apple has no public API without a paid developer
// token, so playlists and tracks are scraped from the structured data
// embedded in public music.apple.com pages.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"
	"github.com/crosstune/crosstune/internal/match"
	"github.com/crosstune/crosstune/internal/shared"
)

const appleMusicHost = "music.apple.com"

// appleSchema mirrors the schema.org JSON-LD blob Apple embeds in page heads.
type appleSchema struct {
	Type        string `json:"@type"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Duration    string `json:"duration"`
	ByArtist    []struct {
		Name string `json:"name"`
	} `json:"byArtist"`
	InAlbum struct {
		Name string `json:"name"`
	} `json:"inAlbum"`
	Track []struct {
		Name     string `json:"name"`
		Duration string `json:"duration"`
		ByArtist []struct {
			Name string `json:"name"`
		} `json:"byArtist"`
	} `json:"track"`
}

// AppleMusicService resolves music.apple.com links by scraping.
type AppleMusicService struct {
	httpClient *http.Client
	headers    *shared.BrowserHeaders
	logger     *log.Logger
}

// NewAppleMusicService creates the scraper. headers may be nil; a captured
// browser header set helps avoid bot interstitials.
func NewAppleMusicService(httpClient *http.Client, headers *shared.BrowserHeaders, logger *log.Logger) *AppleMusicService {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &AppleMusicService{httpClient: httpClient, headers: headers, logger: logger}
}

func (s *AppleMusicService) Name() string { return "applemusic" }

// Resolve fetches the page behind an Apple Music link and extracts the track
// or album/playlist metadata from its JSON-LD, falling back to OpenGraph
// tags when the structured data is missing.
func (s *AppleMusicService) Resolve(ctx context.Context, link string) (*Playlist, error) {
	if !strings.Contains(link, appleMusicHost) {
		return nil, fmt.Errorf("%w: not an apple music link: %s", shared.ErrInvalidLink, link)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")
	if s.headers != nil {
		for k, v := range s.headers.Headers {
			req.Header.Set(k, v)
		}
		if s.headers.Cookie != "" {
			req.Header.Set("Cookie", s.headers.Cookie)
		}
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, link)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: apple music status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	if playlist := s.fromSchema(doc); playlist != nil {
		return playlist, nil
	}

	return s.fromOpenGraph(doc, link)
}

// fromSchema walks the ld+json script tags looking for a music entity.
func (s *AppleMusicService) fromSchema(doc *goquery.Document) *Playlist {
	var playlist *Playlist

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		var schema appleSchema
		if err := json.Unmarshal([]byte(sel.Text()), &schema); err != nil {
			s.logger.Debug("skipping malformed ld+json block", "err", err)
			return true
		}

		switch schema.Type {
		case "MusicRecording":
			q := match.Query{
				Title:    schema.Name,
				Album:    schema.InAlbum.Name,
				Duration: parseISO8601Duration(schema.Duration),
			}
			if len(schema.ByArtist) > 0 {
				q.Artist = schema.ByArtist[0].Name
			}
			playlist = &Playlist{Name: schema.Name, Tracks: []match.Query{q}}
			return false
		case "MusicAlbum", "MusicPlaylist":
			tracks := make([]match.Query, 0, len(schema.Track))
			for _, t := range schema.Track {
				q := match.Query{
					Title:    t.Name,
					Duration: parseISO8601Duration(t.Duration),
				}
				if schema.Type == "MusicAlbum" {
					q.Album = schema.Name
				}
				if len(t.ByArtist) > 0 {
					q.Artist = t.ByArtist[0].Name
				} else if len(schema.ByArtist) > 0 {
					q.Artist = schema.ByArtist[0].Name
				}
				tracks = append(tracks, q)
			}
			playlist = &Playlist{
				Name:        schema.Name,
				Description: schema.Description,
				Tracks:      tracks,
			}
			return false
		}
		return true
	})

	return playlist
}

// fromOpenGraph recovers a single track from og: meta tags. Titles come as
// "Song by Artist on Apple Music".
func (s *AppleMusicService) fromOpenGraph(doc *goquery.Document, link string) (*Playlist, error) {
	title, _ := doc.Find(`meta[property="og:title"]`).Attr("content")
	if title == "" {
		return nil, fmt.Errorf("%w: no metadata found at %s", shared.ErrPlaylistNotFound, link)
	}

	title = strings.TrimSuffix(title, " on Apple Music")
	q := match.Query{Title: title}
	if name, artist, ok := strings.Cut(title, " by "); ok {
		q.Title = name
		q.Artist = artist
	}

	return &Playlist{Name: q.Title, Tracks: []match.Query{q}}, nil
}
