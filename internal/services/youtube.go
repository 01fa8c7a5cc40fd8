// YouTube implementation of [Resolver] and [Target] over the Data API v3.
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/crosstune/crosstune/internal/match"
	"github.com/crosstune/crosstune/internal/shared"
	"github.com/crosstune/crosstune/internal/transport"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

var iso8601Re = regexp.MustCompile(`PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?`)

// parseISO8601Duration converts durations like "PT3M54S" to seconds.
// Malformed input yields 0, which scoring treats as unknown.
func parseISO8601Duration(raw string) int {
	m := iso8601Re.FindStringSubmatch(raw)
	if m == nil {
		return 0
	}

	seconds := 0
	for i, mult := range []int{3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0
		}
		seconds += n * mult
	}
	return seconds
}

// NewYouTubeOAuthConfig builds the OAuth2 config for Google's
// authorization-code flow with the YouTube scope.
func NewYouTubeOAuthConfig(cfg shared.YouTubeConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       []string{youtube.YoutubeScope},
		Endpoint:     google.Endpoint,
	}
}

// apiRoundTripper adds the API key query parameter when set, and absorbs
// 429 responses by waiting out the Retry-After delay and reissuing the
// request, so quota backpressure never surfaces as a failed search or
// write. Requests with a body are replayed through GetBody.
type apiRoundTripper struct {
	apiKey string
	base   http.RoundTripper
}

func (t *apiRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	for {
		r := req.Clone(req.Context())
		if t.apiKey != "" {
			q := r.URL.Query()
			q.Set("key", t.apiKey)
			r.URL.RawQuery = q.Encode()
		}
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			r.Body = body
		}

		resp, err := t.base.RoundTrip(r)
		if err != nil || resp.StatusCode != http.StatusTooManyRequests {
			return resp, err
		}

		delay := transport.RetryAfter(resp)
		resp.Body.Close()
		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(delay):
		}
	}
}

// persistingTokenSource writes tokens back to the store whenever the
// underlying source rotates them, so a refreshed access token survives the
// process.
type persistingTokenSource struct {
	platform string
	src      oauth2.TokenSource
	store    TokenStore
	logger   *log.Logger

	mu   sync.Mutex
	last string
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := p.src.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthExpired, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken != p.last {
		p.last = tok.AccessToken
		saved := transport.Tokens{
			Access:  tok.AccessToken,
			Refresh: tok.RefreshToken,
			Expiry:  tok.Expiry,
		}
		if err := p.store.SaveTokens(p.platform, saved); err != nil {
			p.logger.Warn("failed to persist refreshed tokens", "platform", p.platform, "err", err)
		}
	}

	return tok, nil
}

// YouTubeService searches and writes through the YouTube Data API. Reads
// fall back to the API key when the user has not linked a Google account.
type YouTubeService struct {
	cfg     shared.YouTubeConfig
	oauth   *oauth2.Config
	tokens  TokenStore
	limiter *rate.Limiter
	logger  *log.Logger

	mu        sync.Mutex
	readSvc   *youtube.Service
	writeSvc  *youtube.Service
	channelID string
}

// NewYouTubeService creates the adapter. rps caps outgoing API calls.
func NewYouTubeService(cfg shared.YouTubeConfig, tokens TokenStore, rps float64, logger *log.Logger) *YouTubeService {
	if rps <= 0 {
		rps = 1
	}
	return &YouTubeService{
		cfg:     cfg,
		oauth:   NewYouTubeOAuthConfig(cfg),
		tokens:  tokens,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  logger,
	}
}

func (s *YouTubeService) Name() string { return "youtube" }

func (s *YouTubeService) Profile() match.Profile { return match.ProfileFor(s.Name()) }

// MaxBatch is 1: playlistItems.insert takes a single video per call.
func (s *YouTubeService) MaxBatch() int { return 1 }

// SearchQueries tries progressively broader strategies. Appending "audio"
// biases results toward uploads of the actual recording over live footage.
func (s *YouTubeService) SearchQueries() []QueryTransform {
	return []QueryTransform{
		func(q match.Query) string { return strings.TrimSpace(q.Title + " " + q.Artist + " audio") },
		func(q match.Query) string { return strings.TrimSpace(q.Title + " " + q.Artist) },
		func(q match.Query) string { return strings.TrimSpace(q.Title) },
	}
}

// readService returns an API-key client, sufficient for search and
// resolution.
func (s *YouTubeService) readService(ctx context.Context) (*youtube.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readSvc != nil {
		return s.readSvc, nil
	}

	if s.cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: youtube api key not configured", shared.ErrMissingCredentials)
	}

	hc := &http.Client{Transport: &apiRoundTripper{apiKey: s.cfg.APIKey, base: http.DefaultTransport}}
	svc, err := youtube.NewService(ctx, option.WithHTTPClient(hc))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	s.readSvc = svc
	return svc, nil
}

// writeService returns an OAuth client required for playlist mutations.
func (s *YouTubeService) writeService(ctx context.Context) (*youtube.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeSvc != nil {
		return s.writeSvc, nil
	}

	stored, err := s.tokens.Tokens(s.Name())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrNotAuthenticated, err)
	}

	tok := &oauth2.Token{
		AccessToken:  stored.Access,
		RefreshToken: stored.Refresh,
		Expiry:       stored.Expiry,
	}
	src := &persistingTokenSource{
		platform: s.Name(),
		src:      s.oauth.TokenSource(ctx, tok),
		store:    s.tokens,
		logger:   s.logger,
		last:     stored.Access,
	}

	hc := oauth2.NewClient(ctx, src)
	hc.Transport = &apiRoundTripper{base: hc.Transport}
	svc, err := youtube.NewService(ctx, option.WithHTTPClient(hc))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	s.writeSvc = svc
	return svc, nil
}

// ParseYouTubeLink extracts the kind ("video" or "playlist") and id from
// youtube.com and youtu.be URLs.
func ParseYouTubeLink(link string) (kind, id string, err error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", "", fmt.Errorf("%w: %s", shared.ErrInvalidLink, link)
	}

	host := strings.TrimPrefix(u.Host, "www.")
	switch {
	case host == "youtu.be":
		id = strings.Trim(u.Path, "/")
		if id == "" {
			return "", "", fmt.Errorf("%w: %s", shared.ErrInvalidLink, link)
		}
		return "video", id, nil
	case host == "youtube.com" || host == "music.youtube.com":
		if list := u.Query().Get("list"); list != "" {
			return "playlist", list, nil
		}
		if v := u.Query().Get("v"); v != "" {
			return "video", v, nil
		}
		return "", "", fmt.Errorf("%w: %s", shared.ErrInvalidLink, link)
	default:
		return "", "", fmt.Errorf("%w: not a youtube link: %s", shared.ErrInvalidLink, link)
	}
}

// Resolve fetches the video or playlist behind a YouTube link. Video titles
// of the form "Artist - Title" are split; otherwise the channel name stands
// in for the artist.
func (s *YouTubeService) Resolve(ctx context.Context, link string) (*Playlist, error) {
	kind, id, err := ParseYouTubeLink(link)
	if err != nil {
		return nil, err
	}

	svc, err := s.readService(ctx)
	if err != nil {
		return nil, err
	}

	if kind == "video" {
		queries, err := s.videoQueries(ctx, svc, []string{id})
		if err != nil {
			return nil, err
		}
		if len(queries) == 0 {
			return nil, fmt.Errorf("%w: video %s", shared.ErrPlaylistNotFound, id)
		}
		return &Playlist{Name: queries[0].Title, Tracks: queries}, nil
	}

	var (
		videoIDs []string
		title    string
		desc     string
	)

	pageToken := ""
	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := svc.PlaylistItems.List([]string{"snippet", "contentDetails"}).
			PlaylistId(id).MaxResults(50).PageToken(pageToken).Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}

		for _, item := range resp.Items {
			videoIDs = append(videoIDs, item.ContentDetails.VideoId)
		}
		if pageToken = resp.NextPageToken; pageToken == "" {
			break
		}
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if meta, err := svc.Playlists.List([]string{"snippet"}).Id(id).Context(ctx).Do(); err == nil && len(meta.Items) > 0 {
		title = meta.Items[0].Snippet.Title
		desc = meta.Items[0].Snippet.Description
	}

	queries, err := s.videoQueries(ctx, svc, videoIDs)
	if err != nil {
		return nil, err
	}

	return &Playlist{Name: title, Description: desc, Tracks: queries}, nil
}

// videoQueries hydrates video ids into track queries via videos.list, which
// carries the durations search results omit. Requests are chunked at the
// API's 50 id cap.
func (s *YouTubeService) videoQueries(ctx context.Context, svc *youtube.Service, ids []string) ([]match.Query, error) {
	queries := make([]match.Query, 0, len(ids))

	for start := 0; start < len(ids); start += 50 {
		end := min(start+50, len(ids))

		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := svc.Videos.List([]string{"snippet", "contentDetails"}).
			Id(ids[start:end]...).Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}

		for _, v := range resp.Items {
			title, artist := splitVideoTitle(v.Snippet.Title, v.Snippet.ChannelTitle)
			queries = append(queries, match.Query{
				Title:    title,
				Artist:   artist,
				Duration: parseISO8601Duration(v.ContentDetails.Duration),
			})
		}
	}

	return queries, nil
}

// Search runs search.list then hydrates durations with videos.list.
func (s *YouTubeService) Search(ctx context.Context, query string) ([]match.Candidate, error) {
	svc, err := s.readService(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := svc.Search.List([]string{"snippet"}).
		Q(query).Type("video").VideoCategoryId("10").MaxResults(10).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	ids := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Id != nil && item.Id.VideoId != "" {
			ids = append(ids, item.Id.VideoId)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	details, err := svc.Videos.List([]string{"snippet", "contentDetails"}).Id(ids...).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	candidates := make([]match.Candidate, 0, len(details.Items))
	for _, v := range details.Items {
		title, artist := splitVideoTitle(v.Snippet.Title, v.Snippet.ChannelTitle)
		candidates = append(candidates, match.Candidate{
			ExternalID: v.Id,
			Title:      title,
			Artist:     artist,
			Duration:   parseISO8601Duration(v.ContentDetails.Duration),
			Link:       "https://www.youtube.com/watch?v=" + v.Id,
		})
	}

	return candidates, nil
}

// CurrentUser returns the authenticated channel id, cached per adapter.
func (s *YouTubeService) CurrentUser(ctx context.Context) (string, error) {
	s.mu.Lock()
	cached := s.channelID
	s.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	svc, err := s.writeService(ctx)
	if err != nil {
		return "", err
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	resp, err := svc.Channels.List([]string{"id"}).Mine(true).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	if len(resp.Items) == 0 {
		return "", fmt.Errorf("%w: no channel for authenticated user", shared.ErrAPIRequest)
	}

	s.mu.Lock()
	s.channelID = resp.Items[0].Id
	s.mu.Unlock()
	return resp.Items[0].Id, nil
}

// CreatePlaylist creates a private playlist on the authenticated channel.
func (s *YouTubeService) CreatePlaylist(ctx context.Context, name, description string) (string, string, error) {
	svc, err := s.writeService(ctx)
	if err != nil {
		return "", "", err
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return "", "", err
	}

	created, err := svc.Playlists.Insert([]string{"snippet", "status"}, &youtube.Playlist{
		Snippet: &youtube.PlaylistSnippet{Title: name, Description: description},
		Status:  &youtube.PlaylistStatus{PrivacyStatus: "private"},
	}).Context(ctx).Do()
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", shared.ErrDestinationWrite, err)
	}

	return created.Id, "https://www.youtube.com/playlist?list=" + created.Id, nil
}

// AddTracks inserts videos one at a time; the API has no bulk endpoint.
func (s *YouTubeService) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	svc, err := s.writeService(ctx)
	if err != nil {
		return err
	}

	for _, videoID := range trackIDs {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}

		_, err := svc.PlaylistItems.Insert([]string{"snippet"}, &youtube.PlaylistItem{
			Snippet: &youtube.PlaylistItemSnippet{
				PlaylistId: playlistID,
				ResourceId: &youtube.ResourceId{Kind: "youtube#video", VideoId: videoID},
			},
		}).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("%w: video %s: %v", shared.ErrDestinationWrite, videoID, err)
		}
	}

	return nil
}

// splitVideoTitle handles the common "Artist - Title" upload convention,
// falling back to the channel name as artist.
func splitVideoTitle(videoTitle, channel string) (title, artist string) {
	if left, right, ok := strings.Cut(videoTitle, " - "); ok {
		return strings.TrimSpace(right), strings.TrimSpace(left)
	}
	return videoTitle, strings.TrimSuffix(channel, " - Topic")
}
