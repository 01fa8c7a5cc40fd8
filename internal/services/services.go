// package services defines the platform adapter families: Resolvers turn a
// source link into canonical track queries, Targets search a destination
// platform and write playlists to it.
//
// Raw platform response shapes never escape this package: every adapter
// normalizes its results into [match.Query] / [match.Candidate] at the
// boundary.
package services

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/crosstune/crosstune/internal/match"
	"github.com/crosstune/crosstune/internal/shared"
	"github.com/crosstune/crosstune/internal/transport"
)

// Playlist is the canonical resolved form of a source link: a name and the
// tracks to convert. A single-track link resolves to a one-track Playlist.
type Playlist struct {
	Name        string
	Description string
	Tracks      []match.Query
}

// Resolver produces canonical track metadata from a link on one source platform.
type Resolver interface {
	// Name returns the platform identity (e.g. "spotify", "applemusic").
	Name() string

	// Resolve fetches and normalizes the track or playlist behind link.
	// A malformed or unsupported link fails with [shared.ErrInvalidLink]
	// before any network call.
	Resolve(ctx context.Context, link string) (*Playlist, error)
}

// QueryTransform builds one search query string from a track query. Each
// target declares an ordered list of these as its fallback strategy chain.
type QueryTransform func(q match.Query) string

// Target is a destination platform: searchable, and writable once
// authenticated.
type Target interface {
	// Name returns the platform identity used for profile selection and
	// token storage.
	Name() string

	// Profile returns the scoring profile for this platform's results.
	Profile() match.Profile

	// SearchQueries returns the ordered fallback query strategies; the
	// generic [SearchWithFallbacks] loop tries them until one yields
	// candidates.
	SearchQueries() []QueryTransform

	// Search issues one free-text search and returns normalized candidates.
	Search(ctx context.Context, query string) ([]match.Candidate, error)

	// CurrentUser returns the authenticated user's id.
	CurrentUser(ctx context.Context) (string, error)

	// CreatePlaylist creates the destination playlist and returns its id
	// and public URL.
	CreatePlaylist(ctx context.Context, name, description string) (id, url string, err error)

	// AddTracks appends tracks to a playlist. Callers are responsible for
	// honoring MaxBatch.
	AddTracks(ctx context.Context, playlistID string, trackIDs []string) error

	// MaxBatch is the largest number of tracks one AddTracks call accepts.
	MaxBatch() int
}

// TokenStore persists token pairs per platform. Adapters read tokens before
// each authenticated call and write back the pair a refresh returned, so the
// update is an explicit store write rather than hidden closure mutation.
type TokenStore interface {
	Tokens(platform string) (transport.Tokens, error)
	SaveTokens(platform string, t transport.Tokens) error
}

// SearchWithFallbacks runs the target's query strategies in order until one
// returns at least one candidate. Strategies producing an empty query string
// are skipped. Returns the empty slice, not an error, when every strategy
// comes up dry.
func SearchWithFallbacks(ctx context.Context, t Target, q match.Query, logger *log.Logger) ([]match.Candidate, error) {
	transforms := t.SearchQueries()
	if len(transforms) == 0 {
		return nil, fmt.Errorf("%w: target %s declares no search strategies", shared.ErrAPIRequest, t.Name())
	}

	var lastErr error
	for i, transform := range transforms {
		query := transform(q)
		if query == "" {
			continue
		}

		candidates, err := t.Search(ctx, query)
		if err != nil {
			lastErr = err
			if logger != nil {
				logger.Debug("search strategy failed", "target", t.Name(), "strategy", i, "err", err)
			}
			continue
		}
		if len(candidates) > 0 {
			return candidates, nil
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, nil
}
