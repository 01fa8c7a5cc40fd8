// Package tasks orchestrates playlist conversions end to end: resolve the
// source, match every track against the destination catalog, create the
// destination playlist and commit the matches.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/crosstune/crosstune/internal/match"
	"github.com/crosstune/crosstune/internal/services"
	"github.com/crosstune/crosstune/internal/shared"
)

// Track statuses in a conversion result.
const (
	StatusMatched    = "matched"
	StatusMismatched = "mismatched"
	StatusSkipped    = "skipped"
)

// Skip reasons surfaced to the user.
const (
	ReasonSearchError  = "Error during search"
	ReasonNoCandidates = "No candidates found"
	ReasonNoMatch      = "No plausible match"
)

// convertedPrefix marks playlists this tool created on the destination.
const convertedPrefix = "🔁 "

// maxSuggestions caps how many runner-up candidates a mismatch carries.
const maxSuggestions = 3

// SessionStore is the slice of the session store the engine writes through.
type SessionStore interface {
	PutProgress(id string, snapshot any) error
	PutResult(id string, result any) error
	Progress(id string) (json.RawMessage, error)
	TakeResult(id string) (json.RawMessage, error)
}

// ConvertRequest describes one conversion job.
type ConvertRequest struct {
	ID          string `json:"id"`
	Link        string `json:"link"`
	Destination string `json:"destination"`
}

// TrackRecord is the outcome for a single source track.
type TrackRecord struct {
	Index       int            `json:"index"`
	Source      match.Query    `json:"source"`
	Status      string         `json:"status"`
	Reason      string         `json:"reason,omitempty"`
	Best        *match.Scored  `json:"best,omitempty"`
	Suggestions []match.Scored `json:"suggestions,omitempty"`
}

// ConversionResult is the full outcome of a conversion, stored for later
// retrieval and rendered by the formatter.
type ConversionResult struct {
	ID          string        `json:"id"`
	Source      string        `json:"source"`
	Destination string        `json:"destination"`
	PlaylistID  string        `json:"playlist_id,omitempty"`
	PlaylistURL string        `json:"playlist_url,omitempty"`
	Name        string        `json:"name,omitempty"`
	Total       int           `json:"total"`
	Matched     int           `json:"matched"`
	Mismatched  int           `json:"mismatched"`
	Skipped     int           `json:"skipped"`
	// Committed is how many matched tracks were actually written to the
	// destination; it trails Matched when a bulk add fails partway.
	Committed int           `json:"committed"`
	Tracks    []TrackRecord `json:"tracks"`
}

// Engine runs conversions against a set of registered platform adapters.
type Engine struct {
	registry *services.Registry
	sessions SessionStore
	logger   *log.Logger
}

func NewEngine(registry *services.Registry, sessions SessionStore, logger *log.Logger) *Engine {
	return &Engine{registry: registry, sessions: sessions, logger: logger}
}

// Convert resolves the source playlist, matches every track, creates the
// destination playlist and adds the matched tracks. progress may be nil;
// when set, snapshots are sent without blocking so a slow consumer never
// stalls the conversion.
func (e *Engine) Convert(ctx context.Context, req ConvertRequest, progress chan<- ProgressSnapshot) (*ConversionResult, error) {
	if req.ID == "" {
		req.ID = shared.GenerateID()
	}

	resolver, err := e.registry.ResolverFor(req.Link)
	if err != nil {
		e.report(progress, ProgressSnapshot{ID: req.ID, Stage: StageError, Message: err.Error()})
		return nil, err
	}
	target, err := e.registry.TargetFor(req.Destination)
	if err != nil {
		e.report(progress, ProgressSnapshot{ID: req.ID, Stage: StageError, Message: err.Error()})
		return nil, err
	}
	if resolver.Name() == target.Name() {
		err := fmt.Errorf("%w: source and destination are both %s", shared.ErrInvalidLink, target.Name())
		e.report(progress, ProgressSnapshot{ID: req.ID, Stage: StageError, Message: err.Error()})
		return nil, err
	}

	e.report(progress, ProgressSnapshot{
		ID:      req.ID,
		Stage:   StageFetching,
		Message: "resolving " + resolver.Name() + " link",
	})

	playlist, err := resolver.Resolve(ctx, req.Link)
	if err != nil {
		e.report(progress, ProgressSnapshot{ID: req.ID, Stage: StageError, Message: err.Error()})
		return nil, err
	}

	e.logger.Info("resolved source playlist",
		"platform", resolver.Name(), "name", playlist.Name, "tracks", len(playlist.Tracks))

	result := &ConversionResult{
		ID:          req.ID,
		Source:      resolver.Name(),
		Destination: target.Name(),
		Total:       len(playlist.Tracks),
		Tracks:      make([]TrackRecord, 0, len(playlist.Tracks)),
	}

	// The destination playlist is created up front so a write failure
	// surfaces before spending search quota on every track.
	name := convertedPrefix + playlist.Name
	playlistID, playlistURL, err := target.CreatePlaylist(ctx, name, playlist.Description)
	if err != nil {
		e.report(progress, ProgressSnapshot{ID: req.ID, Stage: StageError, Message: err.Error()})
		return nil, err
	}
	result.PlaylistID = playlistID
	result.PlaylistURL = playlistURL
	result.Name = name

	profile := target.Profile()
	matchedIDs := make([]string, 0, len(playlist.Tracks))
	statuses := make([]TrackStatus, 0, len(playlist.Tracks))

	for i, track := range playlist.Tracks {
		record := e.matchTrack(ctx, target, profile, i, track)
		switch record.Status {
		case StatusMatched:
			result.Matched++
			matchedIDs = append(matchedIDs, record.Best.ExternalID)
		case StatusMismatched:
			result.Mismatched++
		default:
			result.Skipped++
		}
		result.Tracks = append(result.Tracks, record)
		statuses = append(statuses, TrackStatus{Index: i, Title: track.Title, Status: record.Status})

		e.report(progress, ProgressSnapshot{
			ID:         req.ID,
			Stage:      StageSearching,
			Playlist:   playlist.Name,
			Total:      result.Total,
			Processed:  i + 1,
			Current:    track.Title,
			Matched:    result.Matched,
			Mismatched: result.Mismatched,
			Skipped:    result.Skipped,
			Tracks:     statuses,
		})
	}

	if result.Matched > 0 {
		e.report(progress, ProgressSnapshot{
			ID:         req.ID,
			Stage:      StageAdding,
			Playlist:   playlist.Name,
			Total:      result.Total,
			Processed:  result.Total,
			Message:    fmt.Sprintf("adding %d tracks", result.Matched),
			Matched:    result.Matched,
			Mismatched: result.Mismatched,
			Skipped:    result.Skipped,
			Tracks:     statuses,
		})

		added, err := e.addInChunks(ctx, target, playlistID, matchedIDs)
		result.Committed = added
		if err != nil {
			// Persist what did land so the caller can still see which
			// chunks were committed before the failure.
			e.report(progress, ProgressSnapshot{ID: req.ID, Stage: StageError, Message: err.Error()})
			if perr := e.sessions.PutResult(req.ID, result); perr != nil {
				e.logger.Warn("failed to persist partial result", "id", req.ID, "err", perr)
			}
			return result, err
		}
	}

	e.report(progress, ProgressSnapshot{
		ID:         req.ID,
		Stage:      StageDone,
		Playlist:   playlist.Name,
		Total:      result.Total,
		Processed:  result.Total,
		Matched:    result.Matched,
		Mismatched: result.Mismatched,
		Skipped:    result.Skipped,
		Tracks:     statuses,
	})

	if err := e.sessions.PutResult(req.ID, result); err != nil {
		e.logger.Warn("failed to persist conversion result", "id", req.ID, "err", err)
	}

	return result, nil
}

// matchTrack searches the destination for one source track and classifies
// the best candidate. Any failure is contained to this track.
func (e *Engine) matchTrack(ctx context.Context, target services.Target, profile match.Profile, index int, track match.Query) TrackRecord {
	record := TrackRecord{Index: index, Source: track}

	candidates, err := services.SearchWithFallbacks(ctx, target, track, e.logger)
	if err != nil {
		e.logger.Warn("search failed", "track", track.Title, "err", err)
		record.Status = StatusSkipped
		record.Reason = ReasonSearchError
		return record
	}
	if len(candidates) == 0 {
		record.Status = StatusSkipped
		record.Reason = ReasonNoCandidates
		return record
	}

	scored := match.Rank(track, candidates, profile)

	best := scored[0]
	switch best.Match {
	case match.Perfect:
		record.Status = StatusMatched
		record.Best = &best
	case match.Partial:
		record.Status = StatusMismatched
		record.Best = &best
		for _, s := range scored {
			if len(record.Suggestions) == maxSuggestions {
				break
			}
			if s.Total > match.SuggestionFloor {
				record.Suggestions = append(record.Suggestions, s)
			}
		}
	default:
		record.Status = StatusSkipped
		record.Reason = ReasonNoMatch
	}

	return record
}

// addInChunks commits track ids to the destination in batches no larger
// than the platform's cap. It returns how many ids were written, which on
// failure is the count committed before the failing chunk.
func (e *Engine) addInChunks(ctx context.Context, target services.Target, playlistID string, ids []string) (int, error) {
	size := target.MaxBatch()
	if size <= 0 {
		size = 1
	}

	added := 0
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		if err := target.AddTracks(ctx, playlistID, ids[start:end]); err != nil {
			return added, err
		}
		added = end
	}
	return added, nil
}

// report sends a snapshot without blocking and mirrors it to the session
// store so HTTP polling sees the same state as the channel consumer.
func (e *Engine) report(progress chan<- ProgressSnapshot, snap ProgressSnapshot) {
	if progress != nil {
		select {
		case progress <- snap:
		default:
		}
	}

	if err := e.sessions.PutProgress(snap.ID, snap); err != nil {
		e.logger.Debug("failed to persist progress", "id", snap.ID, "err", err)
	}
}
