package tasks

import (
	"context"
	"fmt"

	"github.com/crosstune/crosstune/internal/shared"
)

// Fix is one manual correction: the user picked a suggestion (or pasted an
// id) for a track the matcher got wrong, or marked the track as one to
// leave out.
type Fix struct {
	PlaylistID string `json:"playlist_id"`
	TrackID    string `json:"track_id,omitempty"`
	Title      string `json:"title,omitempty"`
	Skip       bool   `json:"skip,omitempty"`
}

// FixOutcome reports what happened to one fix.
type FixOutcome struct {
	Fix     Fix    `json:"fix"`
	Applied bool   `json:"applied"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// FixSummary aggregates the outcomes of a batch of fixes.
type FixSummary struct {
	Applied  int          `json:"applied"`
	Skipped  int          `json:"skipped"`
	Failed   int          `json:"failed"`
	Outcomes []FixOutcome `json:"outcomes"`
}

// ApplyFixes adds each chosen track to its destination playlist. Fixes are
// independent: one failure is recorded and the rest still run.
func (e *Engine) ApplyFixes(ctx context.Context, platform string, fixes []Fix) (*FixSummary, error) {
	target, err := e.registry.TargetFor(platform)
	if err != nil {
		return nil, err
	}

	summary := &FixSummary{Outcomes: make([]FixOutcome, 0, len(fixes))}

	for _, fix := range fixes {
		outcome := FixOutcome{Fix: fix}

		if fix.Skip {
			outcome.Skipped = true
			summary.Skipped++
			summary.Outcomes = append(summary.Outcomes, outcome)
			continue
		}

		if fix.PlaylistID == "" || fix.TrackID == "" {
			outcome.Error = fmt.Sprintf("%v: fix needs playlist_id and track_id", shared.ErrMissingArgument)
		} else if err := target.AddTracks(ctx, fix.PlaylistID, []string{fix.TrackID}); err != nil {
			outcome.Error = err.Error()
		} else {
			outcome.Applied = true
		}

		if outcome.Applied {
			summary.Applied++
		} else {
			summary.Failed++
			e.logger.Warn("fix failed", "playlist", fix.PlaylistID, "track", fix.TrackID, "err", outcome.Error)
		}
		summary.Outcomes = append(summary.Outcomes, outcome)
	}

	return summary, nil
}
