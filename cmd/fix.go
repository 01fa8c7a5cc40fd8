package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/crosstune/crosstune/internal/shared"
	"github.com/crosstune/crosstune/internal/tasks"
	"github.com/urfave/cli/v3"
)

// FixApply adds user-chosen tracks to a converted playlist, either a single
// --playlist/--track pair or a batch from a JSON file.
func (r *Runner) FixApply(ctx context.Context, cmd *cli.Command) error {
	platform := cmd.String("platform")

	var fixes []tasks.Fix
	switch {
	case cmd.String("file") != "":
		data, err := os.ReadFile(cmd.String("file"))
		if err != nil {
			return fmt.Errorf("failed to read fixes file: %w", err)
		}
		if err := json.Unmarshal(data, &fixes); err != nil {
			return fmt.Errorf("failed to parse fixes file: %w", err)
		}
	case cmd.String("playlist") != "" && cmd.String("track") != "":
		fixes = []tasks.Fix{{
			PlaylistID: cmd.String("playlist"),
			TrackID:    cmd.String("track"),
		}}
	default:
		return fmt.Errorf("%w: either --file or both --playlist and --track", shared.ErrMissingArgument)
	}

	r.logger.Info("applying fixes", "platform", platform, "count", len(fixes))

	summary, err := r.engine.ApplyFixes(ctx, platform, fixes)
	if err != nil {
		return err
	}

	r.writePlain("Applied %d of %d fixes (%d skipped)\n", summary.Applied, len(summary.Outcomes), summary.Skipped)
	for _, outcome := range summary.Outcomes {
		switch {
		case outcome.Skipped:
			r.writePlain("  - %s skipped\n", fixLabel(outcome.Fix))
		case outcome.Applied:
			r.writePlain("  ✓ %s -> %s\n", outcome.Fix.TrackID, outcome.Fix.PlaylistID)
		default:
			r.writePlain("  ✗ %s: %s\n", outcome.Fix.TrackID, outcome.Error)
		}
	}

	return nil
}

// fixLabel names a fix for terminal output, preferring the track title
// since skipped entries carry no destination id.
func fixLabel(f tasks.Fix) string {
	if f.Title != "" {
		return f.Title
	}
	if f.TrackID != "" {
		return f.TrackID
	}
	return "(untitled)"
}
