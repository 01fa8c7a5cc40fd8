package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/crosstune/crosstune/internal/formatter"
	"github.com/crosstune/crosstune/internal/shared"
	"github.com/crosstune/crosstune/internal/tasks"
	"github.com/crosstune/crosstune/internal/ui"
	"github.com/urfave/cli/v3"
)

// ConvertRun resolves a link, matches every track against the destination,
// and builds the converted playlist.
func (r *Runner) ConvertRun(ctx context.Context, cmd *cli.Command) error {
	link := cmd.StringArg("link")
	if link == "" {
		return fmt.Errorf("%w: link", shared.ErrMissingArgument)
	}

	req := tasks.ConvertRequest{
		ID:          shared.GenerateID(),
		Link:        link,
		Destination: cmd.String("to"),
	}

	r.logger.Info("starting conversion", "id", req.ID, "link", link, "to", req.Destination)

	progressCh := make(chan tasks.ProgressSnapshot, 50)

	var result *tasks.ConversionResult
	var convErr error

	if cmd.Bool("tui") {
		done := make(chan struct{})
		go func() {
			defer close(done)
			defer close(progressCh)
			result, convErr = r.engine.Convert(ctx, req, progressCh)
		}()

		model := ui.NewModel(progressCh)
		program := tea.NewProgram(model)
		final, err := program.Run()
		if err != nil {
			return err
		}
		if m, ok := final.(ui.Model); ok && m.Aborted() {
			r.writePlain("Conversion continues in the background; claim it later with 'convert result %s'\n", req.ID)
			return nil
		}
		<-done
	} else {
		go func() {
			for snap := range progressCh {
				switch snap.Stage {
				case tasks.StageFetching:
					r.writePlain("📥 %s\n", snap.Message)
				case tasks.StageSearching:
					r.writePlain("🔍 [%d/%d] %s\n", snap.Processed, snap.Total, snap.Current)
				case tasks.StageAdding:
					r.writePlain("📝 %s\n", snap.Message)
				}
			}
		}()

		result, convErr = r.engine.Convert(ctx, req, progressCh)
		close(progressCh)
	}

	if convErr != nil {
		return convErr
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, true)
	}

	if output := cmd.String("output"); output != "" {
		var path string
		var err error
		if strings.HasSuffix(output, ".csv") {
			path, err = formatter.WriteCSVExport(result, output)
		} else {
			path, err = formatter.WriteJSONExport(result, output)
		}
		if err != nil {
			return err
		}
		r.writePlain("Result saved to %s\n", path)
	}

	r.writePlain("\n")
	r.writePlainHeader("Conversion Complete")
	return r.writePlain("%s", formatter.Summary(result))
}

// ConvertResult claims a stored conversion result. Results are one-shot: a
// claimed id cannot be fetched again.
func (r *Runner) ConvertResult(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: id", shared.ErrMissingArgument)
	}

	payload, err := r.sessions.TakeResult(id)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		_, err := r.output.Write(append(payload, '\n'))
		return err
	}

	var result tasks.ConversionResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return fmt.Errorf("failed to decode stored result: %w", err)
	}

	return r.writePlain("%s", formatter.Summary(&result))
}
