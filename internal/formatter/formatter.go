// package formatter renders conversion results for the terminal and exports
// them to files (JSON, CSV, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/crosstune/crosstune/internal/tasks"
)

// FormatDuration renders seconds as m:ss; unknown durations render as "?".
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return "?"
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// Summary renders the one-screen terminal view of a conversion: counts, the
// destination link, and every track that needs attention with its
// suggestions.
func Summary(result *tasks.ConversionResult) string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Conversion %s: %s -> %s\n", result.ID, result.Source, result.Destination)
	if result.Name != "" {
		fmt.Fprintf(&buf, "Playlist: %s\n", result.Name)
	}
	if result.PlaylistURL != "" {
		fmt.Fprintf(&buf, "Link: %s\n", result.PlaylistURL)
	}
	fmt.Fprintf(&buf, "Tracks: %d total, %d matched, %d mismatched, %d skipped\n",
		result.Total, result.Matched, result.Mismatched, result.Skipped)

	needsAttention := false
	for _, track := range result.Tracks {
		if track.Status == tasks.StatusMatched {
			continue
		}
		if !needsAttention {
			buf.WriteString("\nNeeds attention:\n")
			needsAttention = true
		}

		fmt.Fprintf(&buf, "%d. %s - %s [%s]", track.Index+1, track.Source.Artist, track.Source.Title, track.Status)
		if track.Reason != "" {
			fmt.Fprintf(&buf, ": %s", track.Reason)
		}
		buf.WriteByte('\n')

		for _, s := range track.Suggestions {
			fmt.Fprintf(&buf, "     ~ %s - %s [%s] (%.2f) %s\n",
				s.Artist, s.Title, FormatDuration(s.Duration), s.Total, s.Link)
		}
	}

	return buf.String()
}

// ToJSON serializes a full conversion result.
func ToJSON(result *tasks.ConversionResult) ([]byte, error) {
	return json.MarshalIndent(result, "", "  ")
}

// ToCSV exports per-track outcomes with columns: Index, Title, Artist,
// Album, Duration, Status, Reason, MatchedID, Score.
func ToCSV(result *tasks.ConversionResult) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Index", "Title", "Artist", "Album", "Duration", "Status", "Reason", "MatchedID", "Score"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range result.Tracks {
		matchedID, score := "", ""
		if track.Best != nil {
			matchedID = track.Best.ExternalID
			score = strconv.FormatFloat(track.Best.Total, 'f', 3, 64)
		}

		record := []string{
			strconv.Itoa(track.Index + 1),
			track.Source.Title,
			track.Source.Artist,
			track.Source.Album,
			strconv.Itoa(track.Source.Duration),
			track.Status,
			track.Reason,
			matchedID,
			score,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// WriteJSONExport writes the result as JSON.
//
// Defaults to {id}_result.json as the filename.
func WriteJSONExport(result *tasks.ConversionResult, filepath string) (string, error) {
	if filepath == "" {
		filepath = result.ID + "_result.json"
	}

	data, err := ToJSON(result)
	if err != nil {
		return "", fmt.Errorf("failed to generate JSON: %w", err)
	}

	if err := os.WriteFile(filepath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write JSON file: %w", err)
	}

	return filepath, nil
}

// WriteCSVExport writes the per-track outcomes as CSV.
//
// Defaults to {id}_tracks.csv as the filename.
func WriteCSVExport(result *tasks.ConversionResult, filepath string) (string, error) {
	if filepath == "" {
		filepath = result.ID + "_tracks.csv"
	}

	data, err := ToCSV(result)
	if err != nil {
		return "", fmt.Errorf("failed to generate CSV: %w", err)
	}

	if err := os.WriteFile(filepath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write CSV file: %w", err)
	}

	return filepath, nil
}
