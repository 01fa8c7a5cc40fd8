package formatter

import (
	"encoding/csv"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/crosstune/crosstune/internal/match"
	"github.com/crosstune/crosstune/internal/tasks"
)

func sampleResult() *tasks.ConversionResult {
	return &tasks.ConversionResult{
		ID:          "abc123",
		Source:      "spotify",
		Destination: "youtube",
		PlaylistID:  "PL9",
		PlaylistURL: "https://music.youtube.com/playlist?list=PL9",
		Name:        "Road Trip",
		Total:       3,
		Matched:     1,
		Mismatched:  1,
		Skipped:     1,
		Tracks: []tasks.TrackRecord{
			{
				Index:  0,
				Source: match.Query{Title: "Karma Police", Artist: "Radiohead", Album: "OK Computer", Duration: 264},
				Status: tasks.StatusMatched,
				Best: &match.Scored{
					Candidate: match.Candidate{ExternalID: "vid1", Title: "Karma Police", Artist: "Radiohead"},
					Total:     0.97,
					Match:     match.Perfect,
				},
			},
			{
				Index:  1,
				Source: match.Query{Title: "Obscure B-Side", Artist: "Radiohead", Duration: 180},
				Status: tasks.StatusMismatched,
				Suggestions: []match.Scored{
					{
						Candidate: match.Candidate{ExternalID: "vid2", Title: "Obscure B Side (Live)", Artist: "Radiohead", Duration: 195, Link: "https://youtu.be/vid2"},
						Total:     0.61,
						Match:     match.Partial,
					},
				},
			},
			{
				Index:  2,
				Source: match.Query{Title: "Exit Music", Artist: "Radiohead", Duration: 266},
				Status: tasks.StatusSkipped,
				Reason: "Error during search",
			},
		},
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		seconds int
		want    string
	}{
		{264, "4:24"},
		{60, "1:00"},
		{59, "0:59"},
		{605, "10:05"},
		{0, "?"},
		{-3, "?"},
	}

	for _, tc := range cases {
		if got := FormatDuration(tc.seconds); got != tc.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}

func TestSummary(t *testing.T) {
	out := Summary(sampleResult())

	t.Run("includes header and counts", func(t *testing.T) {
		for _, want := range []string{
			"Conversion abc123: spotify -> youtube",
			"Playlist: Road Trip",
			"Link: https://music.youtube.com/playlist?list=PL9",
			"Tracks: 3 total, 1 matched, 1 mismatched, 1 skipped",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("summary missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("lists problem tracks with suggestions", func(t *testing.T) {
		if !strings.Contains(out, "Needs attention:") {
			t.Fatalf("summary missing needs-attention section:\n%s", out)
		}
		if !strings.Contains(out, "2. Radiohead - Obscure B-Side [mismatched]") {
			t.Errorf("summary missing mismatched line:\n%s", out)
		}
		if !strings.Contains(out, "~ Radiohead - Obscure B Side (Live) [3:15] (0.61) https://youtu.be/vid2") {
			t.Errorf("summary missing suggestion line:\n%s", out)
		}
		if !strings.Contains(out, "3. Radiohead - Exit Music [skipped]: Error during search") {
			t.Errorf("summary missing skipped line:\n%s", out)
		}
	})

	t.Run("matched tracks stay out of the attention list", func(t *testing.T) {
		if strings.Contains(out, "Karma Police [matched]") {
			t.Errorf("matched track should not be listed:\n%s", out)
		}
	})

	t.Run("clean result has no attention section", func(t *testing.T) {
		result := sampleResult()
		result.Tracks = result.Tracks[:1]
		if strings.Contains(Summary(result), "Needs attention") {
			t.Error("fully matched result should not render the attention section")
		}
	})
}

func TestToJSON(t *testing.T) {
	data, err := ToJSON(sampleResult())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded tasks.ConversionResult
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.ID != "abc123" || len(decoded.Tracks) != 3 {
		t.Errorf("roundtrip mismatch: %+v", decoded)
	}
}

func TestToCSV(t *testing.T) {
	data, err := ToCSV(sampleResult())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d", len(records))
	}

	if records[0][0] != "Index" || records[0][8] != "Score" {
		t.Errorf("unexpected header row: %v", records[0])
	}

	matched := records[1]
	if matched[0] != "1" || matched[1] != "Karma Police" || matched[7] != "vid1" || matched[8] != "0.970" {
		t.Errorf("unexpected matched row: %v", matched)
	}

	skipped := records[3]
	if skipped[5] != tasks.StatusSkipped || skipped[7] != "" || skipped[8] != "" {
		t.Errorf("unexpected skipped row: %v", skipped)
	}
}

func TestExports(t *testing.T) {
	dir := t.TempDir()
	result := sampleResult()

	t.Run("json export with explicit path", func(t *testing.T) {
		path := filepath.Join(dir, "out.json")
		written, err := WriteJSONExport(result, path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if written != path {
			t.Errorf("expected path %s, got %s", path, written)
		}
	})

	t.Run("csv export with explicit path", func(t *testing.T) {
		path := filepath.Join(dir, "out.csv")
		if _, err := WriteCSVExport(result, path); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}
