package tasks

// Stage marks where a conversion currently is.
type Stage int

const (
	StageFetching Stage = iota
	StageSearching
	StageAdding
	StageDone
	StageError
)

func (s Stage) String() string {
	switch s {
	case StageFetching:
		return "fetching"
	case StageSearching:
		return "searching"
	case StageAdding:
		return "adding"
	case StageDone:
		return "done"
	case StageError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText makes stages render as their names in JSON payloads.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// TrackStatus is the per-track outcome carried inside progress snapshots,
// so a poller can see which tracks resolved while the run is still going.
type TrackStatus struct {
	Index  int    `json:"index"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

// ProgressSnapshot is one point-in-time view of a running conversion, sent
// over the progress channel and persisted to the session store.
type ProgressSnapshot struct {
	ID         string        `json:"id"`
	Stage      Stage         `json:"stage"`
	Playlist   string        `json:"playlist,omitempty"`
	Total      int           `json:"total"`
	Processed  int           `json:"processed"`
	Current    string        `json:"current,omitempty"`
	Message    string        `json:"message,omitempty"`
	Matched    int           `json:"matched"`
	Mismatched int           `json:"mismatched"`
	Skipped    int           `json:"skipped"`
	Tracks     []TrackStatus `json:"tracks,omitempty"`
}
