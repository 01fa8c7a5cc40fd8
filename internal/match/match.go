// package match implements the track matching engine: a pure, deterministic
// scoring function from a source track query and a target-platform candidate
// to a scored, classified match. No I/O happens here.
package match

// Query describes the track we are looking for, as resolved from the source
// platform. Duration is in seconds; zero means unknown.
type Query struct {
	Title    string
	Artist   string
	Album    string
	Duration int
}

// Candidate is one target-platform search result under evaluation. Produced
// by a search adapter with platform field names already normalized away.
type Candidate struct {
	ExternalID string
	Title      string
	Artist     string
	Album      string
	Duration   int
	Link       string
}

// Type is the three-way classification a scored candidate receives.
type Type string

const (
	Perfect Type = "perfect"
	Partial Type = "partial"
	None    Type = "none"
)

// Scored is a Candidate with its component scores, weighted total, and
// classification. Computed once per (Query, Candidate) pair, never mutated.
type Scored struct {
	Candidate

	TitleScore    float64
	ArtistScore   float64
	DurationScore float64
	AlbumScore    float64
	Total         float64
	Match         Type

	// albumKnown records whether both sides carried an album. When one side
	// has none there is nothing to threshold against, so classification
	// treats the album as neutral while the total keeps its low raw score.
	albumKnown bool
}

// SuggestionFloor is the minimum total score for a candidate to be worth
// surfacing as a manual-review suggestion.
const SuggestionFloor = 0.2

// Profile bundles the component weights and classification thresholds for
// one kind of target platform. Platforms whose search results carry
// unreliable artist metadata (video hosts) get their own profile.
type Profile struct {
	Name string

	TitleWeight    float64
	ArtistWeight   float64
	DurationWeight float64
	AlbumWeight    float64

	classify func(s Scored) Type
}

// Default is the profile for music-catalog targets with trustworthy
// artist and album metadata.
var Default = Profile{
	Name:           "default",
	TitleWeight:    0.4,
	ArtistWeight:   0.2,
	DurationWeight: 0.3,
	AlbumWeight:    0.1,
	classify: func(s Scored) Type {
		core := s.TitleScore >= 0.80 && s.ArtistScore >= 0.70 && s.DurationScore >= 0.70
		albumOK := !s.albumKnown || s.AlbumScore >= 0.40
		switch {
		case core && albumOK:
			return Perfect
		case core, s.TitleScore > 0.5, s.ArtistScore > 0.5:
			return Partial
		default:
			return None
		}
	},
}

// VideoHost is the profile for targets whose search results have unreliable
// artist fields (the uploader channel, not the performing artist). Title
// similarity dominates and album is ignored entirely.
var VideoHost = Profile{
	Name:           "video-host",
	TitleWeight:    0.70,
	ArtistWeight:   0.25,
	DurationWeight: 0.05,
	AlbumWeight:    0,
	classify: func(s Scored) Type {
		switch {
		case s.Total > 0.75 && s.TitleScore > 0.70 && s.ArtistScore > 0.50:
			return Perfect
		case s.Total > 0.50:
			return Partial
		default:
			return None
		}
	},
}

// ProfileFor selects the scoring profile by target platform identity.
func ProfileFor(platform string) Profile {
	switch platform {
	case "youtube":
		return VideoHost
	default:
		return Default
	}
}
