package match

import (
	"sort"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
)

// similarity is token-set fuzzy similarity in [0,1] over already-normalized
// strings. An empty side yields 0: absent metadata never counts as a match.
func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return float64(fuzzy.TokenSetRatio(a, b)) / 100
}

// titleScore compares normalized titles with a remaster-marker adjustment:
// when exactly one side is a remaster the naive similarity overstates the
// match, so 0.10 is subtracted; when both or neither are, a matching pair
// gets a 0.05 bump. Clamped to [0,1].
func titleScore(queryTitle, candidateTitle string) float64 {
	s := similarity(Normalize(queryTitle), Normalize(candidateTitle))

	if hasRemasterMarker(queryTitle) != hasRemasterMarker(candidateTitle) {
		s -= 0.10
	} else if s > 0 {
		s += 0.05
	}

	return clamp01(s)
}

// albumScore compares normalized albums after version-noise stripping.
// Both sides absent compare equal; exactly one side absent scores 0 so that
// album-bearing candidates are favored only when truly similar. Whether the
// album threshold applies at all is decided separately in [Score].
func albumScore(queryAlbum, candidateAlbum string) float64 {
	qa, ca := NormalizeAlbum(queryAlbum), NormalizeAlbum(candidateAlbum)
	if qa == "" && ca == "" {
		return 1.0
	}
	return similarity(qa, ca)
}

// durationScore maps the absolute difference in seconds onto [0,1], with a
// 10 second difference or more scoring 0. Unknown duration on either side
// must never penalize, so it scores 1.0.
func durationScore(queryDur, candidateDur int) float64 {
	if queryDur <= 0 || candidateDur <= 0 {
		return 1.0
	}

	diff := queryDur - candidateDur
	if diff < 0 {
		diff = -diff
	}
	if diff > 10 {
		diff = 10
	}
	return 1.0 - float64(diff)/10
}

// Score computes the component scores, weighted total, and classification
// for one (query, candidate) pair under the given profile. Deterministic and
// side-effect free.
func Score(q Query, c Candidate, p Profile) Scored {
	s := Scored{
		Candidate:     c,
		TitleScore:    titleScore(q.Title, c.Title),
		ArtistScore:   similarity(Normalize(q.Artist), Normalize(c.Artist)),
		DurationScore: durationScore(q.Duration, c.Duration),
		AlbumScore:    albumScore(q.Album, c.Album),
		albumKnown:    q.Album != "" && c.Album != "",
	}

	s.Total = p.TitleWeight*s.TitleScore +
		p.ArtistWeight*s.ArtistScore +
		p.DurationWeight*s.DurationScore +
		p.AlbumWeight*s.AlbumScore

	s.Match = p.classify(s)
	return s
}

// Rank scores every candidate and returns them sorted by descending total
// score. The sort is stable so equal-scoring candidates keep search order.
func Rank(q Query, candidates []Candidate, p Profile) []Scored {
	scored := make([]Scored, len(candidates))
	for i, c := range candidates {
		scored[i] = Score(q, c, p)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Total > scored[j].Total
	})

	return scored
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
