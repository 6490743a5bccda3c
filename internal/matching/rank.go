package matching

import (
	"sort"

	"cv-match/internal/vectorstore"
)

// Scored is a candidate with its best chunk similarity.
type Scored struct {
	CandidateID string
	Score       float64
}

// BestScores folds query results into one entry per candidate, keeping the
// highest similarity (1 - distance) seen for it. Entries are returned in
// the order each candidate was first seen.
func BestScores(results [][]vectorstore.Hit) []Scored {
	index := make(map[string]int)
	var out []Scored
	for _, hits := range results {
		for _, h := range hits {
			id := h.Metadata.DocumentID
			sim := 1 - h.Distance
			if i, ok := index[id]; ok {
				if sim > out[i].Score {
					out[i].Score = sim
				}
				continue
			}
			index[id] = len(out)
			out = append(out, Scored{CandidateID: id, Score: sim})
		}
	}
	return out
}

// Rank returns a sorted copy: score descending, then candidate id ascending.
func Rank(scores []Scored) []Scored {
	ranked := append([]Scored(nil), scores...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].CandidateID < ranked[j].CandidateID
	})
	return ranked
}
