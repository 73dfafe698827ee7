// Package leaderboard ranks daily challenge scores.
package leaderboard

import (
	"cmp"
	"slices"
)

// An Entry is one user's score for a challenge.
type Entry struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Score    int    `json:"score"`
}

// Ranked is an Entry with its position on the leaderboard.
type Ranked struct {
	Entry
	Rank int `json:"rank"`
}

// Rank orders entries by score, highest first, and assigns competition
// ranks: equal scores share a rank and the next rank skips accordingly
// (1, 2, 2, 4). Ties are listed by username.
func Rank(entries []Entry) []Ranked {
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b Entry) int {
		return cmp.Or(cmp.Compare(b.Score, a.Score), cmp.Compare(a.Username, b.Username))
	})

	out := make([]Ranked, len(sorted))
	for i, e := range sorted {
		rank := i + 1
		if i > 0 && e.Score == sorted[i-1].Score {
			rank = out[i-1].Rank
		}
		out[i] = Ranked{Entry: e, Rank: rank}
	}
	return out
}

// Find returns the ranked row for userID.
func Find(ranked []Ranked, userID string) (Ranked, bool) {
	for _, r := range ranked {
		if r.UserID == userID {
			return r, true
		}
	}
	return Ranked{}, false
}
