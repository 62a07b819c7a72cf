package leaderboard

import "turtlerace/internal/race"

// Standing is one row of the live leaderboard view.
type Standing struct {
	Rank int
	ID   string
	X    float64
}

// Standings tracks live in-progress rank by distance, rebuilt from each
// snapshot. It is read by an optional dashboard/overlay endpoint; it has
// no bearing on the wire snapshot's own (finish-only) rank field.
type Standings struct {
	sl *skipList
}

// New builds an empty Standings tracker.
func New(seed int64) *Standings {
	return &Standings{sl: newSkipList(seed)}
}

// Update replaces the tracked positions with the given turtle states.
func (s *Standings) Update(turtles []race.TurtleState) {
	s.sl.clear()
	for _, t := range turtles {
		s.sl.insert(t.ID, t.X)
	}
}

// RankOf returns the live rank (1-indexed) of a turtle, or 0 if unknown.
func (s *Standings) RankOf(id string) int {
	return s.sl.rankOf(id)
}

// Top returns up to n leading standings, furthest-ahead first.
func (s *Standings) Top(n int) []Standing {
	out := make([]Standing, 0, n)
	s.sl.forEach(func(rank int, e Entry) bool {
		if rank > n {
			return false
		}
		out = append(out, Standing{Rank: rank, ID: e.Key, X: e.Score})
		return true
	})
	return out
}
