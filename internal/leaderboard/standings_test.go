package leaderboard

import (
	"testing"

	"turtlerace/internal/race"
)

func TestUpdateRanksByDescendingX(t *testing.T) {
	s := New(1)
	s.Update([]race.TurtleState{
		{ID: "a", X: 100},
		{ID: "b", X: 300},
		{ID: "c", X: 200},
	})

	if s.RankOf("b") != 1 {
		t.Errorf("rank of b = %d, want 1 (furthest ahead)", s.RankOf("b"))
	}
	if s.RankOf("c") != 2 {
		t.Errorf("rank of c = %d, want 2", s.RankOf("c"))
	}
	if s.RankOf("a") != 3 {
		t.Errorf("rank of a = %d, want 3", s.RankOf("a"))
	}
}

func TestTopReturnsLeadingN(t *testing.T) {
	s := New(1)
	s.Update([]race.TurtleState{
		{ID: "a", X: 100},
		{ID: "b", X: 300},
		{ID: "c", X: 200},
	})

	top := s.Top(2)
	if len(top) != 2 {
		t.Fatalf("len(top) = %d, want 2", len(top))
	}
	if top[0].ID != "b" || top[1].ID != "c" {
		t.Errorf("top = %+v, want [b, c]", top)
	}
}

func TestUpdateClearsPreviousEntries(t *testing.T) {
	s := New(1)
	s.Update([]race.TurtleState{{ID: "a", X: 10}, {ID: "b", X: 20}})
	s.Update([]race.TurtleState{{ID: "a", X: 10}})

	if s.RankOf("b") != 0 {
		t.Errorf("rank of b = %d, want 0 (removed on refresh)", s.RankOf("b"))
	}
}
