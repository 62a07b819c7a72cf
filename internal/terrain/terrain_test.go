package terrain

import "testing"

func sampleTrack() *Track {
	return NewTrack(300, []Segment{
		{Start: 0, End: 100, Type: Grass},
		{Start: 100, End: 200, Type: Water},
		{Start: 200, End: 300, Type: Rock},
	})
}

func TestAtFindsContainingSegment(t *testing.T) {
	tr := sampleTrack()

	cases := []struct {
		distance float64
		want     Type
	}{
		{0, Grass},
		{99.9, Grass},
		{100, Water},
		{150, Water},
		{200, Rock},
		{299, Rock},
	}

	for _, c := range cases {
		got := tr.At(c.distance)
		if got.Type != c.want {
			t.Errorf("At(%v).Type = %v, want %v", c.distance, got.Type, c.want)
		}
	}
}

func TestAtClampsBeyondTrackLength(t *testing.T) {
	tr := sampleTrack()
	got := tr.At(1000)
	if got.Type != Rock {
		t.Errorf("At(1000).Type = %v, want last segment Rock", got.Type)
	}
}

func TestAfterReturnsContiguousWindow(t *testing.T) {
	tr := sampleTrack()

	segs := tr.After(50, 2)
	if len(segs) != 2 {
		t.Fatalf("After returned %d segments, want 2", len(segs))
	}
	if segs[0].Type != Grass || segs[1].Type != Water {
		t.Errorf("After(50, 2) = %+v, want [Grass, Water]", segs)
	}
}

func TestAfterCapsAtTrackEnd(t *testing.T) {
	tr := sampleTrack()
	segs := tr.After(250, 10)
	if len(segs) != 1 {
		t.Fatalf("After returned %d segments, want 1 (only Rock remains)", len(segs))
	}
}

func TestGenerateCoversFullLength(t *testing.T) {
	tr := Generate(GenerateOptions{
		Length:     1500,
		Types:      []Type{Grass, Water, Rock, Sand, Mud, Boost},
		MinSegment: 40,
		MaxSegment: 120,
		Seed:       42,
	})

	sum := 0.0
	for _, s := range tr.Segments() {
		sum += s.Length()
	}
	if sum != tr.Length() {
		t.Errorf("sum of segment lengths = %v, want track length %v", sum, tr.Length())
	}
	if tr.Segments()[0].Start != 0 {
		t.Errorf("first segment start = %v, want 0", tr.Segments()[0].Start)
	}
	if last := tr.Segments()[len(tr.Segments())-1]; last.End != tr.Length() {
		t.Errorf("last segment end = %v, want track length %v", last.End, tr.Length())
	}
}

func TestGenerateIsDeterministicForSameSeed(t *testing.T) {
	opts := GenerateOptions{Length: 1500, Types: []Type{Grass, Mud}, Seed: 7}
	a := Generate(opts)
	b := Generate(opts)

	if len(a.Segments()) != len(b.Segments()) {
		t.Fatalf("segment counts differ: %d vs %d", len(a.Segments()), len(b.Segments()))
	}
	for i := range a.Segments() {
		if a.Segments()[i] != b.Segments()[i] {
			t.Errorf("segment %d differs: %+v vs %+v", i, a.Segments()[i], b.Segments()[i])
		}
	}
}

func TestSpeedAndEnergyMultipliers(t *testing.T) {
	if Grass.SpeedMultiplier() != 1.0 {
		t.Errorf("Grass speed multiplier = %v, want 1.0", Grass.SpeedMultiplier())
	}
	if Sand.SpeedMultiplier() != 0.9 {
		t.Errorf("Sand speed multiplier = %v, want 0.9", Sand.SpeedMultiplier())
	}
	if Mud.EnergyDifficulty() != 1.5 {
		t.Errorf("Mud energy difficulty = %v, want 1.5", Mud.EnergyDifficulty())
	}
}
