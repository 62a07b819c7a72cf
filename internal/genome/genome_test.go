package genome

import "testing"

func TestDecodeDefaults(t *testing.T) {
	g := Decode("")
	if g != Default() {
		t.Errorf("Decode(\"\") = %+v, want default %+v", g, Default())
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	cases := []Genome{
		{BodyType: 2, Shell: 1, Pattern: 5, Color: "AABBCC"},
		{BodyType: 0, Shell: 0, Pattern: 0, Color: "228B22"},
		{BodyType: 7, Shell: 7, Pattern: 7, Color: "000000"},
	}

	for _, g := range cases {
		encoded := Encode(g)
		decoded := Decode(encoded)
		want := normalize(g)
		if decoded != want {
			t.Errorf("Decode(Encode(%+v)) = %+v, want %+v", g, decoded, want)
		}
	}
}

func TestDecodeClampsOutOfRangeIndices(t *testing.T) {
	g := Decode("B99-S-1-P1000-Cxyz")
	if g.BodyType != BodyTypeCount-1 {
		t.Errorf("BodyType = %d, want clamped to %d", g.BodyType, BodyTypeCount-1)
	}
	if g.Shell != 0 {
		t.Errorf("Shell = %d, want default 0 ('-' splits S-1 into an empty S token and an unknown '1' token)", g.Shell)
	}
	if g.Pattern != PatternCount-1 {
		t.Errorf("Pattern = %d, want clamped to %d", g.Pattern, PatternCount-1)
	}
	if g.Color != DefaultColor {
		t.Errorf("Color = %s, want default %s for malformed hex", g.Color, DefaultColor)
	}
}

func TestDecodeLastDuplicateWins(t *testing.T) {
	g := Decode("B1-B5-Cff0000-C00ff00")
	if g.BodyType != 5 {
		t.Errorf("BodyType = %d, want 5 (last duplicate wins)", g.BodyType)
	}
	if g.Color != "00FF00" {
		t.Errorf("Color = %s, want 00FF00 (last duplicate wins)", g.Color)
	}
}

func TestDecodeMissingTokensUseDefaults(t *testing.T) {
	g := Decode("S3")
	if g.BodyType != 0 || g.Pattern != 0 || g.Color != DefaultColor {
		t.Errorf("Decode(\"S3\") = %+v, want defaults for unset fields", g)
	}
	if g.Shell != 3 {
		t.Errorf("Shell = %d, want 3", g.Shell)
	}
}

func TestDecodeUnknownTokensIgnored(t *testing.T) {
	g := Decode("Z9-B2")
	if g.BodyType != 2 {
		t.Errorf("BodyType = %d, want 2", g.BodyType)
	}
}

func TestDecodeColorUppercased(t *testing.T) {
	g := Decode("cabcdef")
	if g.Color != "ABCDEF" {
		t.Errorf("Color = %s, want upper-cased ABCDEF", g.Color)
	}
}

func TestEncodeFormat(t *testing.T) {
	s := Encode(Genome{BodyType: 1, Shell: 2, Pattern: 3, Color: "ff00ff"})
	want := "B1-S2-P3-CFF00FF"
	if s != want {
		t.Errorf("Encode = %s, want %s", s, want)
	}
}
