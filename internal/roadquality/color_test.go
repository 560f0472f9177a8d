package roadquality

import "testing"

func TestColorForScore_ControlPoints(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{0, "#FF0000"},
		{50, "#FFFF00"},
		{100, "#00FF00"},
		{-20, "#FF0000"},  // clamped
		{150, "#00FF00"},  // clamped
		{25, "#FF8000"},   // halfway up the green ramp
		{75, "#80FF00"},   // halfway down the red ramp
	}
	for _, tc := range cases {
		if got := ColorForScore(tc.score).Hex(); got != tc.want {
			t.Errorf("ColorForScore(%v) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestColorForScore_MonotonicChannels(t *testing.T) {
	prev := ColorForScore(0)
	for s := 1.0; s <= 100; s++ {
		c := ColorForScore(s)
		if s <= 50 {
			if c.G < prev.G {
				t.Errorf("green channel decreased at score %v: %d -> %d", s, prev.G, c.G)
			}
			if c.R != 255 {
				t.Errorf("red channel should hold 255 at score %v, got %d", s, c.R)
			}
		} else {
			if c.R > prev.R {
				t.Errorf("red channel increased at score %v: %d -> %d", s, prev.R, c.R)
			}
			if c.G != 255 {
				t.Errorf("green channel should hold 255 at score %v, got %d", s, c.G)
			}
		}
		prev = c
	}
}
