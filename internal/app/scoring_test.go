package app

import "testing"

func TestScore(t *testing.T) {
	cases := []struct {
		name      string
		attempted bool
		correct   bool
		elapsed   int64
		want      int
	}{
		{"not attempted", false, false, 0, 0},
		{"not attempted ignores correctness", false, true, 0, 0},
		{"wrong", true, false, 100, -25},
		{"instant", true, true, 0, 100},
		{"two seconds", true, true, 2000, 91},
		{"half time", true, true, 10000, 55},
		{"at limit", true, true, 20000, 10},
		{"past limit clamps", true, true, 60000, 10},
		{"negative clamps", true, true, -500, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Score(tc.attempted, tc.correct, tc.elapsed, DefaultTimeLimitMs); got != tc.want {
				t.Fatalf("Score = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestScoreCorrectIsBoundedAndNonIncreasing(t *testing.T) {
	prev := Score(true, true, 0, DefaultTimeLimitMs)
	for elapsed := int64(0); elapsed <= 25000; elapsed += 137 {
		got := Score(true, true, elapsed, DefaultTimeLimitMs)
		if got < 10 || got > 100 {
			t.Fatalf("score %d out of range at %dms", got, elapsed)
		}
		if got > prev {
			t.Fatalf("score increased from %d to %d at %dms", prev, got, elapsed)
		}
		prev = got
	}
}

func TestScoreNonPositiveLimitUsesDefault(t *testing.T) {
	if got := Score(true, true, 2000, 0); got != 91 {
		t.Fatalf("expected default limit to apply, got %d", got)
	}
}
