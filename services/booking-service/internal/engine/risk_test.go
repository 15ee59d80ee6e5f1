package engine

import "testing"

func TestRiskScore_ZeroHistoryIsNeutral(t *testing.T) {
	if got := RiskScore(0, 0, 0, 0); got != 50 {
		t.Fatalf("expected neutral 50 for zero history, got %d", got)
	}
}

func TestRiskScore_Bounds(t *testing.T) {
	cases := [][4]int{
		{1, 1, 0, 0},
		{10, 10, 0, 0},
		{10, 0, 10, 0},
		{10, 0, 10, 10},
		{100, 50, 30, 20},
	}
	for _, c := range cases {
		got := RiskScore(c[0], c[1], c[2], c[3])
		if got < 0 || got > 100 {
			t.Fatalf("score out of range for %v: %d", c, got)
		}
	}
}

func TestRiskScore_MonotonicInNoShows(t *testing.T) {
	prev := -1
	for noShows := 0; noShows <= 20; noShows++ {
		got := RiskScore(20, 5, noShows, 2)
		if got < prev {
			t.Fatalf("score dropped from %d to %d when no_shows rose to %d", prev, got, noShows)
		}
		prev = got
	}
}

func TestRiskScore_MonotonicInCompleted(t *testing.T) {
	prev := 101
	for completed := 0; completed <= 20; completed++ {
		got := RiskScore(20, completed, 4, 2)
		if got > prev {
			t.Fatalf("score rose from %d to %d when completed rose to %d", prev, got, completed)
		}
		prev = got
	}
}

func TestRiskScore_RiskyClientScoresHigh(t *testing.T) {
	clean := RiskScore(10, 10, 0, 0)
	risky := RiskScore(10, 2, 5, 3)
	if risky <= clean {
		t.Fatalf("expected risky (%d) > clean (%d)", risky, clean)
	}
}
