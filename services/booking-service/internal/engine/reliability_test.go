package engine

import (
	"testing"

	"github.com/aurasync/timehold/services/booking-service/internal/model"
)

func TestClassify_ZeroHistoryIsNew(t *testing.T) {
	if got := Classify(0, 0); got != model.ReliabilityNew {
		t.Fatalf("expected new for zero history, got %s", got)
	}
}

func TestClassify_BelowMinimumIsNew(t *testing.T) {
	// Even with no-shows on record, too little history stays "new".
	if got := Classify(2, 2); got != model.ReliabilityNew {
		t.Fatalf("expected new below minimum bookings, got %s", got)
	}
}

func TestClassify_NoShowRateAboveThreshold(t *testing.T) {
	// 2/5 = 40% no-show rate.
	if got := Classify(5, 2); got != model.ReliabilityNeedsProtection {
		t.Fatalf("expected needs-protection, got %s", got)
	}
}

func TestClassify_RateCheckPrecedesReliable(t *testing.T) {
	// Exactly at the threshold is not above it.
	if got := Classify(5, 1); got != model.ReliabilityReliable {
		t.Fatalf("expected reliable at 20%% rate, got %s", got)
	}
	// Just above the threshold tips over.
	if got := Classify(4, 1); got != model.ReliabilityNeedsProtection {
		t.Fatalf("expected needs-protection at 25%% rate, got %s", got)
	}
}

func TestClassify_CleanHistoryIsReliable(t *testing.T) {
	if got := Classify(10, 0); got != model.ReliabilityReliable {
		t.Fatalf("expected reliable, got %s", got)
	}
}
