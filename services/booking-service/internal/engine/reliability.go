package engine

import "github.com/aurasync/timehold/services/booking-service/internal/model"

const (
	// minBookingsForTier is how much history a client needs before the
	// no-show rate is meaningful.
	minBookingsForTier = 3
	// noShowRateThreshold is the no-show rate above which a client is
	// tiered into needs-protection.
	noShowRateThreshold = 0.2
)

// Classify derives a client's reliability tier from booking history.
// Callers choose the snapshot: pass counters as of before the event being
// evaluated, or inclusive of a hypothetical increment.
func Classify(totalBookings, noShows int) model.Reliability {
	if totalBookings < minBookingsForTier {
		return model.ReliabilityNew
	}
	if float64(noShows)/float64(totalBookings) > noShowRateThreshold {
		return model.ReliabilityNeedsProtection
	}
	return model.ReliabilityReliable
}
