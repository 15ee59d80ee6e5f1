package engine

import "math"

const neutralRiskScore = 50

// RiskScore maps booking history to an integer risk score in [0, 100],
// higher meaning riskier. A client with zero history scores neutral: there
// is no rate to compute from zero bookings.
//
// The score combines a no-show-rate term and a cancellation-rate term, each
// scaled and capped, minus a track-record discount that grows with completed
// bookings at a diminishing rate. Holding other inputs fixed, more no-shows
// never lower the score and more completed bookings never raise it.
func RiskScore(totalBookings, completedBookings, noShows, cancellations int) int {
	if totalBookings <= 0 {
		return neutralRiskScore
	}

	total := float64(totalBookings)
	noShowTerm := math.Min(60, math.Round(float64(noShows)/total*150))
	cancelTerm := math.Min(25, math.Round(float64(cancellations)/total*75))
	discount := math.Round(20 * float64(completedBookings) / float64(completedBookings+5))

	score := int(noShowTerm + cancelTerm - discount)
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
