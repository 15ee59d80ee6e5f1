package engine

import (
	"math"

	"github.com/aurasync/timehold/services/booking-service/internal/model"
)

const (
	// Base hold percentage range. Longer appointments carry a higher
	// percentage: more time is lost when they are no-showed.
	baseHoldPctFloor = 0.20
	baseHoldPctCap   = 0.50
	pctPerMinute     = 0.002

	// Reliability multipliers: more protection for unknown or risky
	// clients, less friction for proven ones.
	multiplierNew             = 1.2
	multiplierNeedsProtection = 1.5
	multiplierReliable        = 0.8

	perNoShowBump       = 0.10
	perCancellationBump = 0.05

	minHoldFloor = 5.00
)

// BaseHold computes the client-agnostic deposit for a service: a percentage
// of price that rises with duration, within a capped range. It is used on
// its own at service-creation time to preview the deposit before any booking
// exists, and again inside HoldAmount at booking time.
func BaseHold(price float64, durationMinutes int) float64 {
	pct := baseHoldPctFloor + pctPerMinute*float64(durationMinutes)
	if pct > baseHoldPctCap {
		pct = baseHoldPctCap
	}
	return Round2(price * pct)
}

// HoldAmount computes the final booking-time deposit: the base hold scaled
// by the client's reliability multiplier plus a bump per prior no-show and
// cancellation. The result never drops below a small flat floor and never
// exceeds the service price; a hold is a fraction of price, not a markup.
func HoldAmount(price float64, durationMinutes int, reliability model.Reliability, noShows, cancellations int) float64 {
	multiplier := multiplierNew
	switch reliability {
	case model.ReliabilityNeedsProtection:
		multiplier = multiplierNeedsProtection
	case model.ReliabilityReliable:
		multiplier = multiplierReliable
	}
	multiplier += perNoShowBump*float64(noShows) + perCancellationBump*float64(cancellations)

	hold := Round2(BaseHold(price, durationMinutes) * multiplier)

	floor := minHoldFloor
	if floor > price {
		floor = price
	}
	if hold < floor {
		return Round2(floor)
	}
	if hold > price {
		return Round2(price)
	}
	return hold
}

// Round2 rounds to currency precision (2 decimals).
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
