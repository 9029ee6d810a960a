package mintsdk

import "time"

// ResolveStatus derives the sale status of a claim at now.
// Upcoming wins over everything, and a sold-out claim reports sold-out even after its end date.
func ResolveStatus(state *ClaimState, now time.Time) Status {
	if !state.StartDate.IsZero() && now.Before(state.StartDate) {
		return StatusUpcoming
	}
	if remaining, bounded := state.SupplyRemaining(); bounded && remaining == 0 {
		return StatusSoldOut
	}
	if !state.EndDate.IsZero() && !now.Before(state.EndDate) {
		return StatusEnded
	}
	return StatusActive
}

func statusReason(status Status) string {
	switch status {
	case StatusUpcoming:
		return ReasonNotStarted
	case StatusEnded:
		return ReasonEnded
	case StatusSoldOut:
		return ReasonSoldOut
	default:
		return ""
	}
}
