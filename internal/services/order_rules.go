package services

// Order status constants, in lifecycle order.
const (
	StatusPending   = "pending"   // just created, stock reserved, awaiting payment
	StatusConfirmed = "confirmed" // payment accepted, staff sees an active order
	StatusPreparing = "preparing"
	StatusCompleted = "completed" // preparation done, customer called
	StatusArrived   = "arrived"   // customer at the counter
	StatusFinal     = "final"     // settled, counts toward revenue
	StatusCancelled = "cancelled"
	StatusArchived  = "archived" // end-of-day housekeeping, hidden from live views
)

// stageIndex orders the forward fulfillment progression. Cancelled and
// archived are not stages; they are handled explicitly.
var stageIndex = map[string]int{
	StatusPending:   0,
	StatusConfirmed: 1,
	StatusPreparing: 2,
	StatusCompleted: 3,
	StatusArrived:   4,
	StatusFinal:     5,
}

// InFlightStatuses are the statuses that still hold a stock reservation and
// are swept by the daily reset.
var InFlightStatuses = []string{
	StatusPending, StatusConfirmed, StatusPreparing, StatusCompleted, StatusArrived,
}

// RevenueStatuses are the statuses counted by reporting. Archiving must not
// erase revenue, so archived is included.
var RevenueStatuses = []string{StatusCompleted, StatusFinal, StatusArchived}

// IsValidStatus reports whether s is a known order status.
func IsValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusPreparing, StatusCompleted,
		StatusArrived, StatusFinal, StatusCancelled, StatusArchived:
		return true
	}
	return false
}

func isInFlight(status string) bool {
	_, ok := stageIndex[status]
	return ok && status != StatusFinal
}

// CanTransition reports whether a staff-driven move from one status to
// another is legal. Forward skips along the fulfillment progression are
// allowed (cash orders jump pending→confirmed, a quiet stall may jump
// confirmed→completed). Cancelled is reachable from any non-terminal state;
// archived only from final, and only the daily rollup goes there.
func CanTransition(from, to string) bool {
	if from == to {
		return false
	}
	switch to {
	case StatusCancelled:
		return isInFlight(from)
	case StatusArchived:
		return from == StatusFinal
	}
	fromIdx, fromOK := stageIndex[from]
	toIdx, toOK := stageIndex[to]
	return fromOK && toOK && toIdx > fromIdx
}

// CustomerCanTransition reports whether an unauthenticated customer may make
// the move: only completed→arrived, or settling into final.
func CustomerCanTransition(from, to string) bool {
	if to == StatusArrived {
		return from == StatusCompleted
	}
	if to == StatusFinal {
		return from == StatusCompleted || from == StatusArrived
	}
	return false
}

// ReleasesStock reports whether the transition must return reserved stock.
// Only entering cancelled from a status that still holds a reservation
// releases, which is what makes release exactly-once: a second cancel finds
// the order already cancelled and matches nothing here.
func ReleasesStock(from, to string) bool {
	return to == StatusCancelled && isInFlight(from)
}

// StampsCompletion reports whether entering the status sets completed_at
// (first entry only; the column write uses COALESCE).
func StampsCompletion(to string) bool {
	return to == StatusCompleted || to == StatusFinal
}
