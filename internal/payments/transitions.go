package payments

import "github.com/angelmondragon/hireloop-backend/pkg/enums"

// statusOrder keeps derived source lists deterministic.
var statusOrder = []enums.PaymentStatus{
	enums.PaymentStatusPending,
	enums.PaymentStatusProcessing,
	enums.PaymentStatusCompleted,
	enums.PaymentStatusFailed,
	enums.PaymentStatusRefunded,
	enums.PaymentStatusCancelled,
}

// allowedTransitions is the payment attempt state machine. Terminal states have no
// outgoing edges except completed -> refunded.
var allowedTransitions = map[enums.PaymentStatus][]enums.PaymentStatus{
	enums.PaymentStatusPending: {
		enums.PaymentStatusProcessing,
		enums.PaymentStatusCompleted,
		enums.PaymentStatusFailed,
		enums.PaymentStatusCancelled,
	},
	enums.PaymentStatusProcessing: {
		enums.PaymentStatusCompleted,
		enums.PaymentStatusFailed,
	},
	enums.PaymentStatusCompleted: {
		enums.PaymentStatusRefunded,
	},
}

// CanTransition reports whether an attempt may move from one status to another.
func CanTransition(from, to enums.PaymentStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// SourcesFor lists every status that may move to the target.
func SourcesFor(to enums.PaymentStatus) []enums.PaymentStatus {
	var sources []enums.PaymentStatus
	for _, from := range statusOrder {
		if CanTransition(from, to) {
			sources = append(sources, from)
		}
	}
	return sources
}
