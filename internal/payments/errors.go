package payments

import "errors"

var (
	// ErrDuplicateIdempotencyKey means another attempt already owns the key; read it instead.
	ErrDuplicateIdempotencyKey = errors.New("payment attempt idempotency key already exists")
	// ErrRecordNotFound means no attempt matched the lookup.
	ErrRecordNotFound = errors.New("payment attempt not found")
	// ErrInvalidStateTransition means the attempt is not in a status the requested change can start from.
	ErrInvalidStateTransition = errors.New("payment attempt state transition not allowed")
)
