package domain

import "time"

// AttemptOutcome is the result of a single transfer attempt.
type AttemptOutcome string

const (
	AttemptSuccess AttemptOutcome = "SUCCESS"
	AttemptFailure AttemptOutcome = "FAILURE"
)

// TransferAttempt is an append-only record of one call to the processor's transfer API.
// The order's SettlementStatus, not this log, is the source of truth.
type TransferAttempt struct {
	ID         string
	OrderID    string
	Attempt    int
	Outcome    AttemptOutcome
	TransferID string
	Error      string
	Ambiguous  bool // the processor may or may not have executed the transfer
	CreatedAt  time.Time
}
