package settlement

import "fmt"

// Conflict and validation errors surfaced directly to callers.
var (
	ErrAuctionNotEnded     = fmt.Errorf("auction has not ended yet")
	ErrTransactionNotFound = fmt.Errorf("transaction not found")
	ErrNotRefundable       = fmt.Errorf("can only refund completed transactions")
	ErrAlreadyRefunded     = fmt.Errorf("transaction has already been refunded")
	ErrInvalidRefundAmount = fmt.Errorf("invalid refund amount")
)

// Error wraps a failure during the settle-and-transfer step of close.
// The close operation converts it into the settlement_failed state rather
// than propagating it to the scheduler; it appears in logs and in the
// escalation event.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("settlement failed during %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
