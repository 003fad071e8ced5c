package app

import "github.com/google/uuid"

// SecondaryError is a failure of a non-critical side effect (aggregate
// increment, receipt issuance, settled-event publish). It is carried on the
// settlement result so callers and tests can observe it, but it never fails
// the settlement.
type SecondaryError struct {
	Effect string
	Err    error
}

func (e SecondaryError) Error() string {
	return e.Effect + ": " + e.Err.Error()
}

// SettlementResult is the structured outcome of handling one confirmation.
// The primary outcome is carried by the method error; Secondary collects the
// swallowed failures of best-effort steps.
type SettlementResult struct {
	AlreadyProcessed bool
	TransactionID    *uuid.UUID
	SubscriptionID   *uuid.UUID
	Secondary        []SecondaryError
}
