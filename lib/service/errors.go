package service

import (
	"errors"
	"fmt"
	"strings"
)

var ErrPaymentNotFound = errors.New("no payment matches the notified transaction")

var ErrProjectNotFound = errors.New("project not found")

var ErrInvestmentNotFound = errors.New("investment not found")

// ErrEventIdentifierMismatch : the event's transaction id and session id
// resolve to different payments. Never apply such an event.
var ErrEventIdentifierMismatch = errors.New("event identifiers resolve to different payments")

// ErrReleaseNotClaimable : the project's release schedule is missing or
// was already claimed by a release that ran before this one.
var ErrReleaseNotClaimable = errors.New("release already executed or not scheduled")

// ErrProjectNotOpen : new investments are only accepted while a project
// is open for funding.
var ErrProjectNotOpen = errors.New("project is not open for investment")

// StateConflictError : the event contradicts a terminal payment status,
// e.g. a refund for a payment that never completed.
type StateConflictError struct {
	PaymentID   int64
	Current     string
	EventStatus string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("event %s conflicts with payment %d in status %s", e.EventStatus, e.PaymentID, e.Current)
}

// InsufficientEscrowError : a release or refund asked for more than the
// project's escrow accounts hold. Nothing was drawn.
type InsufficientEscrowError struct {
	ProjectID int64
	Requested int64
	Available int64
}

func (e *InsufficientEscrowError) Error() string {
	return fmt.Sprintf("insufficient escrow balance for project %d: requested %d, available %d", e.ProjectID, e.Requested, e.Available)
}

// ReleaseConditionsError lists every unmet release condition by name, a
// rejection never collapses into a single generic message.
type ReleaseConditionsError struct {
	Unmet []ReleaseCondition
}

func (e *ReleaseConditionsError) Error() string {
	names := make([]string, len(e.Unmet))
	for i, condition := range e.Unmet {
		names[i] = condition.Name
	}
	return "release conditions not met: " + strings.Join(names, ", ")
}
