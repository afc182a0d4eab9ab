package service

import (
	"github.com/propcrowd/fundhub.go/common"
	"github.com/propcrowd/fundhub.go/psp"
)

type transitionOutcome int

const (
	// outcomeApply : transition is legal and has not been applied yet
	outcomeApply transitionOutcome = iota
	// outcomeNoop : duplicate delivery, target state already reached
	outcomeNoop
	// outcomeConflict : event contradicts a terminal state
	outcomeConflict
)

// nextPaymentStatus decides what a canonical event does to a payment in
// its current status. Completed is terminal except for the single legal
// refund transition; everything else terminal rejects contradicting
// events. Duplicates of an already-applied event are no-ops, which is
// what makes at-least-once delivery safe.
func nextPaymentStatus(current, event string) (target string, outcome transitionOutcome) {
	open := current == common.PaymentStatusPending || current == common.PaymentStatusProcessing

	switch event {
	case psp.EventCompleted:
		if open {
			return common.PaymentStatusCompleted, outcomeApply
		}
		if current == common.PaymentStatusCompleted {
			return current, outcomeNoop
		}
	case psp.EventFailed:
		if open {
			return common.PaymentStatusFailed, outcomeApply
		}
		if current == common.PaymentStatusFailed {
			return current, outcomeNoop
		}
	case psp.EventCancelled:
		if open {
			return common.PaymentStatusCancelled, outcomeApply
		}
		if current == common.PaymentStatusCancelled {
			return current, outcomeNoop
		}
	case psp.EventRefunded, psp.EventChargeback:
		if current == common.PaymentStatusCompleted {
			return common.PaymentStatusRefunded, outcomeApply
		}
		if current == common.PaymentStatusRefunded {
			return current, outcomeNoop
		}
	}
	return current, outcomeConflict
}

// investmentStatusFor derives the investment status from its payment
// status. Investments never transition on their own.
func investmentStatusFor(paymentStatus string) string {
	switch paymentStatus {
	case common.PaymentStatusCompleted:
		return common.InvestmentStatusConfirmed
	case common.PaymentStatusFailed:
		return common.InvestmentStatusFailed
	case common.PaymentStatusCancelled:
		return common.InvestmentStatusCancelled
	case common.PaymentStatusRefunded:
		return common.InvestmentStatusRefunded
	default:
		return common.InvestmentStatusPending
	}
}
