package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/propcrowd/fundhub.go/common"
	"github.com/propcrowd/fundhub.go/psp"
)

func TestCompletedEventAppliesToOpenPayment(t *testing.T) {
	for _, current := range []string{common.PaymentStatusPending, common.PaymentStatusProcessing} {
		target, outcome := nextPaymentStatus(current, psp.EventCompleted)
		assert.Equal(t, common.PaymentStatusCompleted, target)
		assert.Equal(t, outcomeApply, outcome)
	}
}

func TestDuplicateCompletedEventIsNoop(t *testing.T) {
	target, outcome := nextPaymentStatus(common.PaymentStatusCompleted, psp.EventCompleted)
	assert.Equal(t, common.PaymentStatusCompleted, target)
	assert.Equal(t, outcomeNoop, outcome)
}

func TestFailedEventAfterCompletionConflicts(t *testing.T) {
	_, outcome := nextPaymentStatus(common.PaymentStatusCompleted, psp.EventFailed)
	assert.Equal(t, outcomeConflict, outcome)
}

func TestCompletedEventAfterFailureConflicts(t *testing.T) {
	_, outcome := nextPaymentStatus(common.PaymentStatusFailed, psp.EventCompleted)
	assert.Equal(t, outcomeConflict, outcome)
}

func TestRefundRequiresCompletedPayment(t *testing.T) {
	target, outcome := nextPaymentStatus(common.PaymentStatusCompleted, psp.EventRefunded)
	assert.Equal(t, common.PaymentStatusRefunded, target)
	assert.Equal(t, outcomeApply, outcome)

	_, outcome = nextPaymentStatus(common.PaymentStatusPending, psp.EventRefunded)
	assert.Equal(t, outcomeConflict, outcome)

	_, outcome = nextPaymentStatus(common.PaymentStatusFailed, psp.EventRefunded)
	assert.Equal(t, outcomeConflict, outcome)
}

func TestChargebackBehavesLikeRefund(t *testing.T) {
	target, outcome := nextPaymentStatus(common.PaymentStatusCompleted, psp.EventChargeback)
	assert.Equal(t, common.PaymentStatusRefunded, target)
	assert.Equal(t, outcomeApply, outcome)

	_, outcome = nextPaymentStatus(common.PaymentStatusRefunded, psp.EventChargeback)
	assert.Equal(t, outcomeNoop, outcome)
}

func TestDuplicateFailureAndCancellationAreNoops(t *testing.T) {
	_, outcome := nextPaymentStatus(common.PaymentStatusFailed, psp.EventFailed)
	assert.Equal(t, outcomeNoop, outcome)

	_, outcome = nextPaymentStatus(common.PaymentStatusCancelled, psp.EventCancelled)
	assert.Equal(t, outcomeNoop, outcome)
}

func TestCancellationOfOpenPaymentApplies(t *testing.T) {
	target, outcome := nextPaymentStatus(common.PaymentStatusProcessing, psp.EventCancelled)
	assert.Equal(t, common.PaymentStatusCancelled, target)
	assert.Equal(t, outcomeApply, outcome)
}

func TestInvestmentStatusFollowsPayment(t *testing.T) {
	assert.Equal(t, common.InvestmentStatusConfirmed, investmentStatusFor(common.PaymentStatusCompleted))
	assert.Equal(t, common.InvestmentStatusFailed, investmentStatusFor(common.PaymentStatusFailed))
	assert.Equal(t, common.InvestmentStatusCancelled, investmentStatusFor(common.PaymentStatusCancelled))
	assert.Equal(t, common.InvestmentStatusRefunded, investmentStatusFor(common.PaymentStatusRefunded))
	assert.Equal(t, common.InvestmentStatusPending, investmentStatusFor(common.PaymentStatusPending))
	assert.Equal(t, common.InvestmentStatusPending, investmentStatusFor(common.PaymentStatusProcessing))
}
