package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/uptrace/bun"

	"github.com/propcrowd/fundhub.go/common"
	"github.com/propcrowd/fundhub.go/db/models"
	"github.com/propcrowd/fundhub.go/psp"
)

// ReconciliationResult is what a processed webhook event did to our
// records. Controllers map it onto HTTP responses, background pollers
// onto log lines.
type ReconciliationResult struct {
	Outcome          string
	Payment          *models.Payment
	Investment       *models.Investment
	Project          *models.Project
	CrossedThreshold bool
}

// ProcessWebhookEvent applies one canonical provider event to the
// payment it belongs to. The whole reconciliation runs in a single DB
// transaction with the payment row locked, so a redelivered or
// concurrently delivered event either becomes a no-op or waits for the
// first delivery to finish. The provider-side notification is the
// trigger, never the authority: we re-check our own payment status
// under the lock before any effect.
func (svc *FundhubService) ProcessWebhookEvent(ctx context.Context, event *psp.WebhookEvent) (*ReconciliationResult, error) {
	svc.Logger.Infof("Webhook event: provider:%s status:%s transaction_id:%s session_id:%s amount:%v", event.Provider, event.Status, event.TransactionID, event.SessionID, event.Amount)

	result := &ReconciliationResult{}

	tx, err := svc.DB.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		svc.Logger.Errorf("Failed to open reconciliation transaction provider:%s transaction_id:%s %v", event.Provider, event.TransactionID, err)
		return nil, err
	}

	payment, err := svc.findPaymentForUpdate(ctx, tx, *event)
	if err != nil {
		tx.Rollback()
		if errors.Is(err, ErrPaymentNotFound) {
			svc.Logger.Infof("Payment not found for webhook provider:%s transaction_id:%s session_id:%s", event.Provider, event.TransactionID, event.SessionID)
		}
		return nil, err
	}
	result.Payment = payment

	target, outcome := nextPaymentStatus(payment.Status, event.Status)
	switch outcome {
	case outcomeNoop:
		// duplicate delivery, first one already applied everything
		tx.Rollback()
		svc.Logger.Infof("Duplicate webhook delivery provider:%s payment_id:%v status:%s", event.Provider, payment.ID, payment.Status)
		result.Outcome = common.WebhookOutcomeDuplicate
		return result, nil
	case outcomeConflict:
		tx.Rollback()
		result.Outcome = common.WebhookOutcomeConflicted
		conflictErr := &StateConflictError{PaymentID: payment.ID, Current: payment.Status, EventStatus: event.Status}
		svc.flagConflictForReview(ctx, payment, event)
		return result, conflictErr
	}

	amountMismatch := event.Amount != 0 && event.Amount != payment.Amount
	if amountMismatch {
		svc.Logger.Infof("Webhook amount mismatch, keeping recorded amount. payment_id:%v amount:%v notified:%v", payment.ID, payment.Amount, event.Amount)
	}

	if err = svc.applyPaymentTransition(ctx, tx, payment, event, target); err != nil {
		tx.Rollback()
		svc.Logger.Errorf("Could not update payment payment_id:%v %v", payment.ID, err)
		return nil, err
	}

	investment := new(models.Investment)
	err = tx.NewSelect().Model(investment).Where("id = ?", payment.InvestmentID).For("UPDATE").Scan(ctx)
	if err != nil {
		tx.Rollback()
		svc.Logger.Errorf("Could not find investment for payment payment_id:%v investment_id:%v %v", payment.ID, payment.InvestmentID, err)
		return nil, err
	}

	investment.Status = investmentStatusFor(target)
	investment.PaymentStatus = target
	switch target {
	case common.PaymentStatusCompleted:
		investment.ConfirmedAt = bun.NullTime{Time: time.Now()}
	case common.PaymentStatusRefunded:
		investment.RefundedAt = bun.NullTime{Time: time.Now()}
	}
	if event.Status == psp.EventChargeback {
		investment.FlaggedForReview = true
	}
	if _, err = tx.NewUpdate().Model(investment).WherePK().Exec(ctx); err != nil {
		tx.Rollback()
		svc.Logger.Errorf("Could not update investment investment_id:%v %v", investment.ID, err)
		return nil, err
	}
	result.Investment = investment

	switch target {
	case common.PaymentStatusCompleted:
		project, crossed, err := svc.settleCompletedPayment(ctx, tx, payment, investment)
		if err != nil {
			tx.Rollback()
			svc.Logger.Errorf("Could not settle completed payment payment_id:%v project_id:%v %v", payment.ID, investment.ProjectID, err)
			return nil, err
		}
		result.Project = project
		result.CrossedThreshold = crossed
	case common.PaymentStatusRefunded:
		project, err := svc.settleRefundedPayment(ctx, tx, payment, investment, event)
		if err != nil {
			tx.Rollback()
			svc.Logger.Errorf("Could not settle refunded payment payment_id:%v project_id:%v %v", payment.ID, investment.ProjectID, err)
			return nil, err
		}
		result.Project = project
	}

	if err = tx.Commit(); err != nil {
		svc.Logger.Errorf("Failed to commit reconciliation payment_id:%v %v", payment.ID, err)
		return nil, err
	}
	result.Outcome = common.WebhookOutcomeAccepted

	svc.ReconPubSub.Publish(payment.Status, *payment)
	svc.ReconPubSub.Publish(strconv.FormatInt(investment.UserID, 10), *payment)

	if amountMismatch {
		svc.Audit(ctx, common.AuditSeverityWarning, "payment.amount_mismatch", map[string]interface{}{
			"payment_id":      payment.ID,
			"provider":        event.Provider,
			"recorded_amount": payment.Amount,
			"notified_amount": event.Amount,
		})
	}
	if event.Status == psp.EventChargeback {
		svc.Audit(ctx, common.AuditSeverityWarning, "payment.chargeback", map[string]interface{}{
			"payment_id":    payment.ID,
			"investment_id": investment.ID,
			"provider":      event.Provider,
		})
	}
	if result.CrossedThreshold && result.Project != nil {
		svc.Logger.Infof("Project reached funding target project_id:%v current_funding:%v", result.Project.ID, result.Project.CurrentFunding)
		svc.Notify(ctx, "project.funding_complete", map[string]interface{}{
			"project_id":      result.Project.ID,
			"current_funding": result.Project.CurrentFunding,
			"target_funding":  result.Project.TargetFunding,
		})
	}

	return result, nil
}

// applyPaymentTransition writes the new payment status together with its
// timestamp and backfills the provider transaction id for payments that
// were only known by session id so far.
func (svc *FundhubService) applyPaymentTransition(ctx context.Context, tx bun.Tx, payment *models.Payment, event *psp.WebhookEvent, target string) error {
	payment.Status = target
	if payment.TransactionID == "" && event.TransactionID != "" {
		payment.TransactionID = event.TransactionID
	}
	if len(event.RawBody) > 0 {
		payment.RawResponse = string(event.RawBody)
	}
	now := bun.NullTime{Time: time.Now()}
	switch target {
	case common.PaymentStatusCompleted:
		payment.CompletedAt = now
	case common.PaymentStatusFailed:
		payment.FailedAt = now
	case common.PaymentStatusCancelled:
		payment.CancelledAt = now
	case common.PaymentStatusRefunded:
		payment.RefundedAt = now
	}
	_, err := tx.NewUpdate().Model(payment).WherePK().Exec(ctx)
	return err
}

// settleCompletedPayment performs the side effects of a completed
// payment: escrow deposit, project funding increment and investor total
// increment. All of it shares the caller's transaction, so a crash
// leaves either everything or nothing.
//
// The funding threshold guard flips the project to funding_complete at
// most once. The conditional update only matches status open, so two
// payments racing over the threshold produce exactly one release
// schedule entry.
func (svc *FundhubService) settleCompletedPayment(ctx context.Context, tx bun.Tx, payment *models.Payment, investment *models.Investment) (*models.Project, bool, error) {
	account, err := svc.ensureEscrowAccount(ctx, tx, investment.ProjectID, payment.Currency, payment.Provider)
	if err != nil {
		return nil, false, err
	}
	if _, err = svc.depositEscrow(ctx, tx, account, payment); err != nil {
		return nil, false, err
	}

	_, err = tx.NewUpdate().Model((*models.Project)(nil)).
		Set("current_funding = current_funding + ?", payment.Amount).
		Set("updated_at = now()").
		Where("id = ?", investment.ProjectID).Exec(ctx)
	if err != nil {
		return nil, false, err
	}

	project := new(models.Project)
	if err = tx.NewSelect().Model(project).Where("id = ?", investment.ProjectID).Scan(ctx); err != nil {
		return nil, false, err
	}

	crossed := false
	if project.CurrentFunding >= project.TargetFunding {
		res, err := tx.NewUpdate().Model((*models.Project)(nil)).
			Set("status = ?", common.ProjectStatusFundingComplete).
			Set("funded_at = now()").
			Set("updated_at = now()").
			Where("id = ? AND status = ?", project.ID, common.ProjectStatusOpen).Exec(ctx)
		if err != nil {
			return nil, false, err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return nil, false, err
		}
		// rows == 0 means another payment crossed the threshold first
		if rows == 1 {
			crossed = true
			project.Status = common.ProjectStatusFundingComplete
			project.FundedAt = bun.NullTime{Time: time.Now()}
			schedule := &models.ReleaseSchedule{
				ProjectID: project.ID,
				PaymentID: payment.ID,
				Status:    common.ScheduleStatusScheduled,
			}
			_, err = tx.NewInsert().Model(schedule).
				On("CONFLICT (project_id) DO NOTHING").Exec(ctx)
			if err != nil {
				return nil, false, err
			}
		}
	}

	_, err = tx.NewUpdate().Model((*models.User)(nil)).
		Set("total_invested = total_invested + ?", payment.Amount).
		Set("updated_at = now()").
		Where("id = ?", investment.UserID).Exec(ctx)
	if err != nil {
		return nil, false, err
	}

	return project, crossed, nil
}

// settleRefundedPayment reverses a completed payment: escrow draw-down,
// project funding decrement, investor total decrement and a processed
// refund record. Aggregates are floored at zero, a refund may legally
// arrive after a partial release already consumed parts of the escrow.
func (svc *FundhubService) settleRefundedPayment(ctx context.Context, tx bun.Tx, payment *models.Payment, investment *models.Investment, event *psp.WebhookEvent) (*models.Project, error) {
	_, err := svc.drawDownEscrow(ctx, tx, investment.ProjectID, payment.Currency, payment.Amount, payment.ID, 0)
	if err != nil {
		return nil, err
	}

	_, err = tx.NewUpdate().Model((*models.Project)(nil)).
		Set("current_funding = GREATEST(current_funding - ?, 0)", payment.Amount).
		Set("updated_at = now()").
		Where("id = ?", investment.ProjectID).Exec(ctx)
	if err != nil {
		return nil, err
	}
	_, err = tx.NewUpdate().Model((*models.User)(nil)).
		Set("total_invested = GREATEST(total_invested - ?, 0)", payment.Amount).
		Set("updated_at = now()").
		Where("id = ?", investment.UserID).Exec(ctx)
	if err != nil {
		return nil, err
	}

	reason := common.RefundReasonProviderEvent
	if event.Status == psp.EventChargeback {
		reason = common.RefundReasonChargeback
	}
	if event.Reason != "" {
		reason = event.Reason
	}
	refund := &models.Refund{
		PaymentID:    payment.ID,
		InvestmentID: investment.ID,
		Amount:       payment.Amount,
		Reason:       reason,
		Status:       common.RefundStatusProcessed,
		ProcessedAt:  bun.NullTime{Time: time.Now()},
	}
	if _, err = tx.NewInsert().Model(refund).Exec(ctx); err != nil {
		return nil, err
	}

	project := new(models.Project)
	if err = tx.NewSelect().Model(project).Where("id = ?", investment.ProjectID).Scan(ctx); err != nil {
		return nil, err
	}
	return project, nil
}

// flagConflictForReview marks the investment behind a conflicting event
// so operators see it. Best effort outside the rolled-back transaction,
// the conflict response does not depend on it.
func (svc *FundhubService) flagConflictForReview(ctx context.Context, payment *models.Payment, event *psp.WebhookEvent) {
	svc.Logger.Infof("Conflicting webhook event provider:%s payment_id:%v status:%s event_status:%s", event.Provider, payment.ID, payment.Status, event.Status)
	_, err := svc.DB.NewUpdate().Model((*models.Investment)(nil)).
		Set("flagged_for_review = true").
		Set("updated_at = now()").
		Where("id = ?", payment.InvestmentID).Exec(ctx)
	if err != nil {
		svc.Logger.Errorf("Could not flag investment for review investment_id:%v %v", payment.InvestmentID, err)
	}
	svc.Audit(ctx, common.AuditSeverityError, "payment.state_conflict", map[string]interface{}{
		"payment_id":     payment.ID,
		"investment_id":  payment.InvestmentID,
		"provider":       event.Provider,
		"payment_status": payment.Status,
		"event_status":   event.Status,
	})
}
