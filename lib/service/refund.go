package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/propcrowd/fundhub.go/common"
	"github.com/propcrowd/fundhub.go/db/models"
	"github.com/propcrowd/fundhub.go/psp"
)

type RefundOutcome struct {
	InvestmentID int64  `json:"investment_id"`
	PaymentID    int64  `json:"payment_id"`
	Amount       int64  `json:"amount"`
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
}

type BulkRefundResult struct {
	ProjectID int64           `json:"project_id"`
	Requested int             `json:"requested"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Outcomes  []RefundOutcome `json:"outcomes"`
}

// RefundInvestment refunds one confirmed investment through its payment
// provider and settles the reversal through the same path a provider
// refund webhook takes. The escrow is checked before the provider call:
// we never move money back to an investor we cannot cover from escrow.
func (svc *FundhubService) RefundInvestment(ctx context.Context, investmentID int64, reason string) (*models.Refund, error) {
	investment, err := svc.FindInvestment(ctx, investmentID)
	if err != nil {
		return nil, err
	}

	payment := new(models.Payment)
	err = svc.DB.NewSelect().Model(payment).
		Where("investment_id = ? AND status = ?", investmentID, common.PaymentStatusCompleted).
		Order("id DESC").Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			current, findErr := svc.currentPaymentStatus(ctx, investmentID)
			if findErr != nil {
				return nil, findErr
			}
			return nil, &StateConflictError{PaymentID: 0, Current: current, EventStatus: psp.EventRefunded}
		}
		return nil, err
	}

	accounts, err := svc.EscrowAccountsForProject(ctx, investment.ProjectID)
	if err != nil {
		return nil, err
	}
	var sameCurrency []models.EscrowAccount
	for _, account := range accounts {
		if account.Currency == payment.Currency {
			sameCurrency = append(sameCurrency, account)
		}
	}
	if _, err = planDrawdown(investment.ProjectID, sameCurrency, payment.Amount, 0); err != nil {
		return nil, err
	}

	client, err := svc.Providers.Client(payment.Provider)
	if err != nil {
		return nil, err
	}
	refundResult, err := client.Refund(ctx, psp.RefundRequest{
		TransactionID: payment.TransactionID,
		Amount:        payment.Amount,
		Currency:      payment.Currency,
		Reason:        reason,
		Reference:     fmt.Sprintf("refund-%d", payment.ID),
	})
	if err != nil {
		svc.Logger.Errorf("Provider refund failed payment_id:%v provider:%s %v", payment.ID, payment.Provider, err)
		failed := &models.Refund{
			PaymentID:    payment.ID,
			InvestmentID: investment.ID,
			Amount:       payment.Amount,
			Reason:       reason,
			Status:       common.RefundStatusFailed,
			ErrorMessage: err.Error(),
		}
		if _, insertErr := svc.DB.NewInsert().Model(failed).Exec(ctx); insertErr != nil {
			svc.Logger.Errorf("Could not record failed refund payment_id:%v %v", payment.ID, insertErr)
		}
		return nil, err
	}

	event := &psp.WebhookEvent{
		Provider:      payment.Provider,
		TransactionID: payment.TransactionID,
		SessionID:     payment.SessionID,
		Status:        psp.EventRefunded,
		Amount:        payment.Amount,
		Currency:      payment.Currency,
		Reason:        reason,
	}
	if _, err = svc.ProcessWebhookEvent(ctx, event); err != nil {
		// the provider accepted the refund but our reversal failed, the
		// provider's own webhook redelivers it until we catch up
		svc.Logger.Errorf("Refund settlement failed, awaiting provider webhook payment_id:%v refund_id:%s %v", payment.ID, refundResult.ProviderRefundID, err)
		return nil, err
	}

	refund := new(models.Refund)
	err = svc.DB.NewSelect().Model(refund).
		Where("payment_id = ? AND status = ?", payment.ID, common.RefundStatusProcessed).
		Order("id DESC").Limit(1).Scan(ctx)
	if err != nil {
		return nil, err
	}
	if refund.ProviderRefundID == "" && refundResult.ProviderRefundID != "" {
		refund.ProviderRefundID = refundResult.ProviderRefundID
		if _, err = svc.DB.NewUpdate().Model(refund).WherePK().Exec(ctx); err != nil {
			svc.Logger.Errorf("Could not store provider refund id refund_id:%v %v", refund.ID, err)
		}
	}
	return refund, nil
}

func (svc *FundhubService) currentPaymentStatus(ctx context.Context, investmentID int64) (string, error) {
	payment := new(models.Payment)
	err := svc.DB.NewSelect().Model(payment).
		Where("investment_id = ?", investmentID).
		Order("id DESC").Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrPaymentNotFound
		}
		return "", err
	}
	return payment.Status, nil
}

// CancelProjectWithRefunds cancels a project and refunds every confirmed
// investment. The cancellation is written first so no new investment can
// start while refunds run. Individual refund failures do not stop the
// batch, they are recorded as failed refunds and retried by rerunning
// the cancellation, which only picks up investments still confirmed.
func (svc *FundhubService) CancelProjectWithRefunds(ctx context.Context, projectID int64, reason string) (*BulkRefundResult, error) {
	project, err := svc.FindProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if reason == "" {
		reason = common.RefundReasonProjectCancelled
	}

	if project.Status != common.ProjectStatusCancelled {
		_, err = svc.DB.NewUpdate().Model((*models.Project)(nil)).
			Set("status = ?", common.ProjectStatusCancelled).
			Set("updated_at = now()").
			Where("id = ? AND status IN (?)", projectID, bun.In([]string{common.ProjectStatusOpen, common.ProjectStatusFundingComplete})).Exec(ctx)
		if err != nil {
			return nil, err
		}
		_, err = svc.DB.NewUpdate().Model((*models.ReleaseSchedule)(nil)).
			Set("status = ?", common.ScheduleStatusCancelled).
			Where("project_id = ? AND status = ?", projectID, common.ScheduleStatusScheduled).Exec(ctx)
		if err != nil {
			return nil, err
		}
	}

	var investments []models.Investment
	err = svc.DB.NewSelect().Model(&investments).
		Where("project_id = ? AND status = ?", projectID, common.InvestmentStatusConfirmed).
		Order("id ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := &BulkRefundResult{ProjectID: projectID, Requested: len(investments)}
	for _, investment := range investments {
		outcome := RefundOutcome{InvestmentID: investment.ID, Amount: investment.Amount}
		refund, err := svc.RefundInvestment(ctx, investment.ID, reason)
		if err != nil {
			outcome.Error = err.Error()
			result.Failed++
			svc.Logger.Errorf("Bulk refund item failed project_id:%v investment_id:%v %v", projectID, investment.ID, err)
		} else {
			outcome.PaymentID = refund.PaymentID
			outcome.Success = true
			result.Succeeded++
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}

	svc.Logger.Infof("Project cancelled with refunds project_id:%v requested:%v succeeded:%v failed:%v", projectID, result.Requested, result.Succeeded, result.Failed)
	severity := common.AuditSeverityInfo
	if result.Failed > 0 {
		severity = common.AuditSeverityWarning
	}
	svc.Audit(ctx, severity, "project.cancelled", map[string]interface{}{
		"project_id": projectID,
		"reason":     reason,
		"requested":  result.Requested,
		"succeeded":  result.Succeeded,
		"failed":     result.Failed,
	})
	svc.Notify(ctx, "project.cancelled", map[string]interface{}{
		"project_id": projectID,
		"reason":     reason,
	})
	return result, nil
}

// RetryFailedRefunds re-runs provider refunds recorded as failed for a
// project, oldest first.
func (svc *FundhubService) RetryFailedRefunds(ctx context.Context, projectID int64) (*BulkRefundResult, error) {
	var refunds []models.Refund
	err := svc.DB.NewSelect().Model(&refunds).
		Join("JOIN investments AS i ON i.id = refund.investment_id").
		Where("i.project_id = ? AND refund.status = ?", projectID, common.RefundStatusFailed).
		Order("refund.id ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := &BulkRefundResult{ProjectID: projectID}
	seen := make(map[int64]bool)
	for _, failed := range refunds {
		if seen[failed.InvestmentID] {
			continue
		}
		seen[failed.InvestmentID] = true
		result.Requested++
		outcome := RefundOutcome{InvestmentID: failed.InvestmentID, PaymentID: failed.PaymentID, Amount: failed.Amount}
		if _, err := svc.RefundInvestment(ctx, failed.InvestmentID, failed.Reason); err != nil {
			outcome.Error = err.Error()
			result.Failed++
		} else {
			outcome.Success = true
			result.Succeeded++
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}
	return result, nil
}
