package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/propcrowd/fundhub.go/common"
	"github.com/propcrowd/fundhub.go/db/models"
	"github.com/propcrowd/fundhub.go/psp"
)

const (
	ConditionTargetReached      = "funding_target_reached"
	ConditionWindowClosed       = "funding_window_closed"
	ConditionRegulatoryApproval = "regulatory_approval"
)

// ReleaseCondition is one named precondition of a release. Rejections
// report every unmet condition, not just the first.
type ReleaseCondition struct {
	Name   string `json:"name"`
	Met    bool   `json:"met"`
	Detail string `json:"detail"`
}

type ReleasePayout struct {
	AccountID        int64  `json:"account_id"`
	Provider         string `json:"provider"`
	Currency         string `json:"currency"`
	Amount           int64  `json:"amount"`
	ProviderPayoutID string `json:"provider_payout_id"`
}

type ReleaseResult struct {
	ProjectID     int64           `json:"project_id"`
	TotalReleased int64           `json:"total_released"`
	Payouts       []ReleasePayout `json:"payouts"`
}

// EvaluateReleaseConditions checks a project against the three release
// preconditions: target reached, funding window closed (or an operator
// override) and regulatory approval where the project requires it.
// Pure, the caller decides what a failed evaluation means.
func EvaluateReleaseConditions(project *models.Project, now time.Time) []ReleaseCondition {
	targetReached := project.Status == common.ProjectStatusFundingComplete ||
		project.Status == common.ProjectStatusInProgress ||
		project.CurrentFunding >= project.TargetFunding

	windowClosed := project.ReleaseOverride
	windowDetail := "override set by operator"
	if !project.ReleaseOverride {
		if project.FundingDeadline.IsZero() {
			windowClosed = true
			windowDetail = "no funding deadline configured"
		} else if now.After(project.FundingDeadline.Time) {
			windowClosed = true
			windowDetail = fmt.Sprintf("funding deadline %s passed", project.FundingDeadline.Time.Format(time.RFC3339))
		} else {
			windowDetail = fmt.Sprintf("funding deadline %s not reached and no override", project.FundingDeadline.Time.Format(time.RFC3339))
		}
	}

	regulatoryOK := !project.RequiresRegulatory || project.RegulatoryApproved
	regulatoryDetail := "not required"
	if project.RequiresRegulatory {
		if project.RegulatoryApproved {
			regulatoryDetail = "approval recorded"
		} else {
			regulatoryDetail = "approval required but not recorded"
		}
	}

	return []ReleaseCondition{
		{
			Name:   ConditionTargetReached,
			Met:    targetReached,
			Detail: fmt.Sprintf("current funding %d of target %d", project.CurrentFunding, project.TargetFunding),
		},
		{Name: ConditionWindowClosed, Met: windowClosed, Detail: windowDetail},
		{Name: ConditionRegulatoryApproval, Met: regulatoryOK, Detail: regulatoryDetail},
	}
}

func unmetConditions(conditions []ReleaseCondition) []ReleaseCondition {
	var unmet []ReleaseCondition
	for _, condition := range conditions {
		if !condition.Met {
			unmet = append(unmet, condition)
		}
	}
	return unmet
}

// ExecuteRelease pays the escrowed funds of a fully funded project out
// to its beneficiary and draws the ledger down to zero.
//
// The release schedule row is the concurrency gate: it is flipped from
// scheduled to released up front with a conditional update, so a second
// release attempt for the same project gets a state conflict instead of
// a second payout. Each escrow account is paid out first and drawn down
// in its own transaction after the provider confirmed the payout; a
// payout failure stops the loop, flips the schedule back and leaves the
// remaining balances untouched for a retry.
func (svc *FundhubService) ExecuteRelease(ctx context.Context, projectID int64) (*ReleaseResult, error) {
	project, err := svc.FindProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	conditions := EvaluateReleaseConditions(project, time.Now())
	if unmet := unmetConditions(conditions); len(unmet) > 0 {
		return nil, &ReleaseConditionsError{Unmet: unmet}
	}

	res, err := svc.DB.NewUpdate().Model((*models.ReleaseSchedule)(nil)).
		Set("status = ?", common.ScheduleStatusReleased).
		Where("project_id = ? AND status = ?", projectID, common.ScheduleStatusScheduled).Exec(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrReleaseNotClaimable
	}

	accounts, err := svc.EscrowAccountsForProject(ctx, projectID)
	if err != nil {
		svc.revertReleaseClaim(ctx, projectID)
		return nil, err
	}

	result := &ReleaseResult{ProjectID: projectID}
	for _, account := range accounts {
		if account.Balance <= 0 {
			continue
		}
		payout, err := svc.payOutEscrowAccount(ctx, project, &account)
		if err != nil {
			svc.Logger.Errorf("Release payout failed project_id:%v account_id:%v %v", projectID, account.ID, err)
			svc.revertReleaseClaim(ctx, projectID)
			svc.Audit(ctx, common.AuditSeverityError, "release.payout_failed", map[string]interface{}{
				"project_id": projectID,
				"account_id": account.ID,
				"provider":   account.Provider,
				"amount":     account.Balance,
				"error":      err.Error(),
			})
			return result, err
		}
		result.Payouts = append(result.Payouts, *payout)
		result.TotalReleased += payout.Amount
	}

	_, err = svc.DB.NewUpdate().Model((*models.Project)(nil)).
		Set("status = ?", common.ProjectStatusInProgress).
		Set("updated_at = now()").
		Where("id = ? AND status = ?", projectID, common.ProjectStatusFundingComplete).Exec(ctx)
	if err != nil {
		return result, err
	}
	_, err = svc.DB.NewUpdate().Model((*models.ReleaseSchedule)(nil)).
		Set("released_at = now()").
		Where("project_id = ?", projectID).Exec(ctx)
	if err != nil {
		return result, err
	}

	svc.Logger.Infof("Released escrow project_id:%v total:%v payouts:%v", projectID, result.TotalReleased, len(result.Payouts))
	svc.Audit(ctx, common.AuditSeverityInfo, "release.completed", map[string]interface{}{
		"project_id":     projectID,
		"total_released": result.TotalReleased,
		"payouts":        len(result.Payouts),
	})
	svc.Notify(ctx, "project.released", map[string]interface{}{
		"project_id":     projectID,
		"total_released": result.TotalReleased,
	})
	return result, nil
}

// payOutEscrowAccount sends one account's full balance to the project
// beneficiary and, only after the provider accepted the payout, appends
// the release entry and zeroes the cached balance in one transaction.
func (svc *FundhubService) payOutEscrowAccount(ctx context.Context, project *models.Project, account *models.EscrowAccount) (*ReleasePayout, error) {
	client, err := svc.Providers.Client(account.Provider)
	if err != nil {
		return nil, err
	}

	amount := account.Balance
	payoutResult, err := client.Payout(ctx, psp.PayoutRequest{
		Reference:     fmt.Sprintf("release-%d-%d", project.ID, account.ID),
		BeneficiaryID: project.BeneficiaryID,
		Amount:        amount,
		Currency:      account.Currency,
		Description:   fmt.Sprintf("Escrow release for project %s", project.Name),
	})
	if err != nil {
		return nil, err
	}

	err = svc.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		entry := &models.EscrowEntry{
			AccountID: account.ID,
			ProjectID: project.ID,
			Type:      common.EntryTypeRelease,
			Amount:    amount,
		}
		if _, err := tx.NewInsert().Model(entry).Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewUpdate().Model((*models.EscrowAccount)(nil)).
			Set("balance = balance - ?", amount).
			Set("updated_at = now()").
			Where("id = ?", account.ID).Exec(ctx)
		return err
	})
	if err != nil {
		// the money left, the ledger write failed: loudest possible log,
		// operators have to reconcile against the provider statement
		svc.Logger.Errorf("Payout sent but ledger update failed project_id:%v account_id:%v payout_id:%s %v", project.ID, account.ID, payoutResult.ProviderPayoutID, err)
		return nil, err
	}

	svc.Logger.Infof("Paid out escrow account account_id:%v provider:%s amount:%v payout_id:%s", account.ID, account.Provider, amount, payoutResult.ProviderPayoutID)
	return &ReleasePayout{
		AccountID:        account.ID,
		Provider:         account.Provider,
		Currency:         account.Currency,
		Amount:           amount,
		ProviderPayoutID: payoutResult.ProviderPayoutID,
	}, nil
}

func (svc *FundhubService) revertReleaseClaim(ctx context.Context, projectID int64) {
	_, err := svc.DB.NewUpdate().Model((*models.ReleaseSchedule)(nil)).
		Set("status = ?", common.ScheduleStatusScheduled).
		Where("project_id = ? AND status = ?", projectID, common.ScheduleStatusReleased).Exec(ctx)
	if err != nil {
		svc.Logger.Errorf("Could not revert release claim project_id:%v %v", projectID, err)
	}
}
