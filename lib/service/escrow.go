package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/uptrace/bun"

	"github.com/propcrowd/fundhub.go/common"
	"github.com/propcrowd/fundhub.go/db/models"
)

type drawdown struct {
	Account *models.EscrowAccount
	Amount  int64
}

// planDrawdown distributes amount across the given accounts, largest
// balance first, with preferredAccountID (if set) consumed before all
// others. It never plans a partial draw: when the accounts cannot cover
// the amount the plan is rejected as a whole.
func planDrawdown(projectID int64, accounts []models.EscrowAccount, amount int64, preferredAccountID int64) ([]drawdown, error) {
	ordered := make([]*models.EscrowAccount, len(accounts))
	for i := range accounts {
		ordered[i] = &accounts[i]
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].ID == preferredAccountID {
			return true
		}
		if ordered[j].ID == preferredAccountID {
			return false
		}
		return ordered[i].Balance > ordered[j].Balance
	})

	var available int64
	for _, account := range ordered {
		available += account.Balance
	}
	if available < amount {
		return nil, &InsufficientEscrowError{ProjectID: projectID, Requested: amount, Available: available}
	}

	var plan []drawdown
	remaining := amount
	for _, account := range ordered {
		if remaining == 0 {
			break
		}
		if account.Balance <= 0 {
			continue
		}
		take := account.Balance
		if take > remaining {
			take = remaining
		}
		plan = append(plan, drawdown{Account: account, Amount: take})
		remaining -= take
	}
	return plan, nil
}

// ensureEscrowAccount returns the project's escrow account for the
// currency and provider, creating it lazily on first deposit. The row
// comes back locked for the duration of the transaction.
func (svc *FundhubService) ensureEscrowAccount(ctx context.Context, tx bun.Tx, projectID int64, currency, provider string) (*models.EscrowAccount, error) {
	account := new(models.EscrowAccount)
	err := tx.NewSelect().Model(account).
		Where("project_id = ? AND currency = ? AND provider = ?", projectID, currency, provider).
		For("UPDATE").Scan(ctx)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	account = &models.EscrowAccount{
		ProjectID: projectID,
		Currency:  currency,
		Provider:  provider,
	}
	_, err = tx.NewInsert().Model(account).
		On("CONFLICT (project_id, currency, provider) DO NOTHING").Exec(ctx)
	if err != nil {
		return nil, err
	}
	// re-select in case a concurrent deposit created the row first
	account = new(models.EscrowAccount)
	err = tx.NewSelect().Model(account).
		Where("project_id = ? AND currency = ? AND provider = ?", projectID, currency, provider).
		For("UPDATE").Scan(ctx)
	if err != nil {
		return nil, err
	}
	return account, nil
}

// depositEscrow appends a deposit entry and moves the cached balance in
// the same transaction, keeping cache and entry sum identical.
func (svc *FundhubService) depositEscrow(ctx context.Context, tx bun.Tx, account *models.EscrowAccount, payment *models.Payment) (*models.EscrowEntry, error) {
	entry := &models.EscrowEntry{
		AccountID: account.ID,
		ProjectID: account.ProjectID,
		Type:      common.EntryTypeDeposit,
		Amount:    payment.Amount,
		PaymentID: payment.ID,
	}
	if _, err := tx.NewInsert().Model(entry).Exec(ctx); err != nil {
		return nil, err
	}
	_, err := tx.NewUpdate().Model((*models.EscrowAccount)(nil)).
		Set("balance = balance + ?", payment.Amount).
		Set("updated_at = now()").
		Where("id = ?", account.ID).Exec(ctx)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// drawDownEscrow consumes amount from the project's accounts inside the
// caller's transaction: entries appended and cached balances decremented
// together, or the whole transaction rolls back.
func (svc *FundhubService) drawDownEscrow(ctx context.Context, tx bun.Tx, projectID int64, currency string, amount int64, paymentID, preferredAccountID int64) ([]models.EscrowEntry, error) {
	var accounts []models.EscrowAccount
	err := tx.NewSelect().Model(&accounts).
		Where("project_id = ? AND currency = ?", projectID, currency).
		Order("balance DESC").
		For("UPDATE").Scan(ctx)
	if err != nil {
		return nil, err
	}

	plan, err := planDrawdown(projectID, accounts, amount, preferredAccountID)
	if err != nil {
		return nil, err
	}

	consumed := make([]models.EscrowEntry, 0, len(plan))
	for _, step := range plan {
		entry := models.EscrowEntry{
			AccountID: step.Account.ID,
			ProjectID: projectID,
			Type:      common.EntryTypeRelease,
			Amount:    step.Amount,
			PaymentID: paymentID,
		}
		if _, err := tx.NewInsert().Model(&entry).Exec(ctx); err != nil {
			return nil, err
		}
		_, err = tx.NewUpdate().Model((*models.EscrowAccount)(nil)).
			Set("balance = balance - ?", step.Amount).
			Set("updated_at = now()").
			Where("id = ?", step.Account.ID).Exec(ctx)
		if err != nil {
			return nil, err
		}
		consumed = append(consumed, entry)
	}
	return consumed, nil
}

func (svc *FundhubService) EscrowAccountsForProject(ctx context.Context, projectID int64) ([]models.EscrowAccount, error) {
	var accounts []models.EscrowAccount
	err := svc.DB.NewSelect().Model(&accounts).
		Where("project_id = ?", projectID).
		Order("balance DESC").Scan(ctx)
	return accounts, err
}

// EscrowBalanceFromEntries recomputes an account balance from its
// entries. The entries are the source of truth, the cached column must
// always match this sum.
func (svc *FundhubService) EscrowBalanceFromEntries(ctx context.Context, accountID int64) (int64, error) {
	var balance int64
	err := svc.DB.NewSelect().Model((*models.EscrowEntry)(nil)).
		ColumnExpr("COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE -amount END), 0)", common.EntryTypeDeposit).
		Where("account_id = ?", accountID).
		Scan(ctx, &balance)
	return balance, err
}

func (svc *FundhubService) EscrowEntriesForProject(ctx context.Context, projectID int64) ([]models.EscrowEntry, error) {
	var entries []models.EscrowEntry
	err := svc.DB.NewSelect().Model(&entries).
		Where("project_id = ?", projectID).
		Order("id ASC").Scan(ctx)
	return entries, err
}
