package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/propcrowd/fundhub.go/common"
	"github.com/propcrowd/fundhub.go/db/models"
)

type InitiateInvestmentParams struct {
	UserID    int64
	ProjectID int64
	Amount    int64
	Provider  string
}

// InitiateInvestment opens an investment and its pending payment in one
// transaction. The generated session id is what the provider's checkout
// flow carries back in webhooks until a transaction id exists.
//
// Investments are only accepted while the project is open. Completions
// for already-initiated payments still settle after the project closes,
// but no new money can start flowing in.
func (svc *FundhubService) InitiateInvestment(ctx context.Context, params InitiateInvestmentParams) (*models.Investment, *models.Payment, error) {
	project, err := svc.FindProject(ctx, params.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	if project.Status != common.ProjectStatusOpen {
		return nil, nil, ErrProjectNotOpen
	}
	if _, err = svc.Providers.Get(params.Provider); err != nil {
		return nil, nil, err
	}
	if _, err = svc.FindUser(ctx, params.UserID); err != nil {
		return nil, nil, err
	}

	investment := &models.Investment{
		UserID:        params.UserID,
		ProjectID:     params.ProjectID,
		Amount:        params.Amount,
		Currency:      project.Currency,
		Status:        common.InvestmentStatusPending,
		PaymentStatus: common.PaymentStatusPending,
	}
	payment := &models.Payment{
		Provider:  params.Provider,
		SessionID: uuid.NewString(),
		Amount:    params.Amount,
		Currency:  project.Currency,
		Status:    common.PaymentStatusPending,
	}

	err = svc.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(investment).Exec(ctx); err != nil {
			return err
		}
		payment.InvestmentID = investment.ID
		_, err := tx.NewInsert().Model(payment).Exec(ctx)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	svc.Logger.Infof("Investment initiated investment_id:%v project_id:%v user_id:%v amount:%v provider:%s", investment.ID, params.ProjectID, params.UserID, params.Amount, params.Provider)
	return investment, payment, nil
}

func (svc *FundhubService) FindInvestment(ctx context.Context, investmentID int64) (*models.Investment, error) {
	investment := new(models.Investment)
	err := svc.DB.NewSelect().Model(investment).Where("id = ?", investmentID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvestmentNotFound
		}
		return nil, err
	}
	return investment, nil
}

func (svc *FundhubService) InvestmentsForUser(ctx context.Context, userID int64, limit, offset int) ([]models.Investment, error) {
	var investments []models.Investment
	query := svc.DB.NewSelect().Model(&investments).
		Where("user_id = ?", userID).
		Order("id DESC")
	if limit > 0 {
		query.Limit(limit)
	}
	if offset > 0 {
		query.Offset(offset)
	}
	err := query.Scan(ctx)
	return investments, err
}

func (svc *FundhubService) InvestmentsForProject(ctx context.Context, projectID int64, status string) ([]models.Investment, error) {
	var investments []models.Investment
	query := svc.DB.NewSelect().Model(&investments).
		Where("project_id = ?", projectID).
		Order("id ASC")
	if status != "" {
		query.Where("status = ?", status)
	}
	err := query.Scan(ctx)
	return investments, err
}

// InvestmentsFlaggedForReview lists investments a conflicting or
// chargeback event marked for manual inspection.
func (svc *FundhubService) InvestmentsFlaggedForReview(ctx context.Context) ([]models.Investment, error) {
	var investments []models.Investment
	err := svc.DB.NewSelect().Model(&investments).
		Where("flagged_for_review = true").
		Order("updated_at DESC NULLS LAST").Scan(ctx)
	return investments, err
}
