package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"github.com/propcrowd/fundhub.go/common"
	"github.com/propcrowd/fundhub.go/db/models"
)

type CreateProjectParams struct {
	Name               string
	BeneficiaryID      string
	Currency           string
	TargetFunding      int64
	FundingDeadline    time.Time
	RequiresRegulatory bool
}

func (svc *FundhubService) CreateProject(ctx context.Context, params CreateProjectParams) (*models.Project, error) {
	project := &models.Project{
		Name:               params.Name,
		BeneficiaryID:      params.BeneficiaryID,
		Currency:           params.Currency,
		TargetFunding:      params.TargetFunding,
		Status:             common.ProjectStatusOpen,
		RequiresRegulatory: params.RequiresRegulatory,
	}
	if project.Currency == "" {
		project.Currency = "EUR"
	}
	if !params.FundingDeadline.IsZero() {
		project.FundingDeadline = bun.NullTime{Time: params.FundingDeadline}
	}
	if _, err := svc.DB.NewInsert().Model(project).Exec(ctx); err != nil {
		return nil, err
	}
	svc.Logger.Infof("Project created project_id:%v target:%v currency:%s", project.ID, project.TargetFunding, project.Currency)
	return project, nil
}

func (svc *FundhubService) FindProject(ctx context.Context, projectID int64) (*models.Project, error) {
	project := new(models.Project)
	err := svc.DB.NewSelect().Model(project).Where("id = ?", projectID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return project, nil
}

type FundingProgress struct {
	ProjectID      int64  `json:"project_id"`
	Status         string `json:"status"`
	Currency       string `json:"currency"`
	TargetFunding  int64  `json:"target_funding"`
	CurrentFunding int64  `json:"current_funding"`
	PercentFunded  int64  `json:"percent_funded"`
	Investors      int    `json:"investors"`
	EscrowBalance  int64  `json:"escrow_balance"`
}

// ProjectFundingProgress assembles the public funding snapshot of a
// project. Reads only cached aggregates, cheap enough to sit behind the
// response cache.
func (svc *FundhubService) ProjectFundingProgress(ctx context.Context, projectID int64) (*FundingProgress, error) {
	project, err := svc.FindProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	var investors int
	err = svc.DB.NewSelect().Model((*models.Investment)(nil)).
		ColumnExpr("COUNT(DISTINCT user_id)").
		Where("project_id = ? AND status = ?", projectID, common.InvestmentStatusConfirmed).
		Scan(ctx, &investors)
	if err != nil {
		return nil, err
	}

	var escrowBalance int64
	err = svc.DB.NewSelect().Model((*models.EscrowAccount)(nil)).
		ColumnExpr("COALESCE(SUM(balance), 0)").
		Where("project_id = ?", projectID).Scan(ctx, &escrowBalance)
	if err != nil {
		return nil, err
	}

	progress := &FundingProgress{
		ProjectID:      project.ID,
		Status:         project.Status,
		Currency:       project.Currency,
		TargetFunding:  project.TargetFunding,
		CurrentFunding: project.CurrentFunding,
		Investors:      investors,
		EscrowBalance:  escrowBalance,
	}
	if project.TargetFunding > 0 {
		progress.PercentFunded = project.CurrentFunding * 100 / project.TargetFunding
	}
	return progress, nil
}

type ProjectOverrideParams struct {
	ReleaseOverride    *bool
	RegulatoryApproved *bool
}

// SetProjectOverrides records operator decisions that feed the release
// conditions: forcing the funding window closed and confirming
// regulatory approval.
func (svc *FundhubService) SetProjectOverrides(ctx context.Context, projectID int64, params ProjectOverrideParams) (*models.Project, error) {
	project, err := svc.FindProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	query := svc.DB.NewUpdate().Model((*models.Project)(nil)).
		Set("updated_at = now()").
		Where("id = ?", projectID)
	changed := false
	if params.ReleaseOverride != nil {
		query.Set("release_override = ?", *params.ReleaseOverride)
		project.ReleaseOverride = *params.ReleaseOverride
		changed = true
	}
	if params.RegulatoryApproved != nil {
		query.Set("regulatory_approved = ?", *params.RegulatoryApproved)
		project.RegulatoryApproved = *params.RegulatoryApproved
		changed = true
	}
	if !changed {
		return project, nil
	}
	if _, err = query.Exec(ctx); err != nil {
		return nil, err
	}

	svc.Audit(ctx, common.AuditSeverityInfo, "project.overrides_changed", map[string]interface{}{
		"project_id":          projectID,
		"release_override":    project.ReleaseOverride,
		"regulatory_approved": project.RegulatoryApproved,
	})
	return project, nil
}

// CheckProjectFunding reports the cached funding aggregate next to the
// confirmed investment sum, the consistency probe for operators.
func (svc *FundhubService) CheckProjectFunding(ctx context.Context, projectID int64) (cached int64, computed int64, err error) {
	project, err := svc.FindProject(ctx, projectID)
	if err != nil {
		return 0, 0, err
	}
	err = svc.DB.NewSelect().Model((*models.Investment)(nil)).
		ColumnExpr("COALESCE(SUM(amount), 0)").
		Where("project_id = ? AND status = ?", projectID, common.InvestmentStatusConfirmed).
		Scan(ctx, &computed)
	if err != nil {
		return 0, 0, err
	}
	return project.CurrentFunding, computed, nil
}
