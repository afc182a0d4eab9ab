package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/labstack/gommon/random"
	"golang.org/x/crypto/bcrypt"

	"github.com/propcrowd/fundhub.go/common"
	"github.com/propcrowd/fundhub.go/db/models"
)

// CreateUser registers an investor account. A missing password is
// generated and returned in plain text exactly once, it is only ever
// stored hashed.
func (svc *FundhubService) CreateUser(ctx context.Context, email, password string) (user *models.User, plainPassword string, err error) {
	if password == "" {
		password = random.String(20)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}

	user = &models.User{
		Email:    email,
		Password: string(hashed),
	}
	if _, err = svc.DB.NewInsert().Model(user).Exec(ctx); err != nil {
		return nil, "", err
	}
	return user, password, nil
}

func (svc *FundhubService) FindUser(ctx context.Context, userID int64) (*models.User, error) {
	user := new(models.User)
	err := svc.DB.NewSelect().Model(user).Where("id = ?", userID).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (svc *FundhubService) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user := new(models.User)
	err := svc.DB.NewSelect().Model(user).Where("email = ?", email).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// CheckUserInvestedTotal reports the cached investor total next to the
// sum of the user's confirmed investments. A mismatch means a
// reconciliation bug, the cached column is never corrected silently.
func (svc *FundhubService) CheckUserInvestedTotal(ctx context.Context, userID int64) (cached int64, computed int64, err error) {
	user, err := svc.FindUser(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	err = svc.DB.NewSelect().Model((*models.Investment)(nil)).
		ColumnExpr("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND status = ?", userID, common.InvestmentStatusConfirmed).
		Scan(ctx, &computed)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, 0, err
	}
	return user.TotalInvested, computed, nil
}
