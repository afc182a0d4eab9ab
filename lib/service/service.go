package service

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/ziflex/lecho/v3"
	"golang.org/x/crypto/bcrypt"

	"github.com/propcrowd/fundhub.go/db/models"
	"github.com/propcrowd/fundhub.go/lib/tokens"
	"github.com/propcrowd/fundhub.go/psp"
	"github.com/propcrowd/fundhub.go/rabbitmq"
)

// FundhubService carries every injected dependency of the reconciliation
// core. There is no package-level state, the service is constructed once
// at startup and handed to the controllers and background routines.
type FundhubService struct {
	Config         *Config
	DB             *bun.DB
	Logger         *lecho.Logger
	Providers      *psp.Registry
	RabbitMQClient rabbitmq.Client
	ReconPubSub    *Pubsub
}

func (svc *FundhubService) GenerateToken(ctx context.Context, email, password, inRefreshToken string) (accessToken, refreshToken string, err error) {
	var user models.User

	switch {
	case email != "" || password != "":
		if err := svc.DB.NewSelect().Model(&user).Where("email = ?", email).Scan(ctx); err != nil {
			return "", "", fmt.Errorf("bad auth")
		}
		if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
			return "", "", fmt.Errorf("bad auth")
		}
	case inRefreshToken != "":
		userId, err := tokens.ParseToken(svc.Config.JWTSecret, inRefreshToken, true)
		if err != nil {
			return "", "", fmt.Errorf("bad auth")
		}
		if err := svc.DB.NewSelect().Model(&user).Where("id = ?", userId).Scan(ctx); err != nil {
			return "", "", fmt.Errorf("bad auth")
		}
	default:
		return "", "", fmt.Errorf("email or refresh token is required")
	}

	if user.Deactivated {
		return "", "", fmt.Errorf("account deactivated")
	}

	accessToken, err = tokens.GenerateAccessToken(svc.Config.JWTSecret, svc.Config.JWTAccessTokenExpiry, &user)
	if err != nil {
		return "", "", err
	}

	refreshToken, err = tokens.GenerateRefreshToken(svc.Config.JWTSecret, svc.Config.JWTRefreshTokenExpiry, &user)
	if err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}
