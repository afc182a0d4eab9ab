package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"github.com/propcrowd/fundhub.go/common"
	"github.com/propcrowd/fundhub.go/db/models"
	"github.com/propcrowd/fundhub.go/psp"
)

// findPaymentForUpdate resolves the payment a webhook event belongs to
// and locks the row. Resolution is by provider transaction id first,
// falling back to our session id for events that arrive before the
// transaction id was ever stored. When the event carries both ids they
// must point at the same payment.
func (svc *FundhubService) findPaymentForUpdate(ctx context.Context, tx bun.Tx, event psp.WebhookEvent) (*models.Payment, error) {
	if event.TransactionID != "" {
		payment := new(models.Payment)
		err := tx.NewSelect().Model(payment).
			Where("provider = ? AND transaction_id = ?", event.Provider, event.TransactionID).
			For("UPDATE").Scan(ctx)
		if err == nil {
			if event.SessionID != "" && payment.SessionID != event.SessionID {
				return nil, ErrEventIdentifierMismatch
			}
			return payment, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}
	if event.SessionID != "" {
		payment := new(models.Payment)
		err := tx.NewSelect().Model(payment).
			Where("provider = ? AND session_id = ?", event.Provider, event.SessionID).
			For("UPDATE").Scan(ctx)
		if err == nil {
			return payment, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}
	return nil, ErrPaymentNotFound
}

func (svc *FundhubService) FindPayment(ctx context.Context, paymentID int64) (*models.Payment, error) {
	payment := new(models.Payment)
	err := svc.DB.NewSelect().Model(payment).Where("id = ?", paymentID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return payment, nil
}

func (svc *FundhubService) FindPaymentBySessionId(ctx context.Context, provider, sessionId string) (*models.Payment, error) {
	payment := new(models.Payment)
	err := svc.DB.NewSelect().Model(payment).
		Where("provider = ? AND session_id = ?", provider, sessionId).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return payment, nil
}

// FindStalePendingPayments returns payments still awaiting a terminal
// webhook after minAge, oldest first. Used by the pending sweep to poll
// provider APIs for deliveries we never received.
func (svc *FundhubService) FindStalePendingPayments(ctx context.Context, minAge time.Duration, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := svc.DB.NewSelect().Model(&payments).
		Where("status IN (?)", bun.In([]string{common.PaymentStatusPending, common.PaymentStatusProcessing})).
		Where("created_at < ?", time.Now().Add(-minAge)).
		Order("created_at ASC").
		Limit(limit).Scan(ctx)
	return payments, err
}
