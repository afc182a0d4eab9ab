package service

import (
	"context"
	"time"

	"github.com/propcrowd/fundhub.go/common"
	"github.com/propcrowd/fundhub.go/db/models"
	"github.com/propcrowd/fundhub.go/psp"
)

const pendingSweepBatchSize = 100

// StartPendingPaymentsSweep polls providers for payments stuck in a
// non-terminal status. Webhooks get lost; this is the catch-up path that
// feeds the missed outcome through the exact same reconciliation as a
// delivered webhook would have.
func (svc *FundhubService) StartPendingPaymentsSweep(ctx context.Context) error {
	interval := time.Duration(svc.Config.PendingSweepInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	svc.Logger.Infof("Starting pending payments sweep interval:%v", interval)
	for {
		select {
		case <-ctx.Done():
			return context.Canceled
		case <-ticker.C:
			if err := svc.SweepPendingPayments(ctx); err != nil {
				svc.Logger.Errorf("Pending payments sweep failed %v", err)
			}
		}
	}
}

// SweepPendingPayments runs one sweep pass.
func (svc *FundhubService) SweepPendingPayments(ctx context.Context) error {
	minAge := time.Duration(svc.Config.PendingSweepMinAge) * time.Second
	payments, err := svc.FindStalePendingPayments(ctx, minAge, pendingSweepBatchSize)
	if err != nil {
		return err
	}
	svc.Logger.Infof("Found %d stale pending payments", len(payments))

	for _, payment := range payments {
		if err := svc.sweepPayment(ctx, &payment); err != nil {
			svc.Logger.Errorf("Could not sweep payment payment_id:%v %v", payment.ID, err)
		}
	}
	return nil
}

func (svc *FundhubService) sweepPayment(ctx context.Context, payment *models.Payment) error {
	if payment.TransactionID == "" {
		// the provider never told us its transaction id, nothing to poll
		svc.Logger.Infof("Skipping sweep of payment without transaction id payment_id:%v provider:%s", payment.ID, payment.Provider)
		return nil
	}
	client, err := svc.Providers.Client(payment.Provider)
	if err != nil {
		return err
	}

	status, err := client.FetchStatus(ctx, payment.TransactionID)
	if err != nil {
		return err
	}
	if status == common.PaymentStatusPending || status == common.PaymentStatusProcessing {
		return nil
	}

	svc.Logger.Infof("Sweep found terminal status payment_id:%v provider:%s status:%s", payment.ID, payment.Provider, status)
	event := &psp.WebhookEvent{
		Provider:      payment.Provider,
		TransactionID: payment.TransactionID,
		SessionID:     payment.SessionID,
		Status:        status,
		Currency:      payment.Currency,
	}
	_, err = svc.ProcessWebhookEvent(ctx, event)
	return err
}
