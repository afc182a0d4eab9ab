package service

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/propcrowd/fundhub.go/common"
	"github.com/propcrowd/fundhub.go/db/models"
)

// Pubsub fans reconciled payments out to in-process subscribers. Topics
// are payment status values or an investor's user id. The broker bridge
// subscribes here, reconciliation never talks to the broker directly.
type Pubsub struct {
	mu   sync.RWMutex
	subs map[string]map[string]chan models.Payment
}

func NewPubsub() *Pubsub {
	ps := &Pubsub{}
	ps.subs = make(map[string]map[string]chan models.Payment)
	return ps
}

func (ps *Pubsub) Subscribe(topic string, ch chan models.Payment) (subId string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.subs[topic] == nil {
		ps.subs[topic] = make(map[string]chan models.Payment)
	}
	subId = uuid.NewString()
	ps.subs[topic][subId] = ch
	return subId
}

func (ps *Pubsub) Unsubscribe(id string, topic string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.subs[topic] == nil {
		return
	}
	if ps.subs[topic][id] == nil {
		return
	}
	close(ps.subs[topic][id])
	delete(ps.subs[topic], id)
}

func (ps *Pubsub) Publish(topic string, msg models.Payment) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	if ps.subs[topic] == nil {
		return
	}

	for _, ch := range ps.subs[topic] {
		ch <- msg
	}
}

type paymentEnvelope struct {
	models.Payment
	UserID    int64 `json:"user_id,omitempty"`
	ProjectID int64 `json:"project_id,omitempty"`
}

// EncodePaymentWithInvestor writes the broker payload for one reconciled
// payment, enriched with the owning investment's user and project so
// consumers can route notifications without a database connection.
func (svc *FundhubService) EncodePaymentWithInvestor(ctx context.Context, w io.Writer, payment models.Payment) error {
	envelope := paymentEnvelope{Payment: payment}
	investment, err := svc.FindInvestment(ctx, payment.InvestmentID)
	if err != nil {
		return err
	}
	envelope.UserID = investment.UserID
	envelope.ProjectID = investment.ProjectID
	return json.NewEncoder(w).Encode(envelope)
}

// SubscribeReconciledPayments returns one channel fed by every terminal
// payment status topic. Used by the broker bridge, which runs for the
// whole process lifetime and never unsubscribes.
func (svc *FundhubService) SubscribeReconciledPayments() (chan models.Payment, error) {
	payments := make(chan models.Payment)
	for _, topic := range []string{
		common.PaymentStatusCompleted,
		common.PaymentStatusFailed,
		common.PaymentStatusCancelled,
		common.PaymentStatusRefunded,
	} {
		svc.ReconPubSub.Subscribe(topic, payments)
	}
	return payments, nil
}
