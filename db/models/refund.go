package models

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// Refund : Refund Model
type Refund struct {
	ID               int64        `json:"id" bun:",pk,autoincrement"`
	PaymentID        int64        `json:"payment_id" bun:",notnull"`
	Payment          *Payment     `json:"-" bun:"rel:belongs-to,join:payment_id=id"`
	InvestmentID     int64        `json:"investment_id" bun:",notnull"`
	Amount           int64        `json:"amount" bun:",notnull"`
	Reason           string       `json:"reason" bun:",notnull"`
	ProviderRefundID string       `json:"provider_refund_id" bun:",nullzero"`
	Status           string       `json:"status" bun:",notnull,default:'pending'"`
	ErrorMessage     string       `json:"error_message,omitempty" bun:",nullzero"`
	ProcessedAt      bun.NullTime `json:"processed_at"`
	CreatedAt        time.Time    `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt        bun.NullTime `json:"updated_at"`
}

func (r *Refund) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.UpdateQuery:
		r.UpdatedAt = bun.NullTime{Time: time.Now()}
	}
	return nil
}

var _ bun.BeforeAppendModelHook = (*Refund)(nil)
