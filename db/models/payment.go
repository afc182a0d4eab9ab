package models

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// Payment : Payment Model
//
// One row per payment attempt at a provider. TransactionID is the provider's
// primary identifier, SessionID the checkout-session fallback; both resolve
// to the same row when present. RawResponse keeps the provider payload
// verbatim for dispute handling.
type Payment struct {
	ID            int64        `json:"id" bun:",pk,autoincrement"`
	InvestmentID  int64        `json:"investment_id" bun:",notnull"`
	Investment    *Investment  `json:"-" bun:"rel:belongs-to,join:investment_id=id"`
	Provider      string       `json:"provider" bun:",notnull" validate:"required"`
	TransactionID string       `json:"transaction_id" bun:",nullzero"`
	SessionID     string       `json:"session_id" bun:",nullzero"`
	Amount        int64        `json:"amount" bun:",notnull" validate:"gt=0"`
	Currency      string       `json:"currency" bun:",notnull,default:'EUR'"`
	Status        string       `json:"status" bun:",notnull,default:'pending'"`
	RawResponse   string       `json:"-" bun:",nullzero"`
	CreatedAt     time.Time    `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt     bun.NullTime `json:"updated_at"`
	CompletedAt   bun.NullTime `json:"completed_at"`
	FailedAt      bun.NullTime `json:"failed_at"`
	CancelledAt   bun.NullTime `json:"cancelled_at"`
	RefundedAt    bun.NullTime `json:"refunded_at"`
}

func (p *Payment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.UpdateQuery:
		p.UpdatedAt = bun.NullTime{Time: time.Now()}
	}
	return nil
}

var _ bun.BeforeAppendModelHook = (*Payment)(nil)
