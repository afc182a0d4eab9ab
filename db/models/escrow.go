package models

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// EscrowAccount : Escrow Account Model
//
// One per project, currency and provider, created lazily on the first
// confirmed deposit. Balance is a cache over the signed entry sum and is
// only ever updated in the same transaction as an entry insert.
type EscrowAccount struct {
	ID        int64        `json:"id" bun:",pk,autoincrement"`
	ProjectID int64        `json:"project_id" bun:",notnull"`
	Project   *Project     `json:"-" bun:"rel:belongs-to,join:project_id=id"`
	Currency  string       `json:"currency" bun:",notnull"`
	Provider  string       `json:"provider" bun:",notnull"`
	Balance   int64        `json:"balance" bun:",notnull,default:0"`
	CreatedAt time.Time    `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt bun.NullTime `json:"updated_at"`
}

func (a *EscrowAccount) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.UpdateQuery:
		a.UpdatedAt = bun.NullTime{Time: time.Now()}
	}
	return nil
}

var _ bun.BeforeAppendModelHook = (*EscrowAccount)(nil)

// EscrowEntry : Escrow Ledger Entry Model
//
// Append-only. Amounts are stored positive; the sign is carried by Type
// (deposit credits, release debits). Entries are never updated or deleted,
// the balance is always recomputable from them.
type EscrowEntry struct {
	ID        int64          `json:"id" bun:",pk,autoincrement"`
	AccountID int64          `json:"account_id" bun:",notnull"`
	Account   *EscrowAccount `json:"-" bun:"rel:belongs-to,join:account_id=id"`
	ProjectID int64          `json:"project_id" bun:",notnull"`
	Type      string         `json:"type" bun:",notnull"`
	Amount    int64          `json:"amount" bun:",notnull"`
	PaymentID int64          `json:"payment_id,omitempty" bun:",nullzero"`
	Payment   *Payment       `json:"-" bun:"rel:belongs-to,join:payment_id=id"`
	CreatedAt time.Time      `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
}
