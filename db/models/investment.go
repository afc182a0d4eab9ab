package models

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// Investment : Investment Model
//
// Status is derived from the linked payment's status and never set
// independently. An investment is confirmed iff its payment completed and
// the project/investor aggregates were incremented for it exactly once.
type Investment struct {
	ID               int64        `json:"id" bun:",pk,autoincrement"`
	UserID           int64        `json:"user_id" bun:",notnull" validate:"required"`
	User             *User        `json:"-" bun:"rel:belongs-to,join:user_id=id"`
	ProjectID        int64        `json:"project_id" bun:",notnull" validate:"required"`
	Project          *Project     `json:"-" bun:"rel:belongs-to,join:project_id=id"`
	Amount           int64        `json:"amount" bun:",notnull" validate:"gt=0"`
	Currency         string       `json:"currency" bun:",notnull,default:'EUR'"`
	Status           string       `json:"status" bun:",notnull,default:'pending'"`
	PaymentStatus    string       `json:"payment_status" bun:",notnull,default:'pending'"`
	FlaggedForReview bool         `json:"flagged_for_review" bun:",nullzero"`
	ConfirmedAt      bun.NullTime `json:"confirmed_at"`
	RefundedAt       bun.NullTime `json:"refunded_at"`
	CreatedAt        time.Time    `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt        bun.NullTime `json:"updated_at"`
}

func (i *Investment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.UpdateQuery:
		i.UpdatedAt = bun.NullTime{Time: time.Now()}
	}
	return nil
}

var _ bun.BeforeAppendModelHook = (*Investment)(nil)
