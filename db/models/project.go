package models

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// Project : Project Model
//
// CurrentFunding is a cached aggregate. It must equal the sum of amounts of
// all confirmed investments at all times; it is only ever changed with
// atomic increments inside the reconciliation transaction.
type Project struct {
	ID                 int64        `json:"id" bun:",pk,autoincrement"`
	Name               string       `json:"name" bun:",notnull" validate:"required"`
	BeneficiaryID      string       `json:"beneficiary_id" bun:",nullzero"`
	Currency           string       `json:"currency" bun:",notnull,default:'EUR'"`
	TargetFunding      int64        `json:"target_funding" bun:",notnull" validate:"gt=0"`
	CurrentFunding     int64        `json:"current_funding" bun:",notnull,default:0"`
	Status             string       `json:"status" bun:",notnull,default:'open'"`
	FundingDeadline    bun.NullTime `json:"funding_deadline" bun:",nullzero"`
	RequiresRegulatory bool         `json:"requires_regulatory" bun:",nullzero"`
	RegulatoryApproved bool         `json:"regulatory_approved" bun:",nullzero"`
	ReleaseOverride    bool         `json:"release_override" bun:",nullzero"`
	FundedAt           bun.NullTime `json:"funded_at"`
	CreatedAt          time.Time    `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt          bun.NullTime `json:"updated_at"`
}

func (p *Project) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.UpdateQuery:
		p.UpdatedAt = bun.NullTime{Time: time.Now()}
	}
	return nil
}

var _ bun.BeforeAppendModelHook = (*Project)(nil)
