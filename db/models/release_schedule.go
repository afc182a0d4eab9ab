package models

import (
	"time"

	"github.com/uptrace/bun"
)

// ReleaseSchedule : Release Schedule Model
//
// Written exactly once per project when funding completes, unique on
// project id. The external scheduler picks these up; the reconciler only
// records the intent.
type ReleaseSchedule struct {
	ID          int64        `json:"id" bun:",pk,autoincrement"`
	ProjectID   int64        `json:"project_id" bun:",notnull,unique"`
	Project     *Project     `json:"-" bun:"rel:belongs-to,join:project_id=id"`
	PaymentID   int64        `json:"payment_id,omitempty" bun:",nullzero"`
	Status      string       `json:"status" bun:",notnull,default:'scheduled'"`
	ScheduledAt time.Time    `json:"scheduled_at" bun:",nullzero,notnull,default:current_timestamp"`
	ReleasedAt  bun.NullTime `json:"released_at"`
}
