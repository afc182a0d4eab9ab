package models

import (
	"time"
)

// WebhookLog : Webhook Delivery Log Model
//
// One row per received webhook, accepted or not. Rejections carry the
// failure reason so operators can audit verification failures and state
// conflicts without provider dashboard access.
type WebhookLog struct {
	ID            int64     `json:"id" bun:",pk,autoincrement"`
	Provider      string    `json:"provider" bun:",notnull"`
	Outcome       string    `json:"outcome" bun:",notnull"`
	EventStatus   string    `json:"event_status,omitempty" bun:",nullzero"`
	TransactionID string    `json:"transaction_id,omitempty" bun:",nullzero"`
	PaymentID     int64     `json:"payment_id,omitempty" bun:",nullzero"`
	FailureReason string    `json:"failure_reason,omitempty" bun:",nullzero"`
	CreatedAt     time.Time `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
}
