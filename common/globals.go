package common

const (
	PaymentStatusPending    = "pending"
	PaymentStatusProcessing = "processing"
	PaymentStatusCompleted  = "completed"
	PaymentStatusFailed     = "failed"
	PaymentStatusCancelled  = "cancelled"
	PaymentStatusRefunded   = "refunded"

	InvestmentStatusPending   = "pending"
	InvestmentStatusConfirmed = "confirmed"
	InvestmentStatusFailed    = "failed"
	InvestmentStatusCancelled = "cancelled"
	InvestmentStatusRefunded  = "refunded"

	ProjectStatusOpen            = "open"
	ProjectStatusFundingComplete = "funding_complete"
	ProjectStatusInProgress      = "in_progress"
	ProjectStatusCancelled       = "cancelled"
	ProjectStatusFailed          = "failed"

	EntryTypeDeposit = "deposit"
	EntryTypeRelease = "release"

	RefundStatusPending   = "pending"
	RefundStatusProcessed = "processed"
	RefundStatusFailed    = "failed"

	RefundReasonProjectCancelled = "project_cancelled"
	RefundReasonChargeback       = "chargeback"
	RefundReasonProviderEvent    = "provider_event"

	ScheduleStatusScheduled = "scheduled"
	ScheduleStatusReleased  = "released"
	ScheduleStatusCancelled = "cancelled"

	ProviderOpenPay  = "openpay"
	ProviderStripe   = "stripe"
	ProviderLemonway = "lemonway"
	ProviderMock     = "mock"

	WebhookOutcomeAccepted   = "accepted"
	WebhookOutcomeDuplicate  = "duplicate"
	WebhookOutcomeRejected   = "rejected"
	WebhookOutcomeNotFound   = "not_found"
	WebhookOutcomeConflicted = "conflicted"

	AuditSeverityInfo    = "info"
	AuditSeverityWarning = "warning"
	AuditSeverityError   = "error"
)
