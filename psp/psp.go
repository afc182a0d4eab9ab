package psp

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/kelseyhightower/envconfig"

	"github.com/propcrowd/fundhub.go/common"
)

// WebhookEvent is the canonical form every provider notification is
// normalized into before it reaches the reconciler.
type WebhookEvent struct {
	Provider      string
	TransactionID string
	SessionID     string
	Status        string
	Amount        int64
	Currency      string
	Reason        string
	RawBody       []byte
}

const (
	EventCompleted  = common.PaymentStatusCompleted
	EventFailed     = common.PaymentStatusFailed
	EventCancelled  = common.PaymentStatusCancelled
	EventRefunded   = common.PaymentStatusRefunded
	EventChargeback = "chargeback"
)

// Provider parses and authenticates raw webhook deliveries for one PSP.
// The set of implementations is closed: all providers are constructed by
// NewRegistry, nothing dispatches on free-text identifiers.
type Provider interface {
	Name() string
	// VerifyAndParse authenticates the raw body against the provider's
	// scheme and normalizes it. It returns a VerificationError or
	// ParseError, never a partially filled event.
	VerifyAndParse(body []byte, headers http.Header, remoteIP string) (*WebhookEvent, error)
	// AcksUnknownPayments reports whether unknown transaction ids should
	// still be answered 200. Providers that retry indefinitely on non-2xx
	// need this to avoid retry storms.
	AcksUnknownPayments() bool
}

// Client performs the outbound calls against one PSP.
type Client interface {
	Payout(ctx context.Context, req PayoutRequest) (*PayoutResult, error)
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
	FetchStatus(ctx context.Context, transactionID string) (string, error)
}

type PayoutRequest struct {
	Reference     string
	BeneficiaryID string
	Amount        int64
	Currency      string
	Description   string
}

type PayoutResult struct {
	ProviderPayoutID string
}

type RefundRequest struct {
	TransactionID string
	Amount        int64
	Currency      string
	Reason        string
	Reference     string
}

type RefundResult struct {
	ProviderRefundID string
}

type VerificationError struct {
	Provider string
	Reason   string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("%s webhook verification failed: %s", e.Provider, e.Reason)
}

type ParseError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s webhook payload invalid: %s", e.Provider, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

type CallError struct {
	Provider   string
	Op         string
	StatusCode int
	Err        error
}

func (e *CallError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s call failed with status %d", e.Provider, e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s %s call failed: %v", e.Provider, e.Op, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

type UnknownProviderError struct {
	Name string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown payment provider %s", e.Name)
}

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	OpenPayWebhookSecret string `envconfig:"OPENPAY_WEBHOOK_SECRET"`
	OpenPayBaseUrl       string `envconfig:"OPENPAY_BASE_URL" default:"https://api.openpay.example"`
	OpenPayMerchantId    string `envconfig:"OPENPAY_MERCHANT_ID"`
	OpenPayApiKey        string `envconfig:"OPENPAY_API_KEY"`

	StripeWebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	StripeBaseUrl       string `envconfig:"STRIPE_BASE_URL" default:"https://api.stripe.com"`
	StripeApiKey        string `envconfig:"STRIPE_API_KEY"`

	LemonwayAllowedIps string `envconfig:"LEMONWAY_ALLOWED_IPS"`
	LemonwayBaseUrl    string `envconfig:"LEMONWAY_BASE_URL" default:"https://api.lemonway.example"`
	LemonwayLogin      string `envconfig:"LEMONWAY_LOGIN"`
	LemonwayPassword   string `envconfig:"LEMONWAY_PASSWORD"`

	MockToken string `envconfig:"MOCK_PSP_TOKEN"`
}

func LoadConfig() (*Config, error) {
	c := &Config{}
	err := envconfig.Process("", c)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}
