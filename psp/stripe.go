package psp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/propcrowd/fundhub.go/common"
)

const (
	stripeSignatureHeader = "Stripe-Signature"
	stripeSigTolerance    = 5 * time.Minute
)

// StripeProvider verifies the timestamped signature scheme: the header
// carries t=<unix> and one or more v1=<hex hmac> pairs, the mac is
// computed over "<t>.<raw body>". The timestamp bound stops replays.
type StripeProvider struct {
	secret     []byte
	skipVerify bool
	now        func() time.Time
}

func NewStripeProvider(secret string, skipVerify bool) *StripeProvider {
	return &StripeProvider{secret: []byte(secret), skipVerify: skipVerify, now: time.Now}
}

func (p *StripeProvider) Name() string { return common.ProviderStripe }

func (p *StripeProvider) AcksUnknownPayments() bool { return false }

type stripeObject struct {
	ID            string `json:"id"`
	PaymentIntent string `json:"payment_intent"`
	AmountTotal   int64  `json:"amount_total"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	FailureReason string `json:"last_payment_error,omitempty"`
}

type stripePayload struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object stripeObject `json:"object"`
	} `json:"data"`
}

func (p *StripeProvider) VerifyAndParse(body []byte, headers http.Header, remoteIP string) (*WebhookEvent, error) {
	if !p.skipVerify {
		if err := p.verifySignature(body, headers.Get(stripeSignatureHeader)); err != nil {
			return nil, err
		}
	}

	var payload stripePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &ParseError{Provider: p.Name(), Reason: "invalid json", Err: err}
	}

	obj := payload.Data.Object
	event := &WebhookEvent{
		Provider: p.Name(),
		Currency: strings.ToUpper(obj.Currency),
		RawBody:  body,
	}

	switch payload.Type {
	case "checkout.session.completed":
		event.Status = EventCompleted
		event.SessionID = obj.ID
		event.TransactionID = obj.PaymentIntent
		event.Amount = obj.AmountTotal
	case "checkout.session.expired":
		event.Status = EventCancelled
		event.SessionID = obj.ID
		event.TransactionID = obj.PaymentIntent
		event.Amount = obj.AmountTotal
	case "payment_intent.payment_failed":
		event.Status = EventFailed
		event.TransactionID = obj.ID
		event.Amount = obj.Amount
	case "charge.refunded":
		event.Status = EventRefunded
		event.TransactionID = obj.PaymentIntent
		event.Amount = obj.Amount
	case "charge.dispute.created":
		event.Status = EventChargeback
		event.TransactionID = obj.PaymentIntent
		event.Amount = obj.Amount
		event.Reason = common.RefundReasonChargeback
	default:
		return nil, &ParseError{Provider: p.Name(), Reason: "unsupported event type " + payload.Type}
	}

	if event.TransactionID == "" && event.SessionID == "" {
		return nil, &ParseError{Provider: p.Name(), Reason: "missing transaction and session id"}
	}
	return event, nil
}

func (p *StripeProvider) verifySignature(body []byte, header string) error {
	if header == "" {
		return &VerificationError{Provider: p.Name(), Reason: "missing signature header"}
	}
	var timestamp int64
	var candidates []string
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return &VerificationError{Provider: p.Name(), Reason: "invalid signature timestamp"}
			}
			timestamp = ts
		case "v1":
			candidates = append(candidates, value)
		}
	}
	if timestamp == 0 || len(candidates) == 0 {
		return &VerificationError{Provider: p.Name(), Reason: "malformed signature header"}
	}

	age := p.now().Sub(time.Unix(timestamp, 0))
	if age > stripeSigTolerance || age < -stripeSigTolerance {
		return &VerificationError{Provider: p.Name(), Reason: "signature timestamp outside tolerance"}
	}

	mac := hmac.New(sha256.New, p.secret)
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(body)
	expected := mac.Sum(nil)
	for _, candidate := range candidates {
		got, err := hex.DecodeString(candidate)
		if err != nil {
			continue
		}
		if hmac.Equal(got, expected) {
			return nil
		}
	}
	return &VerificationError{Provider: p.Name(), Reason: "signature mismatch"}
}
