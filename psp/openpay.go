package psp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/propcrowd/fundhub.go/common"
)

const openPaySignatureHeader = "X-Openpay-Signature"

// OpenPayProvider verifies deliveries with an HMAC-SHA256 over the raw
// body, hex-encoded in the signature header.
type OpenPayProvider struct {
	secret     []byte
	skipVerify bool
}

func NewOpenPayProvider(secret string, skipVerify bool) *OpenPayProvider {
	return &OpenPayProvider{secret: []byte(secret), skipVerify: skipVerify}
}

func (p *OpenPayProvider) Name() string { return common.ProviderOpenPay }

func (p *OpenPayProvider) AcksUnknownPayments() bool { return true }

type openPayTransaction struct {
	ID           string      `json:"id"`
	OrderID      string      `json:"order_id"`
	Amount       json.Number `json:"amount"`
	Currency     string      `json:"currency"`
	ErrorMessage string      `json:"error_message"`
}

type openPayPayload struct {
	Type        string             `json:"type"`
	Transaction openPayTransaction `json:"transaction"`
}

func (p *OpenPayProvider) VerifyAndParse(body []byte, headers http.Header, remoteIP string) (*WebhookEvent, error) {
	if !p.skipVerify {
		signature := headers.Get(openPaySignatureHeader)
		if signature == "" {
			return nil, &VerificationError{Provider: p.Name(), Reason: "missing signature header"}
		}
		if !verifyHMACHex(p.secret, body, signature) {
			return nil, &VerificationError{Provider: p.Name(), Reason: "signature mismatch"}
		}
	}

	var payload openPayPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &ParseError{Provider: p.Name(), Reason: "invalid json", Err: err}
	}

	var status, reason string
	switch payload.Type {
	case "charge.succeeded":
		status = EventCompleted
	case "charge.failed":
		status = EventFailed
		reason = payload.Transaction.ErrorMessage
	case "charge.cancelled":
		status = EventCancelled
	case "charge.refunded":
		status = EventRefunded
	case "chargeback.created", "chargeback.accepted":
		status = EventChargeback
		reason = common.RefundReasonChargeback
	default:
		return nil, &ParseError{Provider: p.Name(), Reason: "unsupported event type " + payload.Type}
	}

	if payload.Transaction.ID == "" {
		return nil, &ParseError{Provider: p.Name(), Reason: "missing transaction id"}
	}
	amount, err := ParseAmountToCents(payload.Transaction.Amount.String())
	if err != nil {
		return nil, &ParseError{Provider: p.Name(), Reason: "invalid amount", Err: err}
	}

	return &WebhookEvent{
		Provider:      p.Name(),
		TransactionID: payload.Transaction.ID,
		SessionID:     payload.Transaction.OrderID,
		Status:        status,
		Amount:        amount,
		Currency:      payload.Transaction.Currency,
		Reason:        reason,
		RawBody:       body,
	}, nil
}

// verifyHMACHex compares a hex-encoded HMAC-SHA256 of body in constant
// time. Decoding the header first keeps the comparison constant time even
// for malformed signatures.
func verifyHMACHex(secret, body []byte, signature string) bool {
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
