package psp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var stripeTestNow = time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)

func stripeTestProvider(secret string) *StripeProvider {
	provider := NewStripeProvider(secret, false)
	provider.now = func() time.Time { return stripeTestNow }
	return provider
}

func signStripe(secret string, timestamp int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(body)
	return fmt.Sprintf("t=%d,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}

func TestStripeParsesCompletedCheckoutSession(t *testing.T) {
	provider := stripeTestProvider("whsec_test")
	body := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1","payment_intent":"pi_1","amount_total":250000,"currency":"eur"}}}`)
	headers := http.Header{}
	headers.Set("Stripe-Signature", signStripe("whsec_test", stripeTestNow.Unix(), body))

	event, err := provider.VerifyAndParse(body, headers, "203.0.113.7")
	require.NoError(t, err)
	assert.Equal(t, EventCompleted, event.Status)
	assert.Equal(t, "pi_1", event.TransactionID)
	assert.Equal(t, "cs_1", event.SessionID)
	assert.Equal(t, int64(250000), event.Amount)
	assert.Equal(t, "EUR", event.Currency)
}

func TestStripeRejectsStaleTimestamp(t *testing.T) {
	provider := stripeTestProvider("whsec_test")
	body := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1"}}}`)
	stale := stripeTestNow.Add(-10 * time.Minute).Unix()
	headers := http.Header{}
	headers.Set("Stripe-Signature", signStripe("whsec_test", stale, body))

	_, err := provider.VerifyAndParse(body, headers, "203.0.113.7")
	var verificationErr *VerificationError
	require.ErrorAs(t, err, &verificationErr)
	assert.Contains(t, verificationErr.Reason, "tolerance")
}

func TestStripeAcceptsTimestampWithinTolerance(t *testing.T) {
	provider := stripeTestProvider("whsec_test")
	body := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1"}}}`)
	headers := http.Header{}
	headers.Set("Stripe-Signature", signStripe("whsec_test", stripeTestNow.Add(-4*time.Minute).Unix(), body))

	_, err := provider.VerifyAndParse(body, headers, "203.0.113.7")
	require.NoError(t, err)
}

func TestStripeRejectsWrongSecret(t *testing.T) {
	provider := stripeTestProvider("whsec_test")
	body := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1"}}}`)
	headers := http.Header{}
	headers.Set("Stripe-Signature", signStripe("whsec_other", stripeTestNow.Unix(), body))

	_, err := provider.VerifyAndParse(body, headers, "203.0.113.7")
	var verificationErr *VerificationError
	require.ErrorAs(t, err, &verificationErr)
	assert.Equal(t, "signature mismatch", verificationErr.Reason)
}

func TestStripeAcceptsSecondSignatureCandidate(t *testing.T) {
	provider := stripeTestProvider("whsec_test")
	body := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1"}}}`)
	timestamp := stripeTestNow.Unix()
	mac := hmac.New(sha256.New, []byte("whsec_test"))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(body)
	// rotated-key deliveries carry the old and the new mac
	header := fmt.Sprintf("t=%d,v1=%s,v1=%s", timestamp, "00ff", hex.EncodeToString(mac.Sum(nil)))
	headers := http.Header{}
	headers.Set("Stripe-Signature", header)

	_, err := provider.VerifyAndParse(body, headers, "203.0.113.7")
	require.NoError(t, err)
}

func TestStripeExpiredSessionMapsToCancelled(t *testing.T) {
	provider := NewStripeProvider("", true)
	body := []byte(`{"id":"evt_2","type":"checkout.session.expired","data":{"object":{"id":"cs_2","payment_intent":"pi_2","amount_total":100,"currency":"eur"}}}`)

	event, err := provider.VerifyAndParse(body, http.Header{}, "203.0.113.7")
	require.NoError(t, err)
	assert.Equal(t, EventCancelled, event.Status)
}

func TestStripeDisputeMapsToChargeback(t *testing.T) {
	provider := NewStripeProvider("", true)
	body := []byte(`{"id":"evt_3","type":"charge.dispute.created","data":{"object":{"payment_intent":"pi_3","amount":5000,"currency":"eur"}}}`)

	event, err := provider.VerifyAndParse(body, http.Header{}, "203.0.113.7")
	require.NoError(t, err)
	assert.Equal(t, EventChargeback, event.Status)
	assert.Equal(t, "pi_3", event.TransactionID)
}

func TestStripeRejectsPayloadWithoutIdentifiers(t *testing.T) {
	provider := NewStripeProvider("", true)
	body := []byte(`{"id":"evt_4","type":"checkout.session.completed","data":{"object":{}}}`)

	_, err := provider.VerifyAndParse(body, http.Header{}, "203.0.113.7")
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestStripeDoesNotAckUnknownPayments(t *testing.T) {
	assert.False(t, NewStripeProvider("", true).AcksUnknownPayments())
}
