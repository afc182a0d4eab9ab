package psp

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/labstack/gommon/random"

	"github.com/propcrowd/fundhub.go/common"
)

const mockTokenHeader = "X-Mock-Token"

// MockProvider accepts the canonical event shape directly, authenticated
// by a shared token header. Used by development setups and the test
// suites, never registered without an explicit token.
type MockProvider struct {
	token      string
	skipVerify bool
}

func NewMockProvider(token string, skipVerify bool) *MockProvider {
	return &MockProvider{token: token, skipVerify: skipVerify}
}

func (p *MockProvider) Name() string { return common.ProviderMock }

func (p *MockProvider) AcksUnknownPayments() bool { return false }

type mockPayload struct {
	TransactionID string `json:"transaction_id"`
	SessionID     string `json:"session_id"`
	Status        string `json:"status"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Reason        string `json:"reason"`
}

func (p *MockProvider) VerifyAndParse(body []byte, headers http.Header, remoteIP string) (*WebhookEvent, error) {
	if !p.skipVerify {
		token := headers.Get(mockTokenHeader)
		if token == "" {
			return nil, &VerificationError{Provider: p.Name(), Reason: "missing token header"}
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(p.token)) != 1 {
			return nil, &VerificationError{Provider: p.Name(), Reason: "token mismatch"}
		}
	}

	var payload mockPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &ParseError{Provider: p.Name(), Reason: "invalid json", Err: err}
	}
	switch payload.Status {
	case EventCompleted, EventFailed, EventCancelled, EventRefunded, EventChargeback:
	default:
		return nil, &ParseError{Provider: p.Name(), Reason: "unsupported status " + payload.Status}
	}
	if payload.TransactionID == "" && payload.SessionID == "" {
		return nil, &ParseError{Provider: p.Name(), Reason: "missing transaction and session id"}
	}
	if payload.Currency == "" {
		payload.Currency = "EUR"
	}
	reason := payload.Reason
	if payload.Status == EventChargeback && reason == "" {
		reason = common.RefundReasonChargeback
	}

	return &WebhookEvent{
		Provider:      p.Name(),
		TransactionID: payload.TransactionID,
		SessionID:     payload.SessionID,
		Status:        payload.Status,
		Amount:        payload.Amount,
		Currency:      payload.Currency,
		Reason:        reason,
		RawBody:       body,
	}, nil
}

// MockClient fakes the outbound side. Function fields override behavior
// per test, the zero value succeeds and fabricates provider ids.
type MockClient struct {
	PayoutFunc      func(ctx context.Context, req PayoutRequest) (*PayoutResult, error)
	RefundFunc      func(ctx context.Context, req RefundRequest) (*RefundResult, error)
	FetchStatusFunc func(ctx context.Context, transactionID string) (string, error)

	mu          sync.Mutex
	PayoutCalls []PayoutRequest
	RefundCalls []RefundRequest
}

func (m *MockClient) Payout(ctx context.Context, req PayoutRequest) (*PayoutResult, error) {
	m.mu.Lock()
	m.PayoutCalls = append(m.PayoutCalls, req)
	m.mu.Unlock()
	if m.PayoutFunc != nil {
		return m.PayoutFunc(ctx, req)
	}
	return &PayoutResult{ProviderPayoutID: "mock-payout-" + random.String(10)}, nil
}

func (m *MockClient) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	m.mu.Lock()
	m.RefundCalls = append(m.RefundCalls, req)
	m.mu.Unlock()
	if m.RefundFunc != nil {
		return m.RefundFunc(ctx, req)
	}
	return &RefundResult{ProviderRefundID: "mock-refund-" + random.String(10)}, nil
}

func (m *MockClient) FetchStatus(ctx context.Context, transactionID string) (string, error) {
	if m.FetchStatusFunc != nil {
		return m.FetchStatusFunc(ctx, transactionID)
	}
	return EventCompleted, nil
}
