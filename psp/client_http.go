package psp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/propcrowd/fundhub.go/common"
)

const (
	clientTimeout     = 30 * time.Second
	clientMaxRetries  = 3
	clientMaxBodySize = 1 << 20
)

// httpAPI is the shared transport for the provider clients. 5xx and
// network failures are retried with exponential backoff, 4xx are
// permanent.
type httpAPI struct {
	provider string
	base     string
	user     string
	password string
	bearer   string
	client   *http.Client
}

func newHTTPAPI(provider, base string) *httpAPI {
	return &httpAPI{
		provider: provider,
		base:     strings.TrimRight(base, "/"),
		client:   &http.Client{Timeout: clientTimeout},
	}
}

func (a *httpAPI) do(ctx context.Context, op, method, path, contentType string, body []byte, out interface{}) error {
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, method, a.base+path, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(&CallError{Provider: a.provider, Op: op, Err: err})
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		if a.bearer != "" {
			req.Header.Set("Authorization", "Bearer "+a.bearer)
		} else if a.user != "" || a.password != "" {
			req.SetBasicAuth(a.user, a.password)
		}

		resp, err := a.client.Do(req)
		if err != nil {
			return &CallError{Provider: a.provider, Op: op, Err: err}
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(io.LimitReader(resp.Body, clientMaxBodySize))
		if err != nil {
			return &CallError{Provider: a.provider, Op: op, Err: err}
		}
		if resp.StatusCode >= 500 {
			return &CallError{Provider: a.provider, Op: op, StatusCode: resp.StatusCode}
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(&CallError{Provider: a.provider, Op: op, StatusCode: resp.StatusCode})
		}
		if out != nil {
			if err = json.Unmarshal(respBody, out); err != nil {
				return backoff.Permanent(&CallError{Provider: a.provider, Op: op, Err: err})
			}
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), clientMaxRetries), ctx)
	return backoff.Retry(operation, policy)
}

func (a *httpAPI) doJSON(ctx context.Context, op, method, path string, payload, out interface{}) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return &CallError{Provider: a.provider, Op: op, Err: err}
		}
	}
	return a.do(ctx, op, method, path, "application/json", body, out)
}

func (a *httpAPI) doForm(ctx context.Context, op, path string, form url.Values, out interface{}) error {
	return a.do(ctx, op, http.MethodPost, path, "application/x-www-form-urlencoded", []byte(form.Encode()), out)
}

// OpenPayClient talks to the merchant-scoped REST API with basic auth.
type OpenPayClient struct {
	api        *httpAPI
	merchantID string
}

func NewOpenPayClient(baseURL, merchantID, apiKey string) *OpenPayClient {
	api := newHTTPAPI(common.ProviderOpenPay, baseURL)
	api.user = apiKey
	return &OpenPayClient{api: api, merchantID: merchantID}
}

type openPayIDResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (c *OpenPayClient) Payout(ctx context.Context, req PayoutRequest) (*PayoutResult, error) {
	payload := map[string]interface{}{
		"method":         "bank_account",
		"destination_id": req.BeneficiaryID,
		"amount":         FormatCents(req.Amount),
		"currency":       req.Currency,
		"description":    req.Description,
		"order_id":       req.Reference,
	}
	var resp openPayIDResponse
	path := fmt.Sprintf("/v1/%s/payouts", c.merchantID)
	if err := c.api.doJSON(ctx, "payout", http.MethodPost, path, payload, &resp); err != nil {
		return nil, err
	}
	return &PayoutResult{ProviderPayoutID: resp.ID}, nil
}

func (c *OpenPayClient) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	payload := map[string]interface{}{
		"amount":      FormatCents(req.Amount),
		"description": req.Reason,
	}
	var resp openPayIDResponse
	path := fmt.Sprintf("/v1/%s/charges/%s/refund", c.merchantID, url.PathEscape(req.TransactionID))
	if err := c.api.doJSON(ctx, "refund", http.MethodPost, path, payload, &resp); err != nil {
		return nil, err
	}
	return &RefundResult{ProviderRefundID: resp.ID}, nil
}

func (c *OpenPayClient) FetchStatus(ctx context.Context, transactionID string) (string, error) {
	var resp openPayIDResponse
	path := fmt.Sprintf("/v1/%s/charges/%s", c.merchantID, url.PathEscape(transactionID))
	if err := c.api.doJSON(ctx, "fetch_status", http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}
	switch resp.Status {
	case "completed":
		return EventCompleted, nil
	case "failed":
		return EventFailed, nil
	case "cancelled":
		return EventCancelled, nil
	case "refunded":
		return EventRefunded, nil
	case "charged_back":
		return EventChargeback, nil
	default:
		return common.PaymentStatusPending, nil
	}
}

// StripeClient talks to the form-encoded REST API with a bearer key.
type StripeClient struct {
	api *httpAPI
}

func NewStripeClient(baseURL, apiKey string) *StripeClient {
	api := newHTTPAPI(common.ProviderStripe, baseURL)
	api.bearer = apiKey
	return &StripeClient{api: api}
}

type stripeIDResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (c *StripeClient) Payout(ctx context.Context, req PayoutRequest) (*PayoutResult, error) {
	form := url.Values{}
	form.Set("amount", fmt.Sprintf("%d", req.Amount))
	form.Set("currency", strings.ToLower(req.Currency))
	form.Set("description", req.Description)
	form.Set("destination", req.BeneficiaryID)
	form.Set("metadata[reference]", req.Reference)
	var resp stripeIDResponse
	if err := c.api.doForm(ctx, "payout", "/v1/payouts", form, &resp); err != nil {
		return nil, err
	}
	return &PayoutResult{ProviderPayoutID: resp.ID}, nil
}

func (c *StripeClient) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	form := url.Values{}
	form.Set("payment_intent", req.TransactionID)
	form.Set("amount", fmt.Sprintf("%d", req.Amount))
	form.Set("metadata[reference]", req.Reference)
	var resp stripeIDResponse
	if err := c.api.doForm(ctx, "refund", "/v1/refunds", form, &resp); err != nil {
		return nil, err
	}
	return &RefundResult{ProviderRefundID: resp.ID}, nil
}

func (c *StripeClient) FetchStatus(ctx context.Context, transactionID string) (string, error) {
	var resp stripeIDResponse
	path := "/v1/payment_intents/" + url.PathEscape(transactionID)
	if err := c.api.doJSON(ctx, "fetch_status", http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}
	switch resp.Status {
	case "succeeded":
		return EventCompleted, nil
	case "canceled":
		return EventCancelled, nil
	default:
		return common.PaymentStatusPending, nil
	}
}

// LemonwayClient talks to the wallet API with basic auth.
type LemonwayClient struct {
	api *httpAPI
}

func NewLemonwayClient(baseURL, login, password string) *LemonwayClient {
	api := newHTTPAPI(common.ProviderLemonway, baseURL)
	api.user = login
	api.password = password
	return &LemonwayClient{api: api}
}

type lemonwayTransactionResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (c *LemonwayClient) Payout(ctx context.Context, req PayoutRequest) (*PayoutResult, error) {
	payload := map[string]interface{}{
		"wallet":    req.BeneficiaryID,
		"amount":    FormatCents(req.Amount),
		"currency":  req.Currency,
		"reference": req.Reference,
		"comment":   req.Description,
	}
	var resp lemonwayTransactionResponse
	if err := c.api.doJSON(ctx, "payout", http.MethodPost, "/v2/moneyouts", payload, &resp); err != nil {
		return nil, err
	}
	return &PayoutResult{ProviderPayoutID: resp.ID}, nil
}

func (c *LemonwayClient) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	payload := map[string]interface{}{
		"amount":  FormatCents(req.Amount),
		"comment": req.Reason,
	}
	var resp lemonwayTransactionResponse
	path := "/v2/moneyins/" + url.PathEscape(req.TransactionID) + "/refund"
	if err := c.api.doJSON(ctx, "refund", http.MethodPost, path, payload, &resp); err != nil {
		return nil, err
	}
	return &RefundResult{ProviderRefundID: resp.ID}, nil
}

func (c *LemonwayClient) FetchStatus(ctx context.Context, transactionID string) (string, error) {
	var resp lemonwayTransactionResponse
	path := "/v2/moneyins/" + url.PathEscape(transactionID)
	if err := c.api.doJSON(ctx, "fetch_status", http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}
	switch resp.Status {
	case lemonwayStatusSuccess:
		return EventCompleted, nil
	case lemonwayStatusError:
		return EventFailed, nil
	case lemonwayStatusCancelled:
		return EventCancelled, nil
	case lemonwayStatusRefunded:
		return EventRefunded, nil
	case lemonwayStatusChargeback:
		return EventChargeback, nil
	default:
		return common.PaymentStatusPending, nil
	}
}
