package psp

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/propcrowd/fundhub.go/common"
)

// LemonwayProvider has no signature scheme. Deliveries are form-encoded
// and authenticated by source IP allow-listing only, so the allow-list is
// mandatory in production.
type LemonwayProvider struct {
	allowedNets []*net.IPNet
	allowedIPs  []net.IP
	skipVerify  bool
}

func NewLemonwayProvider(allowedIPs string, skipVerify bool) (*LemonwayProvider, error) {
	p := &LemonwayProvider{skipVerify: skipVerify}
	for _, entry := range strings.Split(allowedIPs, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			_, network, err := net.ParseCIDR(entry)
			if err != nil {
				return nil, err
			}
			p.allowedNets = append(p.allowedNets, network)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			return nil, &ParseError{Provider: common.ProviderLemonway, Reason: "invalid allow-list entry " + entry}
		}
		p.allowedIPs = append(p.allowedIPs, ip)
	}
	return p, nil
}

func (p *LemonwayProvider) Name() string { return common.ProviderLemonway }

func (p *LemonwayProvider) AcksUnknownPayments() bool { return true }

func (p *LemonwayProvider) ipAllowed(remoteIP string) bool {
	ip := net.ParseIP(remoteIP)
	if ip == nil {
		return false
	}
	for _, allowed := range p.allowedIPs {
		if allowed.Equal(ip) {
			return true
		}
	}
	for _, network := range p.allowedNets {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// Lemonway status codes as delivered in the Status form field.
const (
	lemonwayStatusSuccess    = "3"
	lemonwayStatusError      = "4"
	lemonwayStatusCancelled  = "7"
	lemonwayStatusRefunded   = "16"
	lemonwayStatusChargeback = "17"
)

func (p *LemonwayProvider) VerifyAndParse(body []byte, headers http.Header, remoteIP string) (*WebhookEvent, error) {
	if !p.skipVerify && !p.ipAllowed(remoteIP) {
		return nil, &VerificationError{Provider: p.Name(), Reason: "source ip " + remoteIP + " not allow-listed"}
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, &ParseError{Provider: p.Name(), Reason: "invalid form payload", Err: err}
	}

	transactionID := values.Get("IdTransaction")
	if transactionID == "" {
		return nil, &ParseError{Provider: p.Name(), Reason: "missing IdTransaction"}
	}

	var status, reason string
	switch values.Get("Status") {
	case lemonwayStatusSuccess:
		status = EventCompleted
	case lemonwayStatusError:
		status = EventFailed
		reason = values.Get("Message")
	case lemonwayStatusCancelled:
		status = EventCancelled
	case lemonwayStatusRefunded:
		status = EventRefunded
	case lemonwayStatusChargeback:
		status = EventChargeback
		reason = common.RefundReasonChargeback
	default:
		return nil, &ParseError{Provider: p.Name(), Reason: "unsupported status code " + values.Get("Status")}
	}

	amount, err := ParseAmountToCents(values.Get("Amount"))
	if err != nil {
		return nil, &ParseError{Provider: p.Name(), Reason: "invalid amount", Err: err}
	}

	currency := values.Get("Currency")
	if currency == "" {
		currency = "EUR"
	}

	return &WebhookEvent{
		Provider:      p.Name(),
		TransactionID: transactionID,
		SessionID:     values.Get("ExtId"),
		Status:        status,
		Amount:        amount,
		Currency:      currency,
		Reason:        reason,
		RawBody:       body,
	}, nil
}
