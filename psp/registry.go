package psp

import (
	"fmt"
	"sort"
)

// Registry is the closed set of supported providers. Everything webhook
// dispatch or payout execution knows about a provider comes from here,
// handlers never branch on free-text identifiers.
type Registry struct {
	providers map[string]Provider
	clients   map[string]Client
}

// NewRegistry wires the provider set from config. In production every
// registered provider must be able to authenticate its deliveries,
// otherwise construction fails. Outside production a missing secret
// degrades to unverified parsing.
func NewRegistry(cfg *Config) (*Registry, error) {
	production := cfg.IsProduction()
	r := &Registry{
		providers: map[string]Provider{},
		clients:   map[string]Client{},
	}

	if production && cfg.OpenPayWebhookSecret == "" {
		return nil, fmt.Errorf("OPENPAY_WEBHOOK_SECRET is required in production")
	}
	openPay := NewOpenPayProvider(cfg.OpenPayWebhookSecret, !production && cfg.OpenPayWebhookSecret == "")
	r.providers[openPay.Name()] = openPay
	r.clients[openPay.Name()] = NewOpenPayClient(cfg.OpenPayBaseUrl, cfg.OpenPayMerchantId, cfg.OpenPayApiKey)

	if production && cfg.StripeWebhookSecret == "" {
		return nil, fmt.Errorf("STRIPE_WEBHOOK_SECRET is required in production")
	}
	stripe := NewStripeProvider(cfg.StripeWebhookSecret, !production && cfg.StripeWebhookSecret == "")
	r.providers[stripe.Name()] = stripe
	r.clients[stripe.Name()] = NewStripeClient(cfg.StripeBaseUrl, cfg.StripeApiKey)

	if production && cfg.LemonwayAllowedIps == "" {
		return nil, fmt.Errorf("LEMONWAY_ALLOWED_IPS is required in production")
	}
	lemonway, err := NewLemonwayProvider(cfg.LemonwayAllowedIps, !production && cfg.LemonwayAllowedIps == "")
	if err != nil {
		return nil, err
	}
	r.providers[lemonway.Name()] = lemonway
	r.clients[lemonway.Name()] = NewLemonwayClient(cfg.LemonwayBaseUrl, cfg.LemonwayLogin, cfg.LemonwayPassword)

	// The mock provider is opt-in and never implicit in production.
	if cfg.MockToken != "" || !production {
		mock := NewMockProvider(cfg.MockToken, !production && cfg.MockToken == "")
		r.providers[mock.Name()] = mock
		r.clients[mock.Name()] = &MockClient{}
	}

	return r, nil
}

func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, &UnknownProviderError{Name: name}
	}
	return p, nil
}

func (r *Registry) Client(name string) (Client, error) {
	c, ok := r.clients[name]
	if !ok {
		return nil, &UnknownProviderError{Name: name}
	}
	return c, nil
}

// SetClient swaps the outbound client for a provider. Tests use this to
// fail payouts and refunds deterministically.
func (r *Registry) SetClient(name string, c Client) {
	r.clients[name] = c
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
