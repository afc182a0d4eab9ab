package psp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propcrowd/fundhub.go/common"
)

func TestRegistryProductionRequiresWebhookSecrets(t *testing.T) {
	_, err := NewRegistry(&Config{Environment: "production"})
	require.Error(t, err)
}

func TestRegistryDevelopmentRegistersAllProviders(t *testing.T) {
	registry, err := NewRegistry(&Config{Environment: "development"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		common.ProviderLemonway,
		common.ProviderMock,
		common.ProviderOpenPay,
		common.ProviderStripe,
	}, registry.Names())
}

func TestRegistryProductionOmitsMockWithoutToken(t *testing.T) {
	registry, err := NewRegistry(&Config{
		Environment:          "production",
		OpenPayWebhookSecret: "op",
		StripeWebhookSecret:  "st",
		LemonwayAllowedIps:   "198.51.100.10",
	})
	require.NoError(t, err)
	_, err = registry.Get(common.ProviderMock)
	assert.Error(t, err)
}

func TestRegistrySetClientOverrides(t *testing.T) {
	registry, err := NewRegistry(&Config{Environment: "development"})
	require.NoError(t, err)

	replacement := &MockClient{}
	registry.SetClient(common.ProviderOpenPay, replacement)

	client, err := registry.Client(common.ProviderOpenPay)
	require.NoError(t, err)
	assert.Same(t, replacement, client)
}
