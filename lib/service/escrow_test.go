package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propcrowd/fundhub.go/db/models"
)

func escrowAccountsFixture() []models.EscrowAccount {
	return []models.EscrowAccount{
		{ID: 1, ProjectID: 7, Provider: "openpay", Balance: 30000},
		{ID: 2, ProjectID: 7, Provider: "stripe", Balance: 100000},
		{ID: 3, ProjectID: 7, Provider: "lemonway", Balance: 50000},
	}
}

func TestPlanDrawdownLargestBalanceFirst(t *testing.T) {
	plan, err := planDrawdown(7, escrowAccountsFixture(), 120000, 0)
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, int64(2), plan[0].Account.ID)
	assert.Equal(t, int64(100000), plan[0].Amount)
	assert.Equal(t, int64(3), plan[1].Account.ID)
	assert.Equal(t, int64(20000), plan[1].Amount)
}

func TestPlanDrawdownPreferredAccountPinnedFirst(t *testing.T) {
	plan, err := planDrawdown(7, escrowAccountsFixture(), 40000, 1)
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, int64(1), plan[0].Account.ID)
	assert.Equal(t, int64(30000), plan[0].Amount)
	assert.Equal(t, int64(2), plan[1].Account.ID)
	assert.Equal(t, int64(10000), plan[1].Amount)
}

func TestPlanDrawdownSingleAccountExactFit(t *testing.T) {
	plan, err := planDrawdown(7, escrowAccountsFixture(), 100000, 0)
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, int64(2), plan[0].Account.ID)
}

func TestPlanDrawdownRejectsInsufficientBalance(t *testing.T) {
	_, err := planDrawdown(7, escrowAccountsFixture(), 200000, 0)
	var insufficientErr *InsufficientEscrowError
	require.ErrorAs(t, err, &insufficientErr)
	assert.Equal(t, int64(7), insufficientErr.ProjectID)
	assert.Equal(t, int64(200000), insufficientErr.Requested)
	assert.Equal(t, int64(180000), insufficientErr.Available)
}

func TestPlanDrawdownNeverPlansPartialDraw(t *testing.T) {
	accounts := []models.EscrowAccount{{ID: 1, ProjectID: 7, Balance: 500}}
	plan, err := planDrawdown(7, accounts, 501, 0)
	require.Error(t, err)
	assert.Nil(t, plan)
}

func TestPlanDrawdownSkipsEmptyAccounts(t *testing.T) {
	accounts := []models.EscrowAccount{
		{ID: 1, ProjectID: 7, Balance: 0},
		{ID: 2, ProjectID: 7, Balance: 1000},
	}
	plan, err := planDrawdown(7, accounts, 1000, 0)
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, int64(2), plan[0].Account.ID)
}
