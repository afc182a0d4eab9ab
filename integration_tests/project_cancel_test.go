package integration_tests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/propcrowd/fundhub.go/common"
	"github.com/propcrowd/fundhub.go/controllers"
	"github.com/propcrowd/fundhub.go/db/models"
	"github.com/propcrowd/fundhub.go/lib/service"
	"github.com/propcrowd/fundhub.go/lib/tokens"
	"github.com/propcrowd/fundhub.go/psp"
)

type ProjectCancelTestSuite struct {
	TestSuite
	service       *service.FundhubService
	mockClient    *psp.MockClient
	project       *models.Project
	investmentIDs []int64
}

func (suite *ProjectCancelTestSuite) SetupSuite() {
	// the second investor's refund fails at the provider until the retry test
	suite.mockClient = &psp.MockClient{
		RefundFunc: func(ctx context.Context, req psp.RefundRequest) (*psp.RefundResult, error) {
			if req.TransactionID == "cancel-trx-2" {
				return nil, &psp.CallError{Provider: common.ProviderMock, Op: "refund", StatusCode: 502}
			}
			return &psp.RefundResult{ProviderRefundID: "mock-refund-" + req.TransactionID}, nil
		},
	}
	svc, err := FundhubTestServiceInit(suite.mockClient)
	if err != nil {
		log.Fatalf("Error initializing test service: %v", err)
	}
	users, _, err := createTestUsers(svc, 3)
	if err != nil {
		log.Fatalf("Error creating test users: %v", err)
	}
	project, err := createTestProject(svc, 100000)
	if err != nil {
		log.Fatalf("Error creating test project: %v", err)
	}

	ctx := context.Background()
	for i, user := range users {
		investment, payment, err := svc.InitiateInvestment(ctx, service.InitiateInvestmentParams{
			UserID:    user.ID,
			ProjectID: project.ID,
			Amount:    10000,
			Provider:  common.ProviderMock,
		})
		if err != nil {
			log.Fatalf("Error initiating test investment: %v", err)
		}
		_, err = svc.ProcessWebhookEvent(ctx, &psp.WebhookEvent{
			Provider:      common.ProviderMock,
			TransactionID: fmt.Sprintf("cancel-trx-%d", i+1),
			SessionID:     payment.SessionID,
			Status:        psp.EventCompleted,
			Amount:        10000,
			Currency:      "EUR",
		})
		if err != nil {
			log.Fatalf("Error settling test investment: %v", err)
		}
		suite.investmentIDs = append(suite.investmentIDs, investment.ID)
	}

	suite.service = svc
	suite.project = project
	suite.echo = newTestEcho()
	admin := suite.echo.Group("/v2/admin", tokens.AdminTokenMiddleware(svc.Config.AdminToken))
	admin.POST("/projects/:id/cancel", controllers.NewRefundController(svc).CancelProject)
	admin.POST("/projects/:id/refunds/retry", controllers.NewRefundController(svc).RetryFailedRefunds)
}

func (suite *ProjectCancelTestSuite) adminPostReq(path string, body interface{}) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	var buf bytes.Buffer
	if body != nil {
		assert.NoError(suite.T(), json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", testAdminToken))
	suite.echo.ServeHTTP(rec, req)
	return rec
}

func (suite *ProjectCancelTestSuite) TestCancelRefundsEveryConfirmedInvestment() {
	ctx := context.Background()

	rec := suite.adminPostReq(fmt.Sprintf("/v2/admin/projects/%d/cancel", suite.project.ID), map[string]string{"reason": "permit denied"})
	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	result := &ExpectedBulkRefundResult{}
	assert.NoError(suite.T(), json.NewDecoder(rec.Body).Decode(result))
	assert.Equal(suite.T(), 3, result.Requested)
	assert.Equal(suite.T(), 2, result.Succeeded)
	assert.Equal(suite.T(), 1, result.Failed)
	require.Len(suite.T(), result.Outcomes, 3)

	var failedOutcome *ExpectedRefundOutcome
	for i := range result.Outcomes {
		if !result.Outcomes[i].Success {
			failedOutcome = &result.Outcomes[i]
		}
	}
	require.NotNil(suite.T(), failedOutcome)
	assert.Equal(suite.T(), suite.investmentIDs[1], failedOutcome.InvestmentID)
	assert.NotEmpty(suite.T(), failedOutcome.Error)

	cancelled, err := suite.service.FindProject(ctx, suite.project.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), common.ProjectStatusCancelled, cancelled.Status)
	// the failed refund keeps its share of funding and escrow
	assert.Equal(suite.T(), int64(10000), cancelled.CurrentFunding)

	statuses := map[int64]string{}
	for _, id := range suite.investmentIDs {
		investment, err := suite.service.FindInvestment(ctx, id)
		require.NoError(suite.T(), err)
		statuses[id] = investment.Status
	}
	assert.Equal(suite.T(), common.InvestmentStatusRefunded, statuses[suite.investmentIDs[0]])
	assert.Equal(suite.T(), common.InvestmentStatusConfirmed, statuses[suite.investmentIDs[1]])
	assert.Equal(suite.T(), common.InvestmentStatusRefunded, statuses[suite.investmentIDs[2]])

	accounts, err := suite.service.EscrowAccountsForProject(ctx, suite.project.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), accounts, 1)
	assert.Equal(suite.T(), int64(10000), accounts[0].Balance)

	failedRefunds, err := suite.service.DB.NewSelect().Model((*models.Refund)(nil)).
		Where("investment_id = ? AND status = ?", suite.investmentIDs[1], common.RefundStatusFailed).Count(ctx)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, failedRefunds)
}

func (suite *ProjectCancelTestSuite) TestRetryDrainsTheFailedRefund() {
	ctx := context.Background()
	// provider recovered, the zero value mock client succeeds
	suite.mockClient.RefundFunc = nil

	rec := suite.adminPostReq(fmt.Sprintf("/v2/admin/projects/%d/refunds/retry", suite.project.ID), nil)
	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	result := &ExpectedBulkRefundResult{}
	assert.NoError(suite.T(), json.NewDecoder(rec.Body).Decode(result))
	assert.Equal(suite.T(), 1, result.Requested)
	assert.Equal(suite.T(), 1, result.Succeeded)
	assert.Equal(suite.T(), 0, result.Failed)

	investment, err := suite.service.FindInvestment(ctx, suite.investmentIDs[1])
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), common.InvestmentStatusRefunded, investment.Status)

	drained, err := suite.service.FindProject(ctx, suite.project.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(0), drained.CurrentFunding)

	accounts, err := suite.service.EscrowAccountsForProject(ctx, suite.project.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), accounts, 1)
	assert.Equal(suite.T(), int64(0), accounts[0].Balance)

	balanceFromEntries, err := suite.service.EscrowBalanceFromEntries(ctx, accounts[0].ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(0), balanceFromEntries)
}

func TestProjectCancelSuite(t *testing.T) {
	suite.Run(t, new(ProjectCancelTestSuite))
}
