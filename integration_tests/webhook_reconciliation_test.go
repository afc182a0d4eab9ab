package integration_tests

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/propcrowd/fundhub.go/common"
	"github.com/propcrowd/fundhub.go/controllers"
	"github.com/propcrowd/fundhub.go/db/models"
	"github.com/propcrowd/fundhub.go/lib/responses"
	"github.com/propcrowd/fundhub.go/lib/service"
	"github.com/propcrowd/fundhub.go/lib/tokens"
)

type WebhookReconciliationTestSuite struct {
	TestSuite
	service   *service.FundhubService
	userLogin ExpectedCreateUserResponseBody
	userToken string
}

func (suite *WebhookReconciliationTestSuite) SetupSuite() {
	svc, err := FundhubTestServiceInit(nil)
	if err != nil {
		log.Fatalf("Error initializing test service: %v", err)
	}
	users, userTokens, err := createTestUsers(svc, 1)
	if err != nil {
		log.Fatalf("Error creating test users: %v", err)
	}
	suite.service = svc
	suite.userLogin = users[0]
	suite.userToken = userTokens[0]

	suite.echo = newTestEcho()
	suite.echo.POST("/webhooks/:provider", controllers.NewWebhookController(svc).HandleWebhook)
	suite.echo.GET("/v2/projects/:id/funding", controllers.NewProjectController(svc).GetFundingProgress)
	secured := suite.echo.Group("", tokens.Middleware(svc.Config.JWTSecret))
	secured.POST("/v2/investments", controllers.NewInvestmentController(svc).CreateInvestment)
}

func (suite *WebhookReconciliationTestSuite) TearDownSuite() {
	err := clearTable(suite.service, "webhook_logs")
	assert.NoError(suite.T(), err)
}

func (suite *WebhookReconciliationTestSuite) TestDuplicateCompletedWebhookSettlesOnce() {
	ctx := context.Background()
	project, err := createTestProject(suite.service, 50000)
	require.NoError(suite.T(), err)

	investment := suite.createInvestmentReq(project.ID, 50000, common.ProviderMock, suite.userToken)
	assert.Equal(suite.T(), common.InvestmentStatusPending, investment.Investment.Status)
	assert.NotEmpty(suite.T(), investment.SessionID)

	body := suite.mockWebhookBody("recon-trx-1", investment.SessionID, common.PaymentStatusCompleted, 50000)
	headers := map[string]string{"X-Mock-Token": testMockToken}

	first := suite.postWebhookReq(common.ProviderMock, body, headers)
	assert.Equal(suite.T(), http.StatusOK, first.Code)
	received := &ExpectedReceivedResponse{}
	assert.NoError(suite.T(), json.NewDecoder(first.Body).Decode(received))
	assert.True(suite.T(), received.Received)

	// the provider redelivers, the second delivery must change nothing
	second := suite.postWebhookReq(common.ProviderMock, body, headers)
	assert.Equal(suite.T(), http.StatusOK, second.Code)

	payment, err := suite.service.FindPayment(ctx, investment.PaymentID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), common.PaymentStatusCompleted, payment.Status)
	assert.Equal(suite.T(), "recon-trx-1", payment.TransactionID)
	assert.False(suite.T(), payment.CompletedAt.IsZero())

	settled, err := suite.service.FindInvestment(ctx, investment.Investment.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), common.InvestmentStatusConfirmed, settled.Status)
	assert.Equal(suite.T(), common.PaymentStatusCompleted, settled.PaymentStatus)

	funded, err := suite.service.FindProject(ctx, project.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(50000), funded.CurrentFunding)
	assert.Equal(suite.T(), common.ProjectStatusFundingComplete, funded.Status)
	assert.False(suite.T(), funded.FundedAt.IsZero())

	accounts, err := suite.service.EscrowAccountsForProject(ctx, project.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), accounts, 1)
	assert.Equal(suite.T(), int64(50000), accounts[0].Balance)
	entries, err := suite.service.EscrowEntriesForProject(ctx, project.ID)
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), entries, 1)

	scheduleCount, err := suite.service.DB.NewSelect().Model((*models.ReleaseSchedule)(nil)).
		Where("project_id = ?", project.ID).Count(ctx)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, scheduleCount)

	investor, err := suite.service.FindUser(ctx, suite.userLogin.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(50000), investor.TotalInvested)

	logs, err := suite.service.RecentWebhookLogs(ctx, common.ProviderMock, "", 2)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), logs, 2)
	assert.Equal(suite.T(), common.WebhookOutcomeDuplicate, logs[0].Outcome)
	assert.Equal(suite.T(), common.WebhookOutcomeAccepted, logs[1].Outcome)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/v2/projects/%d/funding", project.ID), nil)
	suite.echo.ServeHTTP(rec, req)
	progress := &ExpectedFundingProgressResponse{}
	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	assert.NoError(suite.T(), json.NewDecoder(rec.Body).Decode(progress))
	assert.Equal(suite.T(), int64(100), progress.PercentFunded)
	assert.Equal(suite.T(), 1, progress.Investors)
	assert.Equal(suite.T(), int64(50000), progress.EscrowBalance)
}

func (suite *WebhookReconciliationTestSuite) TestFailedWebhookLeavesFundingUntouched() {
	ctx := context.Background()
	project, err := createTestProject(suite.service, 80000)
	require.NoError(suite.T(), err)

	investment := suite.createInvestmentReq(project.ID, 20000, common.ProviderMock, suite.userToken)
	body := suite.mockWebhookBody("recon-trx-failed", investment.SessionID, common.PaymentStatusFailed, 20000)

	rec := suite.postWebhookReq(common.ProviderMock, body, map[string]string{"X-Mock-Token": testMockToken})
	assert.Equal(suite.T(), http.StatusOK, rec.Code)

	failed, err := suite.service.FindInvestment(ctx, investment.Investment.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), common.InvestmentStatusFailed, failed.Status)

	unfunded, err := suite.service.FindProject(ctx, project.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(0), unfunded.CurrentFunding)
	assert.Equal(suite.T(), common.ProjectStatusOpen, unfunded.Status)

	accounts, err := suite.service.EscrowAccountsForProject(ctx, project.ID)
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), accounts, 0)
}

func (suite *WebhookReconciliationTestSuite) TestUnknownPaymentIsNotAckedForMock() {
	body := suite.mockWebhookBody("recon-trx-unknown", "no-such-session", common.PaymentStatusCompleted, 1000)

	rec := suite.postWebhookReq(common.ProviderMock, body, map[string]string{"X-Mock-Token": testMockToken})
	assert.Equal(suite.T(), http.StatusNotFound, rec.Code)
	errorResponse := decodeErrResponse(&suite.TestSuite, rec)
	assert.Equal(suite.T(), responses.PaymentNotFoundError.Code, errorResponse.Code)
}

func TestWebhookReconciliationSuite(t *testing.T) {
	suite.Run(t, new(WebhookReconciliationTestSuite))
}
