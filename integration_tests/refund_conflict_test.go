package integration_tests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/propcrowd/fundhub.go/common"
	"github.com/propcrowd/fundhub.go/controllers"
	"github.com/propcrowd/fundhub.go/db/models"
	"github.com/propcrowd/fundhub.go/lib/responses"
	"github.com/propcrowd/fundhub.go/lib/service"
	"github.com/propcrowd/fundhub.go/lib/tokens"
	"github.com/propcrowd/fundhub.go/psp"
)

type RefundConflictTestSuite struct {
	TestSuite
	service   *service.FundhubService
	userLogin ExpectedCreateUserResponseBody
}

func (suite *RefundConflictTestSuite) SetupSuite() {
	svc, err := FundhubTestServiceInit(nil)
	if err != nil {
		log.Fatalf("Error initializing test service: %v", err)
	}
	users, _, err := createTestUsers(svc, 1)
	if err != nil {
		log.Fatalf("Error creating test users: %v", err)
	}
	suite.service = svc
	suite.userLogin = users[0]

	suite.echo = newTestEcho()
	admin := suite.echo.Group("/v2/admin", tokens.AdminTokenMiddleware(svc.Config.AdminToken))
	admin.POST("/investments/:id/refund", controllers.NewRefundController(svc).RefundInvestment)
}

func (suite *RefundConflictTestSuite) mockInvestment(amount int64) (*models.Investment, *models.Payment) {
	project, err := createTestProject(suite.service, 500000)
	require.NoError(suite.T(), err)
	investment, payment, err := suite.service.InitiateInvestment(context.Background(), service.InitiateInvestmentParams{
		UserID:    suite.userLogin.ID,
		ProjectID: project.ID,
		Amount:    amount,
		Provider:  common.ProviderMock,
	})
	require.NoError(suite.T(), err)
	return investment, payment
}

func (suite *RefundConflictTestSuite) refundReq(investmentID int64, reason, adminToken string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	var buf bytes.Buffer
	assert.NoError(suite.T(), json.NewEncoder(&buf).Encode(map[string]string{"reason": reason}))
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/v2/admin/investments/%d/refund", investmentID), &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", adminToken))
	suite.echo.ServeHTTP(rec, req)
	return rec
}

func (suite *RefundConflictTestSuite) TestRefundAfterSettlementSucceeds() {
	ctx := context.Background()
	investment, payment := suite.mockInvestment(10000)
	_, err := suite.service.ProcessWebhookEvent(ctx, &psp.WebhookEvent{
		Provider:      common.ProviderMock,
		TransactionID: "refund-trx-settled",
		SessionID:     payment.SessionID,
		Status:        psp.EventCompleted,
		Amount:        10000,
		Currency:      "EUR",
	})
	require.NoError(suite.T(), err)

	rec := suite.refundReq(investment.ID, "investor request", testAdminToken)
	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	refundResponse := &ExpectedRefundResponseBody{}
	assert.NoError(suite.T(), json.NewDecoder(rec.Body).Decode(refundResponse))
	assert.Equal(suite.T(), investment.ID, refundResponse.InvestmentID)
	assert.Equal(suite.T(), int64(10000), refundResponse.Amount)
	assert.Equal(suite.T(), common.RefundStatusProcessed, refundResponse.Status)
	assert.Equal(suite.T(), "investor request", refundResponse.Reason)
	assert.True(suite.T(), strings.HasPrefix(refundResponse.ProviderRefundID, "mock-refund-"))

	refunded, err := suite.service.FindInvestment(ctx, investment.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), common.InvestmentStatusRefunded, refunded.Status)

	drained, err := suite.service.FindProject(ctx, investment.ProjectID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(0), drained.CurrentFunding)

	accounts, err := suite.service.EscrowAccountsForProject(ctx, investment.ProjectID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), accounts, 1)
	assert.Equal(suite.T(), int64(0), accounts[0].Balance)
}

func (suite *RefundConflictTestSuite) TestRefundOfMissingInvestmentIsNotFound() {
	rec := suite.refundReq(424242, "typo", testAdminToken)
	assert.Equal(suite.T(), http.StatusNotFound, rec.Code)
	errorResponse := decodeErrResponse(&suite.TestSuite, rec)
	assert.Equal(suite.T(), responses.InvestmentNotFoundError.Code, errorResponse.Code)
}

func (suite *RefundConflictTestSuite) TestRefundOfPendingInvestmentConflicts() {
	ctx := context.Background()
	investment, _ := suite.mockInvestment(15000)

	rec := suite.refundReq(investment.ID, "never paid", testAdminToken)
	assert.Equal(suite.T(), http.StatusConflict, rec.Code)
	errorResponse := decodeErrResponse(&suite.TestSuite, rec)
	assert.Equal(suite.T(), responses.StateConflictError.Code, errorResponse.Code)

	// nothing was reversed or recorded for an investment that never paid
	untouched, err := suite.service.FindInvestment(ctx, investment.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), common.InvestmentStatusPending, untouched.Status)

	refundCount, err := suite.service.DB.NewSelect().Model((*models.Refund)(nil)).
		Where("investment_id = ?", investment.ID).Count(ctx)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 0, refundCount)
}

func (suite *RefundConflictTestSuite) TestRefundRequiresAdminToken() {
	investment, _ := suite.mockInvestment(5000)

	rec := suite.refundReq(investment.ID, "sneaky", "not-the-admin-token")
	assert.Equal(suite.T(), http.StatusUnauthorized, rec.Code)
}

func TestRefundConflictSuite(t *testing.T) {
	suite.Run(t, new(RefundConflictTestSuite))
}
