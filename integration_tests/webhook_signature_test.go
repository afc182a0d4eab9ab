package integration_tests

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
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
)

type WebhookSignatureTestSuite struct {
	TestSuite
	service   *service.FundhubService
	userLogin ExpectedCreateUserResponseBody
}

func (suite *WebhookSignatureTestSuite) SetupSuite() {
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
	suite.echo.POST("/webhooks/:provider", controllers.NewWebhookController(svc).HandleWebhook)
}

func (suite *WebhookSignatureTestSuite) TearDownSuite() {
	err := clearTable(suite.service, "webhook_logs")
	assert.NoError(suite.T(), err)
}

// openPayInvestment opens an investment with a pending OpenPay payment
// and returns that payment.
func (suite *WebhookSignatureTestSuite) openPayInvestment(amount int64) *models.Payment {
	project, err := createTestProject(suite.service, 100000)
	require.NoError(suite.T(), err)
	_, payment, err := suite.service.InitiateInvestment(context.Background(), service.InitiateInvestmentParams{
		UserID:    suite.userLogin.ID,
		ProjectID: project.ID,
		Amount:    amount,
		Provider:  common.ProviderOpenPay,
	})
	require.NoError(suite.T(), err)
	return payment
}

func (suite *WebhookSignatureTestSuite) openPayChargeBody(transactionID, sessionID, eventType, amount string) []byte {
	body, err := json.Marshal(&ExpectedOpenPayWebhookPayload{
		Type: eventType,
		Transaction: ExpectedOpenPayTransaction{
			ID:       transactionID,
			OrderID:  sessionID,
			Amount:   amount,
			Currency: "EUR",
		},
	})
	require.NoError(suite.T(), err)
	return body
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (suite *WebhookSignatureTestSuite) TestMissingSignatureIsRejected() {
	payment := suite.openPayInvestment(25000)
	body := suite.openPayChargeBody("op-trx-nosig", payment.SessionID, "charge.succeeded", "250.00")

	rec := suite.postWebhookReq(common.ProviderOpenPay, body, nil)
	assert.Equal(suite.T(), http.StatusUnauthorized, rec.Code)
	errorResponse := decodeErrResponse(&suite.TestSuite, rec)
	assert.Equal(suite.T(), responses.SignatureVerificationError.Code, errorResponse.Code)
}

func (suite *WebhookSignatureTestSuite) TestProperlySignedPayloadSettles() {
	ctx := context.Background()
	payment := suite.openPayInvestment(25000)
	body := suite.openPayChargeBody("op-trx-signed", payment.SessionID, "charge.succeeded", "250.00")

	rec := suite.postWebhookReq(common.ProviderOpenPay, body, map[string]string{
		"X-Openpay-Signature": signBody(testOpenPaySecret, body),
	})
	assert.Equal(suite.T(), http.StatusOK, rec.Code)

	settled, err := suite.service.FindPayment(ctx, payment.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), common.PaymentStatusCompleted, settled.Status)
	assert.Equal(suite.T(), "op-trx-signed", settled.TransactionID)
}

func (suite *WebhookSignatureTestSuite) TestTamperedPayloadIsRejected() {
	ctx := context.Background()
	payment := suite.openPayInvestment(25000)
	body := suite.openPayChargeBody("op-trx-tampered", payment.SessionID, "charge.succeeded", "250.00")
	signature := signBody(testOpenPaySecret, body)

	// inflate the amount after signing, the mac no longer matches
	tampered := []byte(strings.Replace(string(body), "250.00", "999250.00", 1))

	rec := suite.postWebhookReq(common.ProviderOpenPay, tampered, map[string]string{
		"X-Openpay-Signature": signature,
	})
	assert.Equal(suite.T(), http.StatusUnauthorized, rec.Code)
	errorResponse := decodeErrResponse(&suite.TestSuite, rec)
	assert.Equal(suite.T(), responses.SignatureVerificationError.Code, errorResponse.Code)

	untouched, err := suite.service.FindPayment(ctx, payment.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), common.PaymentStatusPending, untouched.Status)
	assert.Empty(suite.T(), untouched.TransactionID)

	logs, err := suite.service.RecentWebhookLogs(ctx, common.ProviderOpenPay, common.WebhookOutcomeRejected, 1)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), logs, 1)
	assert.Equal(suite.T(), "signature mismatch", logs[0].FailureReason)
}

func (suite *WebhookSignatureTestSuite) TestUnlistedSourceIPIsRejectedForLemonway() {
	payment := suite.openPayInvestment(10000)

	form := url.Values{}
	form.Set("IdTransaction", "lw-trx-1")
	form.Set("ExtId", payment.SessionID)
	form.Set("Status", "3")
	form.Set("Amount", "100.00")

	// httptest requests originate from 192.0.2.1, not on the allowlist
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/"+common.ProviderLemonway, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	suite.echo.ServeHTTP(rec, req)

	assert.Equal(suite.T(), http.StatusUnauthorized, rec.Code)
	errorResponse := decodeErrResponse(&suite.TestSuite, rec)
	assert.Equal(suite.T(), responses.SignatureVerificationError.Code, errorResponse.Code)
}

func TestWebhookSignatureSuite(t *testing.T) {
	suite.Run(t, new(WebhookSignatureTestSuite))
}
