package responses

import (
	"net/http"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error          bool   `json:"error"`
	Code           int    `json:"code"`
	Message        string `json:"message"`
	HttpStatusCode int    `json:"-"`
}

// ReceivedResponse is the webhook ack body. Providers only care about the
// status code, the body is for log correlation.
type ReceivedResponse struct {
	Received bool `json:"received"`
}

var GeneralServerError = ErrorResponse{
	Error:          true,
	Code:           6,
	Message:        "Something went wrong. Please try again later",
	HttpStatusCode: 500,
}

var BadArgumentsError = ErrorResponse{
	Error:          true,
	Code:           8,
	Message:        "Bad arguments",
	HttpStatusCode: 400,
}

var BadAuthError = ErrorResponse{
	Error:          true,
	Code:           1,
	Message:        "bad auth",
	HttpStatusCode: 401,
}

var SignatureVerificationError = ErrorResponse{
	Error:          true,
	Code:           1,
	Message:        "webhook signature verification failed",
	HttpStatusCode: 401,
}

var WebhookParseError = ErrorResponse{
	Error:          true,
	Code:           2,
	Message:        "malformed webhook payload",
	HttpStatusCode: 400,
}

var UnknownProviderError = ErrorResponse{
	Error:          true,
	Code:           2,
	Message:        "unknown payment provider",
	HttpStatusCode: 404,
}

var PaymentNotFoundError = ErrorResponse{
	Error:          true,
	Code:           3,
	Message:        "no payment matches the notified transaction",
	HttpStatusCode: 404,
}

var InvestmentNotFoundError = ErrorResponse{
	Error:          true,
	Code:           3,
	Message:        "investment not found",
	HttpStatusCode: 404,
}

var ProjectNotFoundError = ErrorResponse{
	Error:          true,
	Code:           3,
	Message:        "project not found",
	HttpStatusCode: 404,
}

var StateConflictError = ErrorResponse{
	Error:          true,
	Code:           4,
	Message:        "event contradicts the current payment state",
	HttpStatusCode: 409,
}

var InsufficientEscrowError = ErrorResponse{
	Error:          true,
	Code:           5,
	Message:        "insufficient escrow balance",
	HttpStatusCode: 400,
}

var ProviderCallError = ErrorResponse{
	Error:          true,
	Code:           7,
	Message:        "provider call failed. Please try again later",
	HttpStatusCode: 502,
}

var ReleaseConditionsError = ErrorResponse{
	Error:          true,
	Code:           9,
	Message:        "release conditions not met",
	HttpStatusCode: 400,
}

var EmailTakenError = ErrorResponse{
	Error:          true,
	Code:           8,
	Message:        "email already taken",
	HttpStatusCode: 400,
}

var AccountDeactivatedError = ErrorResponse{
	Error:          true,
	Code:           1,
	Message:        "Account has been suspended. Please contact support for further assistance.",
	HttpStatusCode: 401,
}

// Auth-class failures (code 1) are expected noise from misconfigured
// providers and retry storms, they do not belong in Sentry.
func isErrAllowedForSentry(err error) bool {
	he, ok := err.(*echo.HTTPError)
	if !ok {
		return true
	}
	switch msg := he.Message.(type) {
	case ErrorResponse:
		return msg.Code != 1
	case echo.Map:
		if code, ok := msg["code"].(int); ok {
			return code != 1
		}
	}
	return true
}

func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	c.Logger().Error(err)
	if hub := sentryecho.GetHubFromContext(c); hub != nil && isErrAllowedForSentry(err) {
		hub.WithScope(func(scope *sentry.Scope) {
			scope.SetExtra("UserID", c.Get("UserID"))
			hub.CaptureException(err)
		})
	}
	code := http.StatusInternalServerError
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		c.JSON(code, he.Message)
	} else {
		c.JSON(http.StatusInternalServerError, GeneralServerError)
	}
}
