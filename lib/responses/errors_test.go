package responses

import (
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestBadAuthErrorsNotAllowedForSentry(t *testing.T) {
	badAuthErrResponse := echo.NewHTTPError(http.StatusUnauthorized, echo.Map{
		"error":   true,
		"code":    1,
		"message": "bad auth",
	})

	isAllowed := isErrAllowedForSentry(badAuthErrResponse)
	assert.False(t, isAllowed)
}

func TestSignatureVerificationErrorsNotAllowedForSentry(t *testing.T) {
	sigErrResponse := echo.NewHTTPError(SignatureVerificationError.HttpStatusCode, SignatureVerificationError)

	isAllowed := isErrAllowedForSentry(sigErrResponse)
	assert.False(t, isAllowed)
}

func TestNotBadAuthErrorsAllowedForSentry(t *testing.T) {
	conflictErrResponse := echo.NewHTTPError(StateConflictError.HttpStatusCode, StateConflictError)

	isAllowed := isErrAllowedForSentry(conflictErrResponse)
	assert.True(t, isAllowed)
}

func TestNonErrorResponseErrorsAllowedForSentry(t *testing.T) {
	err := errors.New("random error")

	isAllowed := isErrAllowedForSentry(err)
	assert.True(t, isAllowed)
}
