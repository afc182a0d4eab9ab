package controllers

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/propcrowd/fundhub.go/common"
	"github.com/propcrowd/fundhub.go/db/models"
	"github.com/propcrowd/fundhub.go/lib/responses"
	"github.com/propcrowd/fundhub.go/lib/service"
	"github.com/propcrowd/fundhub.go/psp"
)

// WebhookController : Webhook controller struct
type WebhookController struct {
	svc *service.FundhubService
}

func NewWebhookController(svc *service.FundhubService) *WebhookController {
	return &WebhookController{svc: svc}
}

// HandleWebhook godoc
// @Summary      Receive a payment provider webhook
// @Description  Verifies, normalizes and reconciles one provider notification. Safe to redeliver.
// @Accept       json
// @Produce      json
// @Tags         Webhook
// @Param        provider  path      string  true  "Provider name (openpay, stripe, lemonway, mock)"
// @Success      200       {object}  responses.ReceivedResponse
// @Failure      400       {object}  responses.ErrorResponse
// @Failure      401       {object}  responses.ErrorResponse
// @Failure      404       {object}  responses.ErrorResponse
// @Failure      409       {object}  responses.ErrorResponse
// @Router       /webhooks/{provider} [post]
func (controller *WebhookController) HandleWebhook(c echo.Context) error {
	ctx := c.Request().Context()
	providerName := c.Param("provider")

	provider, err := controller.svc.Providers.Get(providerName)
	if err != nil {
		c.Logger().Infof("Webhook for unknown provider provider:%s", providerName)
		return c.JSON(http.StatusNotFound, responses.UnknownProviderError)
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		c.Logger().Errorf("Failed to read webhook body provider:%s error: %v", providerName, err)
		return c.JSON(http.StatusBadRequest, responses.WebhookParseError)
	}

	event, err := provider.VerifyAndParse(body, c.Request().Header, c.RealIP())
	if err != nil {
		var verificationErr *psp.VerificationError
		if errors.As(err, &verificationErr) {
			c.Logger().Errorf("Webhook verification failed provider:%s ip:%s error: %v", providerName, c.RealIP(), err)
			controller.svc.LogWebhook(ctx, &models.WebhookLog{
				Provider:      providerName,
				Outcome:       common.WebhookOutcomeRejected,
				FailureReason: verificationErr.Reason,
			})
			return c.JSON(http.StatusUnauthorized, responses.SignatureVerificationError)
		}
		c.Logger().Errorf("Webhook payload invalid provider:%s error: %v", providerName, err)
		controller.svc.LogWebhook(ctx, &models.WebhookLog{
			Provider:      providerName,
			Outcome:       common.WebhookOutcomeRejected,
			FailureReason: err.Error(),
		})
		return c.JSON(http.StatusBadRequest, responses.WebhookParseError)
	}

	result, err := controller.svc.ProcessWebhookEvent(ctx, event)
	if err != nil {
		return controller.respondProcessingError(c, provider, event, result, err)
	}

	log := &models.WebhookLog{
		Provider:      providerName,
		Outcome:       result.Outcome,
		EventStatus:   event.Status,
		TransactionID: event.TransactionID,
	}
	if result.Payment != nil {
		log.PaymentID = result.Payment.ID
	}
	controller.svc.LogWebhook(ctx, log)

	return c.JSON(http.StatusOK, &responses.ReceivedResponse{Received: true})
}

func (controller *WebhookController) respondProcessingError(c echo.Context, provider psp.Provider, event *psp.WebhookEvent, result *service.ReconciliationResult, err error) error {
	ctx := c.Request().Context()
	log := &models.WebhookLog{
		Provider:      provider.Name(),
		EventStatus:   event.Status,
		TransactionID: event.TransactionID,
		FailureReason: err.Error(),
	}
	if result != nil && result.Payment != nil {
		log.PaymentID = result.Payment.ID
	}

	switch {
	case errors.Is(err, service.ErrPaymentNotFound):
		log.Outcome = common.WebhookOutcomeNotFound
		controller.svc.LogWebhook(ctx, log)
		// some providers retry indefinitely on non-2xx, they get acked
		// even when we cannot match the payment
		if provider.AcksUnknownPayments() {
			return c.JSON(http.StatusOK, &responses.ReceivedResponse{Received: true})
		}
		return c.JSON(http.StatusNotFound, responses.PaymentNotFoundError)

	case errors.Is(err, service.ErrEventIdentifierMismatch):
		log.Outcome = common.WebhookOutcomeRejected
		controller.svc.LogWebhook(ctx, log)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	var conflictErr *service.StateConflictError
	if errors.As(err, &conflictErr) {
		log.Outcome = common.WebhookOutcomeConflicted
		controller.svc.LogWebhook(ctx, log)
		return c.JSON(http.StatusConflict, responses.StateConflictError)
	}

	var escrowErr *service.InsufficientEscrowError
	if errors.As(err, &escrowErr) {
		c.Logger().Errorf("Webhook refund without escrow coverage provider:%s transaction_id:%s error: %v", provider.Name(), event.TransactionID, err)
		log.Outcome = common.WebhookOutcomeRejected
		controller.svc.LogWebhook(ctx, log)
		return c.JSON(http.StatusBadRequest, responses.InsufficientEscrowError)
	}

	c.Logger().Errorf("Webhook processing failed provider:%s transaction_id:%s error: %v", provider.Name(), event.TransactionID, err)
	log.Outcome = common.WebhookOutcomeRejected
	controller.svc.LogWebhook(ctx, log)
	return c.JSON(http.StatusInternalServerError, responses.GeneralServerError)
}
