package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/propcrowd/fundhub.go/lib/responses"
	"github.com/propcrowd/fundhub.go/lib/service"
	"github.com/propcrowd/fundhub.go/psp"
)

// RefundController : Refund controller struct
type RefundController struct {
	svc *service.FundhubService
}

func NewRefundController(svc *service.FundhubService) *RefundController {
	return &RefundController{svc: svc}
}

type RefundInvestmentRequestBody struct {
	Reason string `json:"reason"`
}

type RefundResponseBody struct {
	RefundID         int64  `json:"refund_id"`
	PaymentID        int64  `json:"payment_id"`
	InvestmentID     int64  `json:"investment_id"`
	Amount           int64  `json:"amount"`
	Reason           string `json:"reason"`
	Status           string `json:"status"`
	ProviderRefundID string `json:"provider_refund_id,omitempty"`
}

// RefundInvestment godoc
// @Summary      Refund one investment
// @Description  Refunds a confirmed investment through its payment provider and reverses its effects
// @Accept       json
// @Produce      json
// @Tags         Admin
// @Param        id                       path      int                          true   "Investment id"
// @Param        RefundInvestmentRequest  body      RefundInvestmentRequestBody  false  "Refund reason"
// @Success      200  {object}  RefundResponseBody
// @Failure      400  {object}  responses.ErrorResponse
// @Failure      404  {object}  responses.ErrorResponse
// @Failure      409  {object}  responses.ErrorResponse
// @Failure      502  {object}  responses.ErrorResponse
// @Router       /v2/admin/investments/{id}/refund [post]
// @Security     OAuth2Password
func (controller *RefundController) RefundInvestment(c echo.Context) error {
	investmentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	reqBody := RefundInvestmentRequestBody{}
	if err := c.Bind(&reqBody); err != nil {
		c.Logger().Errorf("Failed to load refund request body investment_id:%v error: %v", investmentID, err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	refund, err := controller.svc.RefundInvestment(c.Request().Context(), investmentID, reqBody.Reason)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvestmentNotFound):
			return c.JSON(http.StatusNotFound, responses.InvestmentNotFoundError)
		case errors.Is(err, service.ErrPaymentNotFound):
			return c.JSON(http.StatusNotFound, responses.PaymentNotFoundError)
		}
		var conflictErr *service.StateConflictError
		if errors.As(err, &conflictErr) {
			return c.JSON(http.StatusConflict, responses.StateConflictError)
		}
		var escrowErr *service.InsufficientEscrowError
		if errors.As(err, &escrowErr) {
			return c.JSON(http.StatusBadRequest, responses.InsufficientEscrowError)
		}
		var callErr *psp.CallError
		if errors.As(err, &callErr) {
			c.Logger().Errorf("Refund provider call failed investment_id:%v error: %v", investmentID, err)
			return c.JSON(http.StatusBadGateway, responses.ProviderCallError)
		}
		c.Logger().Errorf("Refund failed investment_id:%v error: %v", investmentID, err)
		return c.JSON(http.StatusInternalServerError, responses.GeneralServerError)
	}

	return c.JSON(http.StatusOK, &RefundResponseBody{
		RefundID:         refund.ID,
		PaymentID:        refund.PaymentID,
		InvestmentID:     refund.InvestmentID,
		Amount:           refund.Amount,
		Reason:           refund.Reason,
		Status:           refund.Status,
		ProviderRefundID: refund.ProviderRefundID,
	})
}

type CancelProjectRequestBody struct {
	Reason string `json:"reason"`
}

// CancelProject godoc
// @Summary      Cancel a project and refund investors
// @Description  Marks the project cancelled, then refunds every confirmed investment. Failures are recorded and retried by rerunning.
// @Accept       json
// @Produce      json
// @Tags         Admin
// @Param        id                    path      int                       true   "Project id"
// @Param        CancelProjectRequest  body      CancelProjectRequestBody  false  "Cancellation reason"
// @Success      200  {object}  service.BulkRefundResult
// @Failure      404  {object}  responses.ErrorResponse
// @Failure      500  {object}  responses.ErrorResponse
// @Router       /v2/admin/projects/{id}/cancel [post]
// @Security     OAuth2Password
func (controller *RefundController) CancelProject(c echo.Context) error {
	projectID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	reqBody := CancelProjectRequestBody{}
	if err := c.Bind(&reqBody); err != nil {
		c.Logger().Errorf("Failed to load cancel request body project_id:%v error: %v", projectID, err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	result, err := controller.svc.CancelProjectWithRefunds(c.Request().Context(), projectID, reqBody.Reason)
	if err != nil {
		if errors.Is(err, service.ErrProjectNotFound) {
			return c.JSON(http.StatusNotFound, responses.ProjectNotFoundError)
		}
		c.Logger().Errorf("Project cancellation failed project_id:%v error: %v", projectID, err)
		return c.JSON(http.StatusInternalServerError, responses.GeneralServerError)
	}

	return c.JSON(http.StatusOK, result)
}

// RetryFailedRefunds godoc
// @Summary      Retry failed refunds
// @Description  Re-runs provider refunds previously recorded as failed for a project
// @Produce      json
// @Tags         Admin
// @Param        id   path      int  true  "Project id"
// @Success      200  {object}  service.BulkRefundResult
// @Failure      500  {object}  responses.ErrorResponse
// @Router       /v2/admin/projects/{id}/refunds/retry [post]
// @Security     OAuth2Password
func (controller *RefundController) RetryFailedRefunds(c echo.Context) error {
	projectID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	result, err := controller.svc.RetryFailedRefunds(c.Request().Context(), projectID)
	if err != nil {
		c.Logger().Errorf("Refund retry failed project_id:%v error: %v", projectID, err)
		return c.JSON(http.StatusInternalServerError, responses.GeneralServerError)
	}
	return c.JSON(http.StatusOK, result)
}
