package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/propcrowd/fundhub.go/db/models"
	"github.com/propcrowd/fundhub.go/lib/responses"
	"github.com/propcrowd/fundhub.go/lib/service"
	"github.com/propcrowd/fundhub.go/psp"
)

// InvestmentController : Investment controller struct
type InvestmentController struct {
	svc *service.FundhubService
}

func NewInvestmentController(svc *service.FundhubService) *InvestmentController {
	return &InvestmentController{svc: svc}
}

type CreateInvestmentRequestBody struct {
	ProjectID int64  `json:"project_id" validate:"required"`
	Amount    int64  `json:"amount" validate:"required,gt=0"`
	Provider  string `json:"provider" validate:"required"`
}

type Investment struct {
	ID               int64     `json:"id"`
	ProjectID        int64     `json:"project_id"`
	Amount           int64     `json:"amount"`
	Currency         string    `json:"currency"`
	Status           string    `json:"status"`
	PaymentStatus    string    `json:"payment_status"`
	FlaggedForReview bool      `json:"flagged_for_review,omitempty"`
	ConfirmedAt      time.Time `json:"confirmed_at,omitempty"`
	RefundedAt       time.Time `json:"refunded_at,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

type CreateInvestmentResponseBody struct {
	Investment Investment `json:"investment"`
	PaymentID  int64      `json:"payment_id"`
	Provider   string     `json:"provider"`
	SessionID  string     `json:"session_id"`
}

func investmentResponse(investment *models.Investment) Investment {
	return Investment{
		ID:               investment.ID,
		ProjectID:        investment.ProjectID,
		Amount:           investment.Amount,
		Currency:         investment.Currency,
		Status:           investment.Status,
		PaymentStatus:    investment.PaymentStatus,
		FlaggedForReview: investment.FlaggedForReview,
		ConfirmedAt:      investment.ConfirmedAt.Time,
		RefundedAt:       investment.RefundedAt.Time,
		CreatedAt:        investment.CreatedAt,
	}
}

// CreateInvestment godoc
// @Summary      Start an investment
// @Description  Opens a pending investment and payment; the returned session id drives the provider checkout
// @Accept       json
// @Produce      json
// @Tags         Investment
// @Param        CreateInvestmentRequest  body      CreateInvestmentRequestBody  True  "Investment to open"
// @Success      200  {object}  CreateInvestmentResponseBody
// @Failure      400  {object}  responses.ErrorResponse
// @Failure      409  {object}  responses.ErrorResponse
// @Failure      500  {object}  responses.ErrorResponse
// @Router       /v2/investments [post]
// @Security     OAuth2Password
func (controller *InvestmentController) CreateInvestment(c echo.Context) error {
	userID := c.Get("UserID").(int64)
	reqBody := CreateInvestmentRequestBody{}
	if err := c.Bind(&reqBody); err != nil {
		c.Logger().Errorf("Failed to load create investment request body user_id:%v error: %v", userID, err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&reqBody); err != nil {
		c.Logger().Errorf("Invalid create investment request body user_id:%v error: %v", userID, err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	investment, payment, err := controller.svc.InitiateInvestment(c.Request().Context(), service.InitiateInvestmentParams{
		UserID:    userID,
		ProjectID: reqBody.ProjectID,
		Amount:    reqBody.Amount,
		Provider:  reqBody.Provider,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProjectNotFound):
			return c.JSON(http.StatusNotFound, responses.ProjectNotFoundError)
		case errors.Is(err, service.ErrProjectNotOpen):
			return c.JSON(http.StatusConflict, responses.StateConflictError)
		}
		var unknownProvider *psp.UnknownProviderError
		if errors.As(err, &unknownProvider) {
			return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
		}
		c.Logger().Errorf("Failed to initiate investment user_id:%v project_id:%v error: %v", userID, reqBody.ProjectID, err)
		return c.JSON(http.StatusInternalServerError, responses.GeneralServerError)
	}

	return c.JSON(http.StatusOK, &CreateInvestmentResponseBody{
		Investment: investmentResponse(investment),
		PaymentID:  payment.ID,
		Provider:   payment.Provider,
		SessionID:  payment.SessionID,
	})
}

// GetInvestments godoc
// @Summary      Retrieve own investments
// @Description  Returns the authenticated investor's investments, newest first
// @Produce      json
// @Tags         Investment
// @Param        limit   query     int  false  "Max results"
// @Param        offset  query     int  false  "Offset"
// @Success      200  {object}  []Investment
// @Failure      500  {object}  responses.ErrorResponse
// @Router       /v2/investments [get]
// @Security     OAuth2Password
func (controller *InvestmentController) GetInvestments(c echo.Context) error {
	userID := c.Get("UserID").(int64)
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	investments, err := controller.svc.InvestmentsForUser(c.Request().Context(), userID, limit, offset)
	if err != nil {
		c.Logger().Errorf("Failed to list investments user_id:%v error: %v", userID, err)
		return c.JSON(http.StatusInternalServerError, responses.GeneralServerError)
	}

	response := make([]Investment, len(investments))
	for i := range investments {
		response[i] = investmentResponse(&investments[i])
	}
	return c.JSON(http.StatusOK, response)
}

// GetInvestment godoc
// @Summary      Retrieve one investment
// @Description  Returns one of the authenticated investor's investments with its payment status
// @Produce      json
// @Tags         Investment
// @Param        id   path      int  true  "Investment id"
// @Success      200  {object}  Investment
// @Failure      404  {object}  responses.ErrorResponse
// @Failure      500  {object}  responses.ErrorResponse
// @Router       /v2/investments/{id} [get]
// @Security     OAuth2Password
func (controller *InvestmentController) GetInvestment(c echo.Context) error {
	userID := c.Get("UserID").(int64)
	investmentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	investment, err := controller.svc.FindInvestment(c.Request().Context(), investmentID)
	if err != nil {
		if errors.Is(err, service.ErrInvestmentNotFound) {
			return c.JSON(http.StatusNotFound, responses.InvestmentNotFoundError)
		}
		c.Logger().Errorf("Failed to load investment investment_id:%v error: %v", investmentID, err)
		return c.JSON(http.StatusInternalServerError, responses.GeneralServerError)
	}
	// investments are private, do not leak other investors' records
	if investment.UserID != userID {
		return c.JSON(http.StatusNotFound, responses.InvestmentNotFoundError)
	}

	return c.JSON(http.StatusOK, investmentResponse(investment))
}
