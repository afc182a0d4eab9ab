package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/propcrowd/fundhub.go/db/models"
	"github.com/propcrowd/fundhub.go/lib/responses"
	"github.com/propcrowd/fundhub.go/lib/service"
)

// AdminController : Operator tooling controller struct
//
// Read-only views over the reconciliation trail: flagged investments,
// the escrow ledger and cache-vs-recompute consistency probes. Mutating
// operator actions live on the release and refund controllers.
type AdminController struct {
	svc *service.FundhubService
}

func NewAdminController(svc *service.FundhubService) *AdminController {
	return &AdminController{svc: svc}
}

type FlaggedInvestment struct {
	Investment
	UserID int64 `json:"user_id"`
}

// FlaggedInvestments godoc
// @Summary      List investments flagged for review
// @Description  Returns investments marked by chargebacks or conflicting provider events, most recently touched first
// @Produce      json
// @Tags         Admin
// @Success      200  {object}  []FlaggedInvestment
// @Failure      500  {object}  responses.ErrorResponse
// @Router       /v2/admin/investments/flagged [get]
// @Security     OAuth2Password
func (controller *AdminController) FlaggedInvestments(c echo.Context) error {
	investments, err := controller.svc.InvestmentsFlaggedForReview(c.Request().Context())
	if err != nil {
		c.Logger().Errorf("Failed to list flagged investments: %v", err)
		return c.JSON(http.StatusInternalServerError, responses.GeneralServerError)
	}

	response := make([]FlaggedInvestment, 0, len(investments))
	for i := range investments {
		response = append(response, FlaggedInvestment{
			Investment: investmentResponse(&investments[i]),
			UserID:     investments[i].UserID,
		})
	}
	return c.JSON(http.StatusOK, response)
}

type EscrowLedgerResponseBody struct {
	ProjectID int64                  `json:"project_id"`
	Accounts  []models.EscrowAccount `json:"accounts"`
	Entries   []models.EscrowEntry   `json:"entries"`
}

// EscrowLedger godoc
// @Summary      Inspect a project's escrow ledger
// @Description  Returns every escrow account and append-only ledger entry of a project
// @Produce      json
// @Tags         Admin
// @Param        id   path      int  true  "Project id"
// @Success      200  {object}  EscrowLedgerResponseBody
// @Failure      404  {object}  responses.ErrorResponse
// @Failure      500  {object}  responses.ErrorResponse
// @Router       /v2/admin/projects/{id}/escrow [get]
// @Security     OAuth2Password
func (controller *AdminController) EscrowLedger(c echo.Context) error {
	projectID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	ctx := c.Request().Context()

	if _, err := controller.svc.FindProject(ctx, projectID); err != nil {
		if errors.Is(err, service.ErrProjectNotFound) {
			return c.JSON(http.StatusNotFound, responses.ProjectNotFoundError)
		}
		return c.JSON(http.StatusInternalServerError, responses.GeneralServerError)
	}

	accounts, err := controller.svc.EscrowAccountsForProject(ctx, projectID)
	if err != nil {
		c.Logger().Errorf("Failed to load escrow accounts project_id:%v error: %v", projectID, err)
		return c.JSON(http.StatusInternalServerError, responses.GeneralServerError)
	}
	entries, err := controller.svc.EscrowEntriesForProject(ctx, projectID)
	if err != nil {
		c.Logger().Errorf("Failed to load escrow entries project_id:%v error: %v", projectID, err)
		return c.JSON(http.StatusInternalServerError, responses.GeneralServerError)
	}

	return c.JSON(http.StatusOK, &EscrowLedgerResponseBody{
		ProjectID: projectID,
		Accounts:  accounts,
		Entries:   entries,
	})
}

type FundingConsistencyResponseBody struct {
	ProjectID       int64 `json:"project_id"`
	CachedFunding   int64 `json:"cached_funding"`
	ComputedFunding int64 `json:"computed_funding"`
	Consistent      bool  `json:"consistent"`
}

// ProjectConsistency godoc
// @Summary      Probe a project's funding counter
// @Description  Recomputes current funding from confirmed investments and compares it with the cached counter
// @Produce      json
// @Tags         Admin
// @Param        id   path      int  true  "Project id"
// @Success      200  {object}  FundingConsistencyResponseBody
// @Failure      404  {object}  responses.ErrorResponse
// @Router       /v2/admin/projects/{id}/consistency [get]
// @Security     OAuth2Password
func (controller *AdminController) ProjectConsistency(c echo.Context) error {
	projectID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	cached, computed, err := controller.svc.CheckProjectFunding(c.Request().Context(), projectID)
	if err != nil {
		if errors.Is(err, service.ErrProjectNotFound) {
			return c.JSON(http.StatusNotFound, responses.ProjectNotFoundError)
		}
		c.Logger().Errorf("Failed to check project funding project_id:%v error: %v", projectID, err)
		return c.JSON(http.StatusInternalServerError, responses.GeneralServerError)
	}

	return c.JSON(http.StatusOK, &FundingConsistencyResponseBody{
		ProjectID:       projectID,
		CachedFunding:   cached,
		ComputedFunding: computed,
		Consistent:      cached == computed,
	})
}

type InvestedTotalConsistencyResponseBody struct {
	UserID        int64 `json:"user_id"`
	CachedTotal   int64 `json:"cached_total"`
	ComputedTotal int64 `json:"computed_total"`
	Consistent    bool  `json:"consistent"`
}

// UserConsistency godoc
// @Summary      Probe an investor's cached total
// @Description  Recomputes the invested total from confirmed investments and compares it with the cached counter
// @Produce      json
// @Tags         Admin
// @Param        id   path      int  true  "User id"
// @Success      200  {object}  InvestedTotalConsistencyResponseBody
// @Failure      404  {object}  responses.ErrorResponse
// @Router       /v2/admin/users/{id}/consistency [get]
// @Security     OAuth2Password
func (controller *AdminController) UserConsistency(c echo.Context) error {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	cached, computed, err := controller.svc.CheckUserInvestedTotal(c.Request().Context(), userID)
	if err != nil {
		c.Logger().Errorf("Failed to check invested total user_id:%v error: %v", userID, err)
		return c.JSON(http.StatusInternalServerError, responses.GeneralServerError)
	}

	return c.JSON(http.StatusOK, &InvestedTotalConsistencyResponseBody{
		UserID:        userID,
		CachedTotal:   cached,
		ComputedTotal: computed,
		Consistent:    cached == computed,
	})
}

// WebhookLogs godoc
// @Summary      List recent webhook deliveries
// @Description  Returns the latest webhook delivery records, optionally filtered by provider and outcome
// @Produce      json
// @Tags         Admin
// @Param        provider  query     string  false  "Provider filter"
// @Param        outcome   query     string  false  "Outcome filter"
// @Param        limit     query     int     false  "Max rows, default 100"
// @Success      200  {object}  []models.WebhookLog
// @Failure      500  {object}  responses.ErrorResponse
// @Router       /v2/admin/webhooks [get]
// @Security     OAuth2Password
func (controller *AdminController) WebhookLogs(c echo.Context) error {
	limit := 100
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
		}
		if parsed < limit {
			limit = parsed
		}
	}

	logs, err := controller.svc.RecentWebhookLogs(c.Request().Context(), c.QueryParam("provider"), c.QueryParam("outcome"), limit)
	if err != nil {
		c.Logger().Errorf("Failed to list webhook logs: %v", err)
		return c.JSON(http.StatusInternalServerError, responses.GeneralServerError)
	}
	return c.JSON(http.StatusOK, logs)
}
