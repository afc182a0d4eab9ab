package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/propcrowd/fundhub.go/lib/responses"
	"github.com/propcrowd/fundhub.go/lib/service"
	"github.com/propcrowd/fundhub.go/psp"
)

// ReleaseController : Escrow release controller struct
type ReleaseController struct {
	svc *service.FundhubService
}

func NewReleaseController(svc *service.FundhubService) *ReleaseController {
	return &ReleaseController{svc: svc}
}

type ReleaseConditionsResponseBody struct {
	responses.ErrorResponse
	UnmetConditions []service.ReleaseCondition `json:"unmet_conditions"`
}

type EvaluateReleaseResponseBody struct {
	ProjectID  int64                      `json:"project_id"`
	Releasable bool                       `json:"releasable"`
	Conditions []service.ReleaseCondition `json:"conditions"`
}

// EvaluateRelease godoc
// @Summary      Evaluate release conditions
// @Description  Reports every release condition of a project without executing anything
// @Produce      json
// @Tags         Admin
// @Param        id   path      int  true  "Project id"
// @Success      200  {object}  EvaluateReleaseResponseBody
// @Failure      404  {object}  responses.ErrorResponse
// @Router       /v2/admin/projects/{id}/release [get]
// @Security     OAuth2Password
func (controller *ReleaseController) EvaluateRelease(c echo.Context) error {
	projectID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	project, err := controller.svc.FindProject(c.Request().Context(), projectID)
	if err != nil {
		if errors.Is(err, service.ErrProjectNotFound) {
			return c.JSON(http.StatusNotFound, responses.ProjectNotFoundError)
		}
		return c.JSON(http.StatusInternalServerError, responses.GeneralServerError)
	}

	conditions := service.EvaluateReleaseConditions(project, time.Now())
	releasable := true
	for _, condition := range conditions {
		if !condition.Met {
			releasable = false
		}
	}
	return c.JSON(http.StatusOK, &EvaluateReleaseResponseBody{
		ProjectID:  projectID,
		Releasable: releasable,
		Conditions: conditions,
	})
}

// ExecuteRelease godoc
// @Summary      Release escrowed funds
// @Description  Checks release conditions and pays the project's escrow out to its beneficiary
// @Produce      json
// @Tags         Admin
// @Param        id   path      int  true  "Project id"
// @Success      200  {object}  service.ReleaseResult
// @Failure      400  {object}  ReleaseConditionsResponseBody
// @Failure      404  {object}  responses.ErrorResponse
// @Failure      409  {object}  responses.ErrorResponse
// @Failure      502  {object}  responses.ErrorResponse
// @Router       /v2/admin/projects/{id}/release [post]
// @Security     OAuth2Password
func (controller *ReleaseController) ExecuteRelease(c echo.Context) error {
	projectID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	result, err := controller.svc.ExecuteRelease(c.Request().Context(), projectID)
	if err != nil {
		var conditionsErr *service.ReleaseConditionsError
		if errors.As(err, &conditionsErr) {
			return c.JSON(http.StatusBadRequest, &ReleaseConditionsResponseBody{
				ErrorResponse:   responses.ReleaseConditionsError,
				UnmetConditions: conditionsErr.Unmet,
			})
		}
		switch {
		case errors.Is(err, service.ErrProjectNotFound):
			return c.JSON(http.StatusNotFound, responses.ProjectNotFoundError)
		case errors.Is(err, service.ErrReleaseNotClaimable):
			return c.JSON(http.StatusConflict, responses.StateConflictError)
		}
		var callErr *psp.CallError
		if errors.As(err, &callErr) {
			c.Logger().Errorf("Release payout provider call failed project_id:%v error: %v", projectID, err)
			return c.JSON(http.StatusBadGateway, responses.ProviderCallError)
		}
		c.Logger().Errorf("Release failed project_id:%v error: %v", projectID, err)
		return c.JSON(http.StatusInternalServerError, responses.GeneralServerError)
	}

	return c.JSON(http.StatusOK, result)
}

type ProjectOverrideRequestBody struct {
	ReleaseOverride    *bool `json:"release_override"`
	RegulatoryApproved *bool `json:"regulatory_approved"`
}

type ProjectOverrideResponseBody struct {
	ProjectID          int64 `json:"project_id"`
	ReleaseOverride    bool  `json:"release_override"`
	RegulatoryApproved bool  `json:"regulatory_approved"`
}

// SetOverrides godoc
// @Summary      Set release overrides
// @Description  Records operator decisions feeding the release conditions
// @Accept       json
// @Produce      json
// @Tags         Admin
// @Param        id                      path      int                         true  "Project id"
// @Param        ProjectOverrideRequest  body      ProjectOverrideRequestBody  True  "Overrides to set"
// @Success      200  {object}  ProjectOverrideResponseBody
// @Failure      404  {object}  responses.ErrorResponse
// @Router       /v2/admin/projects/{id}/override [put]
// @Security     OAuth2Password
func (controller *ReleaseController) SetOverrides(c echo.Context) error {
	projectID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	reqBody := ProjectOverrideRequestBody{}
	if err := c.Bind(&reqBody); err != nil {
		c.Logger().Errorf("Failed to load override request body project_id:%v error: %v", projectID, err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	project, err := controller.svc.SetProjectOverrides(c.Request().Context(), projectID, service.ProjectOverrideParams{
		ReleaseOverride:    reqBody.ReleaseOverride,
		RegulatoryApproved: reqBody.RegulatoryApproved,
	})
	if err != nil {
		if errors.Is(err, service.ErrProjectNotFound) {
			return c.JSON(http.StatusNotFound, responses.ProjectNotFoundError)
		}
		c.Logger().Errorf("Failed to set overrides project_id:%v error: %v", projectID, err)
		return c.JSON(http.StatusInternalServerError, responses.GeneralServerError)
	}

	return c.JSON(http.StatusOK, &ProjectOverrideResponseBody{
		ProjectID:          project.ID,
		ReleaseOverride:    project.ReleaseOverride,
		RegulatoryApproved: project.RegulatoryApproved,
	})
}
