package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/propcrowd/fundhub.go/lib/responses"
	"github.com/propcrowd/fundhub.go/lib/service"
)

// ProjectController : Project controller struct
type ProjectController struct {
	svc *service.FundhubService
}

func NewProjectController(svc *service.FundhubService) *ProjectController {
	return &ProjectController{svc: svc}
}

type CreateProjectRequestBody struct {
	Name               string `json:"name" validate:"required"`
	BeneficiaryID      string `json:"beneficiary_id"`
	Currency           string `json:"currency" validate:"omitempty,len=3"`
	TargetFunding      int64  `json:"target_funding" validate:"required,gt=0"`
	FundingDeadline    string `json:"funding_deadline" validate:"omitempty"`
	RequiresRegulatory bool   `json:"requires_regulatory"`
}

type CreateProjectResponseBody struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Currency      string `json:"currency"`
	TargetFunding int64  `json:"target_funding"`
	Status        string `json:"status"`
}

// CreateProject godoc
// @Summary      Create a project
// @Description  Registers a project open for funding
// @Accept       json
// @Produce      json
// @Tags         Project
// @Param        CreateProjectRequest  body      CreateProjectRequestBody  True  "Project to create"
// @Success      200  {object}  CreateProjectResponseBody
// @Failure      400  {object}  responses.ErrorResponse
// @Failure      500  {object}  responses.ErrorResponse
// @Router       /v2/admin/projects [post]
// @Security     OAuth2Password
func (controller *ProjectController) CreateProject(c echo.Context) error {
	reqBody := CreateProjectRequestBody{}
	if err := c.Bind(&reqBody); err != nil {
		c.Logger().Errorf("Failed to load create project request body error: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&reqBody); err != nil {
		c.Logger().Errorf("Invalid create project request body error: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	params := service.CreateProjectParams{
		Name:               reqBody.Name,
		BeneficiaryID:      reqBody.BeneficiaryID,
		Currency:           reqBody.Currency,
		TargetFunding:      reqBody.TargetFunding,
		RequiresRegulatory: reqBody.RequiresRegulatory,
	}
	if reqBody.FundingDeadline != "" {
		deadline, err := time.Parse(time.RFC3339, reqBody.FundingDeadline)
		if err != nil {
			c.Logger().Errorf("Invalid funding deadline error: %v", err)
			return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
		}
		params.FundingDeadline = deadline
	}

	project, err := controller.svc.CreateProject(c.Request().Context(), params)
	if err != nil {
		c.Logger().Errorf("Failed to create project error: %v", err)
		return c.JSON(http.StatusInternalServerError, responses.GeneralServerError)
	}

	return c.JSON(http.StatusOK, &CreateProjectResponseBody{
		ID:            project.ID,
		Name:          project.Name,
		Currency:      project.Currency,
		TargetFunding: project.TargetFunding,
		Status:        project.Status,
	})
}

// GetFundingProgress godoc
// @Summary      Retrieve funding progress
// @Description  Returns a project's public funding snapshot
// @Produce      json
// @Tags         Project
// @Param        id   path      int  true  "Project id"
// @Success      200  {object}  service.FundingProgress
// @Failure      404  {object}  responses.ErrorResponse
// @Failure      500  {object}  responses.ErrorResponse
// @Router       /v2/projects/{id}/funding [get]
func (controller *ProjectController) GetFundingProgress(c echo.Context) error {
	projectID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	progress, err := controller.svc.ProjectFundingProgress(c.Request().Context(), projectID)
	if err != nil {
		if errors.Is(err, service.ErrProjectNotFound) {
			return c.JSON(http.StatusNotFound, responses.ProjectNotFoundError)
		}
		c.Logger().Errorf("Failed to load funding progress project_id:%v error: %v", projectID, err)
		return c.JSON(http.StatusInternalServerError, responses.GeneralServerError)
	}
	return c.JSON(http.StatusOK, progress)
}
