package controllers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/propcrowd/fundhub.go/lib/responses"
	"github.com/propcrowd/fundhub.go/lib/service"
)

// UserController : User controller struct
type UserController struct {
	svc *service.FundhubService
}

func NewUserController(svc *service.FundhubService) *UserController {
	return &UserController{svc: svc}
}

type CreateUserRequestBody struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password"`
}

type CreateUserResponseBody struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreateUser godoc
// @Summary      Create an investor account
// @Description  Registers an investor. A missing password is generated and returned exactly once.
// @Accept       json
// @Produce      json
// @Tags         Account
// @Param        account  body      CreateUserRequestBody  true  "Account to create"
// @Success      200      {object}  CreateUserResponseBody
// @Failure      400      {object}  responses.ErrorResponse
// @Failure      500      {object}  responses.ErrorResponse
// @Router       /v2/users [post]
func (controller *UserController) CreateUser(c echo.Context) error {
	var body CreateUserRequestBody
	if err := c.Bind(&body); err != nil {
		c.Logger().Errorf("Failed to load create user request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&body); err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	user, plainPassword, err := controller.svc.CreateUser(c.Request().Context(), body.Email, body.Password)
	if err != nil {
		c.Logger().Errorf("Failed to create user: %v", err)
		if strings.Contains(err.Error(), "duplicate") {
			return c.JSON(http.StatusBadRequest, responses.EmailTakenError)
		}
		return c.JSON(http.StatusInternalServerError, responses.GeneralServerError)
	}

	return c.JSON(http.StatusOK, &CreateUserResponseBody{
		ID:       user.ID,
		Email:    user.Email,
		Password: plainPassword,
	})
}

type AuthRequestBody struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	RefreshToken string `json:"refresh_token"`
}

type AuthResponseBody struct {
	RefreshToken string `json:"refresh_token"`
	AccessToken  string `json:"access_token"`
}

// Auth godoc
// @Summary      Authenticate
// @Description  Exchanges email/password or a refresh token for JWT tokens
// @Accept       json
// @Produce      json
// @Tags         Account
// @Param        credentials  body      AuthRequestBody  true  "Credentials"
// @Success      200          {object}  AuthResponseBody
// @Failure      401          {object}  responses.ErrorResponse
// @Router       /v2/auth [post]
func (controller *UserController) Auth(c echo.Context) error {
	var body AuthRequestBody
	if err := c.Bind(&body); err != nil {
		c.Logger().Errorf("Failed to load auth request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	if body.Email == "" || body.Password == "" {
		// To support Swagger we also look in the Form data
		params, err := c.FormParams()
		if err == nil {
			username := params.Get("username")
			password := params.Get("password")
			if username != "" && password != "" {
				body.Email = username
				body.Password = password
			}
		}
	}

	accessToken, refreshToken, err := controller.svc.GenerateToken(c.Request().Context(), body.Email, body.Password, body.RefreshToken)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, responses.BadAuthError)
	}

	return c.JSON(http.StatusOK, &AuthResponseBody{
		RefreshToken: refreshToken,
		AccessToken:  accessToken,
	})
}

type PortfolioResponseBody struct {
	UserID        int64  `json:"user_id"`
	Email         string `json:"email"`
	TotalInvested int64  `json:"total_invested"`
}

// Portfolio godoc
// @Summary      Retrieve own portfolio totals
// @Description  Returns the authenticated investor's cached investment total
// @Produce      json
// @Tags         Account
// @Success      200  {object}  PortfolioResponseBody
// @Failure      500  {object}  responses.ErrorResponse
// @Router       /v2/portfolio [get]
// @Security     OAuth2Password
func (controller *UserController) Portfolio(c echo.Context) error {
	userID := c.Get("UserID").(int64)
	user, err := controller.svc.FindUser(c.Request().Context(), userID)
	if err != nil {
		c.Logger().Errorf("Failed to load user user_id:%v error: %v", userID, err)
		return c.JSON(http.StatusInternalServerError, responses.GeneralServerError)
	}
	return c.JSON(http.StatusOK, &PortfolioResponseBody{
		UserID:        user.ID,
		Email:         user.Email,
		TotalInvested: user.TotalInvested,
	})
}
