package transport

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/propcrowd/fundhub.go/controllers"
	"github.com/propcrowd/fundhub.go/lib/service"
)

// RegisterWebhookEndpoints mounts the provider notification surface. The
// route is public, providers authenticate through signatures and source
// IPs inside the adapter, not through tokens.
func RegisterWebhookEndpoints(svc *service.FundhubService, e *echo.Echo, logMw echo.MiddlewareFunc) {
	webhookCtrl := controllers.NewWebhookController(svc)
	e.POST("/webhooks/:provider", webhookCtrl.HandleWebhook,
		middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(svc.Config.WebhookRateLimit))), logMw)
}

func RegisterV2Endpoints(svc *service.FundhubService, e *echo.Echo, secured *echo.Group, securedWithStrictRateLimit *echo.Group, strictRateLimitMiddleware echo.MiddlewareFunc, adminMw echo.MiddlewareFunc, logMw echo.MiddlewareFunc) {
	userCtrl := controllers.NewUserController(svc)
	e.POST("/auth", userCtrl.Auth, logMw)
	if svc.Config.AllowUserCreation {
		e.POST("/v2/users", userCtrl.CreateUser, strictRateLimitMiddleware, logMw)
	}

	// Funding progress is the one public read surface; it is cached so a
	// crowdfunding widget polling it does not hit the database per view.
	projectCtrl := controllers.NewProjectController(svc)
	e.GET("/v2/projects/:id/funding", projectCtrl.GetFundingProgress, CreateCacheClient().Middleware(), logMw)

	investmentCtrl := controllers.NewInvestmentController(svc)
	securedWithStrictRateLimit.POST("/v2/investments", investmentCtrl.CreateInvestment)
	secured.GET("/v2/investments", investmentCtrl.GetInvestments)
	secured.GET("/v2/investments/:id", investmentCtrl.GetInvestment)
	secured.GET("/v2/portfolio", userCtrl.Portfolio)

	// Operator surface. Every route carries the admin token middleware,
	// the mutating ones additionally the strict rate limit.
	releaseCtrl := controllers.NewReleaseController(svc)
	refundCtrl := controllers.NewRefundController(svc)
	adminCtrl := controllers.NewAdminController(svc)
	e.POST("/v2/admin/projects", projectCtrl.CreateProject, adminMw, logMw)
	e.GET("/v2/admin/projects/:id/release", releaseCtrl.EvaluateRelease, adminMw, logMw)
	e.POST("/v2/admin/projects/:id/release", releaseCtrl.ExecuteRelease, strictRateLimitMiddleware, adminMw, logMw)
	e.PUT("/v2/admin/projects/:id/override", releaseCtrl.SetOverrides, adminMw, logMw)
	e.POST("/v2/admin/projects/:id/cancel", refundCtrl.CancelProject, strictRateLimitMiddleware, adminMw, logMw)
	e.POST("/v2/admin/projects/:id/refunds/retry", refundCtrl.RetryFailedRefunds, strictRateLimitMiddleware, adminMw, logMw)
	e.POST("/v2/admin/investments/:id/refund", refundCtrl.RefundInvestment, strictRateLimitMiddleware, adminMw, logMw)
	e.GET("/v2/admin/investments/flagged", adminCtrl.FlaggedInvestments, adminMw, logMw)
	e.GET("/v2/admin/projects/:id/escrow", adminCtrl.EscrowLedger, adminMw, logMw)
	e.GET("/v2/admin/projects/:id/consistency", adminCtrl.ProjectConsistency, adminMw, logMw)
	e.GET("/v2/admin/users/:id/consistency", adminCtrl.UserConsistency, adminMw, logMw)
	e.GET("/v2/admin/webhooks", adminCtrl.WebhookLogs, adminMw, logMw)

	e.GET("/health", controllers.NewHealthController().Check)
}
