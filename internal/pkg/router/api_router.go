package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/DeskFox/app/controllers"
	"github.com/ManuelReschke/DeskFox/internal/pkg/env"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")

	v1.Post("/auth/register", controllers.HandleRegister)
	v1.Get("/auth/activate/:token", controllers.HandleActivate)
	v1.Get("/account/:id/access", controllers.HandleGetAccessStatus)

	// Billing webhooks authenticate via signature, not basic auth.
	v1.Post("/webhooks/billing", controllers.HandleBillingWebhook)

	admin := v1.Group("/admin", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("ADMIN_API_USER", "admin"): env.GetEnv("ADMIN_API_PASSWORD", ""),
		},
	}))
	admin.Post("/users/:id/force-protect", controllers.HandleForceProtect)
	admin.Get("/users/:id/verify-protection", controllers.HandleVerifyProtection)
	admin.Get("/metrics/system", controllers.HandleSystemMetrics)
	admin.Post("/reconcile", controllers.HandleRunReconcile)
	admin.Post("/sweep", controllers.HandleRunSweep)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
