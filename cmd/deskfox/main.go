package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ManuelReschke/DeskFox/app/repository"
	"github.com/ManuelReschke/DeskFox/internal/pkg/cache"
	"github.com/ManuelReschke/DeskFox/internal/pkg/database"
	"github.com/ManuelReschke/DeskFox/internal/pkg/env"
	"github.com/ManuelReschke/DeskFox/internal/pkg/lifecycle"
	"github.com/ManuelReschke/DeskFox/internal/pkg/mail"
	"github.com/ManuelReschke/DeskFox/internal/pkg/router"
)

func main() {
	app := NewApplication()

	// shut down background workers before the HTTP listener dies
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		lifecycle.GetManager().Stop()
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	repository.InitGlobalFactory(database.GetDB())

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName: "DeskFox",
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("ADMIN_API_USER", "admin"): env.GetEnv("ADMIN_API_PASSWORD", ""),
		},
	}), monitor.New())

	// ROUTER
	router.InstallRouter(app)

	// background reconciliation + deletion sweeps
	manager := lifecycle.GetManager()
	manager.GetReconciler().SetNotifier(mail.NewLifecycleNotifier())
	manager.Start()

	return app
}
