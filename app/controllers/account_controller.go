package controllers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/DeskFox/app/models"
	"github.com/ManuelReschke/DeskFox/app/repository"
	"github.com/ManuelReschke/DeskFox/internal/pkg/lifecycle"
	"github.com/ManuelReschke/DeskFox/internal/pkg/mail"
	"github.com/ManuelReschke/DeskFox/internal/pkg/workspace"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleRegister creates a local user, starts the trial, and provisions the
// external workspace account.
func HandleRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid body"})
	}

	user, err := models.CreateUser(req.Name, req.Email, req.Password)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}
	if err := user.GenerateActivationToken(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal", "message": "could not create activation token"})
	}

	repos := repository.GetGlobalFactory().GetRepositories()
	if err := repos.User.Create(user); err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": "email already registered"})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 30*time.Second)
	defer cancel()

	reconciler := lifecycle.GetManager().GetReconciler()
	state, err := reconciler.OnAccountCreated(ctx, user.ID)
	if err != nil {
		log.Errorf("[Account] Initial reconcile for user %d failed: %v", user.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal", "message": "account created but not yet synced"})
	}

	if err := mail.SendActivationMail(user); err != nil {
		log.Warnf("[Account] Activation mail to user %d failed: %v", user.ID, err)
	}

	// Workspace provisioning is retried on the next signup attempt or by an
	// admin when the provider is down; the local account stands either way.
	ws, err := workspace.Provision(ctx, repos.Workspace, workspace.NewClientFromEnv(), user)
	if err != nil {
		log.Errorf("[Account] Workspace provisioning for user %d failed: %v", user.ID, err)
	}

	resp := fiber.Map{
		"user_id":      user.ID,
		"access_state": state,
	}
	if ws != nil {
		resp["workspace_account_id"] = ws.ExternalAccountID
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// HandleActivate completes signup by consuming the activation token.
func HandleActivate(c *fiber.Ctx) error {
	token := c.Params("token")
	if token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "missing activation token"})
	}

	repos := repository.GetGlobalFactory().GetRepositories()
	user, err := repos.User.GetByActivationToken(token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "unknown or already used activation token"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal", "message": "activation lookup failed"})
	}

	if !user.IsActive() {
		user.Activate()
		if err := repos.User.Update(user); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal", "message": "activation failed"})
		}
	}
	return c.JSON(fiber.Map{"user_id": user.ID, "status": user.Status})
}

// HandleGetAccessStatus returns the derived account state for a user,
// reconciling on demand when no cached state exists yet.
func HandleGetAccessStatus(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid user id"})
	}

	repos := repository.GetGlobalFactory().GetRepositories()
	state, err := repos.AccountState.GetByUserID(userID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal", "message": "state lookup failed"})
		}
		state, err = lifecycle.GetManager().GetReconciler().Reconcile(c.UserContext(), userID)
		if err != nil {
			if errors.Is(err, lifecycle.ErrUserNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "unknown user"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal", "message": "reconcile failed"})
		}
	}
	return c.JSON(state)
}

func parseUserID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, errors.New("invalid user id")
	}
	return uint(id), nil
}
