package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/DeskFox/app/repository"
	"github.com/ManuelReschke/DeskFox/internal/pkg/lifecycle"
	"github.com/ManuelReschke/DeskFox/internal/pkg/statistics"
)

// HandleForceProtect converts a user's trial to converted_to_paid and clears
// any pending deletion schedule. Administrative rescue path.
func HandleForceProtect(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid user id"})
	}

	state, err := lifecycle.GetManager().GetReconciler().ForceProtect(c.UserContext(), userID)
	if err != nil {
		if errors.Is(err, lifecycle.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "unknown user"})
		}
		log.Errorf("[Admin] Force-protect of user %d failed: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal"})
	}
	return c.JSON(fiber.Map{"status": "protected", "access_state": state})
}

// HandleVerifyProtection reports whether a user is protected and why.
func HandleVerifyProtection(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid user id"})
	}

	repos := repository.GetGlobalFactory().GetRepositories()
	user, err := repos.User.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "unknown user"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal"})
	}
	billingLinkage, err := repos.Billing.GetLinkageByUserID(userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal"})
	}

	protected, reason := lifecycle.VerifyProtection(user, billingLinkage)
	return c.JSON(fiber.Map{"is_protected": protected, "reason": reason})
}

// HandleSystemMetrics returns the operational summary.
func HandleSystemMetrics(c *fiber.Ctx) error {
	metrics, err := statistics.GetSystemMetrics()
	if err != nil {
		log.Errorf("[Admin] Metrics aggregation failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal"})
	}
	return c.JSON(metrics)
}

// HandleRunReconcile triggers a full reconcile pass.
func HandleRunReconcile(c *fiber.Ctx) error {
	result, err := lifecycle.GetManager().RunReconcileOnce(c.UserContext())
	if err != nil {
		log.Errorf("[Admin] Manual reconcile pass failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal"})
	}
	failed := make([]uint, 0, len(result.Failed))
	for id := range result.Failed {
		failed = append(failed, id)
	}
	return c.JSON(fiber.Map{"reconciled": result.Reconciled, "failed_user_ids": failed})
}

// HandleRunSweep triggers a single deletion sweep.
func HandleRunSweep(c *fiber.Ctx) error {
	result, err := lifecycle.GetManager().RunSweepOnce(c.UserContext())
	if err != nil {
		log.Errorf("[Admin] Manual sweep failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal"})
	}
	failed := make([]uint, 0, len(result.Failed))
	for id := range result.Failed {
		failed = append(failed, id)
	}
	return c.JSON(fiber.Map{
		"run_id":          result.RunID,
		"candidates":      result.Candidates,
		"deleted":         result.Deleted,
		"failed_user_ids": failed,
	})
}
