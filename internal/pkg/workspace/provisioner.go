package workspace

import (
	"context"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/ManuelReschke/DeskFox/app/models"
	"github.com/ManuelReschke/DeskFox/app/repository"
)

// Provision creates the external workspace account for a user (idempotently)
// and records the linkage locally. Safe to call again after a partial
// failure: creation replays return the existing account.
func Provision(ctx context.Context, repo repository.WorkspaceRepository, client *Client, user *models.User) (*models.WorkspaceAccount, error) {
	if existing, err := repo.GetByUserID(user.ID); err != nil {
		return nil, err
	} else if existing != nil && existing.Status != models.WorkspaceStatusDeleted {
		return existing, nil
	}

	account, err := client.CreateAccount(ctx, user.ID, user.Email, uuid.New().String())
	if err != nil {
		return nil, err
	}

	linkage := &models.WorkspaceAccount{
		UserID:            user.ID,
		ExternalAccountID: account.ExternalAccountID,
		ExternalEmail:     account.Email,
		Status:            models.WorkspaceStatusActive,
	}
	if err := repo.Upsert(linkage); err != nil {
		// The external account exists but the linkage write failed; the next
		// provisioning attempt resolves it via the conflict path.
		log.Errorf("[Workspace] Linkage write for user %d failed after provisioning: %v", user.ID, err)
		return nil, err
	}

	log.Infof("[Workspace] Provisioned account %s for user %d", account.ExternalAccountID, user.ID)
	return linkage, nil
}
