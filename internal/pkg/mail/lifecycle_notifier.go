package mail

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/DeskFox/app/models"
)

// LifecycleNotifier mails users about trial transitions. All sends are
// best-effort: failures are logged and never bubble up into reconciliation.
type LifecycleNotifier struct{}

// NewLifecycleNotifier creates a mail-backed lifecycle notifier.
func NewLifecycleNotifier() *LifecycleNotifier {
	return &LifecycleNotifier{}
}

// TrialExpired tells the user the trial ended and when deletion is scheduled
// unless they subscribe.
func (n *LifecycleNotifier) TrialExpired(user *models.User, deletionScheduledAt time.Time) {
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>your DeskFox trial has ended. Your workspace account will be scheduled for deletion on %s unless you subscribe before then.</p>",
		user.Name, deletionScheduledAt.Format("2006-01-02 15:04 MST"),
	)
	if err := SendMail(user.Email, "Your DeskFox trial has ended", body); err != nil {
		log.Warnf("[Mail] Trial-expired mail to user %d failed: %v", user.ID, err)
	}
}

// DeletionScheduled tells the user the account is now queued for permanent
// removal.
func (n *LifecycleNotifier) DeletionScheduled(user *models.User) {
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>your DeskFox account and the linked workspace are now scheduled for permanent deletion. Subscribing reactivates the account as long as it still exists.</p>",
		user.Name,
	)
	if err := SendMail(user.Email, "Your DeskFox account is scheduled for deletion", body); err != nil {
		log.Warnf("[Mail] Deletion-scheduled mail to user %d failed: %v", user.ID, err)
	}
}
