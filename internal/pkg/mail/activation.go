package mail

import (
	"fmt"

	"github.com/ManuelReschke/DeskFox/app/models"
	"github.com/ManuelReschke/DeskFox/internal/pkg/env"
)

// SendActivationMail mails the signup activation link. Best-effort like the
// lifecycle mails; the caller logs and moves on when it fails.
func SendActivationMail(user *models.User) error {
	base := env.GetEnv("PUBLIC_DOMAIN", "http://localhost:4000")
	link := fmt.Sprintf("%s/api/v1/auth/activate/%s", base, user.ActivationToken)
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>welcome to DeskFox. Open <a href=\"%s\">%s</a> to activate your account.</p>",
		user.Name, link, link,
	)
	return SendMail(user.Email, "Activate your DeskFox account", body)
}
