package services

import (
	"dropshop/internal/domain"
	applog "dropshop/internal/log"
)

// Mailer delivers vault release notifications. Outbound email is an
// external collaborator; failures are recorded per recipient and never
// roll back a committed release.
type Mailer interface {
	SendVaultReleaseEmail(email, name, productID string, release domain.VaultRelease) error
}

// LogMailer logs instead of sending. Default wiring until a real
// provider is configured.
type LogMailer struct{}

func (LogMailer) SendVaultReleaseEmail(email, name, productID string, release domain.VaultRelease) error {
	applog.Event("mail.vault_release", map[string]any{
		"to": email, "product": productID, "release_id": release.ID, "qty": release.RestockQty,
	})
	return nil
}
