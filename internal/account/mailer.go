package account

import (
	"context"
	"fmt"
	"log/slog"
)

// LogMailer writes the verification link to the log instead of sending mail.
// It stands in for a real delivery backend in development and tests.
type LogMailer struct {
	baseURL string
}

func NewLogMailer(baseURL string) *LogMailer {
	return &LogMailer{baseURL: baseURL}
}

func (m *LogMailer) SendVerificationEmail(ctx context.Context, to, username, token string) error {
	slog.InfoContext(ctx, "account: verification email",
		"to", to,
		"username", username,
		"link", fmt.Sprintf("%s/accounts/verify/%s", m.baseURL, token),
	)
	return nil
}
