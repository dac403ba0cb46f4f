// Package notify delivers user-facing notifications.
package notify

import (
	"context"

	"go.uber.org/zap"
)

// Notifier sends out-of-band messages to users.
type Notifier interface {
	PasswordReset(ctx context.Context, email, fullName, link string) error
	WithdrawalStatusChanged(ctx context.Context, email string, withdrawal WithdrawalNotice) error
}

// WithdrawalNotice is the part of a withdrawal a user is told about.
type WithdrawalNotice struct {
	ID     string
	Amount string
	Status string
}

// Preferences reports whether outbound email is switched on.
type Preferences interface {
	EmailNotificationsEnabled(ctx context.Context) bool
}

// LogNotifier writes notifications to the structured log instead of a mail
// relay. Messages are dropped while email notifications are disabled.
type LogNotifier struct {
	prefs  Preferences
	logger *zap.Logger
}

func NewLogNotifier(prefs Preferences, logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.L()
	}
	return &LogNotifier{prefs: prefs, logger: logger.Named("notify")}
}

func (n *LogNotifier) PasswordReset(ctx context.Context, email, fullName, link string) error {
	if !n.enabled(ctx) {
		n.logger.Debug("password reset notification suppressed", zap.String("email", email))
		return nil
	}
	n.logger.Info("password reset requested",
		zap.String("email", email),
		zap.String("full_name", fullName),
		zap.String("link", link),
	)
	return nil
}

func (n *LogNotifier) WithdrawalStatusChanged(ctx context.Context, email string, w WithdrawalNotice) error {
	if !n.enabled(ctx) {
		return nil
	}
	n.logger.Info("withdrawal status changed",
		zap.String("email", email),
		zap.String("withdrawal_id", w.ID),
		zap.String("amount", w.Amount),
		zap.String("status", w.Status),
	)
	return nil
}

func (n *LogNotifier) enabled(ctx context.Context) bool {
	if n.prefs == nil {
		return true
	}
	return n.prefs.EmailNotificationsEnabled(ctx)
}
