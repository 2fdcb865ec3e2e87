package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier writes notifications to the log instead of sending them. It is
// used when SMTP is not configured. Codes are included only in debug mode.
type LogNotifier struct {
	log   *zap.Logger
	debug bool
}

func NewLogNotifier(log *zap.Logger, debug bool) *LogNotifier {
	return &LogNotifier{log: log.With(zap.String("component", "log_notifier")), debug: debug}
}

func (n *LogNotifier) SendWelcome(_ context.Context, email string) error {
	n.log.Info("Welcome notification", zap.String("email", email))
	return nil
}

func (n *LogNotifier) SendOTPCode(_ context.Context, email, code string) error {
	fields := []zap.Field{zap.String("email", email)}
	if n.debug {
		fields = append(fields, zap.String("code", code))
	}
	n.log.Info("OTP notification", fields...)
	return nil
}

func (n *LogNotifier) SendPasswordResetNotice(_ context.Context, email string) error {
	n.log.Info("Password reset notification", zap.String("email", email))
	return nil
}

func (n *LogNotifier) NotifyAdminEvent(_ context.Context, action, actorEmail string, metadata map[string]string) error {
	n.log.Info("Admin activity",
		zap.String("action", action),
		zap.String("actor", actorEmail),
		zap.Any("metadata", metadata))
	return nil
}
