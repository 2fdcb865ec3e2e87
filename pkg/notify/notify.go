// Package notify delivers the outbound messages of the verification flows:
// welcome mail, one-time codes, password reset notices and admin activity
// alerts.
package notify

import "context"

// Admin activity actions.
const (
	ActionAdminLogin          = "admin_login"
	ActionAdminPasswordChange = "admin_password_change"
	ActionAdminUserDelete     = "admin_user_delete"
	ActionAdminTwoFactor      = "admin_two_factor_enable"
)

// Notifier is best-effort from the caller's point of view: errors are
// reported so they can be logged, never to fail the request.
type Notifier interface {
	SendWelcome(ctx context.Context, email string) error
	SendOTPCode(ctx context.Context, email, code string) error
	SendPasswordResetNotice(ctx context.Context, email string) error
	NotifyAdminEvent(ctx context.Context, action, actorEmail string, metadata map[string]string) error
}
