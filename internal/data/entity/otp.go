package entity

import "time"

// VerificationType selects which flow a submitted OTP completes. It is not
// stored on the OTP record; the flow is inferred from the request.
type VerificationType string

const (
	VerificationRegister      VerificationType = "register-verification"
	VerificationLogin         VerificationType = "login-verification"
	VerificationResetPassword VerificationType = "reset-password"
)

type OTP struct {
	BaseSimple
	OwnerKey  string    `db:"owner_key"`
	Code      string    `db:"code"`
	ExpiresAt time.Time `db:"expires_at"`
	IsUsed    bool      `db:"is_used"`
}

// Expired reports whether now is past the record's expiry.
func (o *OTP) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}
