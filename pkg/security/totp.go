package security

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image/png"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpDigits = otp.DigitsSix
	totpPeriod = 30
	totpSkew   = 1
	qrSize     = 200
)

// TOTPEnrollment is what a client needs to register an authenticator app.
// Nothing about it is persisted until a code is verified against Secret.
type TOTPEnrollment struct {
	Secret string
	URL    string
	QRCode string // data:image/png;base64,...
}

// TOTP generates enrollment secrets and verifies RFC 6238 codes
// (SHA1, six digits, 30s step, one step of skew either side).
type TOTP struct {
	issuer string
}

func NewTOTP(issuer string) *TOTP {
	if issuer == "" {
		issuer = "identity-core"
	}
	return &TOTP{issuer: issuer}
}

// GenerateSecret creates a random shared secret bound to label (usually the
// account email) and its provisioning URI rendered as a QR code.
func (t *TOTP) GenerateSecret(label string) (*TOTPEnrollment, error) {
	if strings.TrimSpace(label) == "" {
		return nil, errors.New("totp label must not be empty")
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      t.issuer,
		AccountName: label,
		Period:      totpPeriod,
		Digits:      totpDigits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, err
	}

	img, err := key.Image(qrSize, qrSize)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}

	return &TOTPEnrollment{
		Secret: key.Secret(),
		URL:    key.URL(),
		QRCode: "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// Verify reports whether code is valid for secret right now.
func (t *TOTP) Verify(secret, code string) bool {
	return t.VerifyAt(secret, code, time.Now())
}

// VerifyAt is Verify against an explicit instant. Malformed secrets and codes
// of the wrong shape are rejected without error.
func (t *TOTP) VerifyAt(secret, code string, at time.Time) bool {
	code = strings.TrimSpace(code)
	if len(code) != totpDigits.Length() || !isDigits(code) {
		return false
	}

	secret = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(secret), " ", ""))
	if secret == "" {
		return false
	}

	ok, err := totp.ValidateCustom(code, secret, at.UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    totpDigits,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
