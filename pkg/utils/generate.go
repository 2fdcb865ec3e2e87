package utils

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const defaultOTPLength = 6

var digitSpace = big.NewInt(10)

// GenerateOTP creates a numeric OTP of the given length from crypto/rand.
// Leading zeros are kept, so every code has exactly length digits.
func GenerateOTP(length int) (string, error) {
	if length <= 0 {
		length = defaultOTPLength
	}

	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, digitSpace)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	return b.String(), nil
}
