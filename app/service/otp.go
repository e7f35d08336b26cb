package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"math/big"
	"time"

	"github.com/vibast-solutions/ms-go-inventory/app/entity"
)

const (
	defaultOTPLength = 6
	resetTokenBytes  = 32
	maxOTPAttempts   = 5
)

// GenerateOTP returns a uniformly random numeric code of the given length.
func GenerateOTP(length int) (string, error) {
	if length <= 0 {
		length = defaultOTPLength
	}
	digits := make([]byte, length)
	ten := big.NewInt(10)
	for i := range digits {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}

// GenerateResetToken returns 32 random bytes, hex encoded.
func GenerateResetToken() (string, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

type otpLookup interface {
	FindByActiveOTP(ctx context.Context, otp string, now time.Time) (*entity.User, error)
}

// uniqueSignupOTP draws codes until one is not held by another pending signup, since
// verification looks users up by code alone.
func uniqueSignupOTP(ctx context.Context, users otpLookup, length int, now time.Time) (string, error) {
	for attempt := 0; attempt < maxOTPAttempts; attempt++ {
		code, err := GenerateOTP(length)
		if err != nil {
			return "", err
		}
		holder, err := users.FindByActiveOTP(ctx, code, now)
		if err != nil {
			return "", err
		}
		if holder == nil {
			return code, nil
		}
	}
	return "", errors.New("could not allocate a unique signup code")
}
