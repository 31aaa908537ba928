package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// PendingOTP binds a one-time verification code to a proposed
// configuration delta. The code is single use: it is consumed on
// successful verification, otherwise it expires.
type PendingOTP struct {
	Tenant    TenantID    `json:"tenant"`
	Code      string      `json:"code"`
	Delta     ConfigDelta `json:"delta"`
	CreatedAt time.Time   `json:"created_at"`
	ExpiresAt time.Time   `json:"expires_at"`
}

func (o PendingOTP) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// NewOTPCode draws a 6-digit numeric code from crypto/rand.
func NewOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
