package storage

import (
	"crypto/subtle"
	"encoding/json"
	goerrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"mini-base/domain"
	"mini-base/errors"
)

// OTPRepository persists pending verification codes. A tenant holds at
// most one pending code: saving a new one replaces the previous.
type OTPRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewOTPRepository(db *badger.DB, log *slog.Logger) OTPRepository {
	return OTPRepository{db: db, log: log}
}

func otpKey(tenant domain.TenantID) []byte {
	return []byte(fmt.Sprintf("otp:%s", tenant))
}

func (r OTPRepository) Save(otp domain.PendingOTP) error {
	bytes, err := json.Marshal(otp)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(otpKey(otp.Tenant), bytes).
			WithTTL(time.Until(otp.ExpiresAt) + time.Minute)
		return txn.SetEntry(entry)
	})
}

// Verify checks the code and consumes it atomically on success, so a
// replay of the same code fails with ErrOTPNotFound. A wrong code
// leaves the pending entry in place; an expired one is purged.
func (r OTPRepository) Verify(tenant domain.TenantID, code string, now time.Time) (domain.ConfigDelta, error) {
	var delta domain.ConfigDelta
	err := r.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(otpKey(tenant))
		if goerrors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrOTPNotFound
		}
		if err != nil {
			return err
		}

		var pending domain.PendingOTP
		if err := item.Value(func(value []byte) error {
			return json.Unmarshal(value, &pending)
		}); err != nil {
			return err
		}

		if pending.Expired(now) {
			_ = txn.Delete(otpKey(tenant))
			return errors.ErrOTPExpired
		}
		if subtle.ConstantTimeCompare([]byte(pending.Code), []byte(code)) != 1 {
			return errors.ErrOTPMismatch
		}

		delta = pending.Delta
		return txn.Delete(otpKey(tenant))
	})
	if err != nil {
		return domain.ConfigDelta{}, err
	}
	return delta, nil
}
