// Package services hosts the flows that sit between the HTTP surface
// and the runtime: today the OTP-gated configuration update.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"mini-base/contract"
	"mini-base/domain"
	"mini-base/errors"
	"mini-base/runtime"
)

var validate = validator.New()

// ConfigService runs the two-step configuration update: a proposed
// delta is parked behind a one-time code sent to the tenant's own
// number, and applied only when that code comes back.
type ConfigService struct {
	log      *slog.Logger
	registry *runtime.Registry
	configs  contract.ConfigRepository
	otps     contract.OTPRepository
	validity time.Duration
}

func NewConfigService(
	log *slog.Logger,
	registry *runtime.Registry,
	configs contract.ConfigRepository,
	otps contract.OTPRepository,
	validity time.Duration,
) *ConfigService {
	return &ConfigService{
		log:      log,
		registry: registry,
		configs:  configs,
		otps:     otps,
		validity: validity,
	}
}

// RequestUpdate validates the delta, generates a code, parks the
// pending update and sends the code to the tenant over its own live
// session. Requires an active session: the code delivery channel is
// the session itself.
func (s *ConfigService) RequestUpdate(ctx context.Context, tenant domain.TenantID, delta domain.ConfigDelta) error {
	if err := validate.Struct(delta); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidDelta, err)
	}

	session, ok := s.registry.Get(tenant)
	if !ok {
		return errors.ErrNotConnected
	}

	code, err := domain.NewOTPCode()
	if err != nil {
		return fmt.Errorf("otp generation: %w", err)
	}

	now := time.Now().UTC()
	otp := domain.PendingOTP{
		Tenant:    tenant,
		Code:      code,
		Delta:     delta,
		CreatedAt: now,
		ExpiresAt: now.Add(s.validity),
	}
	if err := s.otps.Save(otp); err != nil {
		return fmt.Errorf("otp save: %w", err)
	}

	text := fmt.Sprintf("Your configuration update code is %s. It expires in %s.",
		code, s.validity.Round(time.Second))
	if err := session.Client.SendText(ctx, tenant.JID(), text); err != nil {
		return fmt.Errorf("otp delivery: %w", err)
	}

	s.log.Info("config update code sent", "tenant", tenant, "expires_at", otp.ExpiresAt)
	return nil
}

// Verify consumes the code and applies the parked delta. The tenant is
// notified over its session when one is still live; a dead session
// does not block the update.
func (s *ConfigService) Verify(ctx context.Context, tenant domain.TenantID, code string) (domain.TenantConfig, error) {
	delta, err := s.otps.Verify(tenant, code, time.Now().UTC())
	if err != nil {
		return domain.TenantConfig{}, err
	}

	cfg, err := s.configs.Update(tenant, delta)
	if err != nil {
		return domain.TenantConfig{}, fmt.Errorf("config update for %s: %w", tenant, err)
	}

	if session, ok := s.registry.Get(tenant); ok {
		if err := session.Client.SendText(ctx, tenant.JID(), "Configuration updated ✅"); err != nil {
			s.log.Debug("config update notification failed", "tenant", tenant, "error", err)
		}
	}

	s.log.Info("config update applied", "tenant", tenant)
	return cfg, nil
}
