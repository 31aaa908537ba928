package services

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mini-base/contract"
	"mini-base/domain"
	"mini-base/domain/event"
	"mini-base/errors"
	"mini-base/runtime"
)

const testTenant = domain.TenantID("33612345678")

// textRecorder is a protocol client stub that only records SendText.
type textRecorder struct {
	mu   sync.Mutex
	sent []string
}

func (c *textRecorder) SendText(_ context.Context, to, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, to+"|"+text)
	return nil
}

func (c *textRecorder) React(context.Context, string, string, string, string) error { return nil }
func (c *textRecorder) Connect() error                                              { return nil }
func (c *textRecorder) Disconnect()                                                 {}
func (c *textRecorder) Logout(context.Context) error                                { return nil }
func (c *textRecorder) IsConnected() bool                                           { return true }
func (c *textRecorder) SelfJID() string                                             { return string(testTenant) + "@s.whatsapp.net" }
func (c *textRecorder) PairPhone(context.Context, string) (string, error)           { return "", nil }
func (c *textRecorder) MarkRead(string, string, []string, time.Time) error          { return nil }
func (c *textRecorder) SendPresence(bool) error                                     { return nil }
func (c *textRecorder) SendChatPresence(string, contract.ChatPresence) error        { return nil }
func (c *textRecorder) RejectCall(string, string) error                             { return nil }
func (c *textRecorder) GroupInfo(context.Context, string) (*domain.GroupInfo, error) {
	return nil, nil
}
func (c *textRecorder) Events() <-chan event.Event { return nil }

type memOTPs struct {
	mu      sync.Mutex
	pending map[domain.TenantID]domain.PendingOTP
}

func newMemOTPs() *memOTPs { return &memOTPs{pending: make(map[domain.TenantID]domain.PendingOTP)} }

func (m *memOTPs) Save(otp domain.PendingOTP) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[otp.Tenant] = otp
	return nil
}

func (m *memOTPs) Verify(tenant domain.TenantID, code string, now time.Time) (domain.ConfigDelta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	otp, ok := m.pending[tenant]
	if !ok {
		return domain.ConfigDelta{}, errors.ErrOTPNotFound
	}
	if otp.Expired(now) {
		delete(m.pending, tenant)
		return domain.ConfigDelta{}, errors.ErrOTPExpired
	}
	if otp.Code != code {
		return domain.ConfigDelta{}, errors.ErrOTPMismatch
	}
	delete(m.pending, tenant)
	return otp.Delta, nil
}

func (m *memOTPs) savedCode(tenant domain.TenantID) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending[tenant].Code
}

type memConfigs struct {
	mu      sync.Mutex
	configs map[domain.TenantID]domain.TenantConfig
}

func newMemConfigs() *memConfigs {
	return &memConfigs{configs: make(map[domain.TenantID]domain.TenantConfig)}
}

func (m *memConfigs) Get(tenant domain.TenantID) (domain.TenantConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cfg, ok := m.configs[tenant]; ok {
		return cfg, nil
	}
	return domain.DefaultTenantConfig(), nil
}

func (m *memConfigs) Update(tenant domain.TenantID, delta domain.ConfigDelta) (domain.TenantConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.configs[tenant]
	if !ok {
		cfg = domain.DefaultTenantConfig()
	}
	cfg = delta.Apply(cfg)
	m.configs[tenant] = cfg
	return cfg, nil
}

type serviceHarness struct {
	service  *ConfigService
	registry *runtime.Registry
	client   *textRecorder
	otps     *memOTPs
	configs  *memConfigs
}

func newServiceHarness() *serviceHarness {
	h := &serviceHarness{
		registry: runtime.NewRegistry(),
		client:   &textRecorder{},
		otps:     newMemOTPs(),
		configs:  newMemConfigs(),
	}
	h.service = NewConfigService(slog.Default(), h.registry, h.configs, h.otps, 5*time.Minute)
	return h
}

func (h *serviceHarness) connect(tenant domain.TenantID) {
	h.registry.Register(tenant, &runtime.Session{
		Tenant:      tenant,
		Client:      h.client,
		ConnectedAt: time.Now().UTC(),
	})
}

func boolPtr(b bool) *bool { return &b }

func TestConfigService_RequestUpdate_Requires_Active_Session(t *testing.T) {
	req := require.New(t)
	h := newServiceHarness()

	err := h.service.RequestUpdate(context.Background(), testTenant,
		domain.ConfigDelta{AntiCall: boolPtr(true)})

	req.ErrorIs(err, errors.ErrNotConnected)
}

func TestConfigService_RequestUpdate_Rejects_Invalid_Delta(t *testing.T) {
	req := require.New(t)
	h := newServiceHarness()
	h.connect(testTenant)

	longPrefix := "####"
	err := h.service.RequestUpdate(context.Background(), testTenant,
		domain.ConfigDelta{Prefix: &longPrefix})

	req.ErrorIs(err, errors.ErrInvalidDelta)
}

func TestConfigService_Full_Flow(t *testing.T) {
	req := require.New(t)
	h := newServiceHarness()
	h.connect(testTenant)

	// Given a requested update
	err := h.service.RequestUpdate(context.Background(), testTenant,
		domain.ConfigDelta{AntiCall: boolPtr(true)})
	req.NoError(err)

	// Then the code went to the tenant's own number
	req.Len(h.client.sent, 1)
	code := h.otps.savedCode(testTenant)
	req.Len(code, 6)
	req.Contains(h.client.sent[0], testTenant.JID())
	req.Contains(h.client.sent[0], code)

	// When the code is verified
	cfg, err := h.service.Verify(context.Background(), testTenant, code)
	req.NoError(err)

	// Then the delta is applied and the tenant notified
	req.True(cfg.AntiCall)
	stored, err := h.configs.Get(testTenant)
	req.NoError(err)
	req.True(stored.AntiCall)
	req.Len(h.client.sent, 2)

	// And a replay of the same code fails
	_, err = h.service.Verify(context.Background(), testTenant, code)
	req.ErrorIs(err, errors.ErrOTPNotFound)
}

func TestConfigService_Verify_Wrong_Code(t *testing.T) {
	req := require.New(t)
	h := newServiceHarness()
	h.connect(testTenant)

	req.NoError(h.service.RequestUpdate(context.Background(), testTenant,
		domain.ConfigDelta{AntiCall: boolPtr(true)}))

	_, err := h.service.Verify(context.Background(), testTenant, "000000")
	if h.otps.savedCode(testTenant) == "000000" {
		t.Skip("drew the one colliding code")
	}
	req.ErrorIs(err, errors.ErrOTPMismatch)
}

func TestConfigService_Verify_Applies_Without_Live_Session(t *testing.T) {
	req := require.New(t)
	h := newServiceHarness()
	h.connect(testTenant)

	req.NoError(h.service.RequestUpdate(context.Background(), testTenant,
		domain.ConfigDelta{AntiCall: boolPtr(true)}))
	code := h.otps.savedCode(testTenant)

	// When the session dies before verification
	h.registry.Unregister(testTenant)

	// Then the update still applies, only the notification is skipped
	cfg, err := h.service.Verify(context.Background(), testTenant, code)
	req.NoError(err)
	req.True(cfg.AntiCall)
	req.Len(h.client.sent, 1)
}
