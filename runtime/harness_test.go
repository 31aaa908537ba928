package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"mini-base/contract"
	"mini-base/domain"
	"mini-base/domain/event"
	"mini-base/errors"
)

func testLogger() *slog.Logger { return slog.Default() }

// fakeClient is a scriptable protocol client: tests push events on the
// channel to drive the supervisor's pump.
type fakeClient struct {
	mu         sync.Mutex
	events     chan event.Event
	connectErr error
	pairCode   string
	pairErr    error

	connected    bool
	loggedOut    bool
	disconnected bool
	pairCalls    int
	sent         []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{events: make(chan event.Event, 16), pairCode: "ABCD-1234"}
}

func (c *fakeClient) SendText(_ context.Context, to, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, to+"|"+text)
	return nil
}

func (c *fakeClient) React(context.Context, string, string, string, string) error { return nil }

func (c *fakeClient) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connectErr != nil {
		return c.connectErr
	}
	c.connected = true
	return nil
}

func (c *fakeClient) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
	c.connected = false
}

func (c *fakeClient) Logout(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loggedOut = true
	c.connected = false
	return nil
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) SelfJID() string { return "33612345678@s.whatsapp.net" }

func (c *fakeClient) PairPhone(context.Context, string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pairCalls++
	if c.pairErr != nil {
		return "", c.pairErr
	}
	return c.pairCode, nil
}

func (c *fakeClient) MarkRead(string, string, []string, time.Time) error     { return nil }
func (c *fakeClient) SendPresence(bool) error                                { return nil }
func (c *fakeClient) SendChatPresence(string, contract.ChatPresence) error   { return nil }
func (c *fakeClient) RejectCall(string, string) error                        { return nil }
func (c *fakeClient) GroupInfo(context.Context, string) (*domain.GroupInfo, error) {
	return nil, nil
}

func (c *fakeClient) Events() <-chan event.Event { return c.events }

func (c *fakeClient) push(evt event.Event) { c.events <- evt }

type factoryCall struct {
	tenant domain.TenantID
	fresh  bool
}

// fakeFactory hands out pre-built clients in order and records how it
// was called. An optional delay widens the race window for the
// duplicate-connect tests.
type fakeFactory struct {
	mu      sync.Mutex
	clients []*fakeClient
	calls   []factoryCall
	err     error
	delay   time.Duration
}

func (f *fakeFactory) New(_ context.Context, tenant domain.TenantID, fresh bool) (contract.ProtocolClient, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, factoryCall{tenant: tenant, fresh: fresh})
	if f.err != nil {
		return nil, f.err
	}
	client := f.clients[0]
	if len(f.clients) > 1 {
		f.clients = f.clients[1:]
	}
	return client, nil
}

func (f *fakeFactory) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type memCredentials struct {
	mu    sync.Mutex
	blobs map[domain.TenantID][]byte
}

func newMemCredentials() *memCredentials {
	return &memCredentials{blobs: make(map[domain.TenantID][]byte)}
}

func (m *memCredentials) Get(tenant domain.TenantID) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	blob, ok := m.blobs[tenant]
	if !ok {
		return nil, errors.ErrCredentialNotFound
	}
	return blob, nil
}

func (m *memCredentials) Save(tenant domain.TenantID, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[tenant] = blob
	return nil
}

func (m *memCredentials) Delete(tenant domain.TenantID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, tenant)
	return nil
}

func (m *memCredentials) has(tenant domain.TenantID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[tenant]
	return ok
}

type memRoster struct {
	mu      sync.Mutex
	tenants map[domain.TenantID]struct{}
}

func newMemRoster() *memRoster {
	return &memRoster{tenants: make(map[domain.TenantID]struct{})}
}

func (m *memRoster) Add(tenant domain.TenantID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants[tenant] = struct{}{}
	return nil
}

func (m *memRoster) Remove(tenant domain.TenantID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tenants, tenant)
	return nil
}

func (m *memRoster) List() ([]domain.TenantID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.TenantID
	for tenant := range m.tenants {
		out = append(out, tenant)
	}
	return out, nil
}

func (m *memRoster) has(tenant domain.TenantID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tenants[tenant]
	return ok
}

type memCache struct {
	mu    sync.Mutex
	files map[domain.TenantID][]byte
}

func newMemCache() *memCache {
	return &memCache{files: make(map[domain.TenantID][]byte)}
}

func (m *memCache) Write(tenant domain.TenantID, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[tenant] = blob
	return nil
}

func (m *memCache) Read(tenant domain.TenantID) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	blob, ok := m.files[tenant]
	if !ok {
		return nil, errors.ErrCredentialNotFound
	}
	return blob, nil
}

func (m *memCache) Purge(tenant domain.TenantID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, tenant)
	return nil
}

func (m *memCache) PurgeAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files = make(map[domain.TenantID][]byte)
	return nil
}

func (m *memCache) has(tenant domain.TenantID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[tenant]
	return ok
}

// collectSink records every delivery so tests can assert the
// exactly-once guarantee.
type collectSink struct {
	mu      sync.Mutex
	results []domain.ConnectResult
}

func (c *collectSink) Deliver(result domain.ConnectResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, result)
}

func (c *collectSink) all() []domain.ConnectResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.ConnectResult, len(c.results))
	copy(out, c.results)
	return out
}

func (c *collectSink) first() (domain.ConnectResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.results) == 0 {
		return domain.ConnectResult{}, false
	}
	return c.results[0], true
}

type nopHandler struct{}

func (nopHandler) HandleMessage(context.Context, domain.TenantID, contract.ProtocolClient, event.Message) {
}
func (nopHandler) HandleCall(context.Context, domain.TenantID, contract.ProtocolClient, event.Call) {}

// harness bundles a supervisor wired to in-memory collaborators.
type harness struct {
	registry    *Registry
	locks       *ConnLocks
	policy      *ReconnectPolicy
	factory     *fakeFactory
	credentials *memCredentials
	cache       *memCache
	roster      *memRoster
	supervisor  *SessionSupervisor
}

func newHarness(factory *fakeFactory, maxAttempts int, pairingDelay, backoff time.Duration) *harness {
	h := &harness{
		registry:    NewRegistry(),
		locks:       NewConnLocks(),
		policy:      NewReconnectPolicy(maxAttempts),
		factory:     factory,
		credentials: newMemCredentials(),
		cache:       newMemCache(),
		roster:      newMemRoster(),
	}
	h.supervisor = NewSessionSupervisor(
		testLogger(), h.registry, h.locks, h.policy, factory,
		h.credentials, h.cache, h.roster, nopHandler{},
		pairingDelay, backoff,
	)
	return h
}
