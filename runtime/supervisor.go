package runtime

import (
	"context"
	goerrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mini-base/contract"
	"mini-base/domain"
	"mini-base/domain/event"
	"mini-base/errors"
)

// EventHandler consumes the normalized message and call events of a
// live session. The dispatch pipeline implements it.
type EventHandler interface {
	HandleMessage(ctx context.Context, tenant domain.TenantID, client contract.ProtocolClient, msg event.Message)
	HandleCall(ctx context.Context, tenant domain.TenantID, client contract.ProtocolClient, call event.Call)
}

// SessionSupervisor orchestrates the connect/pair/restore/reconnect/
// disconnect lifecycle of every tenant. Callers are fire-and-forget:
// Connect never returns an error, it reports through the result sink
// exactly once and logs everything else.
type SessionSupervisor struct {
	log         *slog.Logger
	registry    *Registry
	locks       *ConnLocks
	policy      *ReconnectPolicy
	factory     contract.ClientFactory
	credentials contract.CredentialRepository
	cache       contract.CredentialCache
	roster      contract.RosterRepository
	handler     EventHandler

	// pairingDelay lets the freshly created socket stabilize before a
	// pairing code is requested; backoff spaces automatic reconnects.
	pairingDelay time.Duration
	backoff      time.Duration

	baseCtx context.Context
}

func NewSessionSupervisor(
	log *slog.Logger,
	registry *Registry,
	locks *ConnLocks,
	policy *ReconnectPolicy,
	factory contract.ClientFactory,
	credentials contract.CredentialRepository,
	cache contract.CredentialCache,
	roster contract.RosterRepository,
	handler EventHandler,
	pairingDelay, backoff time.Duration,
) *SessionSupervisor {
	return &SessionSupervisor{
		log:          log,
		registry:     registry,
		locks:        locks,
		policy:       policy,
		factory:      factory,
		credentials:  credentials,
		cache:        cache,
		roster:       roster,
		handler:      handler,
		pairingDelay: pairingDelay,
		backoff:      backoff,
		baseCtx:      context.Background(),
	}
}

// SetBaseContext pins the context session pumps and scheduled retries
// inherit from; cancelling it stops all background activity.
func (s *SessionSupervisor) SetBaseContext(ctx context.Context) {
	s.baseCtx = ctx
}

// onceSink guarantees a sink produces at most one response.
type onceSink struct {
	once sync.Once
	next contract.ResultSink
}

func newOnceSink(next contract.ResultSink) *onceSink {
	if next == nil {
		next = contract.DiscardSink{}
	}
	return &onceSink{next: next}
}

func (o *onceSink) Deliver(result domain.ConnectResult) {
	o.once.Do(func() { o.next.Deliver(result) })
}

// Connect runs the full connect contract for one tenant. The lock is
// touched only after the registry short-circuit, and released exactly
// once on every exit path.
func (s *SessionSupervisor) Connect(ctx context.Context, tenant domain.TenantID, sink contract.ResultSink) {
	out := newOnceSink(sink)

	if s.registry.IsConnected(tenant) {
		status := s.registry.Status(tenant)
		out.Deliver(domain.ConnectResult{
			Tenant:  tenant,
			Outcome: domain.OutcomeAlreadyConnected,
			Status:  &status,
		})
		return
	}

	if !s.locks.TryAcquire(tenant) {
		out.Deliver(domain.ConnectResult{
			Tenant:  tenant,
			Outcome: domain.OutcomeInProgress,
			Detail:  "a connect attempt is already running for this number",
		})
		return
	}
	defer s.locks.Release(tenant)

	// The first check ran before the lock was held, so a concurrent
	// attempt may have registered and released in between. Re-check
	// under the lock or a second client gets built for the tenant.
	if s.registry.IsConnected(tenant) {
		status := s.registry.Status(tenant)
		out.Deliver(domain.ConnectResult{
			Tenant:  tenant,
			Outcome: domain.OutcomeAlreadyConnected,
			Status:  &status,
		})
		return
	}

	if err := s.connect(ctx, tenant, out); err != nil {
		s.log.Error("connect failed", "tenant", tenant, "error", err)
		out.Deliver(domain.ConnectResult{
			Tenant:  tenant,
			Outcome: domain.OutcomeFailed,
			Detail:  "connection attempt failed, see server logs",
		})
	}
}

func (s *SessionSupervisor) connect(ctx context.Context, tenant domain.TenantID, out *onceSink) error {
	freshPairing := false
	blob, err := s.credentials.Get(tenant)
	switch {
	case goerrors.Is(err, errors.ErrCredentialNotFound):
		// New pairing: drop any stale cache so the client cannot resume
		// from credentials the store no longer vouches for.
		freshPairing = true
		if err := s.cache.Purge(tenant); err != nil {
			s.log.Warn("stale credential cache purge failed", "tenant", tenant, "error", err)
		}
	case err != nil:
		return fmt.Errorf("credential lookup: %w", err)
	default:
		if err := s.cache.Write(tenant, blob); err != nil {
			return fmt.Errorf("credential cache write: %w", err)
		}
	}

	client, err := s.factory.New(ctx, tenant, freshPairing)
	if err != nil {
		return fmt.Errorf("client instantiation: %w", err)
	}

	session := &Session{Tenant: tenant, Client: client, ConnectedAt: time.Now().UTC()}
	pumpCtx, cancel := context.WithCancel(s.baseCtx)
	session.cancel = cancel
	s.registry.Register(tenant, session)

	go s.pump(pumpCtx, session)

	if err := client.Connect(); err != nil {
		s.registry.Unregister(tenant)
		cancel()
		return fmt.Errorf("transport connect: %w", err)
	}

	if freshPairing {
		go s.requestPairingCode(pumpCtx, tenant, client, out)
		return nil
	}

	out.Deliver(domain.ConnectResult{
		Tenant:  tenant,
		Outcome: domain.OutcomeReconnecting,
		Detail:  "restoring session from stored credentials",
	})
	return nil
}

// requestPairingCode waits for the transport to stabilize, then asks
// the service for a pairing code. Failures reach the sink but never
// the supervisor: the socket may still complete pairing via other
// means, and the reconnection policy cleans up dead ones.
func (s *SessionSupervisor) requestPairingCode(ctx context.Context, tenant domain.TenantID, client contract.ProtocolClient, out *onceSink) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(s.pairingDelay):
	}

	code, err := client.PairPhone(ctx, tenant.String())
	if err != nil {
		s.log.Error("pairing code request failed", "tenant", tenant, "error", err)
		out.Deliver(domain.ConnectResult{
			Tenant:  tenant,
			Outcome: domain.OutcomeFailed,
			Detail:  "pairing code request failed",
		})
		return
	}
	out.Deliver(domain.ConnectResult{
		Tenant:      tenant,
		Outcome:     domain.OutcomePairingCode,
		PairingCode: code,
	})
}

// pump drains one session's event stream in transport order. It exits
// on close (terminal for the handle, not the tenant), on stream end,
// or when the session is detached.
func (s *SessionSupervisor) pump(ctx context.Context, session *Session) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-session.Client.Events():
			if !ok {
				return
			}
			switch e := evt.(type) {
			case event.Connected:
				s.onOpen(session, e)
			case event.Closed:
				s.onClose(session, e)
				return
			case event.CredentialsUpdated:
				s.persistCredentials(session.Tenant)
			case event.Message:
				s.handler.HandleMessage(ctx, session.Tenant, session.Client, e)
			case event.Call:
				s.handler.HandleCall(ctx, session.Tenant, session.Client, e)
			}
		}
	}
}

func (s *SessionSupervisor) onOpen(session *Session, e event.Connected) {
	now := time.Now().UTC()
	s.registry.Touch(session.Tenant, now)
	s.policy.OnOpen(session.Tenant)
	s.log.Info("session open", "tenant", session.Tenant, "jid", e.SelfJID)
	// Roster membership is earned on open, not on attempt: a tenant
	// that never paired must not be re-dialed by the boot connect.
	if err := s.roster.Add(session.Tenant); err != nil {
		s.log.Warn("roster write failed", "tenant", session.Tenant, "error", err)
	}
	s.persistCredentials(session.Tenant)
}

// persistCredentials copies the refreshed cache file back into the
// store. A store-write failure is logged, not escalated: the cache
// stays authoritative until the next successful write.
func (s *SessionSupervisor) persistCredentials(tenant domain.TenantID) {
	blob, err := s.cache.Read(tenant)
	if err != nil {
		s.log.Warn("credential cache read failed", "tenant", tenant, "error", err)
		return
	}
	if err := s.credentials.Save(tenant, blob); err != nil {
		s.log.Warn("credential store write failed", "tenant", tenant, "error", err)
	}
}

func (s *SessionSupervisor) onClose(session *Session, closed event.Closed) {
	tenant := session.Tenant
	switch s.policy.Decide(tenant, closed) {
	case DecisionUnlink:
		s.log.Info("session unlinked by remote", "tenant", tenant, "code", closed.Code)
		s.teardown(tenant)
		if err := s.credentials.Delete(tenant); err != nil {
			s.log.Warn("credential delete failed", "tenant", tenant, "error", err)
		}
		if err := s.roster.Remove(tenant); err != nil {
			s.log.Warn("roster delete failed", "tenant", tenant, "error", err)
		}
		if err := s.cache.Purge(tenant); err != nil {
			s.log.Warn("credential cache purge failed", "tenant", tenant, "error", err)
		}

	case DecisionNone:
		s.log.Info("session closed as expected, pairing never completed", "tenant", tenant, "code", closed.Code)
		s.teardown(tenant)

	case DecisionRetry:
		attempt := s.policy.Attempts(tenant)
		s.log.Warn("session closed, scheduling reconnect",
			"tenant", tenant, "code", closed.Code, "reason", closed.Reason, "attempt", attempt)
		s.teardown(tenant)
		s.scheduleReconnect(tenant)

	case DecisionGiveUp:
		s.log.Error("session closed and retry budget exhausted, manual intervention required",
			"tenant", tenant, "code", closed.Code, "reason", closed.Reason)
		s.teardown(tenant)
	}
}

// teardown unregisters the tenant and detaches its pump so the
// registry never holds two handles for one tenant across a retry.
func (s *SessionSupervisor) teardown(tenant domain.TenantID) {
	if session, ok := s.registry.Unregister(tenant); ok {
		session.Detach()
	}
}

func (s *SessionSupervisor) scheduleReconnect(tenant domain.TenantID) {
	ctx := s.baseCtx
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.backoff):
		}
		s.Connect(ctx, tenant, contract.DiscardSink{})
	}()
}

// Shutdown closes every live session and purges the local credential
// cache, called on normal process exit.
func (s *SessionSupervisor) Shutdown(ctx context.Context) {
	for _, tenant := range s.registry.ListActive() {
		if session, ok := s.registry.Unregister(tenant); ok {
			session.Detach()
			session.Client.Disconnect()
		}
	}
	if err := s.cache.PurgeAll(); err != nil {
		s.log.Warn("credential cache cleanup failed", "error", err)
	}
}
