package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"mini-base/contract"
	"mini-base/domain"
	"mini-base/errors"
)

// FleetOutcome is one tenant's result inside a bulk connect.
type FleetOutcome struct {
	Tenant  domain.TenantID       `json:"tenant"`
	Outcome domain.ConnectOutcome `json:"outcome"`
	Detail  string                `json:"detail,omitempty"`
}

// Fleet provides the bulk operations built atop the supervisor and the
// registry: reconnect-all and manual disconnect.
type Fleet struct {
	log         *slog.Logger
	registry    *Registry
	supervisor  *SessionSupervisor
	policy      *ReconnectPolicy
	roster      contract.RosterRepository
	credentials contract.CredentialRepository
	cache       contract.CredentialCache

	// spacing throttles bulk connects so a restart does not stampede
	// the messaging service with simultaneous handshakes.
	spacing time.Duration
}

func NewFleet(
	log *slog.Logger,
	registry *Registry,
	supervisor *SessionSupervisor,
	policy *ReconnectPolicy,
	roster contract.RosterRepository,
	credentials contract.CredentialRepository,
	cache contract.CredentialCache,
	spacing time.Duration,
) *Fleet {
	return &Fleet{
		log:         log,
		registry:    registry,
		supervisor:  supervisor,
		policy:      policy,
		roster:      roster,
		credentials: credentials,
		cache:       cache,
		spacing:     spacing,
	}
}

// captureSink records the first result of a connect attempt so the
// bulk report can include it without waiting for slow pairing flows.
type captureSink struct {
	results chan domain.ConnectResult
}

func newCaptureSink() *captureSink {
	return &captureSink{results: make(chan domain.ConnectResult, 1)}
}

func (c *captureSink) Deliver(result domain.ConnectResult) {
	select {
	case c.results <- result:
	default:
	}
}

// ConnectAll walks the tenant roster and connects every tenant that is
// not already active, spacing attempts by the configured interval.
func (f *Fleet) ConnectAll(ctx context.Context) ([]FleetOutcome, error) {
	tenants, err := f.roster.List()
	if err != nil {
		return nil, fmt.Errorf("roster list: %w", err)
	}
	f.log.Info("bulk connect starting", "tenants", len(tenants))

	var outcomes []FleetOutcome
	for i, tenant := range tenants {
		if f.registry.IsConnected(tenant) {
			outcomes = append(outcomes, FleetOutcome{
				Tenant:  tenant,
				Outcome: domain.OutcomeAlreadyConnected,
			})
			continue
		}

		sink := newCaptureSink()
		f.supervisor.Connect(ctx, tenant, sink)

		outcome := FleetOutcome{Tenant: tenant, Outcome: domain.OutcomeReconnecting, Detail: "attempt started"}
		select {
		case result := <-sink.results:
			outcome.Outcome = result.Outcome
			outcome.Detail = result.Detail
		case <-time.After(f.spacing):
			// Result still pending (e.g. pairing), keep the default.
		}
		outcomes = append(outcomes, outcome)

		if i < len(tenants)-1 {
			select {
			case <-ctx.Done():
				return outcomes, ctx.Err()
			case <-time.After(f.spacing):
			}
		}
	}
	return outcomes, nil
}

// Disconnect closes the tenant's transport, detaches all listeners,
// unregisters the session and removes both the credential blob and the
// roster entry. A second immediate call reports not-found.
func (f *Fleet) Disconnect(ctx context.Context, tenant domain.TenantID) error {
	session, ok := f.registry.Unregister(tenant)
	if !ok {
		return errors.ErrNotConnected
	}

	f.policy.Forget(tenant)
	session.Detach()
	if err := session.Client.Logout(ctx); err != nil {
		// Transport may already be gone; the local teardown continues.
		f.log.Warn("logout failed, forcing transport close", "tenant", tenant, "error", err)
		session.Client.Disconnect()
	}

	if err := f.credentials.Delete(tenant); err != nil {
		return fmt.Errorf("credential delete for %s: %w", tenant, err)
	}
	if err := f.roster.Remove(tenant); err != nil {
		return fmt.Errorf("roster delete for %s: %w", tenant, err)
	}
	if err := f.cache.Purge(tenant); err != nil {
		f.log.Warn("credential cache purge failed", "tenant", tenant, "error", err)
	}
	f.log.Info("tenant disconnected and erased", "tenant", tenant)
	return nil
}

// Statuses reports the state of every tenant on the roster plus any
// live session not yet persisted to the roster.
func (f *Fleet) Statuses() []domain.SessionStatus {
	known, err := f.roster.List()
	if err != nil {
		f.log.Warn("roster list failed, reporting live sessions only", "error", err)
	}
	seen := make(map[domain.TenantID]struct{}, len(known))
	for _, tenant := range known {
		seen[tenant] = struct{}{}
	}
	for _, tenant := range f.registry.ListActive() {
		if _, ok := seen[tenant]; !ok {
			known = append(known, tenant)
		}
	}
	return lo.Map(known, func(tenant domain.TenantID, _ int) domain.SessionStatus {
		return f.registry.Status(tenant)
	})
}

// BootWorker triggers one fleet-wide connect a few seconds after
// process start. It runs under the worker supervisor and terminates
// after the single pass.
type BootWorker struct {
	Log   *slog.Logger
	Fleet *Fleet
	Delay time.Duration
}

func (w BootWorker) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	case <-time.After(w.Delay):
	}

	outcomes, err := w.Fleet.ConnectAll(ctx)
	if err != nil {
		return fmt.Errorf("startup bulk connect: %w", err)
	}
	w.Log.Info("startup bulk connect finished", "tenants", len(outcomes))
	return nil
}
