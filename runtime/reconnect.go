package runtime

import (
	"strings"
	"sync"

	"mini-base/domain"
	"mini-base/domain/event"
)

// Decision is the reconnection policy's verdict for one close event.
type Decision int

const (
	// DecisionUnlink tears the tenant down for good: registry,
	// credential blob and roster entry are all erased.
	DecisionUnlink Decision = iota
	// DecisionNone is an expected closure (the user never completed
	// pairing); the handle dies quietly and nothing is scheduled.
	DecisionNone
	// DecisionRetry schedules one reconnect after the backoff interval.
	DecisionRetry
	// DecisionGiveUp is reached once the attempt budget is exhausted;
	// recovery requires an operator connect or a process restart.
	DecisionGiveUp
)

// ReconnectPolicy decides, per disconnect, whether to purge, skip or
// retry with backoff. The attempt counter lives here rather than on
// the Session because a retry chain outlives each individual handle:
// every retry fully unregisters the old handle before re-attempting.
type ReconnectPolicy struct {
	mu          sync.Mutex
	maxAttempts int
	attempts    map[domain.TenantID]int
}

func NewReconnectPolicy(maxAttempts int) *ReconnectPolicy {
	return &ReconnectPolicy{
		maxAttempts: maxAttempts,
		attempts:    make(map[domain.TenantID]int),
	}
}

// Decide classifies a close event. On DecisionRetry the attempt
// counter has already been incremented for the scheduled attempt.
func (p *ReconnectPolicy) Decide(tenant domain.TenantID, closed event.Closed) Decision {
	if unauthorized(closed) {
		p.Forget(tenant)
		return DecisionUnlink
	}
	if expected(closed) {
		return DecisionNone
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.attempts[tenant] >= p.maxAttempts {
		return DecisionGiveUp
	}
	p.attempts[tenant]++
	return DecisionRetry
}

// OnOpen resets the retry budget: a stable connection wipes the slate.
func (p *ReconnectPolicy) OnOpen(tenant domain.TenantID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.attempts, tenant)
}

// Forget drops all retry state for a tenant, used on manual disconnect
// and unlink.
func (p *ReconnectPolicy) Forget(tenant domain.TenantID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.attempts, tenant)
}

// Attempts exposes the current counter, mainly for status reporting.
func (p *ReconnectPolicy) Attempts(tenant domain.TenantID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts[tenant]
}

func unauthorized(closed event.Closed) bool {
	if closed.Code == event.CodeLoggedOut {
		return true
	}
	reason := strings.ToLower(closed.Reason)
	return strings.Contains(reason, "unauthorized") || strings.Contains(reason, "logged out")
}

func expected(closed event.Closed) bool {
	if closed.Code == event.CodePairingTimeout {
		return true
	}
	return strings.Contains(strings.ToLower(closed.Reason), "pairing code expired")
}
