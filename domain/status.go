package domain

import "time"

// SessionStatus answers a status query for one tenant.
type SessionStatus struct {
	Tenant      TenantID      `json:"tenant"`
	Connected   bool          `json:"connected"`
	ConnectedAt time.Time     `json:"connected_at,omitempty"`
	Uptime      time.Duration `json:"uptime,omitempty"`
}

// ConnectOutcome classifies the first (and only) result a connect
// attempt delivers to its caller.
type ConnectOutcome string

const (
	OutcomeAlreadyConnected ConnectOutcome = "already_connected"
	OutcomeInProgress       ConnectOutcome = "connection_in_progress"
	OutcomePairingCode      ConnectOutcome = "pairing_code"
	OutcomeReconnecting     ConnectOutcome = "reconnecting"
	OutcomeFailed           ConnectOutcome = "failed"
)

// ConnectResult is delivered exactly once per connect attempt through
// the caller's result sink.
type ConnectResult struct {
	Tenant      TenantID       `json:"tenant"`
	Outcome     ConnectOutcome `json:"outcome"`
	PairingCode string         `json:"pairing_code,omitempty"`
	Detail      string         `json:"detail,omitempty"`
	Status      *SessionStatus `json:"status,omitempty"`
}
