package e2e

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/suite"

	"mini-base/domain"
	"mini-base/observability"
)

type testSessionLifecycleSuite struct {
	BaseHTTPSuite
}

func TestSessionLifecycleSuite(t *testing.T) {
	suite.Run(t, &testSessionLifecycleSuite{})
}

// TestReadOnlySurface exercises the open endpoints against a live
// gateway without touching any session.
func (s *testSessionLifecycleSuite) TestReadOnlySurface() {
	s.Run("Step 1: Health snapshot is populated", func() {
		s.Step("GET /health")
		var snap observability.HealthSnapshot
		status := s.Call(http.MethodGet, "/health", nil, &snap)
		s.Require().Equal(http.StatusOK, status)
		s.Require().GreaterOrEqual(snap.UptimeSeconds, 0.0)
		s.Require().Positive(snap.NumGoroutine)
	})

	s.Run("Step 2: Roster statuses are listable", func() {
		s.Step("GET /sessions")
		var statuses []domain.SessionStatus
		status := s.Call(http.MethodGet, "/sessions", nil, &statuses)
		s.Require().Equal(http.StatusOK, status)
	})

	s.Run("Step 3: Mutating endpoints reject anonymous callers", func() {
		s.Step("POST /sessions/connect-all without token")
		saved := s.Token
		s.Token = ""
		status := s.Call(http.MethodPost, "/sessions/connect-all", nil, nil)
		s.Token = saved
		s.Require().Equal(http.StatusUnauthorized, status)
	})
}

// TestConnectFlow drives a full connect cycle for E2E_TENANT. The
// tenant must already be paired so no code entry is required.
func (s *testSessionLifecycleSuite) TestConnectFlow() {
	if s.Config.Tenant == "" {
		s.T().Skip("E2E_TENANT not set, skipping connect scenario")
	}
	s.Login()

	s.Run("Step 1: Connect resumes the stored session", func() {
		s.Step("POST /sessions/" + s.Config.Tenant + "/connect")
		var result domain.ConnectResult
		status := s.Call(http.MethodPost, "/sessions/"+s.Config.Tenant+"/connect", nil, &result)
		s.Require().Contains([]int{http.StatusOK, http.StatusAccepted}, status)
		s.Require().NotEqual(domain.OutcomeFailed, result.Outcome,
			"Connect failed: "+result.Detail)
		// A paired tenant must never be asked for a fresh pairing code
		s.Require().NotEqual(domain.OutcomePairingCode, result.Outcome)
	})

	s.Run("Step 2: Status reports the tenant", func() {
		s.Step("GET /sessions/" + s.Config.Tenant)
		var st domain.SessionStatus
		status := s.Call(http.MethodGet, "/sessions/"+s.Config.Tenant, nil, &st)
		s.Require().Equal(http.StatusOK, status)
		s.Require().Equal(s.Config.Tenant, string(st.Tenant))
	})

	s.Run("Step 3: Stats endpoint answers for the tenant", func() {
		s.Step("GET /sessions/" + s.Config.Tenant + "/stats")
		var counters map[string]uint64
		status := s.Call(http.MethodGet, "/sessions/"+s.Config.Tenant+"/stats", nil, &counters)
		s.Require().Equal(http.StatusOK, status)
	})
}
