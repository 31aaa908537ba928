// Package httpapi is the gateway's thin JSON surface. Every endpoint
// maps 1:1 to a supervisor, registry, fleet or service operation.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"mini-base/auth"
	"mini-base/contract"
	"mini-base/domain"
	apperrors "mini-base/errors"
	"mini-base/observability"
	"mini-base/runtime"
	"mini-base/services"
)

// connectWait bounds how long a connect request blocks for its first
// result. Pairing flows answer within the pairing delay; anything
// slower reports "attempt started".
const connectWait = 15 * time.Second

type Server struct {
	log        *slog.Logger
	supervisor *runtime.SessionSupervisor
	fleet      *runtime.Fleet
	registry   *runtime.Registry
	configSvc  *services.ConfigService
	stats      contract.StatsRepository
	monitor    *observability.Monitor
	tokens     auth.Tokens

	operator     string
	operatorHash string
}

func NewServer(
	log *slog.Logger,
	supervisor *runtime.SessionSupervisor,
	fleet *runtime.Fleet,
	registry *runtime.Registry,
	configSvc *services.ConfigService,
	stats contract.StatsRepository,
	monitor *observability.Monitor,
	tokens auth.Tokens,
	operator, operatorHash string,
) *Server {
	return &Server{
		log:          log,
		supervisor:   supervisor,
		fleet:        fleet,
		registry:     registry,
		configSvc:    configSvc,
		stats:        stats,
		monitor:      monitor,
		tokens:       tokens,
		operator:     operator,
		operatorHash: operatorHash,
	}
}

// Router wires the routes. Mutating endpoints sit behind the bearer
// middleware; status queries and the OTP verification (gated by the
// code itself) stay open.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /login", s.handleLogin)

	mux.HandleFunc("GET /sessions", s.handleStatuses)
	mux.HandleFunc("GET /sessions/active", s.handleListActive)
	mux.HandleFunc("GET /sessions/{tenant}", s.handleStatus)
	mux.HandleFunc("GET /sessions/{tenant}/stats", s.handleStats)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /sessions/{tenant}/config/verify", s.handleVerifyConfig)

	protected := http.NewServeMux()
	protected.HandleFunc("POST /sessions/{tenant}/connect", s.handleConnect)
	protected.HandleFunc("DELETE /sessions/{tenant}", s.handleDisconnect)
	protected.HandleFunc("POST /sessions/connect-all", s.handleConnectAll)
	protected.HandleFunc("POST /sessions/{tenant}/config", s.handleRequestConfig)
	mux.Handle("/", s.tokens.Middleware(protected))

	return mux
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps the domain sentinels onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperrors.ErrInvalidTenantID),
		errors.Is(err, apperrors.ErrInvalidDelta):
		status = http.StatusBadRequest
	case errors.Is(err, apperrors.ErrNotConnected),
		errors.Is(err, apperrors.ErrOTPNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperrors.ErrOTPMismatch),
		errors.Is(err, apperrors.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, apperrors.ErrOTPExpired):
		status = http.StatusGone
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) tenantFromPath(r *http.Request) (domain.TenantID, error) {
	return domain.NewTenantID(r.PathValue("tenant"))
}

type loginRequest struct {
	Operator string `json:"operator"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json body"})
		return
	}

	match, err := auth.ComparePassword(body.Password, s.operatorHash)
	if err != nil || !match || body.Operator != s.operator {
		// One generic error, no operator enumeration.
		s.writeError(w, apperrors.ErrInvalidCredentials)
		return
	}

	token, err := s.tokens.Generate(body.Operator)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// waitSink hands the connect result to the blocked HTTP handler.
type waitSink struct {
	results chan domain.ConnectResult
}

func (s waitSink) Deliver(result domain.ConnectResult) {
	select {
	case s.results <- result:
	default:
	}
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	tenant, err := s.tenantFromPath(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	sink := waitSink{results: make(chan domain.ConnectResult, 1)}
	s.supervisor.Connect(r.Context(), tenant, sink)

	select {
	case result := <-sink.results:
		writeJSON(w, http.StatusOK, result)
	case <-time.After(connectWait):
		writeJSON(w, http.StatusAccepted, domain.ConnectResult{
			Tenant:  tenant,
			Outcome: domain.OutcomeReconnecting,
			Detail:  "attempt started",
		})
	case <-r.Context().Done():
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	tenant, err := s.tenantFromPath(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.registry.Status(tenant))
}

func (s *Server) handleStatuses(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.fleet.Statuses())
}

func (s *Server) handleListActive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.ListActive())
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	tenant, err := s.tenantFromPath(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.fleet.Disconnect(r.Context(), tenant); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
}

func (s *Server) handleConnectAll(w http.ResponseWriter, r *http.Request) {
	outcomes, err := s.fleet.ConnectAll(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcomes)
}

func (s *Server) handleRequestConfig(w http.ResponseWriter, r *http.Request) {
	tenant, err := s.tenantFromPath(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var delta domain.ConfigDelta
	if err := json.NewDecoder(r.Body).Decode(&delta); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json body"})
		return
	}

	if err := s.configSvc.RequestUpdate(r.Context(), tenant, delta); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "verification code sent"})
}

type verifyRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleVerifyConfig(w http.ResponseWriter, r *http.Request) {
	tenant, err := s.tenantFromPath(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var body verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json body"})
		return
	}

	cfg, err := s.configSvc.Verify(r.Context(), tenant, body.Code)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	tenant, err := s.tenantFromPath(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	snapshot, err := s.stats.Snapshot(tenant)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.Snapshot())
}
