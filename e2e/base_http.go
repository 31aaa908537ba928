package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"
)

type BaseHTTPSuite struct {
	suite.Suite
	Config Config
	Token  string

	client *http.Client
}

// SetupSuite loads the environment configuration before running tests.
// Suites are skipped entirely when GATEWAY_ADDR is not set, so the
// package stays safe to run in CI without a live gateway.
func (s *BaseHTTPSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	if s.Config.GatewayAddr == "" {
		s.T().Skip("GATEWAY_ADDR not set, skipping e2e suite")
	}
	s.client = &http.Client{Timeout: 30 * time.Second}
}

// Step prints a colorized header for a scenario step in logs
func (s *BaseHTTPSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Call performs a JSON round trip against the gateway and returns the
// status code with the decoded body. Bodies are logged when
// E2E_DEBUG_JSON is enabled.
func (s *BaseHTTPSuite) Call(method, path string, body any, out any) int {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, s.Config.GatewayAddr+path, reader)
	s.Require().NoError(err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	s.Require().NoError(err, "Failed to reach gateway at "+s.Config.GatewayAddr)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)

	logBuilder := strings.Builder{}
	fmt.Fprintf(&logBuilder, "HTTP %s %s [%d] in %v", method, path, resp.StatusCode, time.Since(start))
	if s.Config.DebugJSON {
		if body != nil {
			encoded, _ := json.MarshalIndent(body, "", "  ")
			fmt.Fprintln(&logBuilder, "\nREQUEST:")
			fmt.Fprintln(&logBuilder, string(encoded))
		}
		fmt.Fprintln(&logBuilder, "RESPONSE:")
		fmt.Fprintln(&logBuilder, string(raw))
	}
	s.T().Log(logBuilder.String())

	if out != nil && len(raw) > 0 {
		s.Require().NoError(json.Unmarshal(raw, out),
			"Response was not the expected JSON shape: "+string(raw))
	}
	return resp.StatusCode
}

// Login obtains a bearer token for the protected endpoints.
func (s *BaseHTTPSuite) Login() {
	if s.Config.Operator == "" || s.Config.Password == "" {
		s.T().Skip("E2E_OPERATOR / E2E_PASSWORD not set, skipping authenticated scenario")
	}

	var out struct {
		Token string `json:"token"`
	}
	status := s.Call(http.MethodPost, "/login", map[string]string{
		"operator": s.Config.Operator,
		"password": s.Config.Password,
	}, &out)
	s.Require().Equal(http.StatusOK, status)
	s.Require().NotEmpty(out.Token)
	s.Token = out.Token
}
