package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"

	"mini-base/domain"
	"mini-base/observability"
)

// Config holds the environment-driven settings for the CLI.
type Config struct {
	// GATEWAY_ADDR points at the gateway HTTP API.
	GatewayAddr string `envconfig:"GATEWAY_ADDR" default:"http://localhost:8080"`
	// FLEETCTL_TOKEN is the bearer token from a previous `fleetctl login`.
	Token string `envconfig:"FLEETCTL_TOKEN"`
	// FLEETCTL_COLOURS enables colorized output for better readability
	Colours bool   `envconfig:"FLEETCTL_COLOURS" default:"true"`
	Timeout string `envconfig:"FLEETCTL_TIMEOUT" default:"30s"`
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

const usage = `Usage: fleetctl <command> [arguments]

Commands:
  login -operator NAME -password PASS   obtain a bearer token
  sessions                              list every known tenant and its status
  status <tenant>                       status of a single tenant
  stats <tenant>                        message counters for a tenant
  health                                gateway process health snapshot
  connect <tenant>                      start or resume a session
  connect-all                           start every roster tenant
  disconnect <tenant>                   log out and forget a tenant
  config-request <tenant> -delta JSON   send an OTP for a config change
  config-verify <tenant> -code CODE -delta JSON
                                        confirm a pending config change

GATEWAY_ADDR and FLEETCTL_TOKEN are read from the environment.`

func run(args []string) error {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return err
	}
	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return fmt.Errorf("invalid FLEETCTL_TIMEOUT: %w", err)
	}

	if len(args) == 0 {
		fmt.Println(usage)
		return nil
	}

	cli := &client{
		base:    cfg.GatewayAddr,
		token:   cfg.Token,
		colours: cfg.Colours,
		http:    &http.Client{Timeout: timeout},
	}

	command, rest := args[0], args[1:]
	switch command {
	case "login":
		return cli.login(rest)
	case "sessions":
		return cli.sessions()
	case "status":
		return cli.status(rest)
	case "stats":
		return cli.stats(rest)
	case "health":
		return cli.health()
	case "connect":
		return cli.connect(rest)
	case "connect-all":
		return cli.connectAll()
	case "disconnect":
		return cli.disconnect(rest)
	case "config-request":
		return cli.configRequest(rest)
	case "config-verify":
		return cli.configVerify(rest)
	case "help", "-h", "--help":
		fmt.Println(usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q, run fleetctl help", command)
	}
}

type client struct {
	base    string
	token   string
	colours bool
	http    *http.Client
}

// call performs one request and decodes the JSON response into out.
// Non-2xx responses are surfaced with the gateway's error message.
func (c *client) call(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (HTTP %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(raw))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func (c *client) header(text string) {
	line := fmt.Sprintf("  ====== %s ======", text)
	if c.colours {
		line = color.New(color.BgBlack, color.FgGreen).Render(line)
	}
	fmt.Println(line)
}

func (c *client) login(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	operator := fs.String("operator", "", "operator name")
	password := fs.String("password", "", "operator password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *operator == "" || *password == "" {
		return fmt.Errorf("login requires -operator and -password")
	}

	var out struct {
		Token string `json:"token"`
	}
	err := c.call(http.MethodPost, "/login",
		map[string]string{"operator": *operator, "password": *password}, &out)
	if err != nil {
		return err
	}
	fmt.Println("export FLEETCTL_TOKEN=" + out.Token)
	return nil
}

func (c *client) sessions() error {
	var statuses []domain.SessionStatus
	if err := c.call(http.MethodGet, "/sessions", nil, &statuses); err != nil {
		return err
	}

	c.header("Sessions")
	table := newTable([]string{"Tenant", "Connected", "Connected At", "Uptime"})
	for _, st := range statuses {
		table.Append(statusRow(st))
	}
	table.Render()
	return nil
}

func (c *client) status(args []string) error {
	tenant, err := tenantArg(args, "status")
	if err != nil {
		return err
	}
	var st domain.SessionStatus
	if err := c.call(http.MethodGet, "/sessions/"+tenant, nil, &st); err != nil {
		return err
	}
	table := newTable([]string{"Tenant", "Connected", "Connected At", "Uptime"})
	table.Append(statusRow(st))
	table.Render()
	return nil
}

func (c *client) stats(args []string) error {
	tenant, err := tenantArg(args, "stats")
	if err != nil {
		return err
	}
	var counters map[string]uint64
	if err := c.call(http.MethodGet, "/sessions/"+tenant+"/stats", nil, &counters); err != nil {
		return err
	}
	c.header("Stats for " + tenant)
	table := newTable([]string{"Counter", "Value"})
	for name, value := range counters {
		table.Append([]string{name, fmt.Sprintf("%d", value)})
	}
	table.Render()
	return nil
}

func (c *client) health() error {
	var snap observability.HealthSnapshot
	if err := c.call(http.MethodGet, "/health", nil, &snap); err != nil {
		return err
	}
	c.header("Gateway health")
	table := newTable([]string{"Metric", "Value"})
	table.Append([]string{"Uptime", fmt.Sprintf("%.0fs", snap.UptimeSeconds)})
	table.Append([]string{"Active sessions", fmt.Sprintf("%d", snap.ActiveSessions)})
	table.Append([]string{"CPU", fmt.Sprintf("%.1f%%", snap.CPUPercent)})
	table.Append([]string{"RAM", fmt.Sprintf("%.1f%%", snap.RAMPercent)})
	table.Append([]string{"Heap alloc", fmt.Sprintf("%d MB", snap.AllocMemMb)})
	table.Append([]string{"Goroutines", fmt.Sprintf("%d", snap.NumGoroutine)})
	table.Render()
	return nil
}

func (c *client) connect(args []string) error {
	tenant, err := tenantArg(args, "connect")
	if err != nil {
		return err
	}
	var result domain.ConnectResult
	if err := c.call(http.MethodPost, "/sessions/"+tenant+"/connect", nil, &result); err != nil {
		return err
	}
	printResult(c, result)
	return nil
}

func (c *client) connectAll() error {
	var results []domain.ConnectResult
	if err := c.call(http.MethodPost, "/sessions/connect-all", nil, &results); err != nil {
		return err
	}
	c.header("Bulk connect")
	table := newTable([]string{"Tenant", "Outcome", "Pairing Code", "Detail"})
	for _, result := range results {
		table.Append([]string{
			string(result.Tenant),
			string(result.Outcome),
			result.PairingCode,
			result.Detail,
		})
	}
	table.Render()
	return nil
}

func (c *client) disconnect(args []string) error {
	tenant, err := tenantArg(args, "disconnect")
	if err != nil {
		return err
	}
	if err := c.call(http.MethodDelete, "/sessions/"+tenant, nil, nil); err != nil {
		return err
	}
	fmt.Println("Disconnected", tenant)
	return nil
}

func (c *client) configRequest(args []string) error {
	fs := flag.NewFlagSet("config-request", flag.ExitOnError)
	delta := fs.String("delta", "", "configuration delta as JSON")
	tenant, err := tenantFlagArgs(fs, args, "config-request")
	if err != nil {
		return err
	}
	if *delta == "" {
		return fmt.Errorf("config-request requires -delta")
	}

	err = c.call(http.MethodPost, "/sessions/"+tenant+"/config",
		json.RawMessage(*delta), nil)
	if err != nil {
		return err
	}
	fmt.Println("Verification code sent to", tenant)
	return nil
}

func (c *client) configVerify(args []string) error {
	fs := flag.NewFlagSet("config-verify", flag.ExitOnError)
	code := fs.String("code", "", "verification code received on the device")
	tenant, err := tenantFlagArgs(fs, args, "config-verify")
	if err != nil {
		return err
	}
	if *code == "" {
		return fmt.Errorf("config-verify requires -code")
	}

	var cfg domain.TenantConfig
	err = c.call(http.MethodPost, "/sessions/"+tenant+"/config/verify",
		map[string]string{"code": *code}, &cfg)
	if err != nil {
		return err
	}
	c.header("Configuration applied for " + tenant)
	pretty, _ := json.MarshalIndent(cfg, "", "  ")
	fmt.Println(string(pretty))
	return nil
}

func printResult(c *client, result domain.ConnectResult) {
	c.header("Connect " + string(result.Tenant))
	fmt.Println("Outcome:", result.Outcome)
	if result.PairingCode != "" {
		code := result.PairingCode
		if c.colours {
			code = color.New(color.BgBlack, color.FgYellow).Render(code)
		}
		fmt.Println("Pairing code:", code)
		fmt.Println("Enter it in WhatsApp > Linked Devices > Link with phone number.")
	}
	if result.Detail != "" {
		fmt.Println("Detail:", result.Detail)
	}
}

func statusRow(st domain.SessionStatus) []string {
	connectedAt, uptime := "-", "-"
	if st.Connected {
		connectedAt = st.ConnectedAt.Format(time.RFC3339)
		uptime = st.Uptime.Round(time.Second).String()
	}
	return []string{
		string(st.Tenant),
		fmt.Sprintf("%t", st.Connected),
		connectedAt,
		uptime,
	}
}

func tenantArg(args []string, command string) (string, error) {
	if len(args) != 1 || args[0] == "" {
		return "", fmt.Errorf("%s requires exactly one tenant argument", command)
	}
	return args[0], nil
}

// tenantFlagArgs parses "<tenant> -flag value" style commands.
func tenantFlagArgs(fs *flag.FlagSet, args []string, command string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("%s requires a tenant argument", command)
	}
	if err := fs.Parse(args[1:]); err != nil {
		return "", err
	}
	return args[0], nil
}

func newTable(header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}
