package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	GatewayAddr string `envconfig:"GATEWAY_ADDR"`
	// E2E_OPERATOR / E2E_PASSWORD are the credentials of a gateway operator
	Operator string `envconfig:"E2E_OPERATOR"`
	Password string `envconfig:"E2E_PASSWORD"`
	// E2E_TENANT is a phone number already paired with the gateway
	Tenant string `envconfig:"E2E_TENANT"`
	// E2E_DEBUG_JSON allows dumping full HTTP request/response bodies
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
