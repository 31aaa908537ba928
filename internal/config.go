package internal

import (
	"fmt"
	"time"
)

// Config is the gateway's environment-driven configuration.
type Config struct {
	LogLevel string `env:"LOG_LEVEL,required=true"`
	Host     string `env:"HOST,default=0.0.0.0"`
	Port     int    `env:"PORT,required=true"`

	BadgerFilepath  string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath   string `env:"BLUGE_FILEPATH,required=true"`
	SessionCacheDir string `env:"SESSION_CACHE_DIR,required=true"`

	// Reconnect policy and connect pacing.
	MaxReconnectAttempts int           `env:"MAX_RECONNECT_ATTEMPTS,default=3"`
	ReconnectBackoff     time.Duration `env:"RECONNECT_BACKOFF,default=10s"`
	FleetSpacing         time.Duration `env:"FLEET_SPACING,default=2s"`
	PairingCodeDelay     time.Duration `env:"PAIRING_CODE_DELAY,default=5s"`
	BootConnectDelay     time.Duration `env:"BOOT_CONNECT_DELAY,default=5s"`

	OTPValidity     time.Duration `env:"OTP_VALIDITY,default=5m"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=5s"`
	MetricInterval  time.Duration `env:"METRIC_INTERVAL,default=5s"`

	// Message archive sizing.
	ArchiveRingSize  int           `env:"ARCHIVE_RING_SIZE,default=512"`
	ArchiveRetention time.Duration `env:"ARCHIVE_RETENTION,default=168h"`

	// Operator authentication for the mutating HTTP endpoints.
	JWTSecret            string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration    time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	OperatorName         string        `env:"OPERATOR_NAME,required=true"`
	OperatorPasswordHash string        `env:"OPERATOR_PASSWORD_HASH,required=true"`

	// Moderation.
	CharReplacement string `env:"CHARACTER_REPLACEMENT,default=*"`

	// Badger inspector, enabled only at debug log level.
	DebugPort int `env:"DEBUG_PORT,default=0"`
}

// CharacterRune validates that the replacement is a single character.
func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
