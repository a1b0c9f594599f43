// Package config holds the CLI configuration types.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/asaskevich/govalidator"
	"github.com/joho/godotenv"
)

// ErrInvalidConfig is returned by Validate for any rejected field.
var ErrInvalidConfig = errors.New("invalid configuration")

// Role is the session role, fixed for the lifetime of a session. The offering
// side initiates negotiation and generates the animation; the answering side
// responds and runs detection.
type Role string

const (
	RoleOffer  Role = "offer"
	RoleAnswer Role = "answer"
)

// IsInitiator reports whether the role sends the first offer.
func (r Role) IsInitiator() bool { return r == RoleOffer }

// String returns the CLI spelling of the role.
func (r Role) String() string { return string(r) }

// ParseRole accepts the CLI spellings of a role. "server"/"client" are
// accepted as aliases for offer/answer.
func ParseRole(raw string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "offer", "server":
		return RoleOffer, nil
	case "answer", "client":
		return RoleAnswer, nil
	default:
		return "", fmt.Errorf("%w: role %q must be 'offer' or 'answer'", ErrInvalidConfig, raw)
	}
}

// Signaling selects the signaling transport.
type Signaling string

const (
	SignalingTCP Signaling = "tcp"
	SignalingWS  Signaling = "ws"
)

// Detector selects the client's detection strategy.
type Detector string

const (
	DetectorScan     Detector = "scan"
	DetectorExtremal Detector = "extremal"
)

// Defaults.
const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 8080
	DefaultFPS  = 30
)

// Config stores all parameters gathered from the environment, CLI flags and
// interactive prompts.
type Config struct {
	Role      Role
	Host      string    // signaling host: listen address (answer) or remote host (offer)
	Port      int       // signaling port
	Signaling Signaling // tcp or ws
	FPS       int       // frame rate of the generated animation (offer only)
	Detector  Detector  // detection strategy (answer only)
	STUN      []string  // optional STUN server URLs
	Metrics   string    // optional listen address of the Prometheus endpoint
	Debug     bool
}

// Load builds a Config from defaults, an optional .env file and CIRCLETRACK_*
// environment variables. Flags are applied on top by the caller.
func Load() *Config {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	cfg := &Config{
		Host:      getEnvWithDefault("CIRCLETRACK_HOST", DefaultHost),
		Port:      getEnvIntWithDefault("CIRCLETRACK_PORT", DefaultPort),
		Signaling: Signaling(strings.ToLower(getEnvWithDefault("CIRCLETRACK_SIGNALING", string(SignalingTCP)))),
		FPS:       getEnvIntWithDefault("CIRCLETRACK_FPS", DefaultFPS),
		Detector:  Detector(strings.ToLower(getEnvWithDefault("CIRCLETRACK_DETECTOR", string(DetectorScan)))),
		Metrics:   getEnvWithDefault("CIRCLETRACK_METRICS", ""),
		Debug:     getEnvBoolWithDefault("CIRCLETRACK_DEBUG", false),
	}

	if raw := os.Getenv("CIRCLETRACK_ROLE"); raw != "" {
		// Invalid values surface later through Validate.
		cfg.Role = Role(strings.ToLower(strings.TrimSpace(raw)))
	}
	if raw := os.Getenv("CIRCLETRACK_STUN"); raw != "" {
		cfg.STUN = SplitList(raw)
	}

	return cfg
}

// Validate checks every field and returns an error wrapping ErrInvalidConfig.
func (c *Config) Validate() error {
	if _, err := ParseRole(string(c.Role)); err != nil {
		return err
	}
	if !govalidator.IsHost(c.Host) {
		return fmt.Errorf("%w: invalid host %q", ErrInvalidConfig, c.Host)
	}
	if !govalidator.IsPort(strconv.Itoa(c.Port)) {
		return fmt.Errorf("%w: invalid port %d (must be 1~65535)", ErrInvalidConfig, c.Port)
	}
	switch c.Signaling {
	case SignalingTCP, SignalingWS:
	default:
		return fmt.Errorf("%w: signaling %q must be 'tcp' or 'ws'", ErrInvalidConfig, c.Signaling)
	}
	switch c.Detector {
	case DetectorScan, DetectorExtremal:
	default:
		return fmt.Errorf("%w: detector %q must be 'scan' or 'extremal'", ErrInvalidConfig, c.Detector)
	}
	if c.FPS < 1 || c.FPS > 120 {
		return fmt.Errorf("%w: fps %d out of range 1~120", ErrInvalidConfig, c.FPS)
	}
	for _, u := range c.STUN {
		if !strings.HasPrefix(u, "stun:") && !strings.HasPrefix(u, "stuns:") {
			return fmt.Errorf("%w: STUN url %q must start with stun:", ErrInvalidConfig, u)
		}
	}
	if c.Metrics != "" {
		if _, port, err := net.SplitHostPort(c.Metrics); err != nil || !govalidator.IsPort(port) {
			return fmt.Errorf("%w: invalid metrics address %q", ErrInvalidConfig, c.Metrics)
		}
	}
	return nil
}

// Address returns the signaling host:port.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ---------------------------------------------------------------------------
// Helper Functions
// ---------------------------------------------------------------------------

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// SplitList splits a comma-separated list, dropping empty items.
func SplitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
