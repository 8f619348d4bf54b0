// Package config provides configuration loading and management for the application.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ethereum-optimism/actions-sub002/internal/chain"
	"github.com/ethereum-optimism/actions-sub002/internal/types"
)

// MarketEntry names a single allowlisted market in the config file.
type MarketEntry struct {
	Name     string `yaml:"name" json:"name"`
	Address  string `yaml:"address" json:"address"`
	ChainID  uint64 `yaml:"chainId" json:"chainId"`
	Asset    string `yaml:"asset" json:"asset"`
	Protocol string `yaml:"protocol" json:"protocol"`
}

// FileConfig is the YAML document shape for chain and market configuration.
type FileConfig struct {
	Chains  []chain.Config `yaml:"chains" json:"chains"`
	Markets []MarketEntry  `yaml:"markets" json:"markets"`
}

// Config holds all application configuration.
type Config struct {
	// HTTP server port
	Port string

	// Path to the YAML file holding chains and market allowlists
	ChainsFile string

	// Hex private key for the server-side signer
	SignerKey string

	// Attribution suffix appended to wallet calldata, 16 bytes hex or empty
	AttributionSuffix string

	// Morpho GraphQL endpoint override
	MorphoAPIURL string

	// OpenTelemetry endpoint for observability
	OtelEndpoint string

	// Operation event webhook, disabled when the URL is empty
	WebhookURL     string
	WebhookAPIKey  string
	ExportInterval time.Duration

	// Timeouts and validation settings
	RequestTimeout time.Duration
	MaxAPY         float64
	RateLimit      float64
	RateBurst      int

	// Parsed contents of ChainsFile
	File FileConfig
}

// Load creates a new Config from environment variables and reads the chains
// file it points to.
func Load() (Config, error) {
	cfg := Config{
		Port:              GetEnvOrDefault("PORT", "8080"),
		ChainsFile:        GetEnvOrDefault("CHAINS_FILE", "chains.yaml"),
		SignerKey:         GetEnvOrDefault("SIGNER_KEY", ""),
		AttributionSuffix: GetEnvOrDefault("ATTRIBUTION_SUFFIX", ""),
		MorphoAPIURL:      GetEnvOrDefault("MORPHO_API_URL", ""),
		OtelEndpoint:      GetEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		WebhookURL:        GetEnvOrDefault("WEBHOOK_URL", ""),
		WebhookAPIKey:     GetEnvOrDefault("WEBHOOK_API_KEY", ""),
		ExportInterval:    GetEnvAsDuration("EXPORT_INTERVAL", time.Minute),
		RequestTimeout:    GetEnvAsDuration("REQUEST_TIMEOUT", 30*time.Second),
		MaxAPY:            GetEnvAsFloat("MAX_APY", 10.0), // 1000% sanity ceiling
		RateLimit:         GetEnvAsFloat("RATE_LIMIT", 50),
		RateBurst:         GetEnvAsInt("RATE_BURST", 100),
	}

	raw, err := os.ReadFile(cfg.ChainsFile)
	if err != nil {
		return Config{}, fmt.Errorf("read chains file %s: %w", cfg.ChainsFile, err)
	}
	if err := yaml.Unmarshal(raw, &cfg.File); err != nil {
		return Config{}, fmt.Errorf("parse chains file %s: %w", cfg.ChainsFile, err)
	}
	if len(cfg.File.Chains) == 0 {
		return Config{}, fmt.Errorf("chains file %s configures no chains", cfg.ChainsFile)
	}
	for _, m := range cfg.File.Markets {
		switch types.Protocol(strings.ToLower(m.Protocol)) {
		case types.ProtocolMorpho, types.ProtocolAave:
		default:
			return Config{}, fmt.Errorf("market %s: unknown protocol %q", m.Name, m.Protocol)
		}
	}
	return cfg, nil
}

// MarketsFor returns the market entries configured for one protocol.
func (c Config) MarketsFor(protocol types.Protocol) []MarketEntry {
	var out []MarketEntry
	for _, m := range c.File.Markets {
		if types.Protocol(strings.ToLower(m.Protocol)) == protocol {
			out = append(out, m)
		}
	}
	return out
}

// GetEnv retrieves an environment variable and whether it exists
func GetEnv(key string) (string, bool) {
	value, exists := os.LookupEnv(key)
	return value, exists
}

// GetEnvOrDefault retrieves an environment variable or returns the default value if not set
func GetEnvOrDefault(key, defaultValue string) string {
	if value, exists := GetEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt retrieves an environment variable as an integer with a default value
func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := GetEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvAsFloat retrieves an environment variable as a float with a default value
func GetEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := GetEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// GetEnvAsDuration retrieves an environment variable as a duration with a default value
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := GetEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
