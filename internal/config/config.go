package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config application configuration structure
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	Oracle   OracleConfig   `yaml:"oracle"`
	Token    TokenConfig    `yaml:"token"`
	JWT      JWTConfig      `yaml:"jwt"`
	CORS     CORSConfig     `yaml:"cors"`
	Admin    AdminConfig    `yaml:"admin"`
	Monitor  MonitorConfig  `yaml:"monitor"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig database configuration
type DatabaseConfig struct {
	DSN    string `yaml:"dsn"`
	Driver string `yaml:"driver"`
}

// NATSConfig NATS message server configuration
type NATSConfig struct {
	URL           string `yaml:"url"`
	Timeout       int    `yaml:"timeout"`
	ReconnectWait int    `yaml:"reconnect_wait"`
	MaxReconnects int    `yaml:"max_reconnects"`
	StreamName    string `yaml:"stream_name"`
}

// OracleConfig score oracle bridge configuration. Source, query template,
// budget and routing ID are bootstrap defaults; runtime values live in the
// oracle_configs table and are mutated through the audited admin API.
type OracleConfig struct {
	Source            string  `yaml:"source"`            // provider base URL
	QueryTemplate     string  `yaml:"queryTemplate"`     // provider query template
	RoutingID         string  `yaml:"routingId"`         // provider job/route identifier
	RequestBudget     string  `yaml:"requestBudget"`     // provider fee budget per request
	MinUpdateInterval int     `yaml:"minUpdateInterval"` // seconds between successful updates per league, default 3600
	RequestTimeout    int     `yaml:"requestTimeout"`    // outbound request timeout (seconds)
	RequestsPerSecond float64 `yaml:"requestsPerSecond"` // outbound rate limit toward the provider
}

// MinInterval returns the per-league re-request window.
func (o OracleConfig) MinInterval() time.Duration {
	if o.MinUpdateInterval <= 0 {
		return time.Hour
	}
	return time.Duration(o.MinUpdateInterval) * time.Second
}

// TokenConfig stake token configuration
type TokenConfig struct {
	Address        string `yaml:"address"`        // ERC-20 stake token contract
	Decimals       uint8  `yaml:"decimals"`       // 6 for the reference stable unit; logic is decimal-agnostic
	CustodyAddress string `yaml:"custodyAddress"` // league escrow account
	RPCEndpoint    string `yaml:"rpcEndpoint"`    // EVM node RPC URL
	PrivateKey     string `yaml:"privateKey"`     // custody signing key (hex, no 0x prefix)
	ChainID        int64  `yaml:"chainId"`
	GasLimit       uint64 `yaml:"gasLimit"`
}

// JWTConfig authentication configuration
type JWTConfig struct {
	Secret      string `yaml:"secret"`
	ExpiryHours int    `yaml:"expiryHours"`
}

// CORSConfig CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowedOrigins"`
	AllowCredentials bool     `yaml:"allowCredentials"`
	MaxAge           int      `yaml:"maxAge"`
}

// AdminConfig admin API access control configuration
type AdminConfig struct {
	AllowedIPs []string `yaml:"allowedIPs"` // IP addresses or CIDR ranges
}

// MonitorConfig background monitoring worker configuration
type MonitorConfig struct {
	IntervalSeconds int `yaml:"intervalSeconds"` // oracle/league gauge refresh, default 60
}

var AppConfig *Config

// LoadConfig loads the configuration file, preferring config.local.yaml when present
func LoadConfig(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
		if _, err := os.Stat("config.local.yaml"); err == nil {
			configPath = "config.local.yaml"
			log.Printf("🔧 Using local configuration file: config.local.yaml")
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	overrideFromEnv(&config)

	if len(config.Admin.AllowedIPs) > 0 {
		fmt.Printf("📋 [Config] Admin IP whitelist loaded: %d IPs/CIDRs configured\n", len(config.Admin.AllowedIPs))
	} else {
		fmt.Printf("📋 [Config] Admin IP whitelist: not configured (localhost-only mode)\n")
	}
	fmt.Printf("📋 [Config] Oracle: source=%s minInterval=%s\n", config.Oracle.Source, config.Oracle.MinInterval())

	AppConfig = &config
	return nil
}

// overrideFromEnv applies environment variable overrides
func overrideFromEnv(config *Config) {
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}

	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		config.NATS.URL = natsURL
	}

	if source := os.Getenv("ORACLE_SOURCE"); source != "" {
		config.Oracle.Source = source
	}
	if interval := os.Getenv("ORACLE_MIN_UPDATE_INTERVAL"); interval != "" {
		if v, err := strconv.Atoi(interval); err == nil {
			config.Oracle.MinUpdateInterval = v
		}
	}

	if token := os.Getenv("STAKE_TOKEN_ADDRESS"); token != "" {
		config.Token.Address = token
	}
	if rpc := os.Getenv("EVM_RPC_ENDPOINT"); rpc != "" {
		config.Token.RPCEndpoint = rpc
	}
	if key := os.Getenv("CUSTODY_PRIVATE_KEY"); key != "" {
		config.Token.PrivateKey = key
	}

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.JWT.Secret = secret
	}
}
