package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/proofofburn/burnkit/burnkey"
	"github.com/proofofburn/burnkit/config"
	"github.com/proofofburn/burnkit/db"
	"github.com/proofofburn/burnkit/internal"
	"github.com/proofofburn/burnkit/proofservice"
	"github.com/proofofburn/burnkit/session"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	defaultAPIHost         = "0.0.0.0"
	defaultAPIPort         = 9095
	defaultLogLevel        = "info"
	defaultLogOutput       = "stdout"
	defaultDatadir         = ".burnkit" // Will be prefixed with user's home directory
	defaultMonitorInterval = 2 * time.Minute
)

// Version is the build version, set at build time with -ldflags
var Version = internal.Version

// Config holds the application configuration
type Config struct {
	Web3    Web3Config
	API     APIConfig
	Prover  ProverConfig
	Search  SearchConfig
	Session SessionConfig
	Monitor MonitorConfig
	Log     LogConfig
	DB      DBConfig
	Datadir string
}

// Web3Config holds Ethereum-related configuration
type Web3Config struct {
	PrivKey string   `mapstructure:"privkey"`
	Network string   `mapstructure:"network"`
	Rpc     []string `mapstructure:"rpc"`
	Offline bool     `mapstructure:"offline"`
}

// APIConfig holds the API-specific configuration
type APIConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// ProverConfig holds the proof service configuration
type ProverConfig struct {
	URL      string        `mapstructure:"url"`
	Poll     time.Duration `mapstructure:"poll"`
	VKey     string        `mapstructure:"vkey"`
	Disabled bool          `mapstructure:"disabled"`
}

// SearchConfig holds the burn key search configuration
type SearchConfig struct {
	MaxIterations uint64 `mapstructure:"maxiterations"`
	MinZeroBytes  int    `mapstructure:"minzerobytes"`
	Workers       int    `mapstructure:"workers"`
}

// SessionConfig holds the wallet session configuration
type SessionConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// MonitorConfig holds the balance monitor configuration
type MonitorConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Output string `mapstructure:"output"`
}

// DBConfig holds the database configuration
type DBConfig struct {
	Type string `mapstructure:"type"`
}

// loadConfig loads configuration from flags, environment variables, and defaults
func loadConfig() (*Config, error) {
	v := viper.New()

	// Get user's home directory for default datadir
	userHomeDir, err := os.UserHomeDir()
	if err != nil {
		userHomeDir = "."
	}
	defaultDatadirPath := filepath.Join(userHomeDir, defaultDatadir)

	v.SetDefault("web3.network", config.DefaultNetwork)
	v.SetDefault("web3.rpc", []string{})
	v.SetDefault("api.host", defaultAPIHost)
	v.SetDefault("api.port", defaultAPIPort)
	v.SetDefault("prover.poll", proofservice.DefaultPollInterval)
	v.SetDefault("search.maxiterations", uint64(burnkey.DefaultMaxIterations))
	v.SetDefault("search.minzerobytes", burnkey.DefaultMinZeroBytes)
	v.SetDefault("session.ttl", session.DefaultTTL)
	v.SetDefault("monitor.interval", defaultMonitorInterval)
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.output", defaultLogOutput)
	v.SetDefault("db.type", db.TypePebble)
	v.SetDefault("datadir", defaultDatadirPath)

	// Configure flags
	flag.StringP("web3.network", "n", config.DefaultNetwork, fmt.Sprintf("network to use %v", config.AvailableNetworks()))
	flag.StringSliceP("web3.rpc", "w", []string{}, "web3 rpc endpoint(s), comma-separated (defaults to the network endpoints)")
	flag.StringP("web3.privkey", "k", "", "private key of the account that broadcasts mint transactions (optional)")
	flag.Bool("web3.offline", false, "run without chain access (no balances, nullifier checks or mints)")
	flag.StringP("api.host", "a", defaultAPIHost, "API host")
	flag.IntP("api.port", "p", defaultAPIPort, "API port")
	flag.String("prover.url", "", "proof service URL (defaults to the network proving endpoint)")
	flag.Duration("prover.poll", proofservice.DefaultPollInterval, "proof service polling interval")
	flag.String("prover.vkey", "", "groth16 verification key file used to check proofs before storing them")
	flag.Bool("prover.disabled", false, "disable the proof endpoints")
	flag.Uint64("search.maxiterations", burnkey.DefaultMaxIterations, "maximum candidates tested by a burn key search")
	flag.Int("search.minzerobytes", burnkey.DefaultMinZeroBytes, "default search difficulty in leading zero bytes")
	flag.Int("search.workers", 0, "concurrent burn key searches (0 means one per CPU)")
	flag.Duration("session.ttl", session.DefaultTTL, "wallet session lifetime")
	flag.Duration("monitor.interval", defaultMonitorInterval, "burn address balance refresh interval (0 disables it)")
	flag.StringP("log.level", "l", defaultLogLevel, "log level (debug, info, warn, error)")
	flag.StringP("log.output", "o", defaultLogOutput, "log output (stdout, stderr or filepath)")
	flag.String("db.type", db.TypePebble, fmt.Sprintf("database type (%s or %s)", db.TypePebble, db.TypeInMemory))
	flag.StringP("datadir", "d", defaultDatadirPath, "data directory for database files")

	// Configure usage information
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "burnkit-node %s\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: burnkit-node [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment variables are also available with the same name as flags,\n")
		fmt.Fprintf(os.Stderr, "  except for dots (.) which are replaced by underscores (_).\n")
		fmt.Fprintf(os.Stderr, "  For example, BURNKIT_WEB3_PRIVKEY or BURNKIT_API_PORT\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Start on sepolia with the default endpoints\n")
		fmt.Fprintf(os.Stderr, "  burnkit-node\n\n")
		fmt.Fprintf(os.Stderr, "  # Start on a local anvil chain, minting with a broadcaster key\n")
		fmt.Fprintf(os.Stderr, "  burnkit-node --web3.network=anvil --web3.privkey=0x123...\n")
	}

	// Parse flags
	flag.CommandLine.SortFlags = false
	flag.Parse()

	// Configure Viper to use environment variables
	v.SetEnvPrefix("BURNKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind flags to Viper
	if err := v.BindPFlags(flag.CommandLine); err != nil {
		return nil, fmt.Errorf("error binding flags: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return cfg, nil
}

// validateConfig validates the loaded configuration and resolves the
// network it runs on.
func validateConfig(cfg *Config) (config.Network, error) {
	network, err := config.NetworkByName(cfg.Web3.Network)
	if err != nil {
		return config.Network{}, err
	}
	if cfg.Search.MinZeroBytes < 0 || cfg.Search.MinZeroBytes > 32 {
		return config.Network{}, fmt.Errorf("search.minzerobytes %d not in [0, 32]", cfg.Search.MinZeroBytes)
	}
	if cfg.DB.Type != db.TypePebble && cfg.DB.Type != db.TypeInMemory {
		return config.Network{}, fmt.Errorf("invalid db.type %q", cfg.DB.Type)
	}
	if cfg.Web3.Offline && cfg.Web3.PrivKey != "" {
		return config.Network{}, fmt.Errorf("web3.privkey needs chain access, remove web3.offline")
	}
	if cfg.Prover.URL == "" {
		cfg.Prover.URL = network.DefaultProvingEndpoint()
	}
	if !cfg.Prover.Disabled && cfg.Prover.URL == "" {
		return config.Network{}, fmt.Errorf("no proof service for network %s, set prover.url or prover.disabled", network.Name)
	}
	return network, nil
}
