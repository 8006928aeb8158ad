package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/cppla/daka/ledger"
)

// AppConfig holds file and environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via the config file or the environment.
type AppConfig struct {
	AppPort            string   `koanf:"app_port"`
	JWTSecret          string   `koanf:"jwt_secret"`
	RateLimitPerMinute int      `koanf:"rate_limit_per_minute"`
	AllowedOrigins     []string `koanf:"allowed_origins"`
	// Gin framework configuration
	GinMode string `koanf:"gin_mode"`
	GinPath string `koanf:"gin_path"`
	// Database: mysql, postgres or sqlite
	DBDriver    string `koanf:"db_driver"`
	DatabaseURI string `koanf:"database_uri"`
	DBHost      string `koanf:"db_host"`
	DBPort      string `koanf:"db_port"`
	DBUser      string `koanf:"db_user"`
	DBPassword  string `koanf:"db_password"`
	DBName      string `koanf:"db_name"`
	// Redis for the short-lived ledger read cache
	RedisHost      string `koanf:"redis_host"`
	RedisPort      int    `koanf:"redis_port"`
	RedisDB        int    `koanf:"redis_db"`
	RedisPassword  string `koanf:"redis_password"`
	LedgerCacheSec int    `koanf:"ledger_cache_sec"`
	// Ledger (Solana JSON-RPC) access
	LedgerRPCURL     string `koanf:"ledger_rpc_url"`
	LedgerTimeoutSec int    `koanf:"ledger_timeout_sec"`
	SignatureWindow  int    `koanf:"signature_window"`
	RequireSignature bool   `koanf:"require_signature"`
	// Policy values written to policy_config when a key is missing at boot
	SeedMinSolBalance    string `koanf:"seed_min_sol_balance"`
	SeedMinTxCount       int    `koanf:"seed_min_tx_count"`
	SeedMinWalletAgeDays int    `koanf:"seed_min_wallet_age_days"`
	SeedTargetCount      int    `koanf:"seed_target_count"`
	SeedTestingMode      bool   `koanf:"seed_testing_mode"`
	// Logging configuration
	LogLevel      string `koanf:"log_level"`
	LogPath       string `koanf:"log_path"`
	LogMaxSizeMB  int    `koanf:"log_max_size_mb"`
	LogMaxBackups int    `koanf:"log_max_backups"`
	LogMaxAgeDays int    `koanf:"log_max_age_days"`
	LogCompress   bool   `koanf:"log_compress"`
}

const envPrefix = "DAKA_"

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during boot.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	c, err := Parse(getEnv(envPrefix+"CONFIG", "config/config.yaml"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if c.JWTSecret == "" {
		log.Fatal("DAKA_JWT_SECRET must be set in the config file or environment")
	}

	cfg = c
	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// Parse layers defaults, the optional YAML file at path and DAKA_* environment variables.
// A missing file is not an error.
func Parse(path string) (AppConfig, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return AppConfig{}, fmt.Errorf("read %s: %w", path, err)
			}
		}
	}

	// DAKA_DB_HOST -> db_host
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return AppConfig{}, fmt.Errorf("read env: %w", err)
	}

	var out AppConfig
	if err := k.UnmarshalWithConf("", &out, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return AppConfig{}, fmt.Errorf("decode config: %w", err)
	}
	applyDefaults(&out)
	return out, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.DBDriver == "" {
		c.DBDriver = "mysql"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		switch c.DBDriver {
		case "postgres":
			c.DBPort = "5432"
		default:
			c.DBPort = "3306"
		}
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "daka"
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.LedgerCacheSec == 0 {
		c.LedgerCacheSec = 3
	}
	if c.LedgerRPCURL == "" {
		c.LedgerRPCURL = "https://api.mainnet-beta.solana.com"
	}
	if c.LedgerTimeoutSec == 0 {
		c.LedgerTimeoutSec = 10
	}
	if c.SignatureWindow <= 0 {
		c.SignatureWindow = 100
	}
	if c.SignatureWindow > ledger.MaxSignatureWindow {
		c.SignatureWindow = ledger.MaxSignatureWindow
	}
	if c.SeedMinSolBalance == "" {
		c.SeedMinSolBalance = "0.01"
	}
	if c.SeedTargetCount == 0 {
		c.SeedTargetCount = 10
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
}
