package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Redis  RedisConfig
	Ledger LedgerConfig
	Wallet WalletConfig
	Server ServerConfig
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
}

// LedgerConfig points at the remote ledger service (the authoritative
// balance/transaction store).
type LedgerConfig struct {
	APIURL string `mapstructure:"api_url"`
	APIKey string `mapstructure:"api_key"`
}

type WalletConfig struct {
	UserID           string `mapstructure:"user_id"`
	CredentialTTLSec int64  `mapstructure:"credential_ttl_sec"`
	SyncIntervalSec  int64  `mapstructure:"sync_interval_sec"`
	ProbeIntervalSec int64  `mapstructure:"probe_interval_sec"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

func (w WalletConfig) CredentialTTL() time.Duration {
	return time.Duration(w.CredentialTTLSec) * time.Second
}

func (w WalletConfig) SyncInterval() time.Duration {
	return time.Duration(w.SyncIntervalSec) * time.Second
}

func (w WalletConfig) ProbeInterval() time.Duration {
	return time.Duration(w.ProbeIntervalSec) * time.Second
}

func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("redis.addr", "redis:6379")
	v.SetDefault("wallet.credential_ttl_sec", 300)
	v.SetDefault("wallet.sync_interval_sec", 30)
	v.SetDefault("wallet.probe_interval_sec", 10)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")
	_ = v.ReadInConfig()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicit env bindings
	bindings := map[string]string{
		"redis.addr":                "REDIS_ADDR",
		"redis.password":            "REDIS_PASSWORD",
		"ledger.api_url":            "LEDGER_API_URL",
		"ledger.api_key":            "LEDGER_API_KEY",
		"wallet.user_id":            "WALLET_USER_ID",
		"wallet.credential_ttl_sec": "CREDENTIAL_TTL_SEC",
		"wallet.sync_interval_sec":  "SYNC_INTERVAL_SEC",
		"wallet.probe_interval_sec": "PROBE_INTERVAL_SEC",
		"server.port":               "PORT",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	type req struct {
		val  string
		name string
	}
	for _, r := range []req{
		{c.Ledger.APIURL, "LEDGER_API_URL"},
		{c.Wallet.UserID, "WALLET_USER_ID"},
	} {
		if r.val == "" {
			return fmt.Errorf("required config missing: %s", r.name)
		}
	}
	if c.Wallet.CredentialTTLSec <= 0 {
		return fmt.Errorf("CREDENTIAL_TTL_SEC must be positive")
	}
	return nil
}
