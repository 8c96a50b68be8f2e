// Package config loads server configuration from an optional TOML file,
// with environment variable overrides layered on top via viper, the same
// two-library pairing the example corpus's CLI tooling uses for its own
// config surface.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	"github.com/coredb/rpccore/internal/capabilities"
)

// Config is everything the process composition root needs to build a
// Factory and start listening.
type Config struct {
	Listen string `toml:"listen"`

	PingInterval     time.Duration `toml:"ping_interval"`
	OutboundCapacity int           `toml:"outbound_capacity"`
	TxnQuotaPerScope int           `toml:"txn_quota_per_scope"`

	Scripting              bool `toml:"scripting"`
	GuestAccess            bool `toml:"guest_access"`
	LiveQueryNotifications bool `toml:"live_query_notifications"`
}

// Default mirrors capabilities.Default()'s conservative posture plus sane
// connection-level defaults for a locally-embedded deployment.
func Default() Config {
	caps := capabilities.Default()
	return Config{
		Listen:                 "127.0.0.1:8000",
		PingInterval:           30 * time.Second,
		OutboundCapacity:       64,
		TxnQuotaPerScope:       8,
		Scripting:              caps.Scripting,
		GuestAccess:            caps.GuestAccess,
		LiveQueryNotifications: caps.LiveQueryNotifications,
	}
}

// Load reads path (if non-empty and present) as TOML into a Config seeded
// with Default(), then applies environment variable overrides through
// viper. Environment variables use the RPCCORE_ prefix with underscores in
// place of the struct's dotted-path separators (e.g. RPCCORE_LISTEN,
// RPCCORE_PING_INTERVAL).
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config file %s: %w", path, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix("RPCCORE")
	v.AutomaticEnv()

	if v.IsSet("LISTEN") {
		cfg.Listen = v.GetString("LISTEN")
	}
	if v.IsSet("PING_INTERVAL") {
		d, err := time.ParseDuration(v.GetString("PING_INTERVAL"))
		if err != nil {
			return Config{}, fmt.Errorf("RPCCORE_PING_INTERVAL: %w", err)
		}
		cfg.PingInterval = d
	}
	if v.IsSet("OUTBOUND_CAPACITY") {
		cfg.OutboundCapacity = v.GetInt("OUTBOUND_CAPACITY")
	}
	if v.IsSet("TXN_QUOTA_PER_SCOPE") {
		cfg.TxnQuotaPerScope = v.GetInt("TXN_QUOTA_PER_SCOPE")
	}
	if v.IsSet("SCRIPTING") {
		cfg.Scripting = v.GetBool("SCRIPTING")
	}
	if v.IsSet("GUEST_ACCESS") {
		cfg.GuestAccess = v.GetBool("GUEST_ACCESS")
	}
	if v.IsSet("LIVE_QUERY_NOTIFICATIONS") {
		cfg.LiveQueryNotifications = v.GetBool("LIVE_QUERY_NOTIFICATIONS")
	}

	return cfg, nil
}

// Capabilities builds the Capabilities value this Config describes. Func,
// net, route, and experimental allow/deny target sets are left at their
// Default() posture, as is the RPC method gate; only the three standalone
// feature flags are config-driven at this layer.
func (c Config) Capabilities() capabilities.Capabilities {
	caps := capabilities.Default()
	caps.Scripting = c.Scripting
	caps.GuestAccess = c.GuestAccess
	caps.LiveQueryNotifications = c.LiveQueryNotifications
	return caps
}
