package config

import "time"

// Config holds runtime settings for the sync agent.
//
// Fields:
//   - ServerURL: base URL of the relay server.
//   - ClientID: role-prefixed device identity (e.g. "patient-7f3a").
//   - DatabaseDSN: path of the local SQLite database file.
//   - SyncInterval: cadence of the background sync loop.
//   - MaxRetries: how often a server-rejected change is resent before it is
//     parked for manual resolution.
//   - RedisAddr: address of the redis used for real-time wake hints; empty
//     disables the hint listener (the periodic loop alone stays correct).
type Config struct {
	ServerURL    string
	ClientID     string
	DatabaseDSN  string
	SyncInterval time.Duration
	MaxRetries   int
	RedisAddr    string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.ClientID = ""
	c.DatabaseDSN = "sync.db"
	c.SyncInterval = 60 * time.Second
	c.MaxRetries = 10
	c.RedisAddr = ""
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
