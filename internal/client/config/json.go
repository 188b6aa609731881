package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/beeroutine/haircareplus-sync/internal/flagx"
	"github.com/beeroutine/haircareplus-sync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "30s"
// or as integer nanoseconds.
type JsonConfig struct {
	ServerURL    string         `json:"server_url"`
	ClientID     string         `json:"client_id"`
	DatabaseDSN  string         `json:"database_dsn"`
	SyncInterval timex.Duration `json:"sync_interval"`
	MaxRetries   *int           `json:"max_retries"`
	RedisAddr    string         `json:"redis_addr"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// the -c/-config flag. Absent fields keep their current values. Read or
// unmarshal errors panic; config is resolved once at startup.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerURL != "" {
		cfg.ServerURL = jc.ServerURL
	}
	if jc.ClientID != "" {
		cfg.ClientID = jc.ClientID
	}
	if jc.DatabaseDSN != "" {
		cfg.DatabaseDSN = jc.DatabaseDSN
	}
	if jc.SyncInterval.Duration != 0 {
		cfg.SyncInterval = time.Duration(jc.SyncInterval.Duration)
	}
	if jc.MaxRetries != nil {
		cfg.MaxRetries = *jc.MaxRetries
	}
	if jc.RedisAddr != "" {
		cfg.RedisAddr = jc.RedisAddr
	}
}
