package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/beeroutine/haircareplus-sync/internal/flagx"
	"github.com/beeroutine/haircareplus-sync/internal/timex"
)

// JsonConfig is an intermediate DTO used only for reading JSON configuration
// files. It uses timex.Duration for interval fields, which allows parsing
// both string values such as "720h" and integer nanoseconds. After
// unmarshalling, its fields are copied into the runtime Config.
type JsonConfig struct {
	EndpointAddrHTTP string         `json:"endpoint_addr_http"`
	DatabaseDSN      string         `json:"database_dsn"`
	RedisAddr        string         `json:"redis_addr"`
	PacketTTL        timex.Duration `json:"packet_ttl"`
	RetentionWindow  timex.Duration `json:"retention_window"`
	OrphanGrace      timex.Duration `json:"orphan_grace"`
	SweepInterval    timex.Duration `json:"sweep_interval"`
	S3RootUser       string         `json:"s3_root_user"`
	S3RootPassword   string         `json:"s3_root_password"`
	S3Bucket         string         `json:"s3_bucket"`
	S3Region         string         `json:"s3_region"`
	S3BaseEndpoint   string         `json:"s3_base_endpoint"`
	S3PublicBase     string         `json:"s3_public_base"`
}

// parseJson loads configuration values from the JSON file named by the
// -c/-config flag into the provided Config instance. Absent fields keep
// their current values. If the file cannot be read or contains invalid
// JSON, the function panics; config is resolved once at startup.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.EndpointAddrHTTP != "" {
		config.EndpointAddrHTTP = c.EndpointAddrHTTP
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.RedisAddr != "" {
		config.RedisAddr = c.RedisAddr
	}
	if c.PacketTTL.Duration != 0 {
		config.PacketTTL = time.Duration(c.PacketTTL.Duration)
	}
	if c.RetentionWindow.Duration != 0 {
		config.RetentionWindow = time.Duration(c.RetentionWindow.Duration)
	}
	if c.OrphanGrace.Duration != 0 {
		config.OrphanGrace = time.Duration(c.OrphanGrace.Duration)
	}
	if c.SweepInterval.Duration != 0 {
		config.SweepInterval = time.Duration(c.SweepInterval.Duration)
	}
	if c.S3RootUser != "" {
		config.S3RootUser = c.S3RootUser
	}
	if c.S3RootPassword != "" {
		config.S3RootPassword = c.S3RootPassword
	}
	if c.S3Bucket != "" {
		config.S3Bucket = c.S3Bucket
	}
	if c.S3Region != "" {
		config.S3Region = c.S3Region
	}
	if c.S3BaseEndpoint != "" {
		config.S3BaseEndpoint = c.S3BaseEndpoint
	}
	if c.S3PublicBase != "" {
		config.S3PublicBase = c.S3PublicBase
	}
}
