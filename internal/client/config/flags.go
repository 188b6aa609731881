package config

import (
	"flag"
	"os"
	"time"

	"github.com/beeroutine/haircareplus-sync/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   base URL of the relay server (default from Config)
//	-id string  role-prefixed client identity
//	-d string   local SQLite database path
//	-i int      sync interval in seconds (default from Config)
//	-r string   redis address for wake hints
//
// Note: The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-id", "-d", "-i", "-r"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "base URL of the relay server")
	fs.StringVar(&cfg.ClientID, "id", cfg.ClientID, "role-prefixed client identity")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "local database path")
	syncInterval := fs.Int("i", int(cfg.SyncInterval.Seconds()), "sync interval (in seconds)")
	fs.StringVar(&cfg.RedisAddr, "r", cfg.RedisAddr, "redis address for wake hints")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.SyncInterval = time.Duration(*syncInterval) * time.Second
}
