package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Config holds the full server configuration. Sources, highest
// precedence first: command-line flags, COLEMAN_* environment
// variables, an optional TOML file, built-in defaults.
type Config struct {
	Host                     string `toml:"host"`
	Port                     int    `toml:"port"`
	WALPath                  string `toml:"wal_path"`
	SnapshotDir              string `toml:"snapshot_dir"`
	SnapshotRecordThreshold  int    `toml:"snapshot_record_threshold"`
	SnapshotWALSizeThreshold int64  `toml:"snapshot_wal_size_threshold"`
	Fsync                    bool   `toml:"fsync"`
	LogLevel                 string `toml:"log_level"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Host:                     "127.0.0.1",
		Port:                     7432,
		WALPath:                  "data/coleman.wal",
		SnapshotDir:              "data/snapshots",
		SnapshotRecordThreshold:  10_000,
		SnapshotWALSizeThreshold: 10 << 20, // 10 MiB
		Fsync:                    true,
		LogLevel:                 "info",
	}
}

// Parse builds the configuration from defaults, an optional TOML file
// (-config flag or COLEMAN_CONFIG), environment variables, and flags.
func Parse() (*Config, error) {
	return parse(flag.CommandLine, os.Args[1:])
}

func parse(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := Default()

	var configPath string
	fs.StringVar(&configPath, "config", envStr("COLEMAN_CONFIG", ""), "path to TOML config file")
	fs.StringVar(&cfg.Host, "host", envStr("COLEMAN_HOST", cfg.Host), "listen host")
	fs.IntVar(&cfg.Port, "port", envInt("COLEMAN_PORT", cfg.Port), "listen port")
	fs.StringVar(&cfg.WALPath, "wal-path", envStr("COLEMAN_WAL_PATH", cfg.WALPath), "write-ahead log file")
	fs.StringVar(&cfg.SnapshotDir, "snapshot-dir", envStr("COLEMAN_SNAPSHOT_DIR", cfg.SnapshotDir), "snapshot directory")
	fs.IntVar(&cfg.SnapshotRecordThreshold, "snapshot-records", envInt("COLEMAN_SNAPSHOT_RECORDS", cfg.SnapshotRecordThreshold), "records before a snapshot is taken")
	fs.Int64Var(&cfg.SnapshotWALSizeThreshold, "snapshot-wal-bytes", envInt64("COLEMAN_SNAPSHOT_WAL_BYTES", cfg.SnapshotWALSizeThreshold), "WAL bytes before a snapshot is taken")
	fs.BoolVar(&cfg.Fsync, "fsync", envBool("COLEMAN_FSYNC", cfg.Fsync), "fsync WAL appends (disable for speed at risk of data loss on crash)")
	fs.StringVar(&cfg.LogLevel, "log-level", envStr("COLEMAN_LOG_LEVEL", cfg.LogLevel), "log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if configPath == "" {
		return cfg, nil
	}

	// Values from the file fill in anything not pinned by a flag or an
	// environment variable.
	fileCfg := *Default()
	if _, err := toml.DecodeFile(configPath, &fileCfg); err != nil {
		return nil, fmt.Errorf("config file %s: %w", configPath, err)
	}

	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })

	pinned := func(flagName, envName string) bool {
		return setFlags[flagName] || os.Getenv(envName) != ""
	}
	if !pinned("host", "COLEMAN_HOST") {
		cfg.Host = fileCfg.Host
	}
	if !pinned("port", "COLEMAN_PORT") {
		cfg.Port = fileCfg.Port
	}
	if !pinned("wal-path", "COLEMAN_WAL_PATH") {
		cfg.WALPath = fileCfg.WALPath
	}
	if !pinned("snapshot-dir", "COLEMAN_SNAPSHOT_DIR") {
		cfg.SnapshotDir = fileCfg.SnapshotDir
	}
	if !pinned("snapshot-records", "COLEMAN_SNAPSHOT_RECORDS") {
		cfg.SnapshotRecordThreshold = fileCfg.SnapshotRecordThreshold
	}
	if !pinned("snapshot-wal-bytes", "COLEMAN_SNAPSHOT_WAL_BYTES") {
		cfg.SnapshotWALSizeThreshold = fileCfg.SnapshotWALSizeThreshold
	}
	if !pinned("fsync", "COLEMAN_FSYNC") {
		cfg.Fsync = fileCfg.Fsync
	}
	if !pinned("log-level", "COLEMAN_LOG_LEVEL") {
		cfg.LogLevel = fileCfg.LogLevel
	}
	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}
