// Package config parses etc/AFD_CONFIG (§6), the daemon-wide tunables
// FD re-reads on its periodic maintenance tick (§2, "configuration
// re-read"). The file is a flat KEY value list, which go-ini parses
// cleanly as the default unsectioned section — the same approach the
// teacher applies to its own config file.
package config

import (
	"time"

	"github.com/go-ini/ini"
)

// Config holds every AFD_CONFIG tunable named in §6.
type Config struct {
	MaxConnections        int
	RemoteFileCheckInterval time.Duration
	DefaultAgeLimit       time.Duration
	MaxOutputLogFiles     int
	CreateTargetDir       bool
	DefaultSMTPServer     string
	DefaultSMTPFrom       string
}

// Defaults mirror the original's compiled-in fallbacks.
func Defaults() Config {
	return Config{
		MaxConnections:          MaxDefaultConnections,
		RemoteFileCheckInterval: DefaultRemoteFileCheckInterval,
		DefaultAgeLimit:         DefaultAgeLimit,
		MaxOutputLogFiles:       10,
		CreateTargetDir:         false,
	}
}

// Tunables the original keeps as compile-time constants (§6, #define
// fallbacks); reused as this rewrite's zero-config defaults.
const (
	MaxDefaultConnections           = 60
	DefaultRemoteFileCheckInterval  = 300 * time.Second
	DefaultAgeLimit                 = 0 // 0 = no limit
	RescanTime                      = 5 * time.Second
	MaxQueuedBeforeChecked          = 1000
	ElapsedLoopsBeforeCheck         = 10
	ZombieSweepInterval             = 45 * time.Second
)

// Load reads path (an AFD_CONFIG file) over Defaults(), returning the
// merged Config. A missing file is not an error — it simply yields the
// defaults, since FD must start from a pristine working directory.
func Load(path string) (Config, error) {
	cfg := Defaults()
	f, err := ini.LooseLoad(path)
	if err != nil {
		return cfg, err
	}
	sec := f.Section("")
	if sec.HasKey("MAX_CONNECTIONS_DEF") {
		cfg.MaxConnections = sec.Key("MAX_CONNECTIONS_DEF").MustInt(cfg.MaxConnections)
	}
	if sec.HasKey("REMOTE_FILE_CHECK_INTERVAL_DEF") {
		secs := sec.Key("REMOTE_FILE_CHECK_INTERVAL_DEF").MustInt(int(cfg.RemoteFileCheckInterval / time.Second))
		cfg.RemoteFileCheckInterval = time.Duration(secs) * time.Second
	}
	if sec.HasKey("DEFAULT_AGE_LIMIT_DEF") {
		secs := sec.Key("DEFAULT_AGE_LIMIT_DEF").MustInt(int(cfg.DefaultAgeLimit / time.Second))
		cfg.DefaultAgeLimit = time.Duration(secs) * time.Second
	}
	if sec.HasKey("MAX_OUTPUT_LOG_FILES_DEF") {
		cfg.MaxOutputLogFiles = sec.Key("MAX_OUTPUT_LOG_FILES_DEF").MustInt(cfg.MaxOutputLogFiles)
	}
	if sec.HasKey("CREATE_TARGET_DIR_DEF") {
		cfg.CreateTargetDir = sec.Key("CREATE_TARGET_DIR_DEF").MustBool(cfg.CreateTargetDir)
	}
	if sec.HasKey("DEFAULT_SMTP_SERVER_DEF") {
		cfg.DefaultSMTPServer = sec.Key("DEFAULT_SMTP_SERVER_DEF").String()
	}
	if sec.HasKey("DEFAULT_SMTP_FROM_DEF") {
		cfg.DefaultSMTPFrom = sec.Key("DEFAULT_SMTP_FROM_DEF").String()
	}
	return cfg, nil
}
