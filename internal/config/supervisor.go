package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Supervisor is the daemon's own top-level configuration: where its socket,
// snapshot, PID file and log directory live (spec section 6). The
// Default* restart-policy fields are loaded but not applied to
// ProcessConfigs: process.Config.WithDefaults uses its own fixed defaults.
type Supervisor struct {
	SocketPath      string `mapstructure:"socket_path"`
	SnapshotPath    string `mapstructure:"snapshot_path"`
	PIDFile         string `mapstructure:"pid_file"`
	LogDir          string `mapstructure:"log_dir"`
	LogMaxSizeBytes int64  `mapstructure:"log_max_size_bytes"`
	HistoryDBPath   string `mapstructure:"history_db_path"`
	LogLevel        string `mapstructure:"log_level"`
	ProgramDir      string `mapstructure:"program_dir"`

	DefaultAutoRestart      bool `mapstructure:"default_autorestart"`
	DefaultMaxRestarts      int  `mapstructure:"default_max_restarts"`
	DefaultRestartDelaySecs int  `mapstructure:"default_restart_delay_secs"`
}

func defaultSupervisor() Supervisor {
	return Supervisor{
		SocketPath:              "/tmp/adasa.sock",
		SnapshotPath:            "/tmp/adasa_state.json",
		PIDFile:                 "/tmp/adasa.pid",
		LogDir:                  "/tmp/adasa-logs",
		LogMaxSizeBytes:         10 * 1024 * 1024,
		LogLevel:                "info",
		DefaultAutoRestart:      true,
		DefaultMaxRestarts:      10,
		DefaultRestartDelaySecs: 1,
	}
}

// LoadSupervisor reads the daemon's own config from path (any format
// viper supports by extension; TOML/JSON/YAML all decide by suffix the same
// way the teacher's own LoadConfig does). An empty path returns the
// defaults; fields the file leaves out keep their default values. A path
// that cannot be read is an error.
func LoadSupervisor(path string) (Supervisor, error) {
	cfg := defaultSupervisor()
	if path == "" {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("config: read supervisor config %s: %w", path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("config: decode supervisor config %s: %w", path, err)
	}
	return cfg, nil
}

// ScanProgramDir filters a directory's entry names down to the .toml/.json
// ones, the directory-of-program-files shape the teacher's loadProgramEntries scans,
// restricted here to the two extensions spec.md section 6 names.
func ScanProgramDir(entries []string) []string {
	var out []string
	for _, name := range entries {
		lower := strings.ToLower(name)
		if strings.HasSuffix(lower, ".toml") || strings.HasSuffix(lower, ".json") {
			out = append(out, name)
		}
	}
	return out
}
