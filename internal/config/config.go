package config

import (
	"os"
	"path/filepath"
	"time"
)

const (
	// DefaultDataDir is the per-user directory holding config, state and
	// the managed database files.
	DefaultDataDir = ".stackpilot"

	// ConfigFileName is the JSON configuration file inside the data directory.
	ConfigFileName = "stackpilot.json"

	// DefaultDatabasePort is the loopback port probed for database readiness.
	DefaultDatabasePort = 3306
)

// Config is the main configuration structure.
type Config struct {
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	Database  DatabaseConfig  `json:"database" mapstructure:"database"`
	API       APIConfig       `json:"api" mapstructure:"api"`
	Auth      AuthConfig      `json:"auth" mapstructure:"auth"`
	Readiness ReadinessConfig `json:"readiness" mapstructure:"readiness"`

	// Notifications enables desktop notifications on ready/failed.
	Notifications bool `json:"notifications" mapstructure:"notifications"`

	Logging *LogConfig `json:"logging,omitempty" mapstructure:"logging"`
}

// DatabaseConfig describes the managed database server process.
type DatabaseConfig struct {
	// Command is the database server executable.
	Command string `json:"command" mapstructure:"command"`

	// DefaultsFile is passed to the server as its only argument
	// (--defaults-file=...).
	DefaultsFile string `json:"defaults_file" mapstructure:"defaults_file"`

	// DataDir is the database storage directory created by first-run
	// initialization.
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// MarkerPath gates first-run initialization: when it exists the
	// initialization command is skipped entirely.
	MarkerPath string `json:"marker_path" mapstructure:"marker_path"`

	// InitCommand and InitArgs run once when MarkerPath is absent.
	InitCommand string   `json:"init_command" mapstructure:"init_command"`
	InitArgs    []string `json:"init_args" mapstructure:"init_args"`

	// InitTimeout bounds the initialization command. Zero means no bound.
	InitTimeout time.Duration `json:"init_timeout" mapstructure:"init_timeout"`

	Host string `json:"host" mapstructure:"host"`
	Port int    `json:"port" mapstructure:"port"`
}

// Args returns the fixed argument list the database server is spawned with.
func (d *DatabaseConfig) Args() []string {
	return []string{"--defaults-file=" + d.DefaultsFile}
}

// APIConfig describes the managed API server process. It is spawned with no
// arguments and assumed ready once the spawn succeeds.
type APIConfig struct {
	Command    string `json:"command" mapstructure:"command"`
	WorkingDir string `json:"working_dir" mapstructure:"working_dir"`
}

// AuthConfig describes the external vendor CLI used as the authentication
// precondition.
type AuthConfig struct {
	// Command is the CLI binary, e.g. "acme".
	Command string `json:"command" mapstructure:"command"`

	// StatusArgs run the non-interactive logged-in check; exit 0 means
	// authenticated.
	StatusArgs []string `json:"status_args" mapstructure:"status_args"`

	// LoginArgs run the interactive login flow.
	LoginArgs []string `json:"login_args" mapstructure:"login_args"`

	// InlineLogin forces the login flow to run attached to the current
	// stdio instead of a separate terminal window.
	InlineLogin bool `json:"inline_login" mapstructure:"inline_login"`

	// CheckTimeout bounds a single status check invocation.
	CheckTimeout time.Duration `json:"check_timeout" mapstructure:"check_timeout"`

	// ConfirmTimeout and ConfirmInterval bound the post-login
	// confirmation poll.
	ConfirmTimeout  time.Duration `json:"confirm_timeout" mapstructure:"confirm_timeout"`
	ConfirmInterval time.Duration `json:"confirm_interval" mapstructure:"confirm_interval"`
}

// ReadinessConfig tunes the database readiness probe.
type ReadinessConfig struct {
	// Timeout is the overall deadline for the port to open.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// Interval is the delay between connection attempts.
	Interval time.Duration `json:"interval" mapstructure:"interval"`

	// DialTimeout bounds each individual connection attempt so one hung
	// dial cannot stall the probe past the deadline.
	DialTimeout time.Duration `json:"dial_timeout" mapstructure:"dial_timeout"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	Level         string `json:"level" mapstructure:"level"`
	EnableFile    bool   `json:"enable_file" mapstructure:"enable_file"`
	EnableConsole bool   `json:"enable_console" mapstructure:"enable_console"`
	Filename      string `json:"filename" mapstructure:"filename"`
	LogDir        string `json:"log_dir,omitempty" mapstructure:"log_dir"` // Custom log directory
	MaxSize       int    `json:"max_size" mapstructure:"max_size"`         // MB
	MaxBackups    int    `json:"max_backups" mapstructure:"max_backups"`   // number of backup files
	MaxAge        int    `json:"max_age" mapstructure:"max_age"`           // days
	Compress      bool   `json:"compress" mapstructure:"compress"`
	JSONFormat    bool   `json:"json_format" mapstructure:"json_format"`
}

// DefaultConfig returns configuration with sensible defaults. Paths derived
// from the data directory are filled in by applyDataDirDefaults once the data
// directory is known.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Command:     "mysqld",
			InitCommand: "mysqld",
			InitArgs:    []string{"--initialize-insecure"},
			InitTimeout: 5 * time.Minute,
			Host:        "127.0.0.1",
			Port:        DefaultDatabasePort,
		},
		API: APIConfig{
			Command: "stackpilot-api",
		},
		Auth: AuthConfig{
			Command:         "acme",
			StatusArgs:      []string{"auth", "status"},
			LoginArgs:       []string{"auth", "login"},
			CheckTimeout: 10 * time.Second,
			// Browser and device-code logins routinely take well over a
			// minute, and on macOS the terminal launch does not block, so
			// the confirmation poll is the wait for the whole login.
			ConfirmTimeout:  2 * time.Minute,
			ConfirmInterval: 500 * time.Millisecond,
		},
		Readiness: ReadinessConfig{
			Timeout:     60 * time.Second,
			Interval:    time.Second,
			DialTimeout: time.Second,
		},
		Notifications: true,
		Logging: &LogConfig{
			Level:         "info",
			EnableFile:    true,
			EnableConsole: true,
			Filename:      "main.log",
			MaxSize:       10,
			MaxBackups:    5,
			MaxAge:        30,
			Compress:      true,
		},
	}
}

// applyDataDirDefaults fills path fields that default relative to DataDir.
func (c *Config) applyDataDirDefaults() {
	dbRoot := filepath.Join(c.DataDir, "database")
	if c.Database.DefaultsFile == "" {
		c.Database.DefaultsFile = filepath.Join(dbRoot, "my.cnf")
	}
	if c.Database.DataDir == "" {
		c.Database.DataDir = filepath.Join(dbRoot, "data")
	}
	if c.Database.MarkerPath == "" {
		// The system database directory only exists after a successful
		// first-run initialization.
		c.Database.MarkerPath = filepath.Join(c.Database.DataDir, "mysql")
	}
}

// DefaultDataDirPath resolves the default data directory under the user home.
func DefaultDataDirPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, DefaultDataDir), nil
}
