// Package conf handles the application configuration: defaults, YAML config
// file and environment overrides via viper.
package conf

import (
	"fmt"
	"sync"

	"github.com/spf13/viper"

	"github.com/huelab/huelab-go/internal/errors"
)

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled bool   // true to enable this log
	Path    string // path to log file
}

// MainSettings are the application-wide settings.
type MainSettings struct {
	Name string    // instance name, used in logs
	Log  LogConfig // main log file settings
}

// SQLiteSettings configures the SQLite record store.
type SQLiteSettings struct {
	Enabled bool   // true to enable the SQLite store
	Path    string // path to the database file
}

// MySQLSettings configures the MySQL record store.
type MySQLSettings struct {
	Enabled  bool   // true to enable the MySQL store
	Username string // MySQL username
	Password string // MySQL password
	Database string // MySQL database name
	Host     string // MySQL host
	Port     string // MySQL port
}

// OutputSettings groups the available record stores. Exactly one should be
// enabled.
type OutputSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// ClassifierSettings configure the external classification service.
type ClassifierSettings struct {
	Endpoint string // base URL of the classification service
	APIKey   string // bearer token, empty for unauthenticated endpoints
	Timeout  int    // per-request timeout in seconds
}

// ReviewSettings configure the human review workflow.
type ReviewSettings struct {
	// AutoConfirmThreshold is the confidence at or above which records may be
	// batch-confirmed without per-item review.
	AutoConfirmThreshold float64
	// ReviewThreshold is the confidence below which a fresh prediction lands
	// in needs_review instead of ai_predicted.
	ReviewThreshold float64
}

// WebServerSettings configure the HTTP API.
type WebServerSettings struct {
	Enabled bool   // true to enable the API server
	Port    string // port to listen on
}

// Settings is the root configuration object.
type Settings struct {
	Debug      bool // enable debug mode
	Main       MainSettings
	Output     OutputSettings
	Classifier ClassifierSettings
	Review     ReviewSettings
	WebServer  WebServerSettings
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into a
// Settings instance and remembers it as the process-wide settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the
// configuration file, if one exists.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/huelab")
	viper.AddConfigPath("/etc/huelab")

	viper.SetEnvPrefix("huelab")
	viper.AutomaticEnv()

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// No config file is fine, defaults and env vars apply.
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// ValidateSettings checks settings consistency before use.
func ValidateSettings(settings *Settings) error {
	if settings.Output.SQLite.Enabled && settings.Output.MySQL.Enabled {
		return errors.Newf("only one record store may be enabled, got both SQLite and MySQL").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if settings.Review.AutoConfirmThreshold < 0 || settings.Review.AutoConfirmThreshold > 100 {
		return errors.Newf("review.autoconfirmthreshold must be within 0-100, got %v", settings.Review.AutoConfirmThreshold).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if settings.Review.ReviewThreshold < 0 || settings.Review.ReviewThreshold > 100 {
		return errors.Newf("review.reviewthreshold must be within 0-100, got %v", settings.Review.ReviewThreshold).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

// Setting returns the current process-wide settings, or nil before Load.
func Setting() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}
