package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the settings shared by the API server and the manager CLI.
type Config struct {
	Database        Database
	HTTP            HTTP
	Worker          Worker
	Export          Export
	Log             Log
	OTel            OTel
	ShutdownTimeout time.Duration
}

type Database struct {
	Path string
}

type HTTP struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Worker struct {
	PollInterval time.Duration
}

// Export holds the directory roots that work item file names are joined onto.
type Export struct {
	SightingsPath string
	AirportsPath  string
	ReportsPath   string
}

type Log struct {
	Level  string
	Format string
}

type OTel struct {
	Enabled bool
}

const envPrefix = "FLIGHTRECORDER"

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "flightrecorder.db")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 10*time.Second)
	v.SetDefault("worker.poll_interval", 500*time.Millisecond)
	v.SetDefault("export.sightings_path", "exports/sightings")
	v.SetDefault("export.airports_path", "exports/airports")
	v.SetDefault("export.reports_path", "exports/reports")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("otel.enabled", false)
	v.SetDefault("shutdown_timeout", 5*time.Second)
}

// Load reads the optional YAML file at path and applies FLIGHTRECORDER_* environment
// overrides on top of the defaults. An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{
		Database: Database{Path: v.GetString("database.path")},
		HTTP: HTTP{
			Addr:         v.GetString("http.addr"),
			ReadTimeout:  v.GetDuration("http.read_timeout"),
			WriteTimeout: v.GetDuration("http.write_timeout"),
		},
		Worker: Worker{PollInterval: v.GetDuration("worker.poll_interval")},
		Export: Export{
			SightingsPath: v.GetString("export.sightings_path"),
			AirportsPath:  v.GetString("export.airports_path"),
			ReportsPath:   v.GetString("export.reports_path"),
		},
		Log: Log{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		OTel:            OTel{Enabled: v.GetBool("otel.enabled")},
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings the worker and store cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.Worker.PollInterval <= 0 {
		errs = append(errs, errors.New("worker.poll_interval must be greater than 0"))
	}
	if c.Export.SightingsPath == "" {
		errs = append(errs, errors.New("export.sightings_path is required"))
	}
	if c.Export.AirportsPath == "" {
		errs = append(errs, errors.New("export.airports_path is required"))
	}
	if c.Export.ReportsPath == "" {
		errs = append(errs, errors.New("export.reports_path is required"))
	}
	return errors.Join(errs...)
}
