// Package config loads chorechart settings from the environment.
//
// Variables are prefixed with CHORECHART_. A .env file in the working
// directory is loaded first when present; real environment variables win.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
)

const prefix = "CHORECHART"

type Config struct {
	// --- Database ---
	DBPath string `envconfig:"DB_PATH" default:"chorechart.db"`

	// --- Logging ---
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	// --- Badges ---
	// Timezone used to cut activity timestamps into calendar days and to run cron jobs.
	Timezone         string `envconfig:"TIMEZONE" default:"UTC"`
	AllotSchedule    string `envconfig:"ALLOT_SCHEDULE" default:"5 0 * * *"`
	AllotConcurrency int    `envconfig:"ALLOT_CONCURRENCY" default:"4"`

	// --- Backups ---
	BackupSchedule      string `envconfig:"BACKUP_SCHEDULE" default:"30 3 * * *"`
	BackupPassphrase    string `envconfig:"BACKUP_PASSPHRASE"`
	BackupRetentionDays int    `envconfig:"BACKUP_RETENTION_DAYS" default:"30"`
	S3Endpoint          string `envconfig:"S3_ENDPOINT"`
	S3Bucket            string `envconfig:"S3_BUCKET"`
	S3Region            string `envconfig:"S3_REGION" default:"us-east-1"`
	S3AccessKey         string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey         string `envconfig:"S3_SECRET_KEY"`

	// --- Push ---
	VAPIDPublicKey  string `envconfig:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `envconfig:"VAPID_PRIVATE_KEY"`
	VAPIDSubscriber string `envconfig:"VAPID_SUBSCRIBER" default:"mailto:noreply@chorechart.app"`

	location *time.Location
}

// Load reads an optional .env file and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the config from the process environment only.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints and resolves the timezone.
func (c *Config) Validate() error {
	var problems []string

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		problems = append(problems, fmt.Sprintf("TIMEZONE %q: %v", c.Timezone, err))
	} else {
		c.location = loc
	}

	if c.AllotConcurrency < 1 {
		problems = append(problems, "ALLOT_CONCURRENCY must be >= 1")
	}
	if c.BackupRetentionDays < 1 {
		problems = append(problems, "BACKUP_RETENTION_DAYS must be >= 1")
	}
	for name, spec := range map[string]string{"ALLOT_SCHEDULE": c.AllotSchedule, "BACKUP_SCHEDULE": c.BackupSchedule} {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			problems = append(problems, fmt.Sprintf("%s %q: %v", name, spec, err))
		}
	}
	if (c.VAPIDPublicKey == "") != (c.VAPIDPrivateKey == "") {
		problems = append(problems, "VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY must be set together")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Location returns the resolved timezone, UTC before Validate has run.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// BackupEnabled reports whether off-site backups can run.
func (c *Config) BackupEnabled() bool {
	return c.S3Bucket != "" && c.S3AccessKey != "" && c.S3SecretKey != "" && c.BackupPassphrase != ""
}

// PushEnabled reports whether VAPID keys are configured.
func (c *Config) PushEnabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}
