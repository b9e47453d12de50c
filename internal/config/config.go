// Package config reads TURI_* settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Port            string `validate:"required,numeric"`
	DBPath          string `validate:"required"`
	LogLevel        string `validate:"oneof=debug info warn error"`
	LogFormat       string `validate:"oneof=text json color"`
	Locale          string `validate:"required"`
	ReminderMinutes int    `validate:"min=0,max=1440"`
	Timezone        string `validate:"required"`
	VAPIDPublicKey  string `validate:"required_with=VAPIDPrivateKey"`
	VAPIDPrivateKey string `validate:"required_with=VAPIDPublicKey"`
	VAPIDSubject    string `validate:"omitempty,startswith=mailto:|startswith=https:"`

	// Backups need a passphrase and a destination. S3Bucket takes
	// precedence over BackupDir.
	BackupDir           string
	BackupPassphrase    string        `validate:"omitempty,min=8"`
	BackupInterval      time.Duration `validate:"min=0"`
	BackupRetentionDays int           `validate:"min=1"`
	S3Endpoint          string        `validate:"omitempty,url"`
	S3Bucket            string
	S3Region            string
	S3AccessKey         string `validate:"required_with=S3Bucket"`
	S3SecretKey         string `validate:"required_with=S3Bucket"`

	// Location is Timezone resolved by Load.
	Location *time.Location `validate:"-"`
}

// PushEnabled reports whether both VAPID keys are configured.
func (c Config) PushEnabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

// BackupEnabled reports whether a passphrase and at least one destination
// are configured.
func (c Config) BackupEnabled() bool {
	return c.BackupPassphrase != "" && (c.BackupDir != "" || c.S3Bucket != "")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads the environment. Files are loaded into the environment first
// without overriding variables that are already set; a missing file is not
// an error.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Config{
		Port:            env("TURI_PORT", "8080"),
		DBPath:          env("TURI_DB_PATH", "turi.db"),
		LogLevel:        strings.ToLower(env("TURI_LOG_LEVEL", "info")),
		LogFormat:       strings.ToLower(env("TURI_LOG_FORMAT", "text")),
		Locale:          env("TURI_LOCALE", "en"),
		Timezone:        env("TURI_TIMEZONE", "Local"),
		VAPIDPublicKey:  os.Getenv("TURI_VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("TURI_VAPID_PRIVATE_KEY"),
		VAPIDSubject:    os.Getenv("TURI_VAPID_SUBJECT"),

		BackupDir:        os.Getenv("TURI_BACKUP_DIR"),
		BackupPassphrase: os.Getenv("TURI_BACKUP_PASSPHRASE"),
		S3Endpoint:       os.Getenv("TURI_S3_ENDPOINT"),
		S3Bucket:         os.Getenv("TURI_S3_BUCKET"),
		S3Region:         env("TURI_S3_REGION", "auto"),
		S3AccessKey:      os.Getenv("TURI_S3_ACCESS_KEY"),
		S3SecretKey:      os.Getenv("TURI_S3_SECRET_KEY"),
	}

	minutes := env("TURI_REMINDER_MINUTES", "30")
	n, err := strconv.Atoi(minutes)
	if err != nil {
		return Config{}, fmt.Errorf("TURI_REMINDER_MINUTES: %q is not a number", minutes)
	}
	cfg.ReminderMinutes = n

	retention := env("TURI_BACKUP_RETENTION_DAYS", "30")
	if cfg.BackupRetentionDays, err = strconv.Atoi(retention); err != nil {
		return Config{}, fmt.Errorf("TURI_BACKUP_RETENTION_DAYS: %q is not a number", retention)
	}
	interval := env("TURI_BACKUP_INTERVAL", "0s")
	if cfg.BackupInterval, err = time.ParseDuration(interval); err != nil {
		return Config{}, fmt.Errorf("TURI_BACKUP_INTERVAL: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	if (cfg.BackupDir != "" || cfg.S3Bucket != "") && cfg.BackupPassphrase == "" {
		return Config{}, errors.New("invalid config: TURI_BACKUP_PASSPHRASE is required for backups")
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return Config{}, fmt.Errorf("TURI_TIMEZONE: %w", err)
	}
	cfg.Location = loc
	return cfg, nil
}

func env(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}
