package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EncryptionKeySetting is the well-known name of the process-wide credential key.
const EncryptionKeySetting = "SchedulerEncryptionKey"

type AppConfig struct {
	File        string
	JobsFile    string
	KnownHosts  string
	// FTPLocation is the time zone of timestamps in FTP directory listings.
	FTPLocation *time.Location
	Encryption  *EncryptionConfig
	Timeouts    *TimeoutConfig
	Scheduler   *SchedulerConfig
	Log         *LogConfig
}

type EncryptionConfig struct {
	Enabled bool
	Strict  bool
	Key     string
}

type TimeoutConfig struct {
	Connect  time.Duration
	Transfer time.Duration
}

type SchedulerConfig struct {
	Workers    int
	Jitter     time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// BindFlags registers every setting on fs.
func BindFlags(fs *pflag.FlagSet) {
	fs.String("config_file", "", "Configuration file (yaml, json or toml)")
	fs.String("jobs_file", "jobs.yaml", "Job definitions file")
	fs.String("known_hosts", "", "known_hosts file for SFTP host key verification")
	fs.String("ftp_timezone", "UTC", "Time zone of FTP directory listings (IANA name or Local)")

	// encryption
	fs.Bool("encryption.enabled", false, "Decrypt credentials stored in job parameters")
	fs.Bool("encryption.strict", false, "Fail the job when a credential cannot be decrypted")

	// timeouts
	fs.Duration("connect_timeout", 30*time.Second, "Connect timeout per execution")
	fs.Duration("transfer_timeout", 30*time.Minute, "Listing and download timeout per execution")

	// scheduler
	fs.Int("workers", 4, "Number of concurrent job executions")
	fs.Duration("jitter", 5*time.Second, "Random delay added to each firing")
	fs.Int("max_retries", 3, "Retries of a retryable failure before waiting for the next firing")
	fs.Duration("retry_delay", time.Minute, "Delay between retries")

	// logging
	fs.String("log_level", "info", "Log level")
	fs.String("log_format", "json", "Log format: json or text")
}

// Load reads flags, environment and the optional config file into an AppConfig.
func Load(v *viper.Viper, fs *pflag.FlagSet) (*AppConfig, error) {
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}
	v.SetEnvPrefix("FTPSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicit mapping
	_ = v.BindEnv(EncryptionKeySetting, "SCHEDULER_ENCRYPTION_KEY", "FTPSYNC_SCHEDULERENCRYPTIONKEY")
	_ = v.BindEnv("config_file", "FTPSYNC_CONFIG_FILE")

	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("could not load config file: %w", err)
		}
	}

	cfg := buildAppConfig(v)
	loc, err := time.LoadLocation(v.GetString("ftp_timezone"))
	if err != nil {
		return nil, fmt.Errorf("ftp_timezone: %w", err)
	}
	cfg.FTPLocation = loc

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func buildAppConfig(v *viper.Viper) *AppConfig {
	return &AppConfig{
		File:       v.GetString("config_file"),
		JobsFile:   v.GetString("jobs_file"),
		KnownHosts: v.GetString("known_hosts"),
		Encryption: &EncryptionConfig{
			Enabled: v.GetBool("encryption.enabled"),
			Strict:  v.GetBool("encryption.strict"),
			Key:     v.GetString(EncryptionKeySetting),
		},
		Timeouts: &TimeoutConfig{
			Connect:  v.GetDuration("connect_timeout"),
			Transfer: v.GetDuration("transfer_timeout"),
		},
		Scheduler: &SchedulerConfig{
			Workers:    v.GetInt("workers"),
			Jitter:     v.GetDuration("jitter"),
			MaxRetries: v.GetInt("max_retries"),
			RetryDelay: v.GetDuration("retry_delay"),
		},
		Log: &LogConfig{
			Level:  v.GetString("log_level"),
			Format: v.GetString("log_format"),
		},
	}
}

func validateConfig(cfg *AppConfig) error {
	if cfg.JobsFile == "" {
		return errors.New("jobs file is required")
	}
	if cfg.Timeouts.Connect < 0 || cfg.Timeouts.Transfer < 0 {
		return errors.New("timeouts must not be negative")
	}
	if cfg.Scheduler.Workers <= 0 {
		return errors.New("workers must be positive")
	}
	if cfg.Scheduler.Jitter < 0 || cfg.Scheduler.RetryDelay < 0 || cfg.Scheduler.MaxRetries < 0 {
		return errors.New("scheduler settings must not be negative")
	}
	switch cfg.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log format %q", cfg.Log.Format)
	}
	return nil
}
