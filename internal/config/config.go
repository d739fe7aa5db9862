package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

const (
	ImportModeAuto    = "auto"
	ImportModeMetered = "metered"
	ImportModeChunked = "chunked"
)

type Config struct {
	App    AppConfig            `mapstructure:"app"`
	Local  LocalDatabaseConfig  `mapstructure:"local"`
	Remote RemoteDatabaseConfig `mapstructure:"remote"`
	SSH    SSHConfig            `mapstructure:"ssh"`
	Pull   PullConfig           `mapstructure:"pull"`
	Tools  ToolsConfig          `mapstructure:"tools"`
	Queue  QueueConfig          `mapstructure:"queue"`
	Server ServerConfig         `mapstructure:"server"`
	Backup BackupConfig         `mapstructure:"backup"`
	Notify NotifyConfig         `mapstructure:"notify"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
}

// LocalDatabaseConfig is the database that receives the pulled data.
type LocalDatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// RemoteDatabaseConfig is the source database as seen from the SSH host.
type RemoteDatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type SSHConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	User           string `mapstructure:"user"`
	KeyPath        string `mapstructure:"key_path"`
	KnownHostsFile string `mapstructure:"known_hosts_file"`
}

type PullConfig struct {
	// Timeout bounds each process of a synchronous pull; 0 disables it.
	Timeout time.Duration `mapstructure:"timeout"`
	// JobTimeout bounds a whole background pull; 0 disables it.
	JobTimeout      time.Duration `mapstructure:"job_timeout"`
	EstimateTimeout time.Duration `mapstructure:"estimate_timeout"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	BackupDir       string        `mapstructure:"backup_dir"`
	ImportMode      string        `mapstructure:"import_mode"`
	VerifyKey       bool          `mapstructure:"verify_key"`
	Schedule        string        `mapstructure:"schedule"`
}

type ToolsConfig struct {
	MySQL     string `mapstructure:"mysql"`
	MySQLDump string `mapstructure:"mysqldump"`
	SSH       string `mapstructure:"ssh"`
	PV        string `mapstructure:"pv"`
}

type QueueConfig struct {
	Path         string        `mapstructure:"path"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// BackupConfig controls offsite copies of local backups.
type BackupConfig struct {
	RetentionDays int            `mapstructure:"retention_days"`
	Compress      bool           `mapstructure:"compress"`
	UploadTargets []UploadTarget `mapstructure:"upload_targets"`
}

type UploadTarget struct {
	Type    string `mapstructure:"type"`
	Enabled bool   `mapstructure:"enabled"`

	// Local mirror
	Path string `mapstructure:"path"`

	// Google Drive
	CredentialsFile string `mapstructure:"credentials_file"`
	FolderID        string `mapstructure:"folder_id"`

	// AWS S3
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`

	// Telegram
	BotToken   string `mapstructure:"bot_token"`
	ChatID     string `mapstructure:"chat_id"`
	SendFile   bool   `mapstructure:"send_file"`
	NotifyOnly bool   `mapstructure:"notify_only"`
}

type NotifyConfig struct {
	Telegram TelegramNotifyConfig `mapstructure:"telegram"`
}

type TelegramNotifyConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

// legacyEnv maps keys to the environment variable names used by existing
// deployments, checked after the DBPULL_ prefixed name.
var legacyEnv = map[string]string{
	"app.env":         "APP_ENV",
	"ssh.host":        "PRODUCTION_SSH_HOST",
	"ssh.user":        "PRODUCTION_SSH_USER",
	"ssh.port":        "PRODUCTION_SSH_PORT",
	"ssh.key_path":    "PRODUCTION_SSH_KEY_PATH",
	"remote.host":     "PRODUCTION_DB_HOST",
	"remote.port":     "PRODUCTION_DB_PORT",
	"remote.database": "PRODUCTION_DB_DATABASE",
	"remote.username": "PRODUCTION_DB_USERNAME",
	"remote.password": "PRODUCTION_DB_PASSWORD",
	"local.driver":    "DB_CONNECTION",
	"local.host":      "DB_HOST",
	"local.port":      "DB_PORT",
	"local.database":  "DB_DATABASE",
	"local.username":  "DB_USERNAME",
	"local.password":  "DB_PASSWORD",
}

const envPrefix = "DBPULL"

// Load reads path, or dbpull.yaml from the working directory or
// $HOME/.dbpull when path is empty. A missing file is only an error when
// path was given explicitly.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("dbpull")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.dbpull")
	}

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "dbpull")
	v.SetDefault("app.env", "local")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_file", "")

	v.SetDefault("local.driver", "mysql")
	v.SetDefault("local.host", "127.0.0.1")
	v.SetDefault("local.port", 3306)
	v.SetDefault("local.database", "")
	v.SetDefault("local.username", "root")
	v.SetDefault("local.password", "")

	v.SetDefault("remote.host", "127.0.0.1")
	v.SetDefault("remote.port", 3306)
	v.SetDefault("remote.database", "")
	v.SetDefault("remote.username", "")
	v.SetDefault("remote.password", "")

	v.SetDefault("ssh.host", "")
	v.SetDefault("ssh.port", 22)
	v.SetDefault("ssh.user", "forge")
	v.SetDefault("ssh.key_path", "")
	v.SetDefault("ssh.known_hosts_file", "")

	v.SetDefault("pull.timeout", 10*time.Minute)
	v.SetDefault("pull.job_timeout", time.Hour)
	v.SetDefault("pull.estimate_timeout", time.Minute)
	v.SetDefault("pull.poll_interval", 200*time.Millisecond)
	v.SetDefault("pull.backup_dir", "storage/backups")
	v.SetDefault("pull.import_mode", ImportModeAuto)
	v.SetDefault("pull.verify_key", true)
	v.SetDefault("pull.schedule", "")

	v.SetDefault("tools.mysql", "mysql")
	v.SetDefault("tools.mysqldump", "mysqldump")
	v.SetDefault("tools.ssh", "ssh")
	v.SetDefault("tools.pv", "pv")

	v.SetDefault("queue.path", "storage/dbpull.db")
	v.SetDefault("queue.poll_interval", 2*time.Second)

	v.SetDefault("server.addr", "")

	v.SetDefault("backup.retention_days", 7)
	v.SetDefault("backup.compress", true)

	v.SetDefault("notify.telegram.enabled", false)
	v.SetDefault("notify.telegram.bot_token", "")
	v.SetDefault("notify.telegram.chat_id", "")
}

// Validate checks structural settings. Missing connection details are left
// to the pull preflight so they can be reported together.
func (c *Config) Validate() error {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.App.LogLevel)); err != nil {
		return fmt.Errorf("app.log_level: unknown level %q", c.App.LogLevel)
	}

	switch c.Pull.ImportMode {
	case ImportModeAuto, ImportModeMetered, ImportModeChunked:
	default:
		return fmt.Errorf("pull.import_mode must be one of auto, metered, chunked; got %q", c.Pull.ImportMode)
	}

	if c.Pull.Timeout < 0 || c.Pull.JobTimeout < 0 {
		return fmt.Errorf("pull timeouts must not be negative")
	}
	if c.Pull.EstimateTimeout <= 0 {
		return fmt.Errorf("pull.estimate_timeout must be positive")
	}
	if c.Pull.PollInterval <= 0 {
		return fmt.Errorf("pull.poll_interval must be positive")
	}
	if c.Pull.BackupDir == "" {
		return fmt.Errorf("pull.backup_dir is required")
	}
	if c.Queue.Path == "" {
		return fmt.Errorf("queue.path is required")
	}
	if c.Queue.PollInterval <= 0 {
		return fmt.Errorf("queue.poll_interval must be positive")
	}
	if c.Backup.RetentionDays < 0 {
		return fmt.Errorf("backup.retention_days must not be negative")
	}

	for i, target := range c.Backup.UploadTargets {
		switch target.Type {
		case "local":
			if target.Enabled && target.Path == "" {
				return fmt.Errorf("backup.upload_targets[%d]: path is required for local", i)
			}
		case "s3":
			if target.Enabled && target.Bucket == "" {
				return fmt.Errorf("backup.upload_targets[%d]: bucket is required for s3", i)
			}
		case "gdrive", "telegram":
		default:
			return fmt.Errorf("backup.upload_targets[%d]: unknown type %q", i, target.Type)
		}
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Env, "production")
}

func (c *Config) GetEnabledUploadTargets() []UploadTarget {
	var enabled []UploadTarget
	for _, target := range c.Backup.UploadTargets {
		if target.Enabled {
			enabled = append(enabled, target)
		}
	}
	return enabled
}
