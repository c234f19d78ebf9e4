package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"agrodoc/internal/logger"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Model    ModelConfig    `yaml:"model"`
	Uploads  UploadsConfig  `yaml:"uploads"`
	History  HistoryConfig  `yaml:"history"`
	Auth     AuthConfig     `yaml:"auth"`
	SMS      SMSConfig      `yaml:"sms"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  logger.Config  `yaml:"logging"`
}

type ServerConfig struct {
	Port          string        `yaml:"port"`
	SessionSecret string        `yaml:"session_secret"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	SecureCookies bool          `yaml:"secure_cookies"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// ModelConfig describes the classifier file and the tensor it expects.
// InputWidth and InputHeight must equal the model's own input shape; the
// server refuses to start otherwise. Pixel values in [0,255] are mapped
// linearly onto [InputMin, InputMax].
type ModelConfig struct {
	Path        string  `yaml:"path"`
	LabelsPath  string  `yaml:"labels_path"`
	InputWidth  int     `yaml:"input_width"`
	InputHeight int     `yaml:"input_height"`
	InputMin    float32 `yaml:"input_min"`
	InputMax    float32 `yaml:"input_max"`
	Threads     int     `yaml:"threads"`
}

type UploadsConfig struct {
	Dir        string   `yaml:"dir"`
	MaxBytes   int64    `yaml:"max_bytes"`
	Extensions []string `yaml:"extensions"`
}

type HistoryConfig struct {
	PageSize int `yaml:"page_size"`
}

type AuthConfig struct {
	LoginsPerMinute float64       `yaml:"logins_per_minute"`
	LoginBurst      int           `yaml:"login_burst"`
	OTPTTL          time.Duration `yaml:"otp_ttl"`
	OTPLength       int           `yaml:"otp_length"`
}

// SMSConfig holds shoutrrr service URLs; "{phone}" is replaced by the recipient.
type SMSConfig struct {
	Enabled bool          `yaml:"enabled"`
	URLs    []string      `yaml:"urls"`
	Timeout time.Duration `yaml:"timeout"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns a configuration that runs locally against SQLite.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          "8080",
			SessionSecret: "change-me-to-a-long-random-secret",
			SessionTTL:    24 * time.Hour,
		},
		Database: DatabaseConfig{
			Driver: "sqlite3",
			DSN:    "plant_disease.db",
		},
		Model: ModelConfig{
			Path:        "Trained_Model.tflite",
			InputWidth:  128,
			InputHeight: 128,
			InputMin:    0,
			InputMax:    255,
			Threads:     2,
		},
		Uploads: UploadsConfig{
			Dir:        "uploads",
			MaxBytes:   10 * 1024 * 1024, // 10MB
			Extensions: []string{".jpg", ".jpeg", ".png"},
		},
		History: HistoryConfig{PageSize: 8},
		Auth: AuthConfig{
			LoginsPerMinute: 10,
			LoginBurst:      5,
			OTPTTL:          5 * time.Minute,
			OTPLength:       6,
		},
		SMS:     SMSConfig{Timeout: 10 * time.Second},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
		Logging: logger.Config{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads filename on top of the defaults, then applies environment overrides.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filename, err)
	}
	config.ApplyEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides file settings with environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("AGRODOC_DB_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("AGRODOC_DB_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("AGRODOC_SESSION_SECRET"); v != "" {
		c.Server.SessionSecret = v
	}
	if v := os.Getenv("AGRODOC_MODEL_PATH"); v != "" {
		c.Model.Path = v
	}
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("database.driver %q: must be sqlite3 or postgres", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if len(c.Server.SessionSecret) < 16 {
		return fmt.Errorf("server.session_secret must be at least 16 characters")
	}
	if c.Server.SessionTTL <= 0 {
		return fmt.Errorf("server.session_ttl must be positive")
	}
	if c.Model.InputWidth <= 0 || c.Model.InputHeight <= 0 {
		return fmt.Errorf("model input size must be positive, got %dx%d", c.Model.InputWidth, c.Model.InputHeight)
	}
	if c.Model.InputMin >= c.Model.InputMax {
		return fmt.Errorf("model.input_min (%v) must be below model.input_max (%v)", c.Model.InputMin, c.Model.InputMax)
	}
	if c.Uploads.Dir == "" {
		return fmt.Errorf("uploads.dir is required")
	}
	if c.Uploads.MaxBytes <= 0 {
		return fmt.Errorf("uploads.max_bytes must be positive")
	}
	if c.History.PageSize <= 0 {
		return fmt.Errorf("history.page_size must be positive")
	}
	if c.Auth.OTPLength < 4 || c.Auth.OTPLength > 10 {
		return fmt.Errorf("auth.otp_length must be between 4 and 10")
	}
	if c.SMS.Enabled && len(c.SMS.URLs) == 0 {
		return fmt.Errorf("sms.urls is required when sms is enabled")
	}
	return nil
}
