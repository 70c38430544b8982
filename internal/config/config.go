package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	LocalAPIURL  = "http://localhost:5000/api"
	HostedAPIURL = "https://event-ticketing-backend-b2b9.onrender.com/api"
)

type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Poll      PollConfig      `mapstructure:"poll"`
	State     StateConfig     `mapstructure:"state"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Log       LogConfig       `mapstructure:"log"`
	Tickets   TicketsConfig   `mapstructure:"tickets"`
	DevServer DevServerConfig `mapstructure:"devserver"`
}

type APIConfig struct {
	URL     string        `mapstructure:"url"`
	Host    string        `mapstructure:"host"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// BaseURL is the explicit URL when one is configured, otherwise the local
// backend for localhost and the hosted backend for anything else.
func (c APIConfig) BaseURL() string {
	if c.URL != "" {
		return strings.TrimRight(c.URL, "/")
	}
	switch c.Host {
	case "", "localhost", "127.0.0.1":
		return LocalAPIURL
	}
	return HostedAPIURL
}

type PollConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type StateConfig struct {
	Backend string `mapstructure:"backend"` // file | redis
	Dir     string `mapstructure:"dir"`
	Policy  string `mapstructure:"policy"` // whitelist | token
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CacheConfig struct {
	KeepUnusedFor time.Duration `mapstructure:"keep_unused_for"`
}

type UploadConfig struct {
	Mode         string `mapstructure:"mode"` // backend | cloudinary
	CloudName    string `mapstructure:"cloud_name"`
	UploadPreset string `mapstructure:"upload_preset"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  bool   `mapstructure:"file"`
}

// QRSecret, when set, encrypts ticket QR payloads.
type TicketsConfig struct {
	QRSecret string `mapstructure:"qr_secret"`
}

type DevServerConfig struct {
	Port         string        `mapstructure:"port"`
	DatabaseURL  string        `mapstructure:"database_url"`
	JWTSecret    string        `mapstructure:"jwt_secret"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
	ConfirmAfter int           `mapstructure:"confirm_after"`
	AdminEmail   string        `mapstructure:"admin_email"`
	AdminPass    string        `mapstructure:"admin_password"`
}

// env names for every key; keys without an entry are defaults only.
var envBindings = map[string]string{
	"api.url":                  "TICKETKENYA_API_URL",
	"api.host":                 "TICKETKENYA_HOST",
	"api.timeout":              "TICKETKENYA_API_TIMEOUT",
	"poll.interval":            "TICKETKENYA_POLL_INTERVAL",
	"poll.max_attempts":        "TICKETKENYA_POLL_MAX_ATTEMPTS",
	"poll.timeout":             "TICKETKENYA_POLL_TIMEOUT",
	"state.backend":            "TICKETKENYA_STATE_BACKEND",
	"state.dir":                "TICKETKENYA_STATE_DIR",
	"state.policy":             "TICKETKENYA_PERSIST_POLICY",
	"redis.addr":               "REDIS_ADDR",
	"redis.password":           "REDIS_PASSWORD",
	"redis.db":                 "REDIS_DB",
	"cache.keep_unused_for":    "TICKETKENYA_CACHE_KEEP_UNUSED",
	"upload.mode":              "TICKETKENYA_UPLOAD_MODE",
	"upload.cloud_name":        "CLOUDINARY_CLOUD_NAME",
	"upload.upload_preset":     "CLOUDINARY_UPLOAD_PRESET",
	"log.level":                "LOG_LEVEL",
	"log.file":                 "LOG_FILE",
	"tickets.qr_secret":        "TICKETKENYA_QR_SECRET",
	"devserver.port":           "PORT",
	"devserver.database_url":   "DATABASE_URL",
	"devserver.jwt_secret":     "JWT_SECRET",
	"devserver.token_ttl":      "JWT_TTL",
	"devserver.confirm_after":  "MPESA_CONFIRM_AFTER",
	"devserver.admin_email":    "DEV_ADMIN_EMAIL",
	"devserver.admin_password": "DEV_ADMIN_PASSWORD",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.host", "localhost")
	v.SetDefault("api.timeout", 30*time.Second)

	v.SetDefault("poll.interval", 3*time.Second)
	v.SetDefault("poll.max_attempts", 40)
	v.SetDefault("poll.timeout", 2*time.Minute)

	v.SetDefault("state.backend", "file")
	v.SetDefault("state.dir", defaultStateDir())
	v.SetDefault("state.policy", "whitelist")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("cache.keep_unused_for", 60*time.Second)

	v.SetDefault("upload.mode", "backend")

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.file", false)

	v.SetDefault("devserver.port", ":5000")
	v.SetDefault("devserver.database_url", "file::memory:?cache=shared")
	v.SetDefault("devserver.jwt_secret", "dev-secret-change-me")
	v.SetDefault("devserver.token_ttl", 24*time.Hour)
	v.SetDefault("devserver.confirm_after", 2)
	v.SetDefault("devserver.admin_email", "admin@ticketkenya.local")
	v.SetDefault("devserver.admin_password", "admin123")
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "ticketkenya")
	}
	return ".ticketkenya"
}

// Load reads an optional .env file and then the environment. envFiles
// defaults to ".env"; a missing file is not an error.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return Parse(v)
}

func Parse(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	switch c.State.Backend {
	case "file", "redis":
	default:
		return fmt.Errorf("state.backend must be file or redis, got %q", c.State.Backend)
	}
	switch c.State.Policy {
	case "whitelist", "token":
	default:
		return fmt.Errorf("state.policy must be whitelist or token, got %q", c.State.Policy)
	}
	switch c.Upload.Mode {
	case "backend", "cloudinary":
	default:
		return fmt.Errorf("upload.mode must be backend or cloudinary, got %q", c.Upload.Mode)
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be positive")
	}
	return nil
}
