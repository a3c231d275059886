package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/text/language"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Teacher derivation strategies.
const (
	TeacherSourceAuto   = "auto"
	TeacherSourceRoster = "roster"
	TeacherSourceScan   = "scan"
)

// State persistence backends.
const (
	StateBackendMemory   = "memory"
	StateBackendRedis    = "redis"
	StateBackendPostgres = "postgres"
	StateBackendFile     = "file"
)

type Config struct {
	Env  string
	Port int `validate:"min=1,max=65535"`

	Edupage  EdupageConfig
	Upstream UpstreamConfig
	Sync     SyncConfig
	Menu     MenuConfig
	State    StateConfig
	Database DatabaseConfig
	Redis    RedisConfig
	CORS     CORSConfig
	Log      LogConfig
}

// EdupageConfig carries the portal account used for every cycle.
type EdupageConfig struct {
	Username      string `validate:"required"`
	Password      string `validate:"required"`
	School        string `validate:"required"`
	StudentFilter string
}

// UpstreamConfig points at the portal gateway.
type UpstreamConfig struct {
	BaseURL string
	Timeout time.Duration
}

// SyncConfig tunes the polling cycle and the normalisation strategies.
type SyncConfig struct {
	PollInterval             time.Duration `validate:"min=1m"`
	TeacherSource            string        `validate:"oneof=auto roster scan"`
	FilterHomeworkDuplicates bool
	Timezone                 string
	// Locale selects the collation used to order teacher names.
	Locale string
}

// MenuConfig toggles cafeteria lookups.
type MenuConfig struct {
	Enabled       bool
	WeeklyEnabled bool
	URLTemplates  []string
	CacheTTL      time.Duration
	CacheSizeMB   int
}

// StateConfig selects where snapshot values are written.
type StateConfig struct {
	Backend string `validate:"oneof=memory redis postgres file"`
	Prefix  string
	Dir     string
	// SizeMB bounds the in-memory backend; a single value may use at most
	// 1/1024 of it.
	SizeMB int
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// DefaultMenuURLTemplates lists the known menu endpoint shapes in fallback order.
// Each template receives the school subdomain.
var DefaultMenuURLTemplates = []string{
	"https://%s.edupage.org/menu/api",
	"https://%s.edupage.org/jedalen/api",
	"https://%s.edupage.org/rpr/server/maindbi.js?__func=getMenu",
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")

	cfg.Edupage = EdupageConfig{
		Username:      strings.TrimSpace(v.GetString("EDUPAGE_USERNAME")),
		Password:      v.GetString("EDUPAGE_PASSWORD"),
		School:        strings.TrimSpace(v.GetString("EDUPAGE_SCHOOL")),
		StudentFilter: v.GetString("STUDENT_FILTER"),
	}

	cfg.Upstream = UpstreamConfig{
		BaseURL: strings.TrimRight(v.GetString("UPSTREAM_BASE_URL"), "/"),
		Timeout: parseDuration(v.GetString("UPSTREAM_TIMEOUT"), 10*time.Second),
	}

	interval := v.GetInt("POLL_INTERVAL_MINUTES")
	if interval <= 0 {
		interval = 30
	}
	cfg.Sync = SyncConfig{
		PollInterval:             time.Duration(interval) * time.Minute,
		TeacherSource:            strings.ToLower(v.GetString("TEACHER_SOURCE")),
		FilterHomeworkDuplicates: v.GetBool("FILTER_HOMEWORK_DUPLICATES"),
		Timezone:                 v.GetString("TIMEZONE"),
		Locale:                   strings.TrimSpace(v.GetString("COLLATION_LOCALE")),
	}

	templates := splitAndTrim(v.GetString("MENU_URL_TEMPLATES"))
	if len(templates) == 0 {
		templates = append([]string(nil), DefaultMenuURLTemplates...)
	}
	cfg.Menu = MenuConfig{
		Enabled:       v.GetBool("ENABLE_MENU"),
		WeeklyEnabled: v.GetBool("ENABLE_WEEKLY_MENU"),
		URLTemplates:  templates,
		CacheTTL:      parseDuration(v.GetString("MENU_CACHE_TTL"), 6*time.Hour),
		CacheSizeMB:   v.GetInt("MENU_CACHE_SIZE_MB"),
	}

	cfg.State = StateConfig{
		Backend: strings.ToLower(v.GetString("STATE_BACKEND")),
		Prefix:  v.GetString("STATE_PREFIX"),
		Dir:     v.GetString("STATE_DIR"),
		SizeMB:  v.GetInt("STATE_MEMORY_SIZE_MB"),
	}

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	return cfg
}

// Validate checks the settings required before any scheduling may begin.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// Location resolves the configured timezone, falling back to the process local zone.
func (c *Config) Location() *time.Location {
	if c == nil || c.Sync.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Sync.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Collation parses the configured locale, falling back to the root collation.
func (c *Config) Collation() language.Tag {
	if c == nil || c.Sync.Locale == "" {
		return language.Und
	}
	tag, err := language.Parse(c.Sync.Locale)
	if err != nil {
		return language.Und
	}
	return tag
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)

	v.SetDefault("EDUPAGE_USERNAME", "")
	v.SetDefault("EDUPAGE_PASSWORD", "")
	v.SetDefault("EDUPAGE_SCHOOL", "")
	v.SetDefault("STUDENT_FILTER", "")

	v.SetDefault("UPSTREAM_BASE_URL", "http://localhost:3030")
	v.SetDefault("UPSTREAM_TIMEOUT", "10s")

	v.SetDefault("POLL_INTERVAL_MINUTES", 30)
	v.SetDefault("TEACHER_SOURCE", TeacherSourceAuto)
	v.SetDefault("FILTER_HOMEWORK_DUPLICATES", true)
	v.SetDefault("TIMEZONE", "")
	v.SetDefault("COLLATION_LOCALE", "sk")

	v.SetDefault("ENABLE_MENU", true)
	v.SetDefault("ENABLE_WEEKLY_MENU", true)
	v.SetDefault("MENU_URL_TEMPLATES", "")
	v.SetDefault("MENU_CACHE_TTL", "6h")
	v.SetDefault("MENU_CACHE_SIZE_MB", 1)

	v.SetDefault("STATE_BACKEND", StateBackendMemory)
	v.SetDefault("STATE_PREFIX", "edupage.0.")
	v.SetDefault("STATE_DIR", "./state")
	v.SetDefault("STATE_MEMORY_SIZE_MB", 128)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "edupage_sync")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 4)
	v.SetDefault("DB_MAX_IDLE_CONNS", 2)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
