package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/xaenox/globalsync/internal/models"
	"github.com/xaenox/globalsync/internal/scheduling"
)

// ErrInvalidWorkHours is returned by Validate for an empty, inverted or out-of-range window.
var ErrInvalidWorkHours = errors.New("invalid work hours")

type Config struct {
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Database   DatabaseConfig   `mapstructure:"database"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Holidays   HolidaysConfig   `mapstructure:"holidays"`
	Scheduling SchedulingConfig `mapstructure:"scheduling"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
	MaxRetries  int     `mapstructure:"max_retries"`
}

type HolidaysConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	MaxFailures     int           `mapstructure:"max_failures"`
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown"`
	Redis           RedisConfig   `mapstructure:"redis"`
}

// RedisConfig enables the shared holiday cache when URL is set.
type RedisConfig struct {
	URL       string `mapstructure:"url"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type SchedulingConfig struct {
	HorizonDays     int                `mapstructure:"horizon_days"`
	MinBuffer       time.Duration      `mapstructure:"min_buffer"`
	WorkStart       int                `mapstructure:"work_start"`
	WorkEnd         int                `mapstructure:"work_end"`
	DefaultTimezone string             `mapstructure:"default_timezone"`
	Weights         scheduling.Weights `mapstructure:"weights"`
}

// WorkHours is the customer and default sender working window.
func (s SchedulingConfig) WorkHours() models.HourWindow {
	return models.HourWindow{Start: s.WorkStart, End: s.WorkEnd}
}

type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  sslMode,
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.token", "")

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "globalsync")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", false)

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 1000)
	v.SetDefault("openai.temperature", 0.1)
	v.SetDefault("openai.max_retries", 2)

	v.SetDefault("holidays.base_url", "https://date.nager.at/api/v3")
	v.SetDefault("holidays.timeout", 5*time.Second)
	v.SetDefault("holidays.cache_ttl", 24*time.Hour)
	v.SetDefault("holidays.max_failures", 3)
	v.SetDefault("holidays.breaker_cooldown", 30*time.Second)
	v.SetDefault("holidays.redis.url", "")
	v.SetDefault("holidays.redis.key_prefix", "globalsync:holidays:")

	weights := scheduling.DefaultWeights()
	v.SetDefault("scheduling.horizon_days", scheduling.DefaultHorizonDays)
	v.SetDefault("scheduling.min_buffer", scheduling.DefaultMinBuffer)
	v.SetDefault("scheduling.work_start", 9)
	v.SetDefault("scheduling.work_end", 18)
	v.SetDefault("scheduling.default_timezone", "UTC")
	v.SetDefault("scheduling.weights.explicit_hours", weights.ExplicitHours)
	v.SetDefault("scheduling.weights.time_window", weights.TimeWindow)
	v.SetDefault("scheduling.weights.date", weights.Date)
	v.SetDefault("scheduling.weights.date_range", weights.DateRange)
	v.SetDefault("scheduling.weights.weekday", weights.Weekday)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
}

// LoadConfig reads path (a missing file is fine), applies environment
// overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		config.Database = dbConfig
	}

	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}

	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}

	if redisURL := v.GetString("REDIS_URL"); redisURL != "" {
		config.Holidays.Redis.URL = redisURL
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	if err := c.Scheduling.WorkHours().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWorkHours, err)
	}
	if err := c.Scheduling.Weights.Validate(); err != nil {
		return fmt.Errorf("invalid scheduling weights: %w", err)
	}
	if c.Scheduling.HorizonDays <= 0 {
		return fmt.Errorf("scheduling.horizon_days must be positive, got %d", c.Scheduling.HorizonDays)
	}
	if c.Scheduling.MinBuffer < 0 {
		return fmt.Errorf("scheduling.min_buffer must not be negative, got %s", c.Scheduling.MinBuffer)
	}
	if c.OpenAI.Temperature < 0 || c.OpenAI.Temperature > 2 {
		return fmt.Errorf("openai.temperature must be within [0, 2], got %g", c.OpenAI.Temperature)
	}
	if _, err := scheduling.LoadLocation(c.Scheduling.DefaultTimezone); err != nil {
		return fmt.Errorf("scheduling.default_timezone: %w", err)
	}
	return nil
}
