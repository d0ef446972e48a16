package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Reminder     ReminderConfig
	Workflow     WorkflowConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	PublicURL             string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	CacheTTL   time.Duration
	KeyPrefix  string
	LockTTL    time.Duration
	InvChannel string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines token verification parameters.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// TelegramConfig configures the Telegram Bot API sender.
type TelegramConfig struct {
	BotToken    string
	GroupChatID int64
	APIBaseURL  string
}

// SlackConfig configures the Slack group sender.
type SlackConfig struct {
	BotToken string
	Channel  string
	APIURL   string
}

// SMTPConfig configures outbound email.
type SMTPConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// NotificationConfig holds outbound channel settings.
type NotificationConfig struct {
	// GroupProvider selects the group broadcast channel: telegram, slack or none.
	GroupProvider  string
	ChannelTimeout time.Duration
	Workers        int
	QueueSize      int
	Telegram       TelegramConfig
	Slack          SlackConfig
	SMTP           SMTPConfig
}

// ReminderConfig drives the periodic reminder scan.
type ReminderConfig struct {
	Enabled     bool
	Interval    time.Duration
	Cooldown    time.Duration
	WindowStart int
	WindowEnd   int
	Weekdays    []time.Weekday
	Timezone    string
	Concurrency int
	BatchSize   int
}

// WorkflowConfig tunes transition guards.
type WorkflowConfig struct {
	MaxRejectionReason int
	DefaultPageSize    int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	groupChatID, err := strconv.ParseInt(getEnv("TELEGRAM_GROUP_CHAT_ID", "0"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_GROUP_CHAT_ID: %w", err)
	}

	weekdays, err := parseWeekdays(getEnv("REMINDER_WEEKDAYS", "mon,tue,wed,thu,fri"))
	if err != nil {
		return nil, fmt.Errorf("invalid REMINDER_WEEKDAYS: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "request-desk"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			PublicURL:             strings.TrimRight(getEnv("APP_PUBLIC_URL", "http://localhost:8080"), "/"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:       os.Getenv("REDIS_ADDR"),
			Password:   os.Getenv("REDIS_PASSWORD"),
			DB:         redisDB,
			CacheTTL:   getEnvAsDuration("REDIS_CACHE_TTL", 5*time.Minute),
			KeyPrefix:  getEnv("REDIS_KEY_PREFIX", "request-desk"),
			LockTTL:    getEnvAsDuration("REDIS_SCAN_LOCK_TTL", 10*time.Minute),
			InvChannel: getEnv("REDIS_INVALIDATION_CHANNEL", "request-desk:invalidate"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", "dev-secret"),
			Issuer:    getEnv("AUTH_JWT_ISSUER", ""),
		},
		Notification: NotificationConfig{
			GroupProvider:  strings.ToLower(getEnv("NOTIFY_GROUP_PROVIDER", "telegram")),
			ChannelTimeout: getEnvAsDuration("NOTIFY_CHANNEL_TIMEOUT", 10*time.Second),
			Workers:        getEnvAsInt("NOTIFY_WORKERS", 4),
			QueueSize:      getEnvAsInt("NOTIFY_QUEUE_SIZE", 256),
			Telegram: TelegramConfig{
				BotToken:    os.Getenv("TELEGRAM_BOT_TOKEN"),
				GroupChatID: groupChatID,
				APIBaseURL:  getEnv("TELEGRAM_API_URL", "https://api.telegram.org"),
			},
			Slack: SlackConfig{
				BotToken: os.Getenv("SLACK_BOT_TOKEN"),
				Channel:  os.Getenv("SLACK_CHANNEL"),
				APIURL:   os.Getenv("SLACK_API_URL"),
			},
			SMTP: SMTPConfig{
				Enabled:  getEnvAsBool("SMTP_ENABLED", false),
				Host:     getEnv("SMTP_HOST", "localhost"),
				Port:     getEnvAsInt("SMTP_PORT", 587),
				Username: os.Getenv("SMTP_USERNAME"),
				Password: os.Getenv("SMTP_PASSWORD"),
				From:     getEnv("SMTP_FROM", "noreply@example.com"),
			},
		},
		Reminder: ReminderConfig{
			Enabled:     getEnvAsBool("REMINDER_ENABLED", true),
			Interval:    getEnvAsDuration("REMINDER_INTERVAL", time.Hour),
			Cooldown:    getEnvAsDuration("REMINDER_COOLDOWN", 4*time.Hour),
			WindowStart: getEnvAsInt("REMINDER_WINDOW_START_HOUR", 9),
			WindowEnd:   getEnvAsInt("REMINDER_WINDOW_END_HOUR", 18),
			Weekdays:    weekdays,
			Timezone:    getEnv("REMINDER_TIMEZONE", "UTC"),
			Concurrency: getEnvAsInt("REMINDER_CONCURRENCY", 8),
			BatchSize:   getEnvAsInt("REMINDER_BATCH_SIZE", 500),
		},
		Workflow: WorkflowConfig{
			MaxRejectionReason: getEnvAsInt("WORKFLOW_MAX_REJECTION_REASON", 2000),
			DefaultPageSize:    getEnvAsInt("WORKFLOW_DEFAULT_PAGE_SIZE", 20),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Notification.GroupProvider {
	case "telegram", "slack", "none", "":
	default:
		return fmt.Errorf("invalid NOTIFY_GROUP_PROVIDER %q", c.Notification.GroupProvider)
	}
	if c.Reminder.WindowStart < 0 || c.Reminder.WindowStart > 23 || c.Reminder.WindowEnd < 0 || c.Reminder.WindowEnd > 24 {
		return fmt.Errorf("reminder window hours out of range: %d-%d", c.Reminder.WindowStart, c.Reminder.WindowEnd)
	}
	if _, err := time.LoadLocation(c.Reminder.Timezone); err != nil {
		return fmt.Errorf("invalid REMINDER_TIMEZONE: %w", err)
	}
	if c.Reminder.Cooldown <= 0 {
		return fmt.Errorf("REMINDER_COOLDOWN must be positive")
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Location resolves the reminder time zone, falling back to UTC.
func (r ReminderConfig) Location() *time.Location {
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// ParseWeekdays parses a comma separated list such as "mon,tue,fri".
func ParseWeekdays(raw string) ([]time.Weekday, error) {
	return parseWeekdays(raw)
}

func parseWeekdays(raw string) ([]time.Weekday, error) {
	var days []time.Weekday
	for _, part := range strings.Split(raw, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		if len(name) > 3 {
			name = name[:3]
		}
		day, ok := weekdayNames[name]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", part)
		}
		days = append(days, day)
	}
	return days, nil
}
