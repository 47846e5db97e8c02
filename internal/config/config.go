package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/fixzit/fm-service/internal/calendar"
	"github.com/fixzit/fm-service/internal/domain"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverSQLite   = "sqlite"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Store        StoreConfig
	Postgres     PostgresConfig
	Mongo        MongoConfig
	SQLite       SQLiteConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Idempotency  IdempotencyConfig
	SLA          SLAConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// StoreConfig selects the document store backend.
type StoreConfig struct {
	Driver string
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

// MongoConfig holds MongoDB connection values.
type MongoConfig struct {
	URI      string
	Database string
}

// SQLiteConfig points at the embedded database file.
type SQLiteConfig struct {
	Path string
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines session token parameters.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// IdempotencyConfig selects where request ids are remembered.
type IdempotencyConfig struct {
	Backend    string
	TTLMinutes int
}

// SLAConfig carries the fallback working calendar and priority hours.
type SLAConfig struct {
	Timezone    string
	WorkingDays string
	DayStart    string
	DayEnd      string
	HoursUrgent string
	HoursHigh   string
	HoursMedium string
	HoursLow    string
	MaxHours    string
}

// NotificationConfig holds the outbound event queue.
type NotificationConfig struct {
	Backend  string
	QueueKey string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "fm-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(getEnv("STORE_DRIVER", DriverMemory)),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Mongo: MongoConfig{
			URI:      os.Getenv("MONGO_URI"),
			Database: getEnv("MONGO_DATABASE", "fixzit"),
		},
		SQLite: SQLiteConfig{
			Path: getEnv("SQLITE_PATH", "fixzit.db"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", "dev-secret"),
			Issuer:    getEnv("AUTH_JWT_ISSUER", "fixzit"),
		},
		Idempotency: IdempotencyConfig{
			Backend:    strings.ToLower(getEnv("IDEMPOTENCY_BACKEND", "memory")),
			TTLMinutes: getEnvAsInt("IDEMPOTENCY_TTL_MINUTES", 24*60),
		},
		SLA: SLAConfig{
			Timezone:    getEnv("SLA_TIMEZONE", "Asia/Riyadh"),
			WorkingDays: getEnv("SLA_WORKING_DAYS", "0,1,2,3,4"),
			DayStart:    getEnv("SLA_DAY_START", "08:00"),
			DayEnd:      getEnv("SLA_DAY_END", "17:00"),
			HoursUrgent: getEnv("SLA_HOURS_URGENT", "4"),
			HoursHigh:   getEnv("SLA_HOURS_HIGH", "8"),
			HoursMedium: getEnv("SLA_HOURS_MEDIUM", "24"),
			HoursLow:    getEnv("SLA_HOURS_LOW", "72"),
		},
		Notification: NotificationConfig{
			Backend:  strings.ToLower(getEnv("NOTIFY_BACKEND", "memory")),
			QueueKey: getEnv("NOTIFY_QUEUE_KEY", "fixzit:events"),
		},
	}

	return cfg, nil
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

// TTL is how long a request id is remembered.
func (i IdempotencyConfig) TTL() time.Duration {
	if i.TTLMinutes <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(i.TTLMinutes) * time.Minute
}

// GCCHolidays are the recurring public holidays applied by default.
func GCCHolidays() []calendar.Holiday {
	return []calendar.Holiday{
		{Date: calendar.Date{Year: 2024, Month: time.February, Day: 22}, Name: "Founding Day", Recurring: true},
		{Date: calendar.Date{Year: 2024, Month: time.September, Day: 23}, Name: "Saudi National Day", Recurring: true},
	}
}

// DefaultCalendar builds the calendar used by organizations without stored
// settings. The result is validated.
func (s SLAConfig) DefaultCalendar(organizationID string) (calendar.Config, error) {
	start, err := calendar.ParseClock(s.DayStart)
	if err != nil {
		return calendar.Config{}, fmt.Errorf("%w: SLA_DAY_START: %v", calendar.ErrInvalidConfig, err)
	}
	end, err := calendar.ParseClock(s.DayEnd)
	if err != nil {
		return calendar.Config{}, fmt.Errorf("%w: SLA_DAY_END: %v", calendar.ErrInvalidConfig, err)
	}
	days, err := ParseWeekdays(s.WorkingDays)
	if err != nil {
		return calendar.Config{}, fmt.Errorf("%w: SLA_WORKING_DAYS: %v", calendar.ErrInvalidConfig, err)
	}
	cfg := calendar.Config{
		OrganizationID: organizationID,
		Timezone:       s.Timezone,
		WorkingDays:    days,
		DayStart:       start,
		DayEnd:         end,
		Holidays:       GCCHolidays(),
	}
	if err := cfg.Validate(); err != nil {
		return calendar.Config{}, err
	}
	return cfg, nil
}

// MaxSLAHours is the largest SLA a deadline may be computed for. An empty
// SLA_MAX_HOURS means calendar.DefaultMaxSLAHours.
func (s SLAConfig) MaxSLAHours() (decimal.Decimal, error) {
	if s.MaxHours == "" {
		return calendar.DefaultMaxSLAHours, nil
	}
	limit, err := decimal.NewFromString(s.MaxHours)
	if err != nil || !limit.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: SLA_MAX_HOURS: %q", calendar.ErrInvalidSLAHours, s.MaxHours)
	}
	return limit, nil
}

// Policy returns the priority to SLA hours table. Every entry must be within
// MaxSLAHours.
func (s SLAConfig) Policy() (domain.SLAPolicy, error) {
	limit, err := s.MaxSLAHours()
	if err != nil {
		return nil, err
	}
	policy := domain.DefaultSLAPolicy()
	for priority, raw := range map[domain.WorkOrderPriority]string{
		domain.PriorityUrgent: s.HoursUrgent,
		domain.PriorityHigh:   s.HoursHigh,
		domain.PriorityMedium: s.HoursMedium,
		domain.PriorityLow:    s.HoursLow,
	} {
		if raw == "" {
			continue
		}
		hours, err := decimal.NewFromString(raw)
		if err != nil || !hours.IsPositive() {
			return nil, fmt.Errorf("%w: sla hours for %s: %q", calendar.ErrInvalidSLAHours, priority, raw)
		}
		policy[priority] = hours
	}
	for priority, hours := range policy {
		if hours.GreaterThan(limit) {
			return nil, fmt.Errorf("%w: sla hours for %s exceed SLA_MAX_HOURS %s", calendar.ErrInvalidSLAHours, priority, limit)
		}
	}
	return policy, nil
}

// ParseWeekdays parses a comma separated list of weekday indices (0 = Sunday).
func ParseWeekdays(raw string) ([]time.Weekday, error) {
	var days []time.Weekday
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 6 {
			return nil, fmt.Errorf("weekday %q out of range", part)
		}
		days = append(days, time.Weekday(n))
	}
	return days, nil
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
