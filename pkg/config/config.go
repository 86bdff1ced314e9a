package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Log          LogConfig
	Timetable    TimetableConfig
	Substitution SubstitutionConfig
	Jobs         JobsConfig
	Tracing      TracingConfig
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

// JWTConfig holds the verification secret. Tokens are issued by the identity service.
type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// TimetableConfig names the subjects the grade rules refer to.
type TimetableConfig struct {
	LibrarySubject    string
	GamesSubject      string
	DesignatedSubject string
	MergePrimary      string
	MergeSecondary    string
	GenerationTimeout time.Duration
	AdvisoryLockKey   int64
}

// SubstitutionConfig governs candidate narrowing and result caching.
type SubstitutionConfig struct {
	QualifiedOnly       bool
	UnqualifiedFallback bool
	MaxCandidates       int
	CacheEnabled        bool
	CacheTTL            time.Duration
}

// JobsConfig tunes the asynchronous generation queue.
type JobsConfig struct {
	QueueBuffer int
	MaxRetries  int
	RetryDelay  time.Duration
	ResultTTL   time.Duration
}

// TracingConfig toggles OpenTelemetry span export.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
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
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

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

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET")}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Timetable = TimetableConfig{
		LibrarySubject:    v.GetString("TIMETABLE_LIBRARY_SUBJECT"),
		GamesSubject:      v.GetString("TIMETABLE_GAMES_SUBJECT"),
		DesignatedSubject: v.GetString("TIMETABLE_DESIGNATED_SUBJECT"),
		MergePrimary:      v.GetString("TIMETABLE_MERGE_PRIMARY"),
		MergeSecondary:    v.GetString("TIMETABLE_MERGE_SECONDARY"),
		GenerationTimeout: parseDuration(v.GetString("TIMETABLE_GENERATION_TIMEOUT"), 30*time.Second),
		AdvisoryLockKey:   v.GetInt64("TIMETABLE_ADVISORY_LOCK_KEY"),
	}

	maxCandidates := v.GetInt("SUBSTITUTION_MAX_CANDIDATES")
	if maxCandidates < 0 {
		maxCandidates = 0
	}
	cfg.Substitution = SubstitutionConfig{
		QualifiedOnly:       v.GetBool("SUBSTITUTION_QUALIFIED_ONLY"),
		UnqualifiedFallback: v.GetBool("SUBSTITUTION_UNQUALIFIED_FALLBACK"),
		MaxCandidates:       maxCandidates,
		CacheEnabled:        v.GetBool("SUBSTITUTION_CACHE_ENABLED"),
		CacheTTL:            parseDuration(v.GetString("SUBSTITUTION_CACHE_TTL"), 2*time.Minute),
	}

	queueBuffer := v.GetInt("JOBS_QUEUE_BUFFER")
	if queueBuffer <= 0 {
		queueBuffer = 16
	}
	cfg.Jobs = JobsConfig{
		QueueBuffer: queueBuffer,
		MaxRetries:  v.GetInt("JOBS_MAX_RETRIES"),
		RetryDelay:  parseDuration(v.GetString("JOBS_RETRY_DELAY"), 2*time.Second),
		ResultTTL:   parseDuration(v.GetString("JOBS_RESULT_TTL"), time.Hour),
	}

	cfg.Tracing = TracingConfig{
		Enabled:     v.GetBool("TRACING_ENABLED"),
		ServiceName: v.GetString("TRACING_SERVICE_NAME"),
	}

	return cfg, nil
}

// MergePair returns the configured merge subject names. It reports false when merging is disabled.
func (c TimetableConfig) MergePair() (string, string, bool) {
	if c.MergePrimary == "" || c.MergeSecondary == "" {
		return "", "", false
	}
	return c.MergePrimary, c.MergeSecondary, true
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "timetable")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("TIMETABLE_LIBRARY_SUBJECT", "Library")
	v.SetDefault("TIMETABLE_GAMES_SUBJECT", "Games")
	v.SetDefault("TIMETABLE_DESIGNATED_SUBJECT", "Mathematics")
	v.SetDefault("TIMETABLE_MERGE_PRIMARY", "Hindi")
	v.SetDefault("TIMETABLE_MERGE_SECONDARY", "Sanskrit")
	v.SetDefault("TIMETABLE_GENERATION_TIMEOUT", "30s")
	v.SetDefault("TIMETABLE_ADVISORY_LOCK_KEY", 727001)

	v.SetDefault("SUBSTITUTION_QUALIFIED_ONLY", false)
	v.SetDefault("SUBSTITUTION_UNQUALIFIED_FALLBACK", true)
	v.SetDefault("SUBSTITUTION_MAX_CANDIDATES", 0)
	v.SetDefault("SUBSTITUTION_CACHE_ENABLED", true)
	v.SetDefault("SUBSTITUTION_CACHE_TTL", "2m")

	v.SetDefault("JOBS_QUEUE_BUFFER", 16)
	v.SetDefault("JOBS_MAX_RETRIES", 1)
	v.SetDefault("JOBS_RETRY_DELAY", "2s")
	v.SetDefault("JOBS_RESULT_TTL", "1h")

	v.SetDefault("TRACING_ENABLED", false)
	v.SetDefault("TRACING_SERVICE_NAME", "ttapp-api")
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
