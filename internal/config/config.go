package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	RateLimit  RateLimitConfig
	JWT        JWTConfig
	Storage    StorageConfig
	Upload     UploadConfig
	NATS       NATSConfig
	Cache      CacheConfig
	Resilience ResilienceConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host          string
	Port          string
	User          string
	Password      string
	Database      string
	Schema        string
	SSLMode       string
	MaxOpenConns  int
	MaxIdleConns  int
	MigrationsDir string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

type JWTConfig struct {
	Secret string
}

type StorageConfig struct {
	Backend        string // local or s3
	LocalPath      string
	PublicBaseURL  string
	AWSRegion      string
	AWSAccessKeyID string
	AWSSecretKey   string
	S3Bucket       string
	S3Endpoint     string
	PresignExpiry  time.Duration
}

type UploadConfig struct {
	MaxBytes          int64
	AllowedExtensions []string
	RatePerMinute     int
	Burst             int
}

type NATSConfig struct {
	URL           string
	SubjectPrefix string
}

type CacheConfig struct {
	Backend    string // memory or redis
	TTL        time.Duration
	MaxEntries int
}

type ResilienceConfig struct {
	RetryMaxAttempts int
	BreakerEnabled   bool
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Env != "production"
}

func Load() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SCHEMA", "public")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_MIGRATIONS_DIR", "migrations")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("RATE_LIMIT_REQUESTS", 100)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	viper.SetDefault("STORAGE_BACKEND", "local")
	viper.SetDefault("STORAGE_LOCAL_PATH", "./data/documents")
	viper.SetDefault("STORAGE_PUBLIC_BASE_URL", "http://localhost:8080/files")
	viper.SetDefault("AWS_REGION", "eu-central-1")
	viper.SetDefault("STORAGE_PRESIGN_MINUTES", 15)
	viper.SetDefault("UPLOAD_MAX_BYTES", 20<<20)
	viper.SetDefault("UPLOAD_ALLOWED_EXTENSIONS", ".pdf,.jpg,.jpeg,.png")
	viper.SetDefault("UPLOAD_RATE_PER_MINUTE", 30)
	viper.SetDefault("UPLOAD_BURST", 5)
	viper.SetDefault("NATS_URL", "")
	viper.SetDefault("NATS_SUBJECT_PREFIX", "dpp")
	viper.SetDefault("CACHE_BACKEND", "memory")
	viper.SetDefault("CACHE_TTL_SECONDS", 300)
	viper.SetDefault("CACHE_MAX_ENTRIES", 256)
	viper.SetDefault("RESILIENCE_RETRY_MAX_ATTEMPTS", 3)
	viper.SetDefault("RESILIENCE_BREAKER_ENABLED", true)

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	return &Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			Env:            viper.GetString("SERVER_ENV"),
			AllowedOrigins: splitList(viper.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:          viper.GetString("DB_HOST"),
			Port:          viper.GetString("DB_PORT"),
			User:          viper.GetString("DB_USER"),
			Password:      viper.GetString("DB_PASSWORD"),
			Database:      viper.GetString("DB_DATABASE"),
			Schema:        viper.GetString("DB_SCHEMA"),
			SSLMode:       viper.GetString("DB_SSLMODE"),
			MaxOpenConns:  viper.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:  viper.GetInt("DB_MAX_IDLE_CONNS"),
			MigrationsDir: viper.GetString("DB_MIGRATIONS_DIR"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		RateLimit: RateLimitConfig{
			Requests: viper.GetInt("RATE_LIMIT_REQUESTS"),
			Window:   time.Duration(viper.GetInt("RATE_LIMIT_WINDOW_SECONDS")) * time.Second,
		},
		JWT: JWTConfig{
			Secret: viper.GetString("JWT_SECRET"),
		},
		Storage: StorageConfig{
			Backend:        strings.ToLower(viper.GetString("STORAGE_BACKEND")),
			LocalPath:      viper.GetString("STORAGE_LOCAL_PATH"),
			PublicBaseURL:  viper.GetString("STORAGE_PUBLIC_BASE_URL"),
			AWSRegion:      viper.GetString("AWS_REGION"),
			AWSAccessKeyID: viper.GetString("AWS_ACCESS_KEY_ID"),
			AWSSecretKey:   viper.GetString("AWS_SECRET_ACCESS_KEY"),
			S3Bucket:       viper.GetString("AWS_S3_BUCKET"),
			S3Endpoint:     viper.GetString("AWS_S3_ENDPOINT"),
			PresignExpiry:  time.Duration(viper.GetInt("STORAGE_PRESIGN_MINUTES")) * time.Minute,
		},
		Upload: UploadConfig{
			MaxBytes:          viper.GetInt64("UPLOAD_MAX_BYTES"),
			AllowedExtensions: splitList(strings.ToLower(viper.GetString("UPLOAD_ALLOWED_EXTENSIONS"))),
			RatePerMinute:     viper.GetInt("UPLOAD_RATE_PER_MINUTE"),
			Burst:             viper.GetInt("UPLOAD_BURST"),
		},
		NATS: NATSConfig{
			URL:           viper.GetString("NATS_URL"),
			SubjectPrefix: viper.GetString("NATS_SUBJECT_PREFIX"),
		},
		Cache: CacheConfig{
			Backend:    strings.ToLower(viper.GetString("CACHE_BACKEND")),
			TTL:        time.Duration(viper.GetInt("CACHE_TTL_SECONDS")) * time.Second,
			MaxEntries: viper.GetInt("CACHE_MAX_ENTRIES"),
		},
		Resilience: ResilienceConfig{
			RetryMaxAttempts: viper.GetInt("RESILIENCE_RETRY_MAX_ATTEMPTS"),
			BreakerEnabled:   viper.GetBool("RESILIENCE_BREAKER_ENABLED"),
		},
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
