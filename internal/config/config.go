package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds every setting the server and the operator CLIs read from the
// environment. A .env file in the working directory is loaded first.
type Config struct {
	Environment string `env:"ENVIRONMENT" env-default:"development"`
	ServiceName string `env:"SERVICE_NAME" env-default:"motheroflaunch-backend"`

	HTTP struct {
		Port            string        `env:"PORT" env-default:"8787"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" env-default:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" env-default:"60s"`
		ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"30s"`
		AllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS" env-default:"*" env-separator:","`
	}

	Log struct {
		Level string `env:"LOG_LEVEL" env-default:"info"`
		File  string `env:"LOG_FILE" env-default:"server.log"`
	}

	Database struct {
		URL             string        `env:"DATABASE_URL"`
		Host            string        `env:"DB_HOST" env-default:"localhost"`
		Port            string        `env:"DB_PORT" env-default:"5432"`
		User            string        `env:"DB_USER" env-default:"postgres"`
		Password        string        `env:"DB_PASSWORD"`
		Name            string        `env:"DB_NAME" env-default:"motheroflaunch"`
		SSLMode         string        `env:"DB_SSLMODE" env-default:"disable"`
		MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
		MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" env-default:"100"`
		ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"1h"`
	}

	Redis struct {
		Host     string `env:"REDIS_HOST"`
		Port     string `env:"REDIS_PORT" env-default:"6379"`
		Password string `env:"REDIS_PASSWORD"`
	}

	Auth struct {
		JWTSecret string `env:"AUTH_JWT_SECRET"`
		Issuer    string `env:"AUTH_JWT_ISSUER"`
	}

	Launch struct {
		FreeCapacity    int           `env:"LAUNCH_FREE_CAPACITY" env-default:"10"`
		PremiumCapacity int           `env:"LAUNCH_PREMIUM_CAPACITY" env-default:"5"`
		FreeLeadDays    int           `env:"LAUNCH_FREE_LEAD_DAYS" env-default:"7"`
		LockTTL         time.Duration `env:"LAUNCH_LOCK_TTL" env-default:"10s"`
		FinalizeEvery   time.Duration `env:"LAUNCH_FINALIZE_INTERVAL" env-default:"15m"`
	}

	RateLimit struct {
		Requests int           `env:"RATE_LIMIT_REQUESTS" env-default:"100"`
		Votes    int           `env:"RATE_LIMIT_VOTES" env-default:"30"`
		Window   time.Duration `env:"RATE_LIMIT_WINDOW" env-default:"1m"`
	}

	AWS struct {
		Region     string `env:"AWS_REGION" env-default:"us-east-1"`
		Bucket     string `env:"AWS_BUCKET"`
		CDNBaseURL string `env:"CDN_BASE_URL"`
	}

	Email struct {
		From    string `env:"EMAIL_FROM"`
		Name    string `env:"EMAIL_FROM_NAME" env-default:"Mother of Launch"`
		SiteURL string `env:"SITE_URL" env-default:"http://localhost:3000"`
	}

	Search struct {
		URL string `env:"ELASTICSEARCH_URL"`
	}

	Telemetry struct {
		Enabled      bool    `env:"OTEL_ENABLED" env-default:"false"`
		OTLPEndpoint string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" env-default:"localhost:4318"`
		SamplingRate float64 `env:"OTEL_SAMPLING_RATE" env-default:"1.0"`
	}

	Legacy struct {
		MongoURI string `env:"LEGACY_MONGO_URI"`
		Database string `env:"LEGACY_MONGO_DB" env-default:"motheroflaunch"`
	}

	Jobs struct {
		PremiumSweepEvery time.Duration `env:"PREMIUM_SWEEP_INTERVAL" env-default:"1h"`
		ViewFlushEvery    time.Duration `env:"VIEW_FLUSH_INTERVAL" env-default:"5m"`
	}
}

// Load reads configuration from the environment. Missing .env files are not
// an error; the process environment is used as-is.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("could not read config: %w", err)
	}
	return &cfg, nil
}

// DatabaseDSN returns DATABASE_URL when set, otherwise a DSN built from the
// individual DB_* settings.
func (c *Config) DatabaseDSN() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User, c.Database.Name, c.Database.SSLMode)
	if c.Database.Password != "" {
		dsn += " password=" + c.Database.Password
	}
	return dsn
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
