package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const (
	StoreDynamo   = "dynamo"
	StorePostgres = "postgres"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort  string `env:"APP_PORT,default=3000"`
	AppEnv   string `env:"APP_ENV,default=development"`
	LogLevel string `env:"LOG_LEVEL,default=info"`
	LogJSON  bool   `env:"LOG_JSON,default=false"`

	// StoreDriver selects the backend for codes, sessions and file records.
	StoreDriver  string       `env:"STORE_DRIVER,default=dynamo"`
	DynamoTables DynamoTables `env:",prefix=DYNAMO_TABLE_"`
	DatabaseURL  string       `env:"DATABASE_URL"`

	AWSRegion      string `env:"AWS_REGION,default=us-east-1"`
	AWSEndpointURL string `env:"AWS_ENDPOINT_URL"` // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey   string `env:"AWS_SECRET_ACCESS_KEY"`
	SNSRegion      string `env:"SNS_REGION,default=us-east-1"`

	S3BucketName    string `env:"S3_BUCKET_NAME"`
	S3PublicBaseURL string `env:"S3_PUBLIC_BASE_URL"`

	Upload Upload `env:",prefix=UPLOAD_"`

	JWTPrivateKeyPath string        `env:"JWT_PRIVATE_KEY_PATH,default=./private_key.pem"`
	JWTPublicKeyPath  string        `env:"JWT_PUBLIC_KEY_PATH,default=./public_key.pem"`
	JWTExpiry         time.Duration `env:"JWT_EXPIRY,default=30m"`

	CodeTTL       time.Duration `env:"CODE_TTL,default=5m"`
	SessionTTL    time.Duration `env:"SESSION_TTL,default=720h"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL,default=1h"`
	LoginPath     string        `env:"LOGIN_PATH,default=/login"`

	SMTPHost     string `env:"SMTP_HOST,default=localhost"`
	SMTPPort     int    `env:"SMTP_PORT,default=1025"`
	SMTPFrom     string `env:"SMTP_FROM,default=noreply@example.com"`
	SMTPFromName string `env:"SMTP_FROM_NAME,default=Clay Tile Roofing"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`

	NATSURL string `env:"NATS_URL"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB,default=0"`

	RateLimitPerSecond float64 `env:"RATE_LIMIT_PER_SECOND,default=5"`
	RateLimitBurst     int     `env:"RATE_LIMIT_BURST,default=10"`
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Only enable it behind a proxy that overwrites those headers.
	TrustProxy bool `env:"TRUST_PROXY,default=false"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS,default=*"` // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	VerificationCodes string `env:"VERIFICATION_CODES,default=verification_codes"`
	Sessions          string `env:"SESSIONS,default=sessions"`
	Files             string `env:"FILES,default=files"`
}

// Upload is the server-side policy for delegated uploads.
type Upload struct {
	AllowedContentTypes []string      `env:"ALLOWED_CONTENT_TYPES,default=image/jpeg,image/png,image/webp,image/heic,application/pdf"`
	MaxBytes            int64         `env:"MAX_BYTES,default=52428800"`
	PartSize            int64         `env:"PART_SIZE,default=5242880"`
	RandomSuffix        bool          `env:"RANDOM_SUFFIX,default=true"`
	URLExpiry           time.Duration `env:"URL_EXPIRY,default=15m"`
	RequireSession      bool          `env:"REQUIRE_SESSION,default=false"`
}

// Load reads all configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if cfg.StoreDriver != StoreDynamo && cfg.StoreDriver != StorePostgres {
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	if cfg.StoreDriver == StorePostgres && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=%s", StorePostgres)
	}
	return &cfg, nil
}

// Production reports whether cookies must be marked Secure.
func (c *Config) Production() bool {
	return c.AppEnv == "production"
}
