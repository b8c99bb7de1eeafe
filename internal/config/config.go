// Package config loads runtime settings from the environment. A .env file
// in the working directory is read first when present.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	StoreDriver string // "postgres" or "memory"

	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string

	RedisURL string // empty disables Redis; idempotency keys fall back to memory
	AMQPURL  string // empty disables broker events

	JWTSecret string
	TokenTTL  time.Duration

	// Inventory and saga tuning.
	InventoryMaxAttempts int
	CompensationAttempts int
	RetryBackoff         time.Duration
	IdempotencyTTL       time.Duration

	AWSRegion    string
	AWSAccessKey string
	AWSSecretKey string
	AWSS3Bucket  string
	UploadDir    string
	BaseURL      string
}

// Load reads the environment, applying defaults where a variable is unset.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: could not read .env: %v", err)
	}

	cfg := Config{
		Port:        envStr("PORT", "8080"),
		StoreDriver: strings.ToLower(envStr("STORE_DRIVER", "postgres")),

		DBHost:     envStr("DB_HOST", "localhost"),
		DBUser:     envStr("DB_USER", "postgres"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     envStr("DB_NAME", "shupool"),
		DBPort:     envStr("DB_PORT", "5432"),

		RedisURL: os.Getenv("REDIS_URL"),
		AMQPURL:  os.Getenv("AMQP_URL"),

		JWTSecret: os.Getenv("JWT_SECRET"),
		TokenTTL:  envDur("TOKEN_TTL", 7*24*time.Hour),

		InventoryMaxAttempts: envInt("INVENTORY_MAX_ATTEMPTS", 5),
		CompensationAttempts: envInt("COMPENSATION_ATTEMPTS", 3),
		RetryBackoff:         envDur("RETRY_BACKOFF", 10*time.Millisecond),
		IdempotencyTTL:       envDur("IDEMPOTENCY_TTL", 24*time.Hour),

		AWSRegion:    os.Getenv("AWS_REGION"),
		AWSAccessKey: os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		AWSS3Bucket:  os.Getenv("AWS_S3_BUCKET"),
		UploadDir:    envStr("UPLOAD_DIR", "./uploads"),
		BaseURL:      envStr("BASE_URL", "http://localhost:8080"),
	}

	if cfg.InventoryMaxAttempts < 1 {
		cfg.InventoryMaxAttempts = 1
	}
	if cfg.CompensationAttempts < 1 {
		cfg.CompensationAttempts = 1
	}
	return cfg
}

// S3Enabled reports whether all credentials needed for S3 uploads are set.
func (c Config) S3Enabled() bool {
	return c.AWSRegion != "" && c.AWSAccessKey != "" && c.AWSSecretKey != "" && c.AWSS3Bucket != ""
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	log.Printf("config: invalid int for %s: %q, using %d", k, v, d)
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	log.Printf("config: invalid duration for %s: %q, using %s", k, v, d)
	return d
}
