package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// loadDotEnvLookup loads a .env file from the working directory when present
// (already exported variables win) and returns os.LookupEnv.
func loadDotEnvLookup() LookupFunc {
	_ = godotenv.Load()
	return os.LookupEnv
}

// parseEnv overlays values from environment variables.
//
// Recognised variables:
//
//	PROFOLIO_ENV, HTTP_ADDR, GRPC_ADDR, DATABASE_URL,
//	JWT_SECRET, JWT_VALIDITY, ENCRYPTION_KEY, DEMO_MODE, DEMO_TOKEN,
//	TRUSTED_PROXIES (comma separated),
//	REDIS_URL, REDIS_HOST, REDIS_PORT, REDIS_PASSWORD, REDIS_DB,
//	REDIS_MAX_RETRIES, REDIS_DIAL_TIMEOUT,
//	RATE_LIMIT_THRESHOLD, RATE_LIMIT_WINDOW, RATE_LIMIT_ON_STORE_ERROR,
//	S3_ACCESS_KEY, S3_SECRET_KEY, S3_BUCKET, S3_REGION, S3_BASE_ENDPOINT,
//	LOG_LEVEL, LOG_FORMAT
//
// Durations accept Go syntax ("15m") or plain seconds ("900").
func parseEnv(config *Config, lookup LookupFunc) {
	e := envReader{lookup: lookup}

	e.str("PROFOLIO_ENV", &config.Environment)
	e.str("HTTP_ADDR", &config.HTTPAddr)
	e.str("GRPC_ADDR", &config.GRPCAddr)
	e.str("DATABASE_URL", &config.DatabaseDSN)
	e.str("JWT_SECRET", &config.TokenSecret)
	e.duration("JWT_VALIDITY", &config.TokenValidity)
	e.str("ENCRYPTION_KEY", &config.EncryptionKey)
	e.boolean("DEMO_MODE", &config.DemoMode)
	e.str("DEMO_TOKEN", &config.DemoToken)
	e.list("TRUSTED_PROXIES", &config.TrustedProxies)
	e.str("REDIS_URL", &config.RedisURL)
	e.str("REDIS_HOST", &config.RedisHost)
	e.integer("REDIS_PORT", &config.RedisPort)
	e.str("REDIS_PASSWORD", &config.RedisPassword)
	e.integer("REDIS_DB", &config.RedisDB)
	e.integer("REDIS_MAX_RETRIES", &config.RedisMaxRetries)
	e.duration("REDIS_DIAL_TIMEOUT", &config.RedisDialTimeout)
	e.integer("RATE_LIMIT_THRESHOLD", &config.RateLimitThreshold)
	e.duration("RATE_LIMIT_WINDOW", &config.RateLimitWindow)
	e.str("RATE_LIMIT_ON_STORE_ERROR", &config.RateLimitOnStoreError)
	e.str("S3_ACCESS_KEY", &config.S3AccessKey)
	e.str("S3_SECRET_KEY", &config.S3SecretKey)
	e.str("S3_BUCKET", &config.S3Bucket)
	e.str("S3_REGION", &config.S3Region)
	e.str("S3_BASE_ENDPOINT", &config.S3BaseEndpoint)
	e.str("LOG_LEVEL", &config.LogLevel)
	e.str("LOG_FORMAT", &config.LogFormat)
}

type envReader struct {
	lookup LookupFunc
}

func (e envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e envReader) list(key string, dst *[]string) {
	if v, ok := e.get(key); ok {
		*dst = splitList(v)
	}
}

func (e envReader) integer(key string, dst *int) {
	if v, ok := e.get(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			*dst = i
		}
	}
}

func (e envReader) boolean(key string, dst *bool) {
	if v, ok := e.get(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func (e envReader) duration(key string, dst *time.Duration) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	if secs, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(secs) * time.Second
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
	}
}

// splitList splits a comma separated value, dropping blank items.
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
