package config

import (
	"encoding/json"
	"os"

	"github.com/profolio/profolio/internal/flagx"
	"github.com/profolio/profolio/internal/timex"
)

// JsonConfig is the on-disk shape of the optional JSON config file.
// Only fields present in the file override the current values.
type JsonConfig struct {
	Environment           string         `json:"environment"`
	HTTPAddr              string         `json:"http_addr"`
	GRPCAddr              string         `json:"grpc_addr"`
	DatabaseDSN           string         `json:"database_dsn"`
	TokenSecret           string         `json:"token_secret"`
	TokenValidity         timex.Duration `json:"token_validity"`
	EncryptionKey         string         `json:"encryption_key"`
	DemoMode              *bool          `json:"demo_mode"`
	DemoToken             string         `json:"demo_token"`
	TrustedProxies        []string       `json:"trusted_proxies"`
	RedisURL              string         `json:"redis_url"`
	RedisHost             string         `json:"redis_host"`
	RedisPort             int            `json:"redis_port"`
	RedisPassword         string         `json:"redis_password"`
	RedisDB               *int           `json:"redis_db"`
	RedisMaxRetries       *int           `json:"redis_max_retries"`
	RedisDialTimeout      timex.Duration `json:"redis_dial_timeout"`
	RateLimitThreshold    int            `json:"rate_limit_threshold"`
	RateLimitWindow       timex.Duration `json:"rate_limit_window"`
	RateLimitOnStoreError string         `json:"rate_limit_on_store_error"`
	S3AccessKey           string         `json:"s3_access_key"`
	S3SecretKey           string         `json:"s3_secret_key"`
	S3Bucket              string         `json:"s3_bucket"`
	S3Region              string         `json:"s3_region"`
	S3BaseEndpoint        string         `json:"s3_base_endpoint"`
	LogLevel              string         `json:"log_level"`
	LogFormat             string         `json:"log_format"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The file path comes from the -c/-config flags or the PROFOLIO_CONFIG
// environment variable. If no path is set, nothing is loaded. If the file
// cannot be read or contains invalid JSON, the function panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.applyTo(config)
}

func (c *JsonConfig) applyTo(config *Config) {
	setString(&config.Environment, c.Environment)
	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.GRPCAddr, c.GRPCAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.TokenSecret, c.TokenSecret)
	if c.TokenValidity.Duration > 0 {
		config.TokenValidity = c.TokenValidity.Duration
	}
	setString(&config.EncryptionKey, c.EncryptionKey)
	if c.DemoMode != nil {
		config.DemoMode = *c.DemoMode
	}
	setString(&config.DemoToken, c.DemoToken)
	if c.TrustedProxies != nil {
		config.TrustedProxies = c.TrustedProxies
	}
	setString(&config.RedisURL, c.RedisURL)
	setString(&config.RedisHost, c.RedisHost)
	if c.RedisPort > 0 {
		config.RedisPort = c.RedisPort
	}
	setString(&config.RedisPassword, c.RedisPassword)
	if c.RedisDB != nil {
		config.RedisDB = *c.RedisDB
	}
	if c.RedisMaxRetries != nil {
		config.RedisMaxRetries = *c.RedisMaxRetries
	}
	if c.RedisDialTimeout.Duration > 0 {
		config.RedisDialTimeout = c.RedisDialTimeout.Duration
	}
	if c.RateLimitThreshold > 0 {
		config.RateLimitThreshold = c.RateLimitThreshold
	}
	if c.RateLimitWindow.Duration > 0 {
		config.RateLimitWindow = c.RateLimitWindow.Duration
	}
	setString(&config.RateLimitOnStoreError, c.RateLimitOnStoreError)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
