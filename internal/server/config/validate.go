package config

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/profolio/profolio/internal/cryptox"
	"github.com/profolio/profolio/internal/logging"
)

// MinTokenSecretLength is the minimum accepted JWT secret length in production.
const MinTokenSecretLength = 32

var (
	ErrMissingTokenSecret   = errors.New("JWT_SECRET is required in production")
	ErrShortTokenSecret     = fmt.Errorf("JWT_SECRET must be at least %d bytes", MinTokenSecretLength)
	ErrMissingEncryptionKey = errors.New("ENCRYPTION_KEY is required in production")
	ErrDemoInProduction     = errors.New("demo mode cannot be enabled in production")
)

// Validate checks the configuration before the server starts. Missing
// secrets are a hard failure in production; in development they are filled
// by EnsureDevelopmentSecrets.
func (c *Config) Validate() error {
	switch c.Environment {
	case EnvDevelopment, EnvProduction:
	default:
		return fmt.Errorf("unknown environment %q", c.Environment)
	}

	if c.IsProduction() {
		if c.TokenSecret == "" {
			return ErrMissingTokenSecret
		}
		if len(c.TokenSecret) < MinTokenSecretLength {
			return ErrShortTokenSecret
		}
		if c.EncryptionKey == "" {
			return ErrMissingEncryptionKey
		}
		if c.DemoMode {
			return ErrDemoInProduction
		}
	}

	if c.DemoMode && strings.TrimSpace(c.DemoToken) == "" {
		return errors.New("demo mode requires a non-empty DEMO_TOKEN")
	}
	if c.TokenValidity <= 0 {
		return errors.New("token validity must be positive")
	}
	if c.RateLimitThreshold <= 0 {
		return errors.New("rate limit threshold must be positive")
	}
	if c.RateLimitWindow <= 0 {
		return errors.New("rate limit window must be positive")
	}
	for _, p := range c.TrustedProxies {
		if !isIPOrCIDR(p) {
			return fmt.Errorf("trusted proxy %q is neither an IP nor a CIDR", p)
		}
	}
	switch c.RateLimitOnStoreError {
	case "fail_open", "fail_closed":
	default:
		return fmt.Errorf("RATE_LIMIT_ON_STORE_ERROR must be fail_open or fail_closed, got %q", c.RateLimitOnStoreError)
	}

	return nil
}

func isIPOrCIDR(s string) bool {
	if net.ParseIP(s) != nil {
		return true
	}
	_, _, err := net.ParseCIDR(s)
	return err == nil
}

// EnsureDevelopmentSecrets generates throwaway secrets for a development
// run and warns loudly about each one. It never touches a production config.
// It returns the names of the generated settings.
func (c *Config) EnsureDevelopmentSecrets(ctx context.Context, logger logging.Logger) ([]string, error) {
	if c.IsProduction() {
		return nil, nil
	}

	var generated []string

	if c.EncryptionKey == "" {
		key, err := cryptox.GenerateToken(32)
		if err != nil {
			return nil, err
		}
		c.EncryptionKey = key
		generated = append(generated, "ENCRYPTION_KEY")
		logger.Warn(ctx, "ENCRYPTION_KEY is not set; using a throwaway development key. Data encrypted in this run cannot be decrypted after restart")
	}

	if c.TokenSecret == "" {
		secret, err := cryptox.GenerateToken(32)
		if err != nil {
			return nil, err
		}
		c.TokenSecret = secret
		generated = append(generated, "JWT_SECRET")
		logger.Warn(ctx, "JWT_SECRET is not set; using a throwaway development secret. Issued tokens stop working after restart")
	}

	return generated, nil
}
