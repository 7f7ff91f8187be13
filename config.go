package authcore

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds engine tuning. Signing settings are separate (see
// SigningConfig) because they are read per call and may be hot-reloaded.
type Config struct {
	Lockout LockoutConfig `koanf:"lockout" envPrefix:"LOCKOUT_"`
	Token   TokenConfig   `koanf:"token" envPrefix:"TOKEN_"`
	Notify  NotifyConfig  `koanf:"notify" envPrefix:"NOTIFY_"`
	Metrics MetricsConfig `koanf:"metrics" envPrefix:"METRICS_"`
}

// LockoutConfig sets the failed-attempt threshold.
type LockoutConfig struct {
	Threshold int `koanf:"threshold" env:"THRESHOLD"`
}

// TokenConfig controls issued-token lifetime and caching.
type TokenConfig struct {
	// RememberMeTTL replaces the base expiry window for accounts with RememberMe set.
	RememberMeTTL time.Duration `koanf:"remember_me_ttl" env:"REMEMBER_ME_TTL"`
	// CacheIssuedToken writes each issued token to LoginState.CurrentToken.
	CacheIssuedToken bool `koanf:"cache_issued_token" env:"CACHE_ISSUED_TOKEN"`
	// Leeway is the clock skew tolerated by ValidateTokenStrict.
	Leeway time.Duration `koanf:"leeway" env:"LEEWAY"`
}

// NotifyConfig controls the asynchronous notification dispatcher. The
// engine never waits for buffer space; a full buffer drops the event and
// counts it in NotificationsDropped.
type NotifyConfig struct {
	Enabled         bool          `koanf:"enabled" env:"ENABLED"`
	BufferSize      int           `koanf:"buffer_size" env:"BUFFER_SIZE"`
	DeliveryTimeout time.Duration `koanf:"delivery_timeout" env:"DELIVERY_TIMEOUT"`
}

// MetricsConfig controls Prometheus instrumentation.
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled" env:"ENABLED"`
	Namespace string `koanf:"namespace" env:"NAMESPACE"`
}

// DefaultConfig returns the configuration used by New.
func DefaultConfig() Config {
	return Config{
		Lockout: LockoutConfig{
			Threshold: 5,
		},
		Token: TokenConfig{
			RememberMeTTL: 7 * 24 * time.Hour,
		},
		Notify: NotifyConfig{
			Enabled:         true,
			BufferSize:      256,
			DeliveryTimeout: 10 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "authcore",
		},
	}
}

// Validate reports the first invalid setting. Every returned error matches
// ErrConfiguration.
func (c *Config) Validate() error {
	if c.Lockout.Threshold < 1 {
		return fmt.Errorf("%w: Lockout Threshold must be >= 1", ErrConfiguration)
	}

	if c.Token.RememberMeTTL <= 0 {
		return fmt.Errorf("%w: Token RememberMeTTL must be > 0", ErrConfiguration)
	}
	if c.Token.Leeway < 0 {
		return fmt.Errorf("%w: Token Leeway must be >= 0", ErrConfiguration)
	}

	if c.Notify.Enabled && c.Notify.BufferSize < 1 {
		return fmt.Errorf("%w: Notify BufferSize must be >= 1 when enabled", ErrConfiguration)
	}
	if c.Notify.DeliveryTimeout < 0 {
		return fmt.Errorf("%w: Notify DeliveryTimeout must be >= 0", ErrConfiguration)
	}

	if c.Metrics.Enabled && strings.TrimSpace(c.Metrics.Namespace) == "" {
		return fmt.Errorf("%w: Metrics Namespace required when enabled", ErrConfiguration)
	}

	return nil
}

// SigningConfig carries the token signing settings.
type SigningConfig struct {
	Key           string `koanf:"key" env:"KEY"`
	Issuer        string `koanf:"issuer" env:"ISSUER"`
	Audience      string `koanf:"audience" env:"AUDIENCE"`
	ExpireMinutes int    `koanf:"expire_minutes" env:"EXPIRE_MINUTES"`
	// PreviousKeys still verify tokens during a key rotation but never sign.
	PreviousKeys []string `koanf:"previous_keys" env:"PREVIOUS_KEYS" envSeparator:","`
}

// Validate checks the settings needed to issue a token. An empty key yields
// ErrSigningKeyMissing.
func (s SigningConfig) Validate() error {
	if strings.TrimSpace(s.Key) == "" {
		return ErrSigningKeyMissing
	}
	var errs []error
	if strings.TrimSpace(s.Issuer) == "" {
		errs = append(errs, configErrorf("signing issuer not configured"))
	}
	if strings.TrimSpace(s.Audience) == "" {
		errs = append(errs, configErrorf("signing audience not configured"))
	}
	if s.ExpireMinutes <= 0 {
		errs = append(errs, configErrorf("signing expiry must be a positive number of minutes"))
	}
	return errors.Join(errs...)
}

// TTL is the base token lifetime.
func (s SigningConfig) TTL() time.Duration {
	return time.Duration(s.ExpireMinutes) * time.Minute
}

// FallbackKeys returns PreviousKeys as byte slices, skipping empty entries.
func (s SigningConfig) FallbackKeys() [][]byte {
	if len(s.PreviousKeys) == 0 {
		return nil
	}
	out := make([][]byte, 0, len(s.PreviousKeys))
	for _, k := range s.PreviousKeys {
		if k != "" {
			out = append(out, []byte(k))
		}
	}
	return out
}

// SigningConfigProvider supplies the current signing settings. It is
// consulted on every issue and validate call.
type SigningConfigProvider interface {
	SigningConfig() SigningConfig
}

// StaticSigningConfig is a SigningConfigProvider that never changes.
type StaticSigningConfig SigningConfig

// SigningConfig implements SigningConfigProvider.
func (s StaticSigningConfig) SigningConfig() SigningConfig {
	return SigningConfig(s)
}
