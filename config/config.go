// Package config loads authcore settings from a YAML file, the environment
// and command-line flags, in that order of increasing precedence.
//
// File and flag keys are dotted paths (jwt.key, store.driver). Environment
// variables use the AUTHCORE_ prefix with underscores (AUTHCORE_JWT_KEY,
// AUTHCORE_STORE_DRIVER).
package config

import (
	"strings"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/internal/logging"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/store/redisstore"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "AUTHCORE_"

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Config is the full process configuration.
type Config struct {
	JWT      authcore.SigningConfig `koanf:"jwt" envPrefix:"JWT_"`
	Engine   authcore.Config        `koanf:"engine" envPrefix:"ENGINE_"`
	Password password.Params        `koanf:"password" envPrefix:"PASSWORD_"`
	Store    StoreConfig            `koanf:"store" envPrefix:"STORE_"`
	HTTP     HTTPConfig             `koanf:"http" envPrefix:"HTTP_"`
	Log      logging.Config         `koanf:"log" envPrefix:"LOG_"`
}

// StoreConfig selects and configures the credential store backend.
type StoreConfig struct {
	Driver         string            `koanf:"driver" env:"DRIVER"`
	RedisURL       string            `koanf:"redis_url" env:"REDIS_URL"`
	PostgresDSN    string            `koanf:"postgres_dsn" env:"POSTGRES_DSN"`
	ConnectTimeout time.Duration     `koanf:"connect_timeout" env:"CONNECT_TIMEOUT"`
	Redis          redisstore.Config `koanf:"redis" envPrefix:"REDIS_"`

	// Seed accounts are loaded into the memory driver at startup.
	Seed []SeedAccount `koanf:"seed"`
}

// SeedAccount is a file-provided account for the memory driver.
type SeedAccount struct {
	Username       string `koanf:"username"`
	IdentityNumber int64  `koanf:"identity_number"`
	Email          string `koanf:"email"`
	PasswordHash   string `koanf:"password_hash"`
	AuthorityLevel int    `koanf:"authority_level"`
	UserTypeName   string `koanf:"user_type_name"`
	RememberMe     bool   `koanf:"remember_me"`
	Active         bool   `koanf:"active"`
}

// Account converts the seed entry into a store record.
func (s SeedAccount) Account() authcore.UserAccount {
	return authcore.UserAccount{
		Username:       s.Username,
		IdentityNumber: s.IdentityNumber,
		Email:          s.Email,
		PasswordHash:   s.PasswordHash,
		AuthorityLevel: s.AuthorityLevel,
		UserTypeName:   s.UserTypeName,
		RememberMe:     s.RememberMe,
		LoginState:     authcore.LoginState{IsActive: s.Active},
	}
}

// HTTPConfig configures the serve command's listener.
type HTTPConfig struct {
	Addr              string        `koanf:"addr" env:"ADDR"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout" env:"READ_HEADER_TIMEOUT"`
	RequestTimeout    time.Duration `koanf:"request_timeout" env:"REQUEST_TIMEOUT"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// Default returns the configuration used before any source is applied. The
// signing key is deliberately empty.
func Default() Config {
	return Config{
		JWT: authcore.SigningConfig{
			ExpireMinutes: 60,
		},
		Engine:   authcore.DefaultConfig(),
		Password: password.DefaultParams(),
		Store: StoreConfig{
			Driver:         DriverMemory,
			ConnectTimeout: 30 * time.Second,
			Redis: redisstore.Config{
				Prefix:      "authcore",
				MaxAttempts: redisstore.DefaultMaxAttempts,
			},
		},
		HTTP: HTTPConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			RequestTimeout:    15 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Log: logging.Config{
			Level: "info",
		},
	}
}

// Validate normalises the store driver name, checks settings the loader owns and delegates engine settings to
// authcore.Config.Validate. Signing settings are not checked here; they are
// validated on every issue call so a bad reload surfaces as a
// configuration error rather than a crash.
func (c *Config) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch c.Store.Driver {
	case DriverMemory:
	case DriverRedis:
		if c.Store.RedisURL == "" {
			return configErr("store.redis_url", errMissing)
		}
	case DriverPostgres:
		if c.Store.PostgresDSN == "" {
			return configErr("store.postgres_dsn", errMissing)
		}
	default:
		return configErr("store.driver", errUnknownDriver)
	}

	if c.HTTP.Addr == "" {
		return configErr("http.addr", errMissing)
	}
	return nil
}
