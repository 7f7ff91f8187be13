package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Loader reads configuration. Later sources override earlier ones:
// Default, then Path, then the environment, then changed Flags.
type Loader struct {
	// Path is an optional YAML file.
	Path string
	// Flags, when set, overrides with every flag the user changed.
	Flags *pflag.FlagSet
	// Env replaces the process environment when non-nil.
	Env map[string]string
}

// Load reads every source and validates the result.
func (l Loader) Load() (Config, error) {
	cfg, err := l.read()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (l Loader) read() (Config, error) {
	cfg := Default()
	errb := oops.In("config").With("path", l.Path)

	if l.Path != "" {
		k := koanf.New(".")
		if err := k.Load(file.Provider(l.Path), yaml.Parser()); err != nil {
			return Config{}, errb.Code("CONFIG_READ").Wrapf(err, "load %s", l.Path)
		}
		if err := k.Unmarshal("", &cfg); err != nil {
			return Config{}, errb.Code("CONFIG_DECODE").Wrapf(err, "decode %s", l.Path)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix, Environment: l.Env}); err != nil {
		return Config{}, errb.Code("CONFIG_ENV").Wrapf(err, "parse environment")
	}

	if l.Flags != nil {
		k := koanf.New(".")
		if err := k.Load(posflag.ProviderWithFlag(l.Flags, ".", nil, changedFlag), nil); err != nil {
			return Config{}, errb.Code("CONFIG_FLAGS").Wrapf(err, "read flags")
		}
		if err := k.Unmarshal("", &cfg); err != nil {
			return Config{}, errb.Code("CONFIG_DECODE").Wrapf(err, "decode flags")
		}
	}

	return cfg, nil
}

func changedFlag(f *pflag.Flag) (string, interface{}) {
	if !f.Changed {
		return "", nil
	}
	return f.Name, f.Value.String()
}

// RegisterFlags adds the overridable settings to fs. Flag names are the
// dotted config keys. The signing key has no flag; set it in the file or
// AUTHCORE_JWT_KEY.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("jwt.issuer", d.JWT.Issuer, "token issuer")
	fs.String("jwt.audience", d.JWT.Audience, "token audience")
	fs.Int("jwt.expire_minutes", d.JWT.ExpireMinutes, "token lifetime in minutes")
	fs.String("store.driver", d.Store.Driver, "credential store: memory, redis or postgres")
	fs.String("store.redis_url", d.Store.RedisURL, "redis connection URL")
	fs.String("store.postgres_dsn", d.Store.PostgresDSN, "postgres connection string")
	fs.String("http.addr", d.HTTP.Addr, "listen address")
	fs.String("log.level", d.Log.Level, "log level")
	fs.Bool("log.dev", d.Log.Dev, "development logging")
}
