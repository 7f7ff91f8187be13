package authcore

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/MrEthical07/authcore/internal/lockout"
	"github.com/MrEthical07/authcore/internal/notify"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
)

// Builder assembles an Engine. A Builder may be used once.
type Builder struct {
	config   Config
	store    CredentialStore
	signing  SigningConfigProvider
	signer   TokenSigner
	verifier PasswordVerifier
	notifier Notifier
	log      *zap.Logger
	registry prometheus.Registerer
	now      func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the engine configuration. Build validates it.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithStore sets the credential store. Required.
func (b *Builder) WithStore(store CredentialStore) *Builder {
	b.store = store
	return b
}

// WithSigningConfig sets the signing settings provider. Required.
func (b *Builder) WithSigningConfig(p SigningConfigProvider) *Builder {
	b.signing = p
	return b
}

// WithSigner overrides the default HS256 jwt.Signer.
func (b *Builder) WithSigner(s TokenSigner) *Builder {
	b.signer = s
	return b
}

// WithPasswordVerifier overrides the default argon2id verifier.
func (b *Builder) WithPasswordVerifier(v PasswordVerifier) *Builder {
	b.verifier = v
	return b
}

// WithNotifier sets the target for failed-attempt and lockout
// notifications. Delivery runs off the decision path, so a slow or failing
// notifier never affects IssueToken or Authenticate.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithLogger sets the structured logger. Nil means zap.NewNop.
func (b *Builder) WithLogger(log *zap.Logger) *Builder {
	b.log = log
	return b
}

// WithMetricsRegisterer sets where engine metrics are registered. Without
// one, metrics are not collected even when Config.Metrics.Enabled is set.
func (b *Builder) WithMetricsRegisterer(reg prometheus.Registerer) *Builder {
	b.registry = reg
	return b
}

// WithClock overrides the time source for issuance timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and returns a ready Engine. Signing
// settings are not validated here; they are checked on every issue call.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("credential store required")
	}
	if b.signing == nil {
		return nil, errors.New("signing config provider required")
	}

	policy, err := lockout.New(cfg.Lockout.Threshold)
	if err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	log := b.log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("authcore")

	signer := b.signer
	if signer == nil {
		signer = jwt.NewSigner(jwt.WithClock(now))
	}

	verifier := b.verifier
	if verifier == nil {
		h, err := password.NewHasher(password.DefaultParams())
		if err != nil {
			return nil, err
		}
		verifier = h
	}

	e := &Engine{
		config:   cfg,
		store:    b.store,
		signing:  b.signing,
		signer:   signer,
		verifier: verifier,
		policy:   policy,
		log:      log,
		now:      now,
	}

	if cfg.Notify.Enabled && b.notifier != nil {
		e.notifier = notify.NewDispatcher(notify.Config{
			BufferSize:      cfg.Notify.BufferSize,
			DropIfFull:      true,
			DeliveryTimeout: cfg.Notify.DeliveryTimeout,
		}, b.notifier, log.Named("notify"))
	}

	if cfg.Metrics.Enabled && b.registry != nil {
		m, err := newMetrics(cfg.Metrics.Namespace, b.registry, e.NotificationsDropped)
		if err != nil {
			e.notifier.Close()
			return nil, err
		}
		e.metrics = m
	}

	b.built = true
	return e, nil
}
