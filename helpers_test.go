package authcore_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/store/memory"
)

const (
	testKey      = "a_very_secure_256_bit_jwt_key_1234567890"
	testIssuer   = "https://localhost:5269"
	testAudience = "https://localhost:5269"
	oykuPassword = "oyku123456789"
)

var testNow = time.Date(2026, 5, 14, 9, 30, 0, 0, time.UTC)

func testSigning() authcore.SigningConfig {
	return authcore.SigningConfig{
		Key:           testKey,
		Issuer:        testIssuer,
		Audience:      testAudience,
		ExpireMinutes: 30,
	}
}

// swappableSigning lets a test change signing settings between calls.
type swappableSigning struct {
	cur atomic.Pointer[authcore.SigningConfig]
}

func newSwappableSigning(sc authcore.SigningConfig) *swappableSigning {
	s := &swappableSigning{}
	s.Set(sc)
	return s
}

func (s *swappableSigning) Set(sc authcore.SigningConfig) { s.cur.Store(&sc) }

func (s *swappableSigning) SigningConfig() authcore.SigningConfig { return *s.cur.Load() }

// spySigner counts Sign calls.
type spySigner struct {
	inner *jwt.Signer
	signs atomic.Int64
}

func (s *spySigner) Sign(c jwt.Claims, key []byte, iss, aud string, exp time.Time) (string, error) {
	s.signs.Add(1)
	return s.inner.Sign(c, key, iss, aud, exp)
}

func (s *spySigner) Validate(token string, key []byte, opts jwt.ValidationOptions) (*jwt.Claims, error) {
	return s.inner.Validate(token, key, opts)
}

// failingStore simulates a credential store whose transport is down.
type failingStore struct {
	err error
}

func (f failingStore) FindByUsername(context.Context, string) (authcore.UserAccount, error) {
	return authcore.UserAccount{}, f.err
}

func (f failingStore) AtomicUpdateLoginState(context.Context, string, authcore.LoginStateMutation) (authcore.LoginState, error) {
	return authcore.LoginState{}, f.err
}

var errDialRefused = errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")

func newTestHasher(t *testing.T) *password.Hasher {
	t.Helper()
	h, err := password.NewHasher(password.Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	require.NoError(t, err)
	return h
}

func seedStore(t *testing.T, h *password.Hasher) *memory.Store {
	t.Helper()

	hash, err := h.Hash(oykuPassword)
	require.NoError(t, err)
	other, err := h.Hash("123456789123")
	require.NoError(t, err)

	s := memory.New()
	s.Put(authcore.UserAccount{
		Username:       "oyku",
		IdentityNumber: 12345678900,
		Email:          "oyku@example.com",
		PasswordHash:   hash,
		AuthorityLevel: 4,
		UserTypeName:   "Admin",
		LoginState:     authcore.LoginState{IsActive: true},
	})
	// testuser never had IsActive set.
	s.Put(authcore.UserAccount{
		Username:       "testuser",
		IdentityNumber: 36052147896,
		Email:          "testuser.@example.com",
		PasswordHash:   other,
	})
	return s
}

type fixture struct {
	engine  *authcore.Engine
	store   *memory.Store
	signer  *spySigner
	signing *swappableSigning
	notes   *authcore.ChannelNotifier
	reg     *prometheus.Registry
	now     *atomic.Pointer[time.Time]
}

type fixtureOption func(*authcore.Builder, *authcore.Config)

func withConfig(mut func(*authcore.Config)) fixtureOption {
	return func(_ *authcore.Builder, cfg *authcore.Config) { mut(cfg) }
}

func withStore(s authcore.CredentialStore) fixtureOption {
	return func(b *authcore.Builder, _ *authcore.Config) { b.WithStore(s) }
}

func withNotifier(n authcore.Notifier) fixtureOption {
	return func(b *authcore.Builder, _ *authcore.Config) { b.WithNotifier(n) }
}

func withLogger(log *zap.Logger) fixtureOption {
	return func(b *authcore.Builder, _ *authcore.Config) { b.WithLogger(log) }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	h := newTestHasher(t)
	f := &fixture{
		store:   seedStore(t, h),
		signing: newSwappableSigning(testSigning()),
		notes:   authcore.NewChannelNotifier(128),
		reg:     prometheus.NewRegistry(),
		now:     &atomic.Pointer[time.Time]{},
	}
	start := testNow
	f.now.Store(&start)
	clock := func() time.Time { return *f.now.Load() }
	f.signer = &spySigner{inner: jwt.NewSigner(jwt.WithClock(clock))}

	cfg := authcore.DefaultConfig()
	b := authcore.New().
		WithStore(f.store).
		WithSigningConfig(f.signing).
		WithSigner(f.signer).
		WithPasswordVerifier(h).
		WithNotifier(f.notes).
		WithMetricsRegisterer(f.reg).
		WithClock(clock)
	for _, opt := range opts {
		opt(b, &cfg)
	}
	b.WithConfig(cfg)

	engine, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	f.engine = engine
	return f
}

func (f *fixture) advance(d time.Duration) {
	next := f.now.Load().Add(d)
	f.now.Store(&next)
}

// drain closes the engine and returns every delivered notification.
func (f *fixture) drain() []authcore.Notification {
	f.engine.Close()
	var out []authcore.Notification
	for {
		select {
		case n := <-f.notes.Events():
			out = append(out, n)
		default:
			return out
		}
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
	metrics:
		for _, m := range fam.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}
