package authcore

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MrEthical07/authcore/jwt"
)

// Outcome labels for the issuance counter.
const (
	OutcomeIssued           = "issued"
	OutcomeUserNotFound     = "user_not_found"
	OutcomeLocked           = "locked"
	OutcomeConfigError      = "config_error"
	OutcomeStoreUnavailable = "store_unavailable"
	OutcomeInvalidPassword  = "invalid_credentials"
)

// metrics are scoped to one Engine so several engines can share a process
// as long as they use different registries or namespaces.
type metrics struct {
	issuance       *prometheus.CounterVec
	validation     *prometheus.CounterVec
	failedAttempts prometheus.Counter
	lockouts       prometheus.Counter
	unlocks        prometheus.Counter
	notifyDropped  prometheus.CounterFunc
}

func newMetrics(namespace string, reg prometheus.Registerer, dropped func() uint64) (*metrics, error) {
	m := &metrics{
		issuance: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_issuance_total",
			Help:      "Token issuance attempts by outcome.",
		}, []string{"outcome"}),
		validation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_validation_total",
			Help:      "Token validations by outcome.",
		}, []string{"outcome"}),
		failedAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failed_attempts_total",
			Help:      "Recorded failed authentication attempts.",
		}),
		lockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lockouts_total",
			Help:      "Accounts moved from unlocked to locked.",
		}),
		unlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unlocks_total",
			Help:      "Administrative account unlocks.",
		}),
		notifyDropped: prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_dropped_total",
			Help:      "Notifications dropped because the dispatcher buffer was full.",
		}, func() float64 { return float64(dropped()) }),
	}

	for _, c := range []prometheus.Collector{m.issuance, m.validation, m.failedAttempts, m.lockouts, m.unlocks, m.notifyDropped} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("%w: register metrics: %v", ErrConfiguration, err)
		}
	}
	return m, nil
}

func (m *metrics) issued(outcome string) {
	if m == nil {
		return
	}
	m.issuance.WithLabelValues(outcome).Inc()
}

func (m *metrics) validated(err error) {
	if m == nil {
		return
	}
	m.validation.WithLabelValues(validationOutcome(err)).Inc()
}

func (m *metrics) failedAttempt(justLocked bool) {
	if m == nil {
		return
	}
	m.failedAttempts.Inc()
	if justLocked {
		m.lockouts.Inc()
	}
}

func (m *metrics) unlocked() {
	if m == nil {
		return
	}
	m.unlocks.Inc()
}

func issueOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeIssued
	case errors.Is(err, ErrUserNotFound):
		return OutcomeUserNotFound
	case errors.Is(err, ErrAccountLocked):
		return OutcomeLocked
	case errors.Is(err, ErrConfiguration):
		return OutcomeConfigError
	case errors.Is(err, ErrInvalidCredentials):
		return OutcomeInvalidPassword
	default:
		return OutcomeStoreUnavailable
	}
}

func validationOutcome(err error) string {
	switch {
	case err == nil:
		return "valid"
	case errors.Is(err, jwt.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, jwt.ErrMalformed):
		return "malformed"
	case errors.Is(err, jwt.ErrExpired):
		return "expired"
	case errors.Is(err, jwt.ErrNotYetValid):
		return "not_yet_valid"
	case errors.Is(err, jwt.ErrIssuerMismatch):
		return "issuer_mismatch"
	case errors.Is(err, jwt.ErrAudienceMismatch):
		return "audience_mismatch"
	default:
		return "error"
	}
}
