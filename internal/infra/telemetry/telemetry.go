package telemetry

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const Namespace = "auth"

// Register adds c to reg, returning the collector already registered under the same descriptor when there is one.
func Register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return c, fmt.Errorf("register collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(C)
		if !ok {
			return c, fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
		}
		return existing, nil
	}
	return c, nil
}

// NewRegistry returns a registry preloaded with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// AuthMetrics counts authentication outcomes.
type AuthMetrics struct {
	logins        *prometheus.CounterVec
	resets        *prometheus.CounterVec
	sessionsSwept prometheus.Counter
	tokensSwept   prometheus.Counter
}

// NewAuthMetrics registers the authentication counters with reg.
func NewAuthMetrics(reg prometheus.Registerer) (*AuthMetrics, error) {
	logins, err := Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "login_total",
		Help:      "Login attempts partitioned by result (success, mfa_required, failure).",
	}, []string{"result"}))
	if err != nil {
		return nil, err
	}

	resets, err := Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "password_reset_total",
		Help:      "Password reset steps partitioned by stage (requested, completed, rejected).",
	}, []string{"stage"}))
	if err != nil {
		return nil, err
	}

	sessions, err := Register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "sessions_reaped_total",
		Help:      "Expired sessions removed by the reaper.",
	}))
	if err != nil {
		return nil, err
	}

	tokens, err := Register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "reset_tokens_reaped_total",
		Help:      "Expired password reset tokens cleared by the reaper.",
	}))
	if err != nil {
		return nil, err
	}

	return &AuthMetrics{logins: logins, resets: resets, sessionsSwept: sessions, tokensSwept: tokens}, nil
}

// ObserveLogin records a login outcome.
func (m *AuthMetrics) ObserveLogin(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

// ObservePasswordReset records a password reset step.
func (m *AuthMetrics) ObservePasswordReset(stage string) {
	if m == nil {
		return
	}
	m.resets.WithLabelValues(stage).Inc()
}

// ObserveSweep records rows removed by one reaper run.
func (m *AuthMetrics) ObserveSweep(sessions, resetTokens int64) {
	if m == nil {
		return
	}
	m.sessionsSwept.Add(float64(sessions))
	m.tokensSwept.Add(float64(resetTokens))
}
