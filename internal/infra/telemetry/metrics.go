package telemetry

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Reconciliation outcomes recorded by IdentityMetrics.
const (
	OutcomeDirect   = "direct"
	OutcomeAffinity = "affinity"
	OutcomeCreated  = "created"
)

// Token validation results recorded by IdentityMetrics.
const (
	ValidationValid     = "valid"
	ValidationMalformed = "malformed"
	ValidationUnknown   = "unknown"
	ValidationRevoked   = "revoked"
	ValidationInactive  = "inactive_user"
	ValidationError     = "error"
)

// Register adds collector to reg, reusing an already registered collector of the same type.
func Register[T prometheus.Collector](reg prometheus.Registerer, collector T) (T, error) {
	if err := reg.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing, nil
			}
			return collector, fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
		}
		return collector, fmt.Errorf("register collector: %w", err)
	}
	return collector, nil
}

// IdentityMetrics counts session reconciliation and token activity.
// A nil *IdentityMetrics is valid and records nothing.
type IdentityMetrics struct {
	Reconciliations *prometheus.CounterVec
	BindSkipped     prometheus.Counter
	RelabelSkipped  prometheus.Counter
	ConflictRetries prometheus.Counter
	TokensIssued    *prometheus.CounterVec
	Validations     *prometheus.CounterVec
}

// NewIdentityMetrics registers the identity collectors under namespace.
func NewIdentityMetrics(reg prometheus.Registerer, namespace string) (*IdentityMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "storefront"
	}

	var (
		m   IdentityMetrics
		err error
	)

	if m.Reconciliations, err = Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_reconciliations_total",
		Help:      "Session reconciliations partitioned by how the session row was found.",
	}, []string{"outcome"})); err != nil {
		return nil, err
	}

	if m.BindSkipped, err = Register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_bind_skipped_total",
		Help:      "Session rows that kept their user because a different user presented them.",
	})); err != nil {
		return nil, err
	}

	if m.RelabelSkipped, err = Register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_relabel_skipped_total",
		Help:      "Affinity matches that kept their identifier because the candidate was owned by another row.",
	})); err != nil {
		return nil, err
	}

	if m.ConflictRetries, err = Register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_conflict_retries_total",
		Help:      "Reconciliations re-run after a unique constraint conflict.",
	})); err != nil {
		return nil, err
	}

	if m.TokensIssued, err = Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tokens_issued_total",
		Help:      "Access tokens issued partitioned by channel.",
	}, []string{"channel"})); err != nil {
		return nil, err
	}

	if m.Validations, err = Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_validations_total",
		Help:      "Access token validations partitioned by result.",
	}, []string{"result"})); err != nil {
		return nil, err
	}

	return &m, nil
}

func (m *IdentityMetrics) ObserveReconciliation(outcome string) {
	if m == nil {
		return
	}
	m.Reconciliations.WithLabelValues(outcome).Inc()
}

func (m *IdentityMetrics) ObserveBindSkipped() {
	if m == nil {
		return
	}
	m.BindSkipped.Inc()
}

func (m *IdentityMetrics) ObserveRelabelSkipped() {
	if m == nil {
		return
	}
	m.RelabelSkipped.Inc()
}

func (m *IdentityMetrics) ObserveConflictRetry() {
	if m == nil {
		return
	}
	m.ConflictRetries.Inc()
}

func (m *IdentityMetrics) ObserveTokenIssued(channel string) {
	if m == nil {
		return
	}
	m.TokensIssued.WithLabelValues(channel).Inc()
}

func (m *IdentityMetrics) ObserveValidation(result string) {
	if m == nil {
		return
	}
	m.Validations.WithLabelValues(result).Inc()
}
