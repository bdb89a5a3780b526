package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestIdentityMetricsRecords(t *testing.T) {
	registry := prometheus.NewRegistry()

	metrics, err := NewIdentityMetrics(registry, "")
	if err != nil {
		t.Fatalf("NewIdentityMetrics returned error: %v", err)
	}

	metrics.ObserveReconciliation(OutcomeCreated)
	metrics.ObserveReconciliation(OutcomeCreated)
	metrics.ObserveReconciliation(OutcomeDirect)
	metrics.ObserveBindSkipped()
	metrics.ObserveTokenIssued("web")
	metrics.ObserveValidation(ValidationMalformed)

	if got := testutil.ToFloat64(metrics.Reconciliations.WithLabelValues(OutcomeCreated)); got != 2 {
		t.Fatalf("expected 2 created reconciliations, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.BindSkipped); got != 1 {
		t.Fatalf("expected 1 skipped bind, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.TokensIssued.WithLabelValues("web")); got != 1 {
		t.Fatalf("expected 1 web token issued, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.Validations.WithLabelValues(ValidationMalformed)); got != 1 {
		t.Fatalf("expected 1 malformed validation, got %f", got)
	}
}

func TestIdentityMetricsReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()

	first, err := NewIdentityMetrics(registry, "shop")
	if err != nil {
		t.Fatalf("first NewIdentityMetrics returned error: %v", err)
	}
	second, err := NewIdentityMetrics(registry, "shop")
	if err != nil {
		t.Fatalf("second NewIdentityMetrics returned error: %v", err)
	}

	second.ObserveConflictRetry()
	if got := testutil.ToFloat64(first.ConflictRetries); got != 1 {
		t.Fatalf("expected shared collector, got %f", got)
	}
}

func TestNilIdentityMetricsIsNoop(t *testing.T) {
	var metrics *IdentityMetrics
	metrics.ObserveReconciliation(OutcomeAffinity)
	metrics.ObserveRelabelSkipped()
	metrics.ObserveValidation(ValidationValid)
}
