package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zaptest"

	"github.com/NayakVandana/ecommerce-v1-sub003/internal/core/domain"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/infra/telemetry"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/repository"
)

const chromeOnWindows = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type sessionFixture struct {
	repo    *fakeSessionRepository
	events  *recordingPublisher
	metrics *telemetry.IdentityMetrics
	service *SessionService
}

func newSessionFixture(t *testing.T, rows ...domain.Session) *sessionFixture {
	t.Helper()

	metrics, err := telemetry.NewIdentityMetrics(prometheus.NewRegistry(), "test")
	if err != nil {
		t.Fatalf("NewIdentityMetrics: %v", err)
	}

	repo := newFakeSessionRepository(rows...)
	events := &recordingPublisher{}
	service := NewSessionService(repo, zaptest.NewLogger(t)).
		WithEvents(events).
		WithMetrics(metrics).
		WithClock(func() time.Time { return fixedNow })

	return &sessionFixture{repo: repo, events: events, metrics: metrics, service: service}
}

func TestReconcile_AnonymousCreatesGuestSession(t *testing.T) {
	f := newSessionFixture(t)

	result, err := f.service.Reconcile(context.Background(), ReconcileRequest{
		IPAddress: "198.51.100.7",
		UserAgent: chromeOnWindows,
	})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}

	session := result.Session
	if result.Outcome != telemetry.OutcomeCreated {
		t.Fatalf("expected created outcome, got %s", result.Outcome)
	}
	if len(session.SessionID) < 40 {
		t.Fatalf("expected a 40+ character session id, got %q", session.SessionID)
	}
	if !session.IsGuest() {
		t.Fatalf("expected guest session, got user %v", *session.UserID)
	}
	if session.DeviceType != domain.DeviceTypeWeb || session.OS != "Windows" || session.Browser != "Chrome" {
		t.Fatalf("unexpected classification: %s/%s/%s", session.DeviceType, session.OS, session.Browser)
	}
	if session.IPAddress == nil || *session.IPAddress != "198.51.100.7" {
		t.Fatalf("expected ip to be stored")
	}
	if len(f.events.created) != 1 || f.events.created[0].SessionID != session.SessionID {
		t.Fatalf("expected one session created event, got %+v", f.events.created)
	}
	if got := testutil.ToFloat64(f.metrics.Reconciliations.WithLabelValues(telemetry.OutcomeCreated)); got != 1 {
		t.Fatalf("expected one created reconciliation, got %v", got)
	}

	again, err := f.service.Reconcile(context.Background(), ReconcileRequest{
		CandidateSessionID: session.SessionID,
		UserAgent:          chromeOnWindows,
	})
	if err != nil {
		t.Fatalf("second Reconcile returned error: %v", err)
	}
	if again.Session.ID != session.ID || again.Outcome != telemetry.OutcomeDirect {
		t.Fatalf("expected direct match on row %d, got row %d (%s)", session.ID, again.Session.ID, again.Outcome)
	}
	if f.repo.count() != 1 {
		t.Fatalf("expected a single session row, got %d", f.repo.count())
	}
}

func TestReconcile_ReusesUnknownCandidate(t *testing.T) {
	f := newSessionFixture(t)

	result, err := f.service.Reconcile(context.Background(), ReconcileRequest{CandidateSessionID: " client-chosen-id "})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if result.Session.SessionID != "client-chosen-id" {
		t.Fatalf("expected candidate to be adopted, got %q", result.Session.SessionID)
	}
}

func TestReconcile_ReturningGuestUpdatesInPlace(t *testing.T) {
	oldIP := "198.51.100.1"
	f := newSessionFixture(t, domain.Session{
		SessionID:    "abc123",
		DeviceType:   domain.DeviceTypeWeb,
		IPAddress:    &oldIP,
		LastActivity: fixedNow.Add(-time.Hour),
	})

	result, err := f.service.Reconcile(context.Background(), ReconcileRequest{
		CandidateSessionID: "abc123",
		IPAddress:          "198.51.100.2",
	})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}

	stored := f.repo.get("abc123")
	if !stored.LastActivity.Equal(fixedNow) {
		t.Fatalf("expected last activity to be refreshed, got %v", stored.LastActivity)
	}
	if stored.IPAddress == nil || *stored.IPAddress != "198.51.100.2" {
		t.Fatalf("expected ip to be refreshed")
	}
	if result.Session.ID != stored.ID || f.repo.count() != 1 {
		t.Fatalf("expected the existing row to be reused")
	}
	if len(f.events.created) != 0 {
		t.Fatalf("expected no session created events")
	}
}

func TestReconcile_UserWithoutSessionCreatesBoundRow(t *testing.T) {
	f := newSessionFixture(t)

	result, err := f.service.Reconcile(context.Background(), ReconcileRequest{UserID: "user-u"})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if !result.Session.OwnedBy("user-u") {
		t.Fatalf("expected new row bound to user-u")
	}
	if f.repo.count() != 1 {
		t.Fatalf("expected exactly one row, got %d", f.repo.count())
	}
	if len(f.events.bound) != 0 {
		t.Fatalf("a row created for a user is not a bind")
	}
}

func TestReconcile_GuestLoginBindsExistingRow(t *testing.T) {
	f := newSessionFixture(t, domain.Session{
		SessionID:    "xyz",
		DeviceType:   domain.DeviceTypeWeb,
		LastActivity: fixedNow.Add(-10 * time.Minute),
	})

	result, err := f.service.Reconcile(context.Background(), ReconcileRequest{
		CandidateSessionID: "xyz",
		UserID:             "user-u",
	})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if result.Outcome != telemetry.OutcomeDirect {
		t.Fatalf("expected direct outcome, got %s", result.Outcome)
	}

	stored := f.repo.get("xyz")
	if stored == nil || !stored.OwnedBy("user-u") {
		t.Fatalf("expected xyz to be bound to user-u, got %+v", stored)
	}
	if f.repo.count() != 1 {
		t.Fatalf("expected no new row, got %d rows", f.repo.count())
	}
	if len(f.events.bound) != 1 || f.events.bound[0].UserID != "user-u" || f.events.bound[0].SessionID != "xyz" {
		t.Fatalf("expected one user bound event, got %+v", f.events.bound)
	}
}

func TestReconcile_AffinityReusesLatestRow(t *testing.T) {
	f := newSessionFixture(t)
	req := ReconcileRequest{UserID: "user-u", UserAgent: chromeOnWindows}

	first, err := f.service.Reconcile(context.Background(), req)
	if err != nil {
		t.Fatalf("first Reconcile returned error: %v", err)
	}
	second, err := f.service.Reconcile(context.Background(), req)
	if err != nil {
		t.Fatalf("second Reconcile returned error: %v", err)
	}

	if first.Session.ID != second.Session.ID {
		t.Fatalf("expected both requests on one row, got %d and %d", first.Session.ID, second.Session.ID)
	}
	if second.Outcome != telemetry.OutcomeAffinity {
		t.Fatalf("expected affinity outcome, got %s", second.Outcome)
	}
	if f.repo.count() != 1 {
		t.Fatalf("expected one row, got %d", f.repo.count())
	}
}

func TestReconcile_AffinityFallsBackBeyondWindow(t *testing.T) {
	owner := "user-u"
	f := newSessionFixture(t,
		domain.Session{SessionID: "ancient", UserID: &owner, LastActivity: fixedNow.Add(-30 * 24 * time.Hour)},
		domain.Session{SessionID: "stale", UserID: &owner, LastActivity: fixedNow.Add(-48 * time.Hour)},
	)

	result, err := f.service.Reconcile(context.Background(), ReconcileRequest{UserID: owner})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if result.Session.SessionID != "stale" {
		t.Fatalf("expected most recent row outside the window, got %s", result.Session.SessionID)
	}
	if result.Outcome != telemetry.OutcomeAffinity {
		t.Fatalf("expected affinity outcome, got %s", result.Outcome)
	}
	if f.repo.count() != 2 {
		t.Fatalf("expected no new row, got %d", f.repo.count())
	}
}

func TestReconcile_AffinityRelabelsToFreeCandidate(t *testing.T) {
	owner := "user-u"
	f := newSessionFixture(t, domain.Session{SessionID: "old-id", UserID: &owner, LastActivity: fixedNow.Add(-time.Hour)})

	result, err := f.service.Reconcile(context.Background(), ReconcileRequest{
		CandidateSessionID: "new-id",
		UserID:             owner,
	})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if result.Session.SessionID != "new-id" {
		t.Fatalf("expected row to be relabelled, got %s", result.Session.SessionID)
	}
	if f.repo.get("old-id") != nil {
		t.Fatalf("expected old identifier to be gone")
	}
	if f.repo.count() != 1 {
		t.Fatalf("expected one row, got %d", f.repo.count())
	}
}

func TestReconcile_SessionOwnedByAnotherUserIsLeftAlone(t *testing.T) {
	other := "user-other"
	viewer := "user-v"
	f := newSessionFixture(t,
		domain.Session{SessionID: "taken123", UserID: &other, LastActivity: fixedNow.Add(-5 * time.Minute)},
		domain.Session{SessionID: "other456", UserID: &viewer, LastActivity: fixedNow.Add(-time.Hour)},
	)

	result, err := f.service.Reconcile(context.Background(), ReconcileRequest{
		CandidateSessionID: "taken123",
		UserID:             viewer,
	})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}

	if result.Session.SessionID != "other456" || result.Outcome != telemetry.OutcomeAffinity {
		t.Fatalf("expected affinity match on other456, got %s (%s)", result.Session.SessionID, result.Outcome)
	}

	taken := f.repo.get("taken123")
	if taken == nil || !taken.OwnedBy(other) {
		t.Fatalf("expected taken123 to stay with %s", other)
	}
	if !taken.LastActivity.Equal(fixedNow.Add(-5 * time.Minute)) {
		t.Fatalf("expected taken123 to be untouched, last activity %v", taken.LastActivity)
	}
	if got := testutil.ToFloat64(f.metrics.RelabelSkipped); got != 1 {
		t.Fatalf("expected relabel skipped counter to be 1, got %v", got)
	}
	if f.repo.count() != 2 {
		t.Fatalf("expected no new rows, got %d", f.repo.count())
	}
}

func TestReconcile_ForeignCandidateWithoutUserRowMintsFreshID(t *testing.T) {
	other := "user-other"
	f := newSessionFixture(t, domain.Session{SessionID: "taken123", UserID: &other, LastActivity: fixedNow})

	result, err := f.service.Reconcile(context.Background(), ReconcileRequest{
		CandidateSessionID: "taken123",
		UserID:             "user-v",
	})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if result.Session.SessionID == "taken123" {
		t.Fatalf("expected a freshly minted identifier")
	}
	if !result.Session.OwnedBy("user-v") {
		t.Fatalf("expected new row bound to user-v")
	}
	if owner := f.repo.get("taken123"); owner == nil || !owner.OwnedBy(other) {
		t.Fatalf("expected taken123 to keep its owner")
	}
}

func TestReconcile_GuestPresentingBoundSessionDoesNotUnbind(t *testing.T) {
	owner := "user-u"
	f := newSessionFixture(t, domain.Session{SessionID: "xyz", UserID: &owner, LastActivity: fixedNow.Add(-time.Hour)})

	result, err := f.service.Reconcile(context.Background(), ReconcileRequest{CandidateSessionID: "xyz"})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if !result.Session.OwnedBy(owner) {
		t.Fatalf("expected user binding to survive a guest request")
	}
	if len(f.events.bound) != 0 {
		t.Fatalf("expected no bind events")
	}
}

func TestReconcile_BindLostToConcurrentRequest(t *testing.T) {
	f := newSessionFixture(t, domain.Session{SessionID: "xyz", LastActivity: fixedNow.Add(-time.Minute)})

	winner := "user-winner"
	f.repo.beforeUpdate = func(row *domain.Session) {
		if row.UserID == nil {
			row.UserID = &winner
		}
	}

	result, err := f.service.Reconcile(context.Background(), ReconcileRequest{
		CandidateSessionID: "xyz",
		UserID:             "user-loser",
	})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if !result.Session.OwnedBy(winner) {
		t.Fatalf("expected the first binding to win")
	}
	if got := testutil.ToFloat64(f.metrics.BindSkipped); got != 1 {
		t.Fatalf("expected bind skipped counter to be 1, got %v", got)
	}
	if len(f.events.bound) != 0 {
		t.Fatalf("expected no bind event for the losing user")
	}
}

func TestReconcile_RetriesOnceAfterConflict(t *testing.T) {
	f := newSessionFixture(t)

	raced := false
	f.repo.beforeCreate = func(session domain.Session) error {
		if raced {
			return nil
		}
		raced = true
		f.repo.insert(domain.Session{SessionID: session.SessionID, DeviceType: domain.DeviceTypeWeb, LastActivity: fixedNow})
		return nil
	}

	result, err := f.service.Reconcile(context.Background(), ReconcileRequest{CandidateSessionID: "race-id"})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if result.Outcome != telemetry.OutcomeDirect {
		t.Fatalf("expected the retry to match the winning row, got %s", result.Outcome)
	}
	if f.repo.count() != 1 {
		t.Fatalf("expected one row, got %d", f.repo.count())
	}
	if got := testutil.ToFloat64(f.metrics.ConflictRetries); got != 1 {
		t.Fatalf("expected one conflict retry, got %v", got)
	}
}

func TestReconcile_PersistentConflictFails(t *testing.T) {
	f := newSessionFixture(t)
	f.repo.beforeCreate = func(domain.Session) error {
		return fmt.Errorf("insert session: %w", repository.ErrConflict)
	}

	_, err := f.service.Reconcile(context.Background(), ReconcileRequest{})
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if f.repo.creates != 2 {
		t.Fatalf("expected exactly two attempts, got %d", f.repo.creates)
	}
}

func TestReconcile_StorageErrorPropagates(t *testing.T) {
	f := newSessionFixture(t)
	storageErr := errors.New("connection refused")
	f.repo.getErr = storageErr

	_, err := f.service.Reconcile(context.Background(), ReconcileRequest{CandidateSessionID: "abc123"})
	if !errors.Is(err, storageErr) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if f.repo.count() != 0 {
		t.Fatalf("expected no row to be fabricated")
	}
}

func TestReconcile_UpdateErrorPropagates(t *testing.T) {
	f := newSessionFixture(t, domain.Session{SessionID: "abc123", LastActivity: fixedNow})
	storageErr := errors.New("disk full")
	f.repo.updateErr = storageErr

	if _, err := f.service.Reconcile(context.Background(), ReconcileRequest{CandidateSessionID: "abc123"}); !errors.Is(err, storageErr) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestReconcile_NormalizesClientInput(t *testing.T) {
	cases := map[string]string{
		"literal null": "null",
		"blank":        "   ",
		"oversized":    strings.Repeat("s", 300),
	}

	for name, candidate := range cases {
		t.Run(name, func(t *testing.T) {
			f := newSessionFixture(t)
			f.service.WithSessionIDGenerator(func() (string, error) { return "generated-id", nil })

			result, err := f.service.Reconcile(context.Background(), ReconcileRequest{
				CandidateSessionID: candidate,
				IPAddress:          strings.Repeat("1", 60),
			})
			if err != nil {
				t.Fatalf("Reconcile returned error: %v", err)
			}
			if result.Session.SessionID != "generated-id" {
				t.Fatalf("expected generated id, got %q", result.Session.SessionID)
			}
			if result.Session.IPAddress != nil {
				t.Fatalf("expected oversized ip to be dropped")
			}
		})
	}
}

func TestReconcile_PublishFailureIsIgnored(t *testing.T) {
	f := newSessionFixture(t)
	f.events.failWith = errors.New("broker unavailable")

	if _, err := f.service.Reconcile(context.Background(), ReconcileRequest{}); err != nil {
		t.Fatalf("expected publish failure to be swallowed, got %v", err)
	}
	if len(f.events.created) != 1 {
		t.Fatalf("expected publish to be attempted")
	}
}

func TestSessionService_Get(t *testing.T) {
	f := newSessionFixture(t, domain.Session{SessionID: "abc123", LastActivity: fixedNow})

	session, err := f.service.Get(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if session.SessionID != "abc123" {
		t.Fatalf("unexpected session %s", session.SessionID)
	}

	if _, err := f.service.Get(context.Background(), "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := f.service.Get(context.Background(), "null"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for null id, got %v", err)
	}
}
