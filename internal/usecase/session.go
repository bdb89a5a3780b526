package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/NayakVandana/ecommerce-v1-sub003/internal/core/domain"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/core/port"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/infra/logger"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/infra/security"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/infra/telemetry"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/repository"
)

const (
	defaultAffinityWindow = 24 * time.Hour
	maxIPAddressLength    = 45
)

// ErrSessionNotFound indicates that the requested session does not exist.
var ErrSessionNotFound = errors.New("session not found")

// ReconcileRequest carries what a request tells us about its visitor.
type ReconcileRequest struct {
	CandidateSessionID string
	UserID             string
	IPAddress          string
	UserAgent          string
}

// ReconcileResult is the session row the request was attached to.
type ReconcileResult struct {
	Session *domain.Session
	Outcome string
}

// SessionService reconciles requests onto session rows.
type SessionService struct {
	sessions       port.SessionRepository
	events         port.EventPublisher
	metrics        *telemetry.IdentityMetrics
	tracer         trace.Tracer
	logger         *zap.Logger
	affinityWindow time.Duration
	now            func() time.Time
	newSessionID   func() (string, error)
}

// NewSessionService constructs a SessionService.
func NewSessionService(sessions port.SessionRepository, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		sessions:       sessions,
		logger:         logger,
		tracer:         otel.Tracer(telemetry.TracerName),
		affinityWindow: defaultAffinityWindow,
		now:            func() time.Time { return time.Now().UTC() },
		newSessionID:   security.GenerateSessionID,
	}
}

// WithAffinityWindow sets how far back a signed-in user's latest session is preferred.
func (s *SessionService) WithAffinityWindow(window time.Duration) *SessionService {
	if window > 0 {
		s.affinityWindow = window
	}
	return s
}

// WithEvents enables session lifecycle events.
func (s *SessionService) WithEvents(events port.EventPublisher) *SessionService {
	s.events = events
	return s
}

// WithMetrics enables reconciliation counters.
func (s *SessionService) WithMetrics(metrics *telemetry.IdentityMetrics) *SessionService {
	s.metrics = metrics
	return s
}

// WithClock overrides the internal clock for deterministic tests.
func (s *SessionService) WithClock(clock func() time.Time) *SessionService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// WithSessionIDGenerator overrides how fresh session identifiers are minted.
func (s *SessionService) WithSessionIDGenerator(generate func() (string, error)) *SessionService {
	if generate != nil {
		s.newSessionID = generate
	}
	return s
}

// Get returns the session with the supplied public identifier.
func (s *SessionService) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	normalized := domain.NormalizeSessionID(sessionID)
	if normalized == "" {
		return nil, ErrSessionNotFound
	}

	session, err := s.sessions.GetBySessionID(ctx, normalized)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// Reconcile attaches the request to exactly one session row: the row named by
// the candidate id, else the user's most recent row, else a new row.
// A uniqueness conflict re-runs the whole decision once against fresh reads.
func (s *SessionService) Reconcile(ctx context.Context, req ReconcileRequest) (*ReconcileResult, error) {
	ctx, span := s.tracer.Start(ctx, "SessionService.Reconcile",
		trace.WithAttributes(attribute.Bool("identity.authenticated", strings.TrimSpace(req.UserID) != "")),
	)
	defer span.End()

	result, err := s.reconcile(ctx, req)
	if errors.Is(err, repository.ErrConflict) {
		s.metrics.ObserveConflictRetry()
		s.logger.Debug("session reconciliation conflicted; retrying", zap.Error(err))
		span.AddEvent("conflict_retry")
		result, err = s.reconcile(ctx, req)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "session reconciliation failed")
		return nil, fmt.Errorf("reconcile session: %w", err)
	}

	s.metrics.ObserveReconciliation(result.Outcome)
	span.SetAttributes(attribute.String("session.outcome", result.Outcome))
	return result, nil
}

func (s *SessionService) reconcile(ctx context.Context, req ReconcileRequest) (*ReconcileResult, error) {
	now := s.now()
	candidate := domain.NormalizeSessionID(req.CandidateSessionID)
	userID := strings.TrimSpace(req.UserID)
	ip := normalizeIP(req.IPAddress)

	candidateOwnedElsewhere := false
	if candidate != "" {
		row, err := s.sessions.GetBySessionID(ctx, candidate)
		switch {
		case err == nil:
			if userID == "" || row.CanBindUser(userID) {
				return s.merge(ctx, row, telemetry.OutcomeDirect, "", userID, ip, now)
			}
			candidateOwnedElsewhere = true
			s.logger.Debug("presented session belongs to another user; leaving it untouched",
				zap.String("session_id", logger.MaskString(candidate)),
				zap.String("user_id", userID),
			)
		case errors.Is(err, repository.ErrNotFound):
		default:
			return nil, fmt.Errorf("lookup session: %w", err)
		}
	}

	if userID != "" {
		row, err := s.latestForUser(ctx, userID, now)
		if err != nil {
			return nil, err
		}
		if row != nil {
			return s.merge(ctx, row, telemetry.OutcomeAffinity, candidate, userID, ip, now)
		}
	}

	sessionID := candidate
	if sessionID == "" || candidateOwnedElsewhere {
		generated, err := s.newSessionID()
		if err != nil {
			return nil, fmt.Errorf("generate session id: %w", err)
		}
		sessionID = generated
	}

	return s.create(ctx, sessionID, userID, ip, req.UserAgent, now)
}

func (s *SessionService) latestForUser(ctx context.Context, userID string, now time.Time) (*domain.Session, error) {
	row, err := s.sessions.FindLatestForUser(ctx, userID, now.Add(-s.affinityWindow))
	if err == nil {
		return row, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("find recent user session: %w", err)
	}

	row, err = s.sessions.FindLatestForUser(ctx, userID, time.Time{})
	if err == nil {
		return row, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("find user session: %w", err)
	}
	return nil, nil
}

func (s *SessionService) create(ctx context.Context, sessionID, userID string, ip *string, userAgent string, now time.Time) (*ReconcileResult, error) {
	info := domain.ClassifyUserAgent(userAgent)

	session := domain.Session{
		SessionID:    sessionID,
		DeviceType:   info.DeviceType,
		OS:           info.OS,
		Browser:      info.Browser,
		IPAddress:    ip,
		LastActivity: now,
		CreatedAt:    now,
	}
	if userID != "" {
		session.UserID = &userID
	}
	if ua := strings.TrimSpace(userAgent); ua != "" {
		session.UserAgent = &ua
	}

	created, err := s.sessions.Create(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.publish("session created", func() error {
		return s.events.PublishSessionCreated(ctx, domain.SessionCreatedEvent{
			EventID:    uuid.NewString(),
			SessionID:  created.SessionID,
			UserID:     created.UserID,
			DeviceType: created.DeviceType,
			OS:         created.OS,
			Browser:    created.Browser,
			IPAddress:  created.IPAddress,
			CreatedAt:  created.CreatedAt,
		})
	})

	return &ReconcileResult{Session: created, Outcome: telemetry.OutcomeCreated}, nil
}

// merge refreshes activity on row, binds userID when the row allows it and,
// for affinity matches, relabels the row to the client's identifier when free.
func (s *SessionService) merge(ctx context.Context, row *domain.Session, outcome, relabel, userID string, ip *string, now time.Time) (*ReconcileResult, error) {
	update := domain.SessionUpdate{LastActivity: now, IPAddress: ip}

	wasGuest := row.IsGuest()
	if userID != "" && row.CanBindUser(userID) {
		update.BindUserID = &userID
	}

	if relabel != "" && relabel != row.SessionID {
		taken, err := s.sessions.SessionIDTaken(ctx, relabel, row.ID)
		if err != nil {
			return nil, fmt.Errorf("check session id: %w", err)
		}
		if taken {
			s.metrics.ObserveRelabelSkipped()
			s.logger.Debug("keeping existing session id; presented id belongs to another session",
				zap.String("session_id", logger.MaskString(row.SessionID)),
				zap.String("presented_session_id", logger.MaskString(relabel)),
			)
		} else {
			update.SessionID = &relabel
		}
	}

	updated, err := s.sessions.Update(ctx, row.ID, update)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("session %d vanished during update: %w", row.ID, repository.ErrConflict)
		}
		return nil, fmt.Errorf("update session: %w", err)
	}

	if userID != "" && !updated.OwnedBy(userID) {
		s.metrics.ObserveBindSkipped()
		s.logger.Debug("session already bound to another user; binding skipped",
			zap.String("session_id", logger.MaskString(updated.SessionID)),
			zap.String("user_id", userID),
		)
	}

	if wasGuest && userID != "" && updated.OwnedBy(userID) {
		s.publish("session user bound", func() error {
			return s.events.PublishSessionUserBound(ctx, domain.SessionUserBoundEvent{
				EventID:   uuid.NewString(),
				SessionID: updated.SessionID,
				UserID:    userID,
				BoundAt:   now,
			})
		})
	}

	return &ReconcileResult{Session: updated, Outcome: outcome}, nil
}

func (s *SessionService) publish(what string, send func() error) {
	if s.events == nil {
		return
	}
	if err := send(); err != nil {
		s.logger.Warn("failed to publish "+what+" event", zap.Error(err))
	}
}

func normalizeIP(ip string) *string {
	trimmed := strings.TrimSpace(ip)
	if trimmed == "" || len(trimmed) > maxIPAddressLength {
		return nil
	}
	return &trimmed
}
