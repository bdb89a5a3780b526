package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/NayakVandana/ecommerce-v1-sub003/internal/core/domain"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/core/port"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/repository"
)

const sessionsTable = "storefront.sessions"

var sessionColumns = []string{
	"id",
	"session_id",
	"user_id",
	"device_type",
	"os",
	"browser",
	"user_agent",
	"ip_address",
	"country",
	"region",
	"city",
	"latitude",
	"longitude",
	"last_activity",
	"created_at",
	"updated_at",
}

// SessionRepository implements port.SessionRepository backed by PostgreSQL.
type SessionRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewSessionRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewSessionRepository(exec pgExecutor) *SessionRepository {
	return &SessionRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new session row and returns it with its generated row id.
func (r *SessionRepository) Create(ctx context.Context, session domain.Session) (*domain.Session, error) {
	createdAt := session.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	lastActivity := session.LastActivity
	if lastActivity.IsZero() {
		lastActivity = createdAt
	}

	stmt, args, err := r.builder.Insert(sessionsTable).
		Columns(
			"session_id",
			"user_id",
			"device_type",
			"os",
			"browser",
			"user_agent",
			"ip_address",
			"country",
			"region",
			"city",
			"latitude",
			"longitude",
			"last_activity",
			"created_at",
			"updated_at",
		).
		Values(
			session.SessionID,
			optionalString(session.UserID),
			string(session.DeviceType),
			session.OS,
			session.Browser,
			optionalString(session.UserAgent),
			optionalString(session.IPAddress),
			optionalString(session.Country),
			optionalString(session.Region),
			optionalString(session.City),
			optionalFloat(session.Latitude),
			optionalFloat(session.Longitude),
			lastActivity.UTC(),
			createdAt.UTC(),
			createdAt.UTC(),
		).
		Suffix("RETURNING " + strings.Join(sessionColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert session sql: %w", err)
	}

	created, err := scanSession(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("insert session: %w", repository.ErrConflict)
		}
		return nil, fmt.Errorf("insert session: %w", err)
	}

	return created, nil
}

// GetBySessionID fetches a session by its public identifier.
func (r *SessionRepository) GetBySessionID(ctx context.Context, sessionID string) (*domain.Session, error) {
	stmt, args, err := r.builder.
		Select(sessionColumns...).
		From(sessionsTable).
		Where(squirrel.Eq{"session_id": sessionID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select session sql: %w", err)
	}

	session, err := scanSession(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	return session, nil
}

// FindLatestForUser returns the most recently active session linked to the user.
func (r *SessionRepository) FindLatestForUser(ctx context.Context, userID string, since time.Time) (*domain.Session, error) {
	query := r.builder.
		Select(sessionColumns...).
		From(sessionsTable).
		Where(squirrel.Eq{"user_id": userID})
	if !since.IsZero() {
		query = query.Where(squirrel.GtOrEq{"last_activity": since.UTC()})
	}

	stmt, args, err := query.
		OrderBy("last_activity DESC", "id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build latest session sql: %w", err)
	}

	session, err := scanSession(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan latest session: %w", err)
	}

	return session, nil
}

// SessionIDTaken reports whether a row other than exceptID already owns sessionID.
func (r *SessionRepository) SessionIDTaken(ctx context.Context, sessionID string, exceptID int64) (bool, error) {
	var taken bool
	stmt := `SELECT EXISTS (SELECT 1 FROM storefront.sessions WHERE session_id = $1 AND id <> $2)`
	if err := r.exec.QueryRow(ctx, stmt, sessionID, exceptID).Scan(&taken); err != nil {
		return false, fmt.Errorf("check session id ownership: %w", err)
	}
	return taken, nil
}

// Update refreshes activity metadata and applies the optional user binding and relabel.
// The user binding only lands on rows that are still unbound.
func (r *SessionRepository) Update(ctx context.Context, id int64, update domain.SessionUpdate) (*domain.Session, error) {
	at := update.LastActivity
	if at.IsZero() {
		at = time.Now().UTC()
	}

	stmt := `
        UPDATE storefront.sessions
           SET last_activity = $2,
               updated_at = $2,
               ip_address = COALESCE($3, ip_address),
               user_id = COALESCE(user_id, $4),
               session_id = COALESCE($5, session_id)
         WHERE id = $1
     RETURNING ` + strings.Join(sessionColumns, ", ")

	session, err := scanSession(r.exec.QueryRow(ctx, stmt,
		id,
		at.UTC(),
		optionalString(update.IPAddress),
		optionalString(update.BindUserID),
		optionalString(update.SessionID),
	))
	if err != nil {
		switch {
		case isNoRows(err):
			return nil, repository.ErrNotFound
		case isUniqueViolation(err):
			return nil, fmt.Errorf("update session: %w", repository.ErrConflict)
		default:
			return nil, fmt.Errorf("update session: %w", err)
		}
	}

	return session, nil
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var (
		session    domain.Session
		userID     sql.NullString
		deviceType string
		userAgent  sql.NullString
		ipAddress  sql.NullString
		country    sql.NullString
		region     sql.NullString
		city       sql.NullString
		latitude   sql.NullFloat64
		longitude  sql.NullFloat64
	)

	if err := row.Scan(
		&session.ID,
		&session.SessionID,
		&userID,
		&deviceType,
		&session.OS,
		&session.Browser,
		&userAgent,
		&ipAddress,
		&country,
		&region,
		&city,
		&latitude,
		&longitude,
		&session.LastActivity,
		&session.CreatedAt,
		&session.UpdatedAt,
	); err != nil {
		return nil, err
	}

	session.UserID = nullableStringPtr(userID)
	session.DeviceType = domain.DeviceType(deviceType)
	session.UserAgent = nullableStringPtr(userAgent)
	session.IPAddress = nullableStringPtr(ipAddress)
	session.Country = nullableStringPtr(country)
	session.Region = nullableStringPtr(region)
	session.City = nullableStringPtr(city)
	session.Latitude = nullableFloatPtr(latitude)
	session.Longitude = nullableFloatPtr(longitude)

	return &session, nil
}

var _ port.SessionRepository = (*SessionRepository)(nil)
