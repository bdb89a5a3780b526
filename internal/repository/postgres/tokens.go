package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/NayakVandana/ecommerce-v1-sub003/internal/core/domain"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/core/port"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/repository"
)

const accessTokensTable = "storefront.access_tokens"

var accessTokenColumns = []string{
	"id",
	"channel",
	"token_hash",
	"user_id",
	"device",
	"created_at",
	"last_used_at",
}

// TokenRepository implements port.TokenRepository using PostgreSQL tables.
type TokenRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewTokenRepository constructs a new token repository.
func NewTokenRepository(exec pgExecutor) *TokenRepository {
	return &TokenRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new access token row.
func (r *TokenRepository) Create(ctx context.Context, token domain.AccessToken) error {
	stmt, args, err := r.builder.Insert(accessTokensTable).
		Columns(
			"id",
			"channel",
			"token_hash",
			"user_id",
			"device",
			"created_at",
			"last_used_at",
		).
		Values(
			token.ID,
			string(token.Channel),
			token.TokenHash,
			token.UserID,
			optionalString(token.Device),
			token.CreatedAt.UTC(),
			optionalTime(token.LastUsedAt),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert access token sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert access token: %w", repository.ErrConflict)
		}
		return fmt.Errorf("insert access token: %w", err)
	}

	return nil
}

// GetByHash looks up a token by its hash regardless of channel.
func (r *TokenRepository) GetByHash(ctx context.Context, tokenHash string) (*domain.AccessToken, error) {
	stmt, args, err := r.builder.
		Select(accessTokenColumns...).
		From(accessTokensTable).
		Where(squirrel.Eq{"token_hash": tokenHash}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select access token sql: %w", err)
	}

	token, err := scanAccessToken(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan access token: %w", err)
	}

	return token, nil
}

// DeleteByHash removes the token with the supplied hash and returns the deleted rows.
func (r *TokenRepository) DeleteByHash(ctx context.Context, tokenHash string) ([]domain.AccessToken, error) {
	stmt, args, err := r.builder.
		Delete(accessTokensTable).
		Where(squirrel.Eq{"token_hash": tokenHash}).
		Suffix("RETURNING " + strings.Join(accessTokenColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build delete access token sql: %w", err)
	}

	return r.queryTokens(ctx, stmt, args...)
}

// DeleteAllForUser removes every token owned by the user and returns the deleted rows.
func (r *TokenRepository) DeleteAllForUser(ctx context.Context, userID string) ([]domain.AccessToken, error) {
	stmt, args, err := r.builder.
		Delete(accessTokensTable).
		Where(squirrel.Eq{"user_id": userID}).
		Suffix("RETURNING " + strings.Join(accessTokenColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build delete user access tokens sql: %w", err)
	}

	return r.queryTokens(ctx, stmt, args...)
}

func (r *TokenRepository) queryTokens(ctx context.Context, stmt string, args ...any) ([]domain.AccessToken, error) {
	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("delete access tokens: %w", err)
	}
	defer rows.Close()

	tokens := make([]domain.AccessToken, 0)
	for rows.Next() {
		token, err := scanAccessToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan access token: %w", err)
		}
		tokens = append(tokens, *token)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate access tokens: %w", err)
	}

	return tokens, nil
}

func scanAccessToken(row pgx.Row) (*domain.AccessToken, error) {
	var (
		token      domain.AccessToken
		channel    string
		device     sql.NullString
		lastUsedAt sql.NullTime
	)

	if err := row.Scan(
		&token.ID,
		&channel,
		&token.TokenHash,
		&token.UserID,
		&device,
		&token.CreatedAt,
		&lastUsedAt,
	); err != nil {
		return nil, err
	}

	token.Channel = domain.Channel(channel)
	token.Device = nullableStringPtr(device)
	token.LastUsedAt = nullableTimePtr(lastUsedAt)

	return &token, nil
}

var _ port.TokenRepository = (*TokenRepository)(nil)
