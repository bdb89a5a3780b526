package routes_test

import (
	"context"
	"sync"
	"time"

	"github.com/NayakVandana/ecommerce-v1-sub003/internal/core/domain"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/repository"
)

type memorySessions struct {
	mu     sync.Mutex
	rows   []*domain.Session
	nextID int64
}

func (m *memorySessions) find(match func(*domain.Session) bool) *domain.Session {
	for _, row := range m.rows {
		if match(row) {
			return row
		}
	}
	return nil
}

func (m *memorySessions) Create(_ context.Context, session domain.Session) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.find(func(s *domain.Session) bool { return s.SessionID == session.SessionID }) != nil {
		return nil, repository.ErrConflict
	}
	m.nextID++
	session.ID = m.nextID
	stored := session
	m.rows = append(m.rows, &stored)
	return &session, nil
}

func (m *memorySessions) GetBySessionID(_ context.Context, sessionID string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := m.find(func(s *domain.Session) bool { return s.SessionID == sessionID })
	if row == nil {
		return nil, repository.ErrNotFound
	}
	out := *row
	return &out, nil
}

func (m *memorySessions) FindLatestForUser(_ context.Context, userID string, since time.Time) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *domain.Session
	for _, row := range m.rows {
		if !row.OwnedBy(userID) || (!since.IsZero() && row.LastActivity.Before(since)) {
			continue
		}
		if latest == nil || row.LastActivity.After(latest.LastActivity) {
			latest = row
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	out := *latest
	return &out, nil
}

func (m *memorySessions) SessionIDTaken(_ context.Context, sessionID string, exceptID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.find(func(s *domain.Session) bool { return s.SessionID == sessionID && s.ID != exceptID }) != nil, nil
}

func (m *memorySessions) Update(_ context.Context, id int64, update domain.SessionUpdate) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := m.find(func(s *domain.Session) bool { return s.ID == id })
	if row == nil {
		return nil, repository.ErrNotFound
	}
	row.LastActivity = update.LastActivity
	if update.IPAddress != nil {
		row.IPAddress = update.IPAddress
	}
	if row.UserID == nil && update.BindUserID != nil {
		userID := *update.BindUserID
		row.UserID = &userID
	}
	if update.SessionID != nil {
		row.SessionID = *update.SessionID
	}
	out := *row
	return &out, nil
}

func (m *memorySessions) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type memoryTokens struct {
	mu     sync.Mutex
	byHash map[string]domain.AccessToken
}

func (m *memoryTokens) Create(_ context.Context, token domain.AccessToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byHash == nil {
		m.byHash = map[string]domain.AccessToken{}
	}
	if _, ok := m.byHash[token.TokenHash]; ok {
		return repository.ErrConflict
	}
	m.byHash[token.TokenHash] = token
	return nil
}

func (m *memoryTokens) GetByHash(_ context.Context, tokenHash string) (*domain.AccessToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.byHash[tokenHash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &token, nil
}

func (m *memoryTokens) DeleteByHash(_ context.Context, tokenHash string) ([]domain.AccessToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.byHash[tokenHash]
	if !ok {
		return nil, nil
	}
	delete(m.byHash, tokenHash)
	return []domain.AccessToken{token}, nil
}

func (m *memoryTokens) DeleteAllForUser(_ context.Context, userID string) ([]domain.AccessToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted []domain.AccessToken
	for hash, token := range m.byHash {
		if token.UserID == userID {
			deleted = append(deleted, token)
			delete(m.byHash, hash)
		}
	}
	return deleted, nil
}

type memoryUsers map[string]domain.User

func (m memoryUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	user, ok := m[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (m memoryUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, user := range m {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}
