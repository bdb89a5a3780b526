package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/NayakVandana/ecommerce-v1-sub003/internal/core/domain"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/repository"
)

// fakeSessionRepository mirrors the PostgreSQL semantics the reconciler relies on:
// unique session ids and a user id that, once set, is never overwritten.
type fakeSessionRepository struct {
	mu     sync.Mutex
	rows   map[int64]*domain.Session
	nextID int64

	getErr    error
	updateErr error
	// beforeCreate runs ahead of every insert; returning an error aborts it.
	beforeCreate func(session domain.Session) error
	// beforeUpdate runs with the stored row ahead of every update.
	beforeUpdate func(row *domain.Session)

	creates int
	updates int
}

func newFakeSessionRepository(rows ...domain.Session) *fakeSessionRepository {
	repo := &fakeSessionRepository{rows: make(map[int64]*domain.Session)}
	for _, row := range rows {
		repo.insert(row)
	}
	return repo
}

func (f *fakeSessionRepository) insert(session domain.Session) *domain.Session {
	f.nextID++
	session.ID = f.nextID
	if session.CreatedAt.IsZero() {
		session.CreatedAt = session.LastActivity
	}
	session.UpdatedAt = session.LastActivity
	stored := cloneSession(session)
	f.rows[session.ID] = &stored
	return &session
}

func (f *fakeSessionRepository) bySessionID(sessionID string) *domain.Session {
	for _, row := range f.rows {
		if row.SessionID == sessionID {
			return row
		}
	}
	return nil
}

func (f *fakeSessionRepository) Create(_ context.Context, session domain.Session) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.creates++
	if f.beforeCreate != nil {
		if err := f.beforeCreate(session); err != nil {
			return nil, err
		}
	}
	if f.bySessionID(session.SessionID) != nil {
		return nil, fmt.Errorf("insert session: %w", repository.ErrConflict)
	}

	created := f.insert(session)
	out := cloneSession(*created)
	return &out, nil
}

func (f *fakeSessionRepository) GetBySessionID(_ context.Context, sessionID string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return nil, f.getErr
	}
	row := f.bySessionID(sessionID)
	if row == nil {
		return nil, repository.ErrNotFound
	}
	out := cloneSession(*row)
	return &out, nil
}

func (f *fakeSessionRepository) FindLatestForUser(_ context.Context, userID string, since time.Time) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return nil, f.getErr
	}

	matches := make([]*domain.Session, 0)
	for _, row := range f.rows {
		if !row.OwnedBy(userID) {
			continue
		}
		if !since.IsZero() && row.LastActivity.Before(since) {
			continue
		}
		matches = append(matches, row)
	}
	if len(matches) == 0 {
		return nil, repository.ErrNotFound
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].LastActivity.Equal(matches[j].LastActivity) {
			return matches[i].ID > matches[j].ID
		}
		return matches[i].LastActivity.After(matches[j].LastActivity)
	})

	out := cloneSession(*matches[0])
	return &out, nil
}

func (f *fakeSessionRepository) SessionIDTaken(_ context.Context, sessionID string, exceptID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	row := f.bySessionID(sessionID)
	return row != nil && row.ID != exceptID, nil
}

func (f *fakeSessionRepository) Update(_ context.Context, id int64, update domain.SessionUpdate) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.updates++
	if f.updateErr != nil {
		return nil, f.updateErr
	}

	row, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if f.beforeUpdate != nil {
		f.beforeUpdate(row)
	}
	if update.SessionID != nil {
		if other := f.bySessionID(*update.SessionID); other != nil && other.ID != id {
			return nil, fmt.Errorf("update session: %w", repository.ErrConflict)
		}
		row.SessionID = *update.SessionID
	}

	row.LastActivity = update.LastActivity
	row.UpdatedAt = update.LastActivity
	if update.IPAddress != nil {
		ip := *update.IPAddress
		row.IPAddress = &ip
	}
	if row.UserID == nil && update.BindUserID != nil {
		userID := *update.BindUserID
		row.UserID = &userID
	}

	out := cloneSession(*row)
	return &out, nil
}

func (f *fakeSessionRepository) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func (f *fakeSessionRepository) get(sessionID string) *domain.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := f.bySessionID(sessionID)
	if row == nil {
		return nil
	}
	out := cloneSession(*row)
	return &out
}

func cloneSession(s domain.Session) domain.Session {
	if s.UserID != nil {
		v := *s.UserID
		s.UserID = &v
	}
	if s.IPAddress != nil {
		v := *s.IPAddress
		s.IPAddress = &v
	}
	if s.UserAgent != nil {
		v := *s.UserAgent
		s.UserAgent = &v
	}
	return s
}

type fakeTokenRepository struct {
	mu       sync.Mutex
	byHash   map[string]domain.AccessToken
	getErr   error
	createFn func(token domain.AccessToken) error
	// afterGet runs once a lookup has read its row, outside the lock.
	afterGet func(tokenHash string)
}

func newFakeTokenRepository() *fakeTokenRepository {
	return &fakeTokenRepository{byHash: make(map[string]domain.AccessToken)}
}

func (f *fakeTokenRepository) Create(_ context.Context, token domain.AccessToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createFn != nil {
		if err := f.createFn(token); err != nil {
			return err
		}
	}
	if _, exists := f.byHash[token.TokenHash]; exists {
		return fmt.Errorf("insert access token: %w", repository.ErrConflict)
	}
	f.byHash[token.TokenHash] = token
	return nil
}

func (f *fakeTokenRepository) GetByHash(_ context.Context, tokenHash string) (*domain.AccessToken, error) {
	f.mu.Lock()
	if f.getErr != nil {
		f.mu.Unlock()
		return nil, f.getErr
	}
	token, ok := f.byHash[tokenHash]
	hook := f.afterGet
	f.mu.Unlock()

	if !ok {
		return nil, repository.ErrNotFound
	}
	if hook != nil {
		hook(tokenHash)
	}
	return &token, nil
}

func (f *fakeTokenRepository) DeleteByHash(_ context.Context, tokenHash string) ([]domain.AccessToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	token, ok := f.byHash[tokenHash]
	if !ok {
		return []domain.AccessToken{}, nil
	}
	delete(f.byHash, tokenHash)
	return []domain.AccessToken{token}, nil
}

func (f *fakeTokenRepository) DeleteAllForUser(_ context.Context, userID string) ([]domain.AccessToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	deleted := make([]domain.AccessToken, 0)
	for hash, token := range f.byHash {
		if token.UserID == userID {
			deleted = append(deleted, token)
			delete(f.byHash, hash)
		}
	}
	return deleted, nil
}

type fakeUserRepository struct {
	users map[string]domain.User
	err   error
}

func newFakeUserRepository(users ...domain.User) *fakeUserRepository {
	repo := &fakeUserRepository{users: make(map[string]domain.User)}
	for _, user := range users {
		repo.users[user.ID] = user
	}
	return repo
}

func (f *fakeUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	user, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (f *fakeUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, user := range f.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

// fakeTokenCache mirrors the Redis cache: writes are SET NX and markers replace owners.
type fakeTokenCache struct {
	mu        sync.Mutex
	entries   map[string]string
	revoked   map[string]time.Duration
	getErr    error
	markErr   error
	setWrites int
}

func newFakeTokenCache() *fakeTokenCache {
	return &fakeTokenCache{entries: make(map[string]string), revoked: make(map[string]time.Duration)}
}

func (f *fakeTokenCache) GetUserID(_ context.Context, tokenHash string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return "", false, f.getErr
	}
	if _, ok := f.revoked[tokenHash]; ok {
		return "", true, nil
	}
	return f.entries[tokenHash], false, nil
}

func (f *fakeTokenCache) SetUserID(_ context.Context, tokenHash, userID string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.revoked[tokenHash]; ok {
		return nil
	}
	if _, ok := f.entries[tokenHash]; ok {
		return nil
	}
	f.entries[tokenHash] = userID
	f.setWrites++
	return nil
}

func (f *fakeTokenCache) MarkRevoked(_ context.Context, ttl time.Duration, tokenHashes ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	for _, hash := range tokenHashes {
		delete(f.entries, hash)
		f.revoked[hash] = ttl
	}
	return nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	created  []domain.SessionCreatedEvent
	bound    []domain.SessionUserBoundEvent
	revoked  []domain.TokensRevokedEvent
	failWith error
}

func (p *recordingPublisher) PublishSessionCreated(_ context.Context, event domain.SessionCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, event)
	return p.failWith
}

func (p *recordingPublisher) PublishSessionUserBound(_ context.Context, event domain.SessionUserBoundEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bound = append(p.bound, event)
	return p.failWith
}

func (p *recordingPublisher) PublishTokensRevoked(_ context.Context, event domain.TokensRevokedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.revoked = append(p.revoked, event)
	return p.failWith
}

func strPtr(v string) *string {
	return &v
}
