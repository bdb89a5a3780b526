package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/NayakVandana/ecommerce-v1-sub003/internal/core/domain"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/repository"
)

type countingUserRepo struct {
	users map[string]domain.User
	calls int
}

func (r *countingUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.calls++
	user, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (r *countingUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func TestUserDirectoryCachesHits(t *testing.T) {
	repo := &countingUserRepo{users: map[string]domain.User{
		"user-1": {ID: "user-1", Role: domain.UserRoleCustomer, IsActive: true},
	}}
	dir := NewUserDirectory(repo, 10, time.Minute)

	for i := 0; i < 3; i++ {
		user, err := dir.GetByID(context.Background(), "user-1")
		if err != nil {
			t.Fatalf("GetByID returned error: %v", err)
		}
		if user.ID != "user-1" {
			t.Fatalf("unexpected user %+v", user)
		}
	}

	if repo.calls != 1 {
		t.Fatalf("expected a single repository call, got %d", repo.calls)
	}

	dir.Invalidate("user-1")
	if _, err := dir.GetByID(context.Background(), "user-1"); err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if repo.calls != 2 {
		t.Fatalf("expected invalidation to force a reload, got %d calls", repo.calls)
	}
}

func TestUserDirectoryDoesNotCacheMisses(t *testing.T) {
	repo := &countingUserRepo{users: map[string]domain.User{}}
	dir := NewUserDirectory(repo, 10, time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := dir.GetByID(context.Background(), "ghost"); !errors.Is(err, repository.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	}
	if repo.calls != 2 {
		t.Fatalf("expected misses to reach the repository each time, got %d", repo.calls)
	}
}

func TestUserDirectoryReturnsCopies(t *testing.T) {
	repo := &countingUserRepo{users: map[string]domain.User{
		"user-2": {ID: "user-2", Role: domain.UserRoleAdmin, IsActive: true},
	}}
	dir := NewUserDirectory(repo, 10, time.Minute)

	first, _ := dir.GetByID(context.Background(), "user-2")
	first.Role = domain.UserRoleCustomer

	second, err := dir.GetByID(context.Background(), "user-2")
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if !second.IsAdmin() {
		t.Fatalf("cached entry was mutated through a returned pointer")
	}
}
