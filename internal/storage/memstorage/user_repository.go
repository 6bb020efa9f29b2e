package memstorage

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/makkenzo/license-key-service/internal/config"
	"github.com/makkenzo/license-key-service/internal/domain/user"
	"github.com/makkenzo/license-key-service/internal/ierr"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository holds the operator accounts. It is seeded from
// configuration at startup and never written afterwards.
type UserRepository struct {
	mu    sync.RWMutex
	users map[string]*user.User
}

var _ user.Repository = (*UserRepository)(nil)

func NewUserRepository(admin config.AdminConfig) (*UserRepository, error) {
	repo := &UserRepository{
		users: make(map[string]*user.User),
	}

	hash := admin.PasswordHash
	if hash == "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(admin.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash admin password: %w", err)
		}
		hash = string(hashed)
	}

	adminUser := &user.User{
		ID:           uuid.New(),
		Username:     admin.Username,
		PasswordHash: hash,
		Role:         "admin",
	}
	repo.users[strings.ToLower(adminUser.Username)] = adminUser

	return repo, nil
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[strings.ToLower(username)]
	if !ok {
		return nil, ierr.ErrUserNotFound
	}

	userCopy := *u
	return &userCopy, nil
}
