// Package services отдаёт профиль пользователя, читая сначала теневую копию в Redis.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/thomas-api/internal/lib/sl"
	"github.com/magabrotheeeer/thomas-api/internal/models"
	"github.com/magabrotheeeer/thomas-api/internal/storage"
)

// UserRepository - источник истины для пользователей.
type UserRepository interface {
	FindUser(ctx context.Context, id int64) (*models.User, error)
}

// Cache - теневая копия пользователей.
type Cache interface {
	GetUser(ctx context.Context, id int64) (*models.User, bool, error)
	SetUser(ctx context.Context, u *models.User) error
}

// UserService читает профиль пользователя.
type UserService struct {
	repo  UserRepository
	cache Cache
	log   *slog.Logger
}

// NewUserService создает новый экземпляр UserService.
func NewUserService(repo UserRepository, cache Cache, log *slog.Logger) *UserService {
	return &UserService{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// Profile возвращает пользователя из claims. Промах или ошибка кэша не
// означают отсутствие пользователя: решает только хранилище.
func (s *UserService) Profile(ctx context.Context, claims models.Claims) (*models.User, error) {
	const op = "services.users.Profile"
	log := s.log.With(slog.String("op", op), slog.Int64("user_id", claims.ID))

	u, found, err := s.cache.GetUser(ctx, claims.ID)
	if err != nil {
		log.Warn("failed to read user cache", sl.Err(err))
	}
	if found {
		return u, nil
	}

	u, err = s.repo.FindUser(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrUnknownUser)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.cache.SetUser(ctx, u); err != nil {
		log.Warn("failed to cache user", sl.Err(err))
	}
	return u, nil
}
