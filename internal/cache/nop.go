package cache

import (
	"context"

	"github.com/magabrotheeeer/thomas-api/internal/models"
)

// Nop - кэш без хранилища: всегда промах. Используется, когда Redis не настроен.
type Nop struct{}

// GetUser всегда возвращает промах.
func (Nop) GetUser(context.Context, int64) (*models.User, bool, error) { return nil, false, nil }

// SetUser ничего не делает.
func (Nop) SetUser(context.Context, *models.User) error { return nil }

// Invalidate ничего не делает.
func (Nop) Invalidate(context.Context, int64) error { return nil }

// Close ничего не делает.
func (Nop) Close() error { return nil }
