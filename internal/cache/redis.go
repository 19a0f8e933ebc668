// Package cache хранит теневые копии пользователей в Redis.
// Каждая копия лежит под своим ключом user:<id> и живёт не дольше UserTTL,
// поэтому устаревшая копия после неудачной инвалидации со временем исчезает.
// Кэш никогда не является источником истины: промах не означает,
// что пользователя нет.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/magabrotheeeer/thomas-api/internal/config"
	"github.com/magabrotheeeer/thomas-api/internal/models"
)

// UserKeyPrefix - префикс ключей с теневыми копиями пользователей.
const UserKeyPrefix = "user:"

// DefaultUserTTL используется, если в конфиге срок не задан.
const DefaultUserTTL = 10 * time.Minute

// Cache - клиент Redis для теневых копий пользователей.
type Cache struct {
	Db  *redis.Client
	ttl time.Duration
}

// InitServer подключается к Redis и проверяет соединение.
func InitServer(ctx context.Context, cfg config.RedisConnection) (*Cache, error) {
	const op = "cache.InitServer"
	db := redis.NewClient(&redis.Options{
		Addr:         cfg.AddressRedis,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Username:     cfg.User,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.TimeoutRedis,
		WriteTimeout: cfg.TimeoutRedis,
	})

	if err := db.Ping(ctx).Err(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ttl := cfg.UserTTL
	if ttl <= 0 {
		ttl = DefaultUserTTL
	}
	return &Cache{Db: db, ttl: ttl}, nil
}

// GetUser читает теневую копию пользователя. found=false - промах.
func (c *Cache) GetUser(ctx context.Context, id int64) (*models.User, bool, error) {
	const op = "cache.GetUser"
	val, err := c.Db.Get(ctx, UserKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	var u models.User
	if err := json.Unmarshal(val, &u); err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	return &u, true, nil
}

// SetUser сохраняет теневую копию на ttl. Вызывается только на пути чтения.
func (c *Cache) SetUser(ctx context.Context, u *models.User) error {
	const op = "cache.SetUser"
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := c.Db.Set(ctx, UserKey(u.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Invalidate удаляет теневую копию, чтобы следующее чтение ушло в хранилище.
func (c *Cache) Invalidate(ctx context.Context, id int64) error {
	const op = "cache.Invalidate"
	if err := c.Db.Del(ctx, UserKey(id)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Close закрывает соединение с Redis.
func (c *Cache) Close() error {
	return c.Db.Close()
}

// UserKey возвращает ключ теневой копии пользователя.
func UserKey(id int64) string {
	return UserKeyPrefix + strconv.FormatInt(id, 10)
}
