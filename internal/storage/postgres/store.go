// Package postgres реализует хранилище ledger'а поверх PostgreSQL.
// Схема создаётся миграциями из каталога migrations.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/magabrotheeeer/thomas-api/internal/models"
	"github.com/magabrotheeeer/thomas-api/internal/storage"
)

// Storage инкапсулирует соединение с PostgreSQL.
type Storage struct {
	DB *sql.DB
}

// New создаёт подключение к PostgreSQL.
func New(ctx context.Context, connectionString string) (*Storage, error) {
	const op = "storage.postgres.New"

	db, err := sql.Open("pgx", connectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Storage{DB: db}, nil
}

// Ping проверяет соединение с базой.
func (s *Storage) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

// Close закрывает пул соединений.
func (s *Storage) Close(context.Context) error {
	return s.DB.Close()
}

// FindUser возвращает пользователя по id.
func (s *Storage) FindUser(ctx context.Context, id int64) (*models.User, error) {
	const op = "storage.postgres.FindUser"

	query := `SELECT id, votes, last_voted, xp, premium_expire_at, premium_tier_name
			  FROM users WHERE id = $1`
	var (
		u         models.User
		lastVoted []byte
		expireAt  sql.NullTime
		tierName  sql.NullString
	)
	err := s.DB.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Votes, &lastVoted, &u.XP, &expireAt, &tierName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(lastVoted) > 0 {
		if err := json.Unmarshal(lastVoted, &u.LastVoted); err != nil {
			return nil, fmt.Errorf("%s: decode last_voted: %w", op, err)
		}
	}
	if expireAt.Valid {
		u.Premium = &models.Premium{ExpireAt: expireAt.Time.UTC(), TierName: tierName.String}
	}
	return &u, nil
}

// UpdateUser применяет патч одним оператором UPDATE.
func (s *Storage) UpdateUser(ctx context.Context, id int64, patch models.UserPatch) (bool, error) {
	const op = "storage.postgres.UpdateUser"
	return s.updateUser(ctx, s.DB, op, id, patch)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Storage) updateUser(ctx context.Context, db execer, op string, id int64, patch models.UserPatch) (bool, error) {
	if patch.IsEmpty() {
		return false, fmt.Errorf("%s: empty patch", op)
	}

	lastVoted := []byte("{}")
	if len(patch.LastVoted) > 0 {
		var err error
		if lastVoted, err = json.Marshal(patch.LastVoted); err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
	}
	var (
		expireAt *time.Time
		tierName *string
	)
	if patch.Premium != nil {
		expireAt = &patch.Premium.ExpireAt
		tierName = &patch.Premium.TierName
	}

	query := `UPDATE users
			  SET votes = votes + $2,
			      xp = xp + $3,
			      last_voted = last_voted || $4::jsonb,
			      premium_expire_at = COALESCE($5::timestamptz, premium_expire_at),
			      premium_tier_name = COALESCE($6::text, premium_tier_name)
			  WHERE id = $1`
	res, err := db.ExecContext(ctx, query, id, patch.IncVotes, patch.IncXP, string(lastVoted), expireAt, tierName)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rows > 0, nil
}

// FindSubscriptions возвращает подписки, подходящие под фильтр.
func (s *Storage) FindSubscriptions(ctx context.Context, filter models.SubscriptionFilter) ([]*models.Subscription, error) {
	const op = "storage.postgres.FindSubscriptions"

	where, args := subscriptionWhere(filter)
	query := `SELECT id, email, name, tier_name, amount, first_time, activated_by, expired, expire_time
			  FROM subscriptions` + where
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Subscription
	for rows.Next() {
		var (
			item        models.Subscription
			activatedBy sql.NullInt64
		)
		if err := rows.Scan(&item.ID, &item.Email, &item.Name, &item.TierName, &item.Amount,
			&item.FirstTime, &activatedBy, &item.Expired, &item.ExpireTime); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if activatedBy.Valid {
			id := activatedBy.Int64
			item.ActivatedBy = &id
		}
		item.ExpireTime = item.ExpireTime.UTC()
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// InsertSubscription вставляет новую подписку; совпадение id - ErrDuplicate.
func (s *Storage) InsertSubscription(ctx context.Context, sub *models.Subscription) error {
	const op = "storage.postgres.InsertSubscription"

	query := `INSERT INTO subscriptions (id, email, name, tier_name, amount, first_time,
			      activated_by, expired, expire_time)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := s.DB.ExecContext(ctx, query, sub.ID, sub.Email, sub.Name, sub.TierName, sub.Amount,
		sub.FirstTime, sub.ActivatedBy, sub.Expired, sub.ExpireTime)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrDuplicate)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ConditionalUpdateSubscription обновляет подписку, только если строка всё ещё
// подходит под фильтр. Условие проверяется тем же оператором UPDATE.
func (s *Storage) ConditionalUpdateSubscription(ctx context.Context, filter models.SubscriptionFilter, patch models.SubscriptionPatch) (bool, error) {
	const op = "storage.postgres.ConditionalUpdateSubscription"
	return s.conditionalUpdate(ctx, s.DB, op, filter, patch)
}

func (s *Storage) conditionalUpdate(ctx context.Context, db execer, op string, filter models.SubscriptionFilter, patch models.SubscriptionPatch) (bool, error) {
	if filter.ID == "" {
		return false, fmt.Errorf("%s: empty subscription id", op)
	}

	where, args := subscriptionWhere(filter)
	var set []string
	if patch.ActivatedBy != nil {
		args = append(args, *patch.ActivatedBy)
		set = append(set, "activated_by = $"+strconv.Itoa(len(args)))
	}
	if patch.Expired {
		set = append(set, "expired = true")
	}
	if len(set) == 0 {
		return false, fmt.Errorf("%s: empty patch", op)
	}

	query := "UPDATE subscriptions SET " + strings.Join(set, ", ") + where
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rows > 0, nil
}

// ActivateSubscription в одной транзакции привязывает подписку к пользователю
// и перезаписывает его тариф.
func (s *Storage) ActivateSubscription(ctx context.Context, filter models.SubscriptionFilter, userID int64, premium models.Premium) error {
	const op = "storage.postgres.ActivateSubscription"

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var exists bool
	err = tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return fmt.Errorf("%s: user %d: %w", op, userID, storage.ErrNotFound)
	}

	filter.Unactivated = true
	ok, err := s.conditionalUpdate(ctx, tx, op, filter, models.SubscriptionPatch{ActivatedBy: &userID})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrConflict)
	}

	matched, err := s.updateUser(ctx, tx, op, userID, models.UserPatch{Premium: &premium})
	if err != nil {
		return err
	}
	if !matched {
		return fmt.Errorf("%s: user %d: %w", op, userID, storage.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// MarkExpired проставляет expired = true подпискам с наступившим сроком.
func (s *Storage) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.postgres.MarkExpired"

	res, err := s.DB.ExecContext(ctx,
		`UPDATE subscriptions SET expired = true WHERE expired = false AND expire_time <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return rows, nil
}

func subscriptionWhere(f models.SubscriptionFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.ID != "" {
		args = append(args, f.ID)
		conds = append(conds, "id = $"+strconv.Itoa(len(args)))
	}
	if f.Email != "" {
		args = append(args, f.Email)
		conds = append(conds, "email = $"+strconv.Itoa(len(args)))
	}
	if f.Unactivated {
		conds = append(conds, "activated_by IS NULL")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
