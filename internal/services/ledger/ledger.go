// Package services содержит ledger голосов: начисление голоса и опыта
// пользователю по уведомлению площадки-каталога ботов.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/thomas-api/internal/events"
	"github.com/magabrotheeeer/thomas-api/internal/lib/sl"
	"github.com/magabrotheeeer/thomas-api/internal/models"
	"github.com/magabrotheeeer/thomas-api/internal/storage"
)

// DefaultXPPerVote - опыт за один голос.
const DefaultXPPerVote = 750

// UserRepository - хранилище пользователей.
type UserRepository interface {
	FindUser(ctx context.Context, id int64) (*models.User, error)
	UpdateUser(ctx context.Context, id int64, patch models.UserPatch) (bool, error)
}

// Cache - теневая копия пользователей. Ledger только инвалидирует её.
type Cache interface {
	Invalidate(ctx context.Context, id int64) error
}

// EventEmitter публикует доменные события.
type EventEmitter interface {
	Emit(ctx context.Context, eventType string, payload any)
}

// Metrics считает начисленные голоса.
type Metrics interface {
	VoteCredited(site models.SiteTag)
}

// LedgerService начисляет голоса.
type LedgerService struct {
	repo      UserRepository
	cache     Cache
	events    EventEmitter
	metrics   Metrics
	log       *slog.Logger
	xpPerVote int64
	now       func() time.Time
}

// NewLedgerService создает новый экземпляр LedgerService.
func NewLedgerService(repo UserRepository, cache Cache, events EventEmitter, metrics Metrics, log *slog.Logger, xpPerVote int64) *LedgerService {
	if xpPerVote <= 0 {
		xpPerVote = DefaultXPPerVote
	}
	return &LedgerService{
		repo:      repo,
		cache:     cache,
		events:    events,
		metrics:   metrics,
		log:       log,
		xpPerVote: xpPerVote,
		now:       time.Now,
	}
}

// CreditVote разбирает уведомление о голосе и одной записью увеличивает
// votes на 1, xp на xpPerVote и обновляет last_voted площадки.
func (s *LedgerService) CreditVote(ctx context.Context, raw map[string]any) error {
	const op = "services.ledger.CreditVote"

	vote, err := models.ParseVoteEvent(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	log := s.log.With(
		slog.String("op", op),
		slog.Int64("user_id", vote.UserID),
		slog.String("site", string(vote.Site)),
	)

	if _, err := s.repo.FindUser(ctx, vote.UserID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, models.ErrUnknownUser)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	patch := models.UserPatch{
		IncVotes:  1,
		IncXP:     s.xpPerVote,
		LastVoted: map[models.SiteTag]time.Time{vote.Site: s.now().UTC()},
	}
	matched, err := s.repo.UpdateUser(ctx, vote.UserID, patch)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !matched {
		return fmt.Errorf("%s: %w", op, models.ErrUnknownUser)
	}
	log.Info("vote credited")

	if err := s.cache.Invalidate(ctx, vote.UserID); err != nil {
		log.Warn("failed to invalidate user cache", sl.Err(err))
	}
	s.metrics.VoteCredited(vote.Site)
	s.events.Emit(ctx, events.TypeVoteCredited, events.VoteCredited{
		UserID: vote.UserID,
		Site:   vote.Site,
		XP:     s.xpPerVote,
	})
	return nil
}
