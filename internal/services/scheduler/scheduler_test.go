package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/thomas-api/internal/models"
	"github.com/magabrotheeeer/thomas-api/internal/storage/memory"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) SubscriptionsMarkedExpired(n int64) {
	m.Called(n)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSchedulerService_SweepExpired(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("success", func(t *testing.T) {
		repo := new(MockRepository)
		met := new(MockMetrics)
		repo.On("MarkExpired", mock.Anything, fixed).Return(int64(3), nil)
		met.On("SubscriptionsMarkedExpired", int64(3)).Return()

		s := NewSchedulerService(repo, met, newNoopLogger(), time.Minute)
		s.now = func() time.Time { return fixed }

		assert.Equal(t, int64(3), s.SweepExpired(context.Background()))
		repo.AssertExpectations(t)
		met.AssertExpectations(t)
	})

	t.Run("store error", func(t *testing.T) {
		repo := new(MockRepository)
		met := new(MockMetrics)
		repo.On("MarkExpired", mock.Anything, fixed).Return(int64(0), errors.New("db down"))

		s := NewSchedulerService(repo, met, newNoopLogger(), time.Minute)
		s.now = func() time.Time { return fixed }

		assert.Equal(t, int64(0), s.SweepExpired(context.Background()))
		met.AssertNotCalled(t, "SubscriptionsMarkedExpired", mock.Anything)
	})
}

func TestSchedulerService_SweepExpired_MemoryStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := memory.New()
	require.NoError(t, store.InsertSubscription(ctx, &models.Subscription{ID: "past", ExpireTime: now.Add(-time.Hour)}))
	require.NoError(t, store.InsertSubscription(ctx, &models.Subscription{ID: "boundary", ExpireTime: now}))
	require.NoError(t, store.InsertSubscription(ctx, &models.Subscription{ID: "future", ExpireTime: now.Add(time.Hour)}))

	met := new(MockMetrics)
	met.On("SubscriptionsMarkedExpired", mock.Anything).Return()

	s := NewSchedulerService(store, met, newNoopLogger(), time.Minute)
	s.now = func() time.Time { return now }

	assert.Equal(t, int64(2), s.SweepExpired(ctx))
	assert.Equal(t, int64(0), s.SweepExpired(ctx), "sweep is monotone")

	subs, err := store.FindSubscriptions(ctx, models.SubscriptionFilter{})
	require.NoError(t, err)
	got := map[string]bool{}
	for _, sub := range subs {
		got[sub.ID] = sub.Expired
	}
	assert.Equal(t, map[string]bool{"past": true, "boundary": true, "future": false}, got)
}

func TestSchedulerService_Run_StopsOnCancel(t *testing.T) {
	repo := new(MockRepository)
	met := new(MockMetrics)
	repo.On("MarkExpired", mock.Anything, mock.Anything).Return(int64(0), nil)
	met.On("SubscriptionsMarkedExpired", int64(0)).Return()

	s := NewSchedulerService(repo, met, newNoopLogger(), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(35 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
	assert.GreaterOrEqual(t, len(repo.Calls), 2)
}
