package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/thomas-api/internal/events"
	"github.com/magabrotheeeer/thomas-api/internal/lib/kofi"
	"github.com/magabrotheeeer/thomas-api/internal/models"
	"github.com/magabrotheeeer/thomas-api/internal/storage"
	"github.com/magabrotheeeer/thomas-api/internal/storage/memory"
)

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Invalidate(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) SubscriptionIngested() {
	m.Called()
}

func (m *MockMetrics) SubscriptionActivated(tier string) {
	m.Called(tier)
}

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) FindSubscriptions(ctx context.Context, filter models.SubscriptionFilter) ([]*models.Subscription, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Subscription), args.Error(1)
}

func (m *MockRepository) InsertSubscription(ctx context.Context, sub *models.Subscription) error {
	return m.Called(ctx, sub).Error(0)
}

func (m *MockRepository) ActivateSubscription(ctx context.Context, filter models.SubscriptionFilter, userID int64, premium models.Premium) error {
	return m.Called(ctx, filter, userID, premium).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store   *memory.Store
	cache   *MockCache
	metrics *MockMetrics
	svc     *SubscriptionService
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   memory.New(),
		cache:   new(MockCache),
		metrics: new(MockMetrics),
		now:     baseTime,
	}
	f.cache.On("Invalidate", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.metrics.On("SubscriptionIngested").Return().Maybe()
	f.metrics.On("SubscriptionActivated", mock.Anything).Return().Maybe()
	f.svc = NewSubscriptionService(f.store, f.cache, events.NewEmitter(nil, newNoopLogger()), f.metrics, newNoopLogger())
	f.svc.now = func() time.Time { return f.now }
	return f
}

func kofiPayload(id, email string) *kofi.Payload {
	return &kofi.Payload{
		Type:                       kofi.TypeSubscription,
		KofiTransactionID:          id,
		Email:                      email,
		FromName:                   "Jo",
		TierName:                   "Gold",
		Amount:                     "3.00",
		IsFirstSubscriptionPayment: true,
	}
}

func (f *fixture) insert(t *testing.T, sub *models.Subscription) {
	t.Helper()
	require.NoError(t, f.store.InsertSubscription(context.Background(), sub))
}

func TestSubscriptionService_Ingest(t *testing.T) {
	ctx := context.Background()

	t.Run("stores subscription with 32 day expiry", func(t *testing.T) {
		f := newFixture(t)
		id, err := f.svc.Ingest(ctx, kofiPayload("S1", "a@b.com"))
		require.NoError(t, err)
		assert.Equal(t, "S1", id)

		subs, err := f.store.FindSubscriptions(ctx, models.SubscriptionFilter{ID: "S1"})
		require.NoError(t, err)
		require.Len(t, subs, 1)
		sub := subs[0]
		assert.Equal(t, "a@b.com", sub.Email)
		assert.Equal(t, "Jo", sub.Name)
		assert.Equal(t, "Gold", sub.TierName)
		assert.Equal(t, "3.00", sub.Amount)
		assert.True(t, sub.FirstTime)
		assert.Nil(t, sub.ActivatedBy)
		assert.False(t, sub.Expired)
		assert.Equal(t, baseTime.Add(32*24*time.Hour), sub.ExpireTime)
		f.metrics.AssertCalled(t, "SubscriptionIngested")
	})

	t.Run("unsupported event type", func(t *testing.T) {
		f := newFixture(t)
		p := kofiPayload("D1", "a@b.com")
		p.Type = kofi.TypeDonation

		_, err := f.svc.Ingest(ctx, p)
		require.ErrorIs(t, err, models.ErrUnsupportedEventType)

		subs, err := f.store.FindSubscriptions(ctx, models.SubscriptionFilter{})
		require.NoError(t, err)
		assert.Empty(t, subs)
	})

	t.Run("duplicate id keeps first record", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Ingest(ctx, kofiPayload("S1", "a@b.com"))
		require.NoError(t, err)

		f.now = baseTime.Add(time.Hour)
		second := kofiPayload("S1", "other@b.com")
		_, err = f.svc.Ingest(ctx, second)
		require.ErrorIs(t, err, models.ErrDuplicateSubscription)

		subs, err := f.store.FindSubscriptions(ctx, models.SubscriptionFilter{ID: "S1"})
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, "a@b.com", subs[0].Email)
		assert.Equal(t, baseTime.Add(32*24*time.Hour), subs[0].ExpireTime)
	})

	t.Run("store error is wrapped", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("InsertSubscription", mock.Anything, mock.Anything).Return(errors.New("connection reset"))
		svc := NewSubscriptionService(repo, new(MockCache), events.NewEmitter(nil, newNoopLogger()), new(MockMetrics), newNoopLogger())

		_, err := svc.Ingest(ctx, kofiPayload("S1", "a@b.com"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "services.subscription.Ingest")
		assert.NotErrorIs(t, err, models.ErrDuplicateSubscription)
	})
}

func TestSubscriptionService_List(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := int64(7)

	f.insert(t, &models.Subscription{ID: "active-near", Email: "a@b.com", ExpireTime: baseTime.Add(24 * time.Hour)})
	f.insert(t, &models.Subscription{ID: "active-far", Email: "a@b.com", ExpireTime: baseTime.Add(10 * 24 * time.Hour)})
	f.insert(t, &models.Subscription{ID: "claimed", Email: "a@b.com", ActivatedBy: &owner, ExpireTime: baseTime.Add(20 * 24 * time.Hour)})
	f.insert(t, &models.Subscription{ID: "boundary", Email: "a@b.com", ExpireTime: baseTime})
	f.insert(t, &models.Subscription{ID: "flagged", Email: "a@b.com", Expired: true, ExpireTime: baseTime.Add(30 * 24 * time.Hour)})
	f.insert(t, &models.Subscription{ID: "foreign", Email: "c@d.com", ExpireTime: baseTime.Add(5 * 24 * time.Hour)})

	subs, err := f.svc.List(ctx, models.Claims{ID: owner, Email: "a@b.com"})
	require.NoError(t, err)

	ids := make([]string, 0, len(subs))
	for _, s := range subs {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"active-far", "active-near", "flagged", "claimed", "boundary"}, ids)

	byID := map[string]*models.Subscription{}
	for _, s := range subs {
		byID[s.ID] = s
	}
	assert.False(t, byID["active-far"].Expired)
	assert.True(t, byID["boundary"].Expired, "expire_time == now is expired for listing")
	assert.False(t, byID["claimed"].Expired)

	stored, err := f.store.FindSubscriptions(ctx, models.SubscriptionFilter{ID: "boundary"})
	require.NoError(t, err)
	assert.False(t, stored[0].Expired, "listing must not persist the recomputed flag")
}

func TestSubscriptionService_List_ActiveBeforeExpiry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.insert(t, &models.Subscription{ID: "S1", Email: "a@b.com", ExpireTime: baseTime.Add(models.SubscriptionTTL)})

	f.now = baseTime.Add(31 * 24 * time.Hour)
	subs, err := f.svc.List(ctx, models.Claims{ID: 1, Email: "a@b.com"})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "S1", subs[0].ID)
	assert.True(t, subs[0].Claimable(f.now))
}

func TestSubscriptionService_List_Empty(t *testing.T) {
	f := newFixture(t)
	subs, err := f.svc.List(context.Background(), models.Claims{ID: 1, Email: "nobody@b.com"})
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestSubscriptionService_Activate(t *testing.T) {
	ctx := context.Background()
	claims := models.Claims{ID: 1, Email: "a@b.com"}

	tests := []struct {
		name    string
		sub     *models.Subscription
		claims  models.Claims
		advance time.Duration
		noUser  bool
		wantErr error
	}{
		{
			name:   "success",
			sub:    &models.Subscription{ID: "S1", Email: "a@b.com", TierName: "Gold", ExpireTime: baseTime.Add(time.Hour)},
			claims: claims,
		},
		{
			name:   "expire time equal to now succeeds",
			sub:    &models.Subscription{ID: "S1", Email: "a@b.com", TierName: "Gold", ExpireTime: baseTime},
			claims: claims,
		},
		{
			name:    "one microsecond past expiry",
			sub:     &models.Subscription{ID: "S1", Email: "a@b.com", ExpireTime: baseTime},
			claims:  claims,
			advance: time.Microsecond,
			wantErr: models.ErrExpired,
		},
		{
			name:    "foreign email looks like missing",
			sub:     &models.Subscription{ID: "S1", Email: "other@b.com", ExpireTime: baseTime.Add(time.Hour)},
			claims:  claims,
			wantErr: models.ErrNotFound,
		},
		{
			name:    "missing subscription",
			claims:  claims,
			wantErr: models.ErrNotFound,
		},
		{
			name:    "already activated",
			sub:     &models.Subscription{ID: "S1", Email: "a@b.com", ActivatedBy: ptr(int64(99)), ExpireTime: baseTime.Add(time.Hour)},
			claims:  claims,
			wantErr: models.ErrAlreadyActivated,
		},
		{
			name:    "unknown user",
			sub:     &models.Subscription{ID: "S1", Email: "a@b.com", ExpireTime: baseTime.Add(time.Hour)},
			claims:  claims,
			noUser:  true,
			wantErr: models.ErrUnknownUser,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if !tt.noUser {
				f.store.PutUser(ctx, &models.User{ID: tt.claims.ID})
			}
			if tt.sub != nil {
				f.insert(t, tt.sub)
			}
			f.now = baseTime.Add(tt.advance)

			err := f.svc.Activate(ctx, "S1", tt.claims)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				f.cache.AssertNotCalled(t, "Invalidate", mock.Anything, mock.Anything)
				if tt.sub != nil && tt.sub.ActivatedBy == nil {
					stored, err := f.store.FindSubscriptions(ctx, models.SubscriptionFilter{ID: "S1"})
					require.NoError(t, err)
					assert.Nil(t, stored[0].ActivatedBy, "failed activation must not bind the subscription")
				}
				return
			}
			require.NoError(t, err)

			stored, err := f.store.FindSubscriptions(ctx, models.SubscriptionFilter{ID: "S1"})
			require.NoError(t, err)
			require.NotNil(t, stored[0].ActivatedBy)
			assert.Equal(t, tt.claims.ID, *stored[0].ActivatedBy)

			u, err := f.store.FindUser(ctx, tt.claims.ID)
			require.NoError(t, err)
			require.NotNil(t, u.Premium)
			assert.Equal(t, tt.sub.ExpireTime, u.Premium.ExpireAt)
			assert.Equal(t, tt.sub.TierName, u.Premium.TierName)
			f.cache.AssertCalled(t, "Invalidate", mock.Anything, tt.claims.ID)
			f.metrics.AssertCalled(t, "SubscriptionActivated", tt.sub.TierName)
		})
	}
}

func TestSubscriptionService_Activate_OverwritesPremium(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.PutUser(ctx, &models.User{ID: 1, Premium: &models.Premium{
		ExpireAt: baseTime.Add(90 * 24 * time.Hour),
		TierName: "Platinum",
	}})
	f.insert(t, &models.Subscription{ID: "S1", Email: "a@b.com", TierName: "Bronze", ExpireTime: baseTime.Add(time.Hour)})

	require.NoError(t, f.svc.Activate(ctx, "S1", models.Claims{ID: 1, Email: "a@b.com"}))

	u, err := f.store.FindUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.Premium{ExpireAt: baseTime.Add(time.Hour), TierName: "Bronze"}, *u.Premium)
}

func TestSubscriptionService_Activate_CacheFailureIgnored(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	store.PutUser(ctx, &models.User{ID: 1})
	require.NoError(t, store.InsertSubscription(ctx, &models.Subscription{ID: "S1", Email: "a@b.com", ExpireTime: baseTime.Add(time.Hour)}))

	cache := new(MockCache)
	cache.On("Invalidate", mock.Anything, int64(1)).Return(errors.New("redis down"))
	metrics := new(MockMetrics)
	metrics.On("SubscriptionActivated", mock.Anything).Return()

	svc := NewSubscriptionService(store, cache, events.NewEmitter(nil, newNoopLogger()), metrics, newNoopLogger())
	svc.now = func() time.Time { return baseTime }

	require.NoError(t, svc.Activate(ctx, "S1", models.Claims{ID: 1, Email: "a@b.com"}))
	cache.AssertExpectations(t)
}

func TestSubscriptionService_Activate_GuardLostAtCommit(t *testing.T) {
	ctx := context.Background()
	sub := &models.Subscription{ID: "S1", Email: "a@b.com", TierName: "Gold", ExpireTime: baseTime.Add(time.Hour)}
	filter := models.SubscriptionFilter{ID: "S1", Email: "a@b.com"}

	repo := new(MockRepository)
	repo.On("FindSubscriptions", mock.Anything, filter).Return([]*models.Subscription{sub}, nil)
	repo.On("ActivateSubscription", mock.Anything, filter, int64(1), models.Premium{ExpireAt: sub.ExpireTime, TierName: "Gold"}).
		Return(fmt.Errorf("storage.mongo.ActivateSubscription: %w", storage.ErrConflict))

	svc := NewSubscriptionService(repo, new(MockCache), events.NewEmitter(nil, newNoopLogger()), new(MockMetrics), newNoopLogger())
	svc.now = func() time.Time { return baseTime }

	err := svc.Activate(ctx, "S1", models.Claims{ID: 1, Email: "a@b.com"})
	require.ErrorIs(t, err, models.ErrAlreadyActivated)
	repo.AssertExpectations(t)
}

func TestSubscriptionService_Activate_Concurrent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.insert(t, &models.Subscription{ID: "S1", Email: "a@b.com", TierName: "Gold", ExpireTime: baseTime.Add(time.Hour)})

	const n = 32
	for i := 1; i <= n; i++ {
		f.store.PutUser(ctx, &models.User{ID: int64(i)})
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []int64
		others  int
	)
	start := make(chan struct{})
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			<-start
			err := f.svc.Activate(ctx, "S1", models.Claims{ID: id, Email: "a@b.com"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, id)
			case errors.Is(err, models.ErrAlreadyActivated), errors.Is(err, models.ErrNotFound):
				others++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(int64(i))
	}
	close(start)
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, n-1, others)

	stored, err := f.store.FindSubscriptions(ctx, models.SubscriptionFilter{ID: "S1"})
	require.NoError(t, err)
	require.NotNil(t, stored[0].ActivatedBy)
	assert.Equal(t, winners[0], *stored[0].ActivatedBy)

	entitled := 0
	for i := 1; i <= n; i++ {
		u, err := f.store.FindUser(ctx, int64(i))
		require.NoError(t, err)
		if u.Premium != nil {
			entitled++
			assert.Equal(t, winners[0], u.ID)
		}
	}
	assert.Equal(t, 1, entitled)
}

func ptr[T any](v T) *T { return &v }
