// Package mongo реализует основное хранилище ledger'а поверх MongoDB.
// Коллекции users и subscriptions совместимы с уже существующими данными бота.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/magabrotheeeer/thomas-api/internal/models"
	"github.com/magabrotheeeer/thomas-api/internal/storage"
)

const (
	colUsers         = "users"
	colSubscriptions = "subscriptions"
)

// Store хранит пользователей и подписки в MongoDB.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	// transactions включает многодокументные транзакции при активации.
	// Требует replica set; на одиночном mongod записи выполняются последовательно.
	transactions bool
}

// New подключается к MongoDB и проверяет соединение.
func New(ctx context.Context, uri, database string, transactions bool) (*Store, error) {
	const op = "storage.mongo.New"

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Store{
		client:       client,
		db:           client.Database(database),
		transactions: transactions,
	}, nil
}

// Migrate создаёт индексы, нужные для выборок по почте и фоновой чистки.
func (s *Store) Migrate(ctx context.Context) error {
	const op = "storage.mongo.Migrate"
	_, err := s.db.Collection(colSubscriptions).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}},
		{Keys: bson.D{{Key: "expired", Value: 1}, {Key: "expire_time", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Ping проверяет соединение с базой.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close закрывает соединение.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// FindUser возвращает пользователя по id.
func (s *Store) FindUser(ctx context.Context, id int64) (*models.User, error) {
	const op = "storage.mongo.FindUser"

	var m userModel
	err := s.db.Collection(colUsers).FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return fromUserModel(&m), nil
}

// UpdateUser применяет патч одним update-pipeline и сообщает, найден ли документ.
func (s *Store) UpdateUser(ctx context.Context, id int64, patch models.UserPatch) (bool, error) {
	const op = "storage.mongo.UpdateUser"
	if patch.IsEmpty() {
		return false, fmt.Errorf("%s: empty patch", op)
	}

	res, err := s.db.Collection(colUsers).UpdateOne(ctx, bson.M{"_id": id}, userUpdate(patch))
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return res.MatchedCount > 0, nil
}

// FindSubscriptions возвращает все подписки, подходящие под фильтр.
func (s *Store) FindSubscriptions(ctx context.Context, filter models.SubscriptionFilter) ([]*models.Subscription, error) {
	const op = "storage.mongo.FindSubscriptions"

	cur, err := s.db.Collection(colSubscriptions).Find(ctx, subscriptionFilter(filter))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var docs []subscriptionModel
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := make([]*models.Subscription, 0, len(docs))
	for i := range docs {
		result = append(result, fromSubscriptionModel(&docs[i]))
	}
	return result, nil
}

// InsertSubscription вставляет новую подписку; совпадение _id - ErrDuplicate.
func (s *Store) InsertSubscription(ctx context.Context, sub *models.Subscription) error {
	const op = "storage.mongo.InsertSubscription"

	_, err := s.db.Collection(colSubscriptions).InsertOne(ctx, toSubscriptionModel(sub))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrDuplicate)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ConditionalUpdateSubscription обновляет подписку, только если фильтр
// совпадает в момент записи. Фильтр и изменение выполняются одной командой.
func (s *Store) ConditionalUpdateSubscription(ctx context.Context, filter models.SubscriptionFilter, patch models.SubscriptionPatch) (bool, error) {
	const op = "storage.mongo.ConditionalUpdateSubscription"
	if filter.ID == "" {
		return false, fmt.Errorf("%s: empty subscription id", op)
	}

	res, err := s.db.Collection(colSubscriptions).UpdateOne(ctx, subscriptionFilter(filter), subscriptionUpdate(patch))
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return res.ModifiedCount > 0, nil
}

// ActivateSubscription привязывает подписку к пользователю и перезаписывает
// его premium. При включённых транзакциях обе записи фиксируются вместе.
func (s *Store) ActivateSubscription(ctx context.Context, filter models.SubscriptionFilter, userID int64, premium models.Premium) error {
	const op = "storage.mongo.ActivateSubscription"

	if !s.transactions {
		if err := s.activate(ctx, filter, userID, premium); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}

	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, s.activate(ctx, filter, userID, premium)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Store) activate(ctx context.Context, filter models.SubscriptionFilter, userID int64, premium models.Premium) error {
	n, err := s.db.Collection(colUsers).CountDocuments(ctx, bson.M{"_id": userID})
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("user %d: %w", userID, storage.ErrNotFound)
	}

	filter.Unactivated = true
	ok, err := s.ConditionalUpdateSubscription(ctx, filter, models.SubscriptionPatch{ActivatedBy: &userID})
	if err != nil {
		return err
	}
	if !ok {
		return storage.ErrConflict
	}

	matched, err := s.UpdateUser(ctx, userID, models.UserPatch{Premium: &premium})
	if err != nil {
		return err
	}
	if !matched {
		return fmt.Errorf("user %d: %w", userID, storage.ErrNotFound)
	}
	return nil
}

// MarkExpired проставляет expired=true подпискам с наступившим сроком.
func (s *Store) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.mongo.MarkExpired"

	res, err := s.db.Collection(colSubscriptions).UpdateMany(ctx,
		bson.M{"expired": false, "expire_time": bson.M{"$lte": now}},
		bson.M{"$set": bson.M{"expired": true}},
	)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return res.ModifiedCount, nil
}
