package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/magabrotheeeer/thomas-api/internal/models"
)

// Имена полей совпадают с уже сохранёнными документами и менять их нельзя.

type premiumModel struct {
	ExpireAt time.Time `bson:"expire_at"`
	TierName string    `bson:"tier_name"`
}

type userModel struct {
	ID        int64         `bson:"_id"`
	Votes     int64         `bson:"votes"`
	LastVoted bson.RawValue `bson:"last_voted,omitempty"`
	XP        int64         `bson:"xp"`
	Premium   *premiumModel `bson:"premium,omitempty"`
}

type subscriptionModel struct {
	ID          string    `bson:"_id"`
	Email       string    `bson:"email"`
	Name        string    `bson:"name"`
	TierName    string    `bson:"tier_name"`
	Amount      string    `bson:"amount"`
	FirstTime   bool      `bson:"first_time"`
	ActivatedBy *int64    `bson:"activated_by"`
	Expired     bool      `bson:"expired"`
	ExpireTime  time.Time `bson:"expire_time"`
}

func fromUserModel(m *userModel) *models.User {
	u := &models.User{
		ID:    m.ID,
		Votes: m.Votes,
		XP:    m.XP,
	}
	// Старые записи хранили last_voted одной датой; такие значения пропускаем.
	if m.LastVoted.Type == bson.TypeEmbeddedDocument {
		var lastVoted map[string]time.Time
		if err := m.LastVoted.Unmarshal(&lastVoted); err == nil {
			u.LastVoted = make(map[models.SiteTag]time.Time, len(lastVoted))
			for site, at := range lastVoted {
				u.LastVoted[models.SiteTag(site)] = at.UTC()
			}
		}
	}
	if m.Premium != nil {
		u.Premium = &models.Premium{
			ExpireAt: m.Premium.ExpireAt.UTC(),
			TierName: m.Premium.TierName,
		}
	}
	return u
}

func toSubscriptionModel(s *models.Subscription) *subscriptionModel {
	return &subscriptionModel{
		ID:          s.ID,
		Email:       s.Email,
		Name:        s.Name,
		TierName:    s.TierName,
		Amount:      s.Amount,
		FirstTime:   s.FirstTime,
		ActivatedBy: s.ActivatedBy,
		Expired:     s.Expired,
		ExpireTime:  s.ExpireTime,
	}
}

func fromSubscriptionModel(m *subscriptionModel) *models.Subscription {
	return &models.Subscription{
		ID:          m.ID,
		Email:       m.Email,
		Name:        m.Name,
		TierName:    m.TierName,
		Amount:      m.Amount,
		FirstTime:   m.FirstTime,
		ActivatedBy: m.ActivatedBy,
		Expired:     m.Expired,
		ExpireTime:  m.ExpireTime.UTC(),
	}
}

// userUpdate собирает update-pipeline из одной стадии $set: сервер применяет
// её к документу атомарно. last_voted старого формата (одна дата) заменяется
// документом по площадкам.
func userUpdate(patch models.UserPatch) bson.A {
	set := bson.D{}
	if patch.IncVotes != 0 {
		set = append(set, bson.E{Key: "votes", Value: addTo("$votes", patch.IncVotes)})
	}
	if patch.IncXP != 0 {
		set = append(set, bson.E{Key: "xp", Value: addTo("$xp", patch.IncXP)})
	}
	if len(patch.LastVoted) > 0 {
		voted := bson.D{}
		for site, at := range patch.LastVoted {
			voted = append(voted, bson.E{Key: string(site), Value: at})
		}
		current := bson.D{{Key: "$cond", Value: bson.A{
			bson.D{{Key: "$eq", Value: bson.A{bson.D{{Key: "$type", Value: "$last_voted"}}, "object"}}},
			"$last_voted",
			bson.D{},
		}}}
		set = append(set, bson.E{Key: "last_voted", Value: bson.D{{Key: "$mergeObjects", Value: bson.A{current, voted}}}})
	}
	if patch.Premium != nil {
		set = append(set, bson.E{Key: "premium", Value: bson.D{{Key: "$literal", Value: premiumModel{
			ExpireAt: patch.Premium.ExpireAt,
			TierName: patch.Premium.TierName,
		}}}})
	}
	return bson.A{bson.D{{Key: "$set", Value: set}}}
}

func addTo(field string, n int64) bson.D {
	return bson.D{{Key: "$add", Value: bson.A{
		bson.D{{Key: "$ifNull", Value: bson.A{field, int64(0)}}},
		n,
	}}}
}

func subscriptionFilter(f models.SubscriptionFilter) bson.M {
	filter := bson.M{}
	if f.ID != "" {
		filter["_id"] = f.ID
	}
	if f.Email != "" {
		filter["email"] = f.Email
	}
	if f.Unactivated {
		filter["activated_by"] = nil
	}
	return filter
}

func subscriptionUpdate(p models.SubscriptionPatch) bson.M {
	set := bson.M{}
	if p.ActivatedBy != nil {
		set["activated_by"] = *p.ActivatedBy
	}
	if p.Expired {
		set["expired"] = true
	}
	return bson.M{"$set": set}
}
