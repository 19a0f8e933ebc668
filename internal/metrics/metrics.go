// Package metrics содержит Prometheus-счётчики сервиса.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/magabrotheeeer/thomas-api/internal/models"
)

const namespace = "thomas"

// Metrics - набор счётчиков доменных операций.
type Metrics struct {
	VotesCredited          *prometheus.CounterVec
	SubscriptionsIngested  prometheus.Counter
	SubscriptionsActivated *prometheus.CounterVec
	SubscriptionsExpired   prometheus.Counter
}

// New создаёт счётчики и регистрирует их в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		VotesCredited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_credited_total",
			Help:      "Votes credited to users, by listing site.",
		}, []string{"site"}),
		SubscriptionsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscriptions_ingested_total",
			Help:      "Subscriptions received from the payment webhook.",
		}),
		SubscriptionsActivated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscriptions_activated_total",
			Help:      "Subscriptions bound to a user, by tier.",
		}, []string{"tier"}),
		SubscriptionsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscriptions_expired_total",
			Help:      "Subscriptions flagged as expired by the sweep.",
		}),
	}
	reg.MustRegister(
		m.VotesCredited,
		m.SubscriptionsIngested,
		m.SubscriptionsActivated,
		m.SubscriptionsExpired,
	)
	return m
}

// NewNop возвращает счётчики, не зарегистрированные ни в одном реестре.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

// VoteCredited увеличивает счётчик голосов для сайта.
func (m *Metrics) VoteCredited(site models.SiteTag) {
	m.VotesCredited.WithLabelValues(string(site)).Inc()
}

// SubscriptionIngested увеличивает счётчик принятых подписок.
func (m *Metrics) SubscriptionIngested() {
	m.SubscriptionsIngested.Inc()
}

// SubscriptionActivated увеличивает счётчик активаций.
func (m *Metrics) SubscriptionActivated(tier string) {
	m.SubscriptionsActivated.WithLabelValues(tier).Inc()
}

// SubscriptionsMarkedExpired добавляет число помеченных подписок.
func (m *Metrics) SubscriptionsMarkedExpired(n int64) {
	if n > 0 {
		m.SubscriptionsExpired.Add(float64(n))
	}
}
