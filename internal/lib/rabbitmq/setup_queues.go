package rabbitmq

// QueueConfig описывает очередь и ключ, с которым она привязана к exchange.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// Ключи маршрутизации доменных событий.
const (
	RoutingVoteCredited          = "vote.credited"
	RoutingSubscriptionIngested  = "subscription.ingested"
	RoutingSubscriptionActivated = "subscription.activated"
)

// GetEventQueues возвращает очереди, из которых бот читает события ledger'а.
func GetEventQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "thomas.votes", RoutingKey: RoutingVoteCredited},
		{QueueName: "thomas.subscriptions", RoutingKey: "subscription.*"},
	}
}
