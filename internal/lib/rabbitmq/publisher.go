// Package rabbitmq содержит подключение к RabbitMQ и публикацию JSON-сообщений.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"
)

// PublishMessage публикует сообщение в RabbitMQ.
func PublishMessage(ch *amqp.Channel, exchange string, routingkey string, message any) error {
	const op = "rabbitmq.PublishMessage"
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = ch.Publish(
		exchange,
		routingkey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Publisher публикует события в один exchange.
type Publisher struct {
	ch       *amqp.Channel
	exchange string
}

// NewPublisher создаёт Publisher поверх настроенного канала.
func NewPublisher(ch *amqp.Channel, exchange string) *Publisher {
	return &Publisher{ch: ch, exchange: exchange}
}

// Publish отправляет сообщение с ключом маршрутизации routingKey.
func (p *Publisher) Publish(ctx context.Context, routingKey string, message any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return PublishMessage(p.ch, p.exchange, routingKey, message)
}
