package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Envelope - событие чата в шине между узлами
type Envelope struct {
	ID     string          `json:"id"`
	UserID int64           `json:"user_id"`
	Type   string          `json:"type"`
	Event  json.RawMessage `json:"event"`
}

func RoutingKey(userID int64) string {
	return "user." + strconv.FormatInt(userID, 10)
}

func EncodeEnvelope(userID int64, ev ServerEvent) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return json.Marshal(Envelope{
		ID:     uuid.NewString(),
		UserID: userID,
		Type:   ev.EventType(),
		Event:  payload,
	})
}

func DecodeEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	if env.UserID <= 0 || len(env.Event) == 0 {
		return nil, fmt.Errorf("malformed envelope %q", env.ID)
	}
	return &env, nil
}

// EventBus рассылает события через topic exchange; каждый узел слушает user.*
// своей эксклюзивной очередью и пушит события локально подключенным пользователям.
type EventBus struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	nodeID   string
	registry *PresenceRegistry
}

// NewEventBus инициализирует соединение и exchange
func NewEventBus(url, exchange string, registry *PresenceRegistry) (*EventBus, error) {
	if exchange == "" {
		exchange = "chat_events"
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	// Создаем exchange типа topic
	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,   // args
	); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	log.Printf("RabbitMQ initialized, exchange %s", exchange)
	return &EventBus{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
		nodeID:   uuid.NewString(),
		registry: registry,
	}, nil
}

func (b *EventBus) queueName() string {
	return b.exchange + "." + b.nodeID
}

// Deliver публикует событие; при ошибке шины пробует доставить локально
func (b *EventBus) Deliver(ctx context.Context, userID int64, ev ServerEvent) bool {
	body, err := EncodeEnvelope(userID, ev)
	if err != nil {
		log.Printf("ERROR bus: %v", err)
		return false
	}
	err = b.channel.PublishWithContext(ctx,
		b.exchange,
		RoutingKey(userID),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		log.Printf("ERROR bus: publish for user %d failed, falling back to local: %v", userID, err)
		return b.registry.SendTo(userID, ev)
	}
	return true
}

// StartConsumer запускает воркер, который слушает события и пушит их через WebSocket
func (b *EventBus) StartConsumer(ctx context.Context) error {
	q, err := b.channel.QueueDeclare(
		b.queueName(),
		false, // durable
		true,  // auto-delete
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := b.channel.QueueBind(q.Name, "user.*", b.exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}
	msgs, err := b.channel.Consume(
		q.Name,
		"",
		true,  // auto-ack
		true,  // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					log.Println("bus: consumer channel closed")
					return
				}
				b.dispatch(msg.Body)
			}
		}
	}()
	return nil
}

func (b *EventBus) dispatch(body []byte) {
	env, err := DecodeEnvelope(body)
	if err != nil {
		log.Println("bus: failed to decode event:", err)
		return
	}
	// Пользователь может быть подключен к другому узлу
	b.registry.SendTo(env.UserID, env.Event)
}

func (b *EventBus) Close() error {
	var errs []string
	if b.channel != nil {
		if err := b.channel.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if b.conn != nil {
		if err := b.conn.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to close RabbitMQ: %s", strings.Join(errs, "; "))
	}
	return nil
}
