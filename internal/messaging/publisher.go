// Package messaging публикует события жизненного цикла историй в RabbitMQ.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"storylens/internal/models"
)

// EventType - тип события истории.
type EventType string

const (
	EventStoryGenerated EventType = "story.generated"
	EventStoryDeleted   EventType = "story.deleted"
)

// StoryEvent - сообщение об успешной генерации или удалении.
type StoryEvent struct {
	EventID   string           `json:"event_id"`
	Type      EventType        `json:"type"`
	StoryID   string           `json:"story_id"`
	StoryType models.StoryType `json:"story_type,omitempty"`
	HasAudio  bool             `json:"has_audio,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// NewStoryEvent заполняет EventID и Timestamp.
func NewStoryEvent(t EventType, storyID string) StoryEvent {
	return StoryEvent{
		EventID:   uuid.NewString(),
		Type:      t,
		StoryID:   storyID,
		Timestamp: time.Now().UTC(),
	}
}

// StoryEventPublisher отправляет события историй.
type StoryEventPublisher interface {
	PublishStoryEvent(ctx context.Context, event StoryEvent) error
	Close() error
}

// --- Реализация для RabbitMQ ---

type rabbitMQStoryEventPublisher struct {
	mu        sync.Mutex // amqp.Channel нельзя использовать из нескольких горутин одновременно
	channel   *amqp.Channel
	queueName string
	logger    *zap.Logger
}

// NewRabbitMQStoryEventPublisher открывает канал и объявляет durable очередь.
func NewRabbitMQStoryEventPublisher(conn *amqp.Connection, queueName string, logger *zap.Logger) (StoryEventPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("story event publisher: не удалось открыть канал: %w", err)
	}

	_, err = ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("story event publisher: не удалось объявить очередь '%s': %w", queueName, err)
	}

	logger.Info("RabbitMQStoryEventPublisher initialized", zap.String("queue", queueName))
	return &rabbitMQStoryEventPublisher{
		channel:   ch,
		queueName: queueName,
		logger:    logger.Named("story_event_publisher"),
	}, nil
}

func (p *rabbitMQStoryEventPublisher) PublishStoryEvent(ctx context.Context, event StoryEvent) error {
	if p.channel == nil {
		return errors.New("канал RabbitMQ не инициализирован")
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("ошибка подготовки сообщения StoryEvent: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	p.mu.Lock()
	err = p.channel.PublishWithContext(ctx,
		"",          // exchange (default)
		p.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.EventID,
			Type:         string(event.Type),
			Body:         body,
			Timestamp:    event.Timestamp,
			AppId:        "storylens-web",
		},
	)
	p.mu.Unlock()
	if err != nil {
		p.logger.Error("Failed to publish story event",
			zap.String("queue", p.queueName),
			zap.String("type", string(event.Type)),
			zap.String("storyID", event.StoryID),
			zap.Error(err))
		return fmt.Errorf("ошибка публикации в очередь %s: %w", p.queueName, err)
	}

	p.logger.Debug("Story event published",
		zap.String("type", string(event.Type)),
		zap.String("storyID", event.StoryID),
	)
	return nil
}

func (p *rabbitMQStoryEventPublisher) Close() error {
	if p.channel != nil {
		p.logger.Info("Closing RabbitMQ publisher channel...")
		return p.channel.Close()
	}
	return nil
}

// --- Пустая реализация, когда RABBITMQ_URL не задан ---

type nopPublisher struct{}

// NewNopPublisher возвращает паблишер, который ничего не отправляет.
func NewNopPublisher() StoryEventPublisher { return nopPublisher{} }

func (nopPublisher) PublishStoryEvent(context.Context, StoryEvent) error { return nil }
func (nopPublisher) Close() error                                       { return nil }
