package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// OutboxTopicPublisher публикует outbox-сообщения витрины в Kafka.
// Топик выбирается по типу агрегата: заказы и каталог идут разными потоками,
// fallback-топик используется для сообщений без известного агрегата.
type OutboxTopicPublisher struct {
	producer *Producer
	fallback string
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
func NewOutboxPublisher(producer *Producer, fallbackTopic string) domain.OutboxPublisher {
	if fallbackTopic == "" {
		fallbackTopic = TopicOrderEvents
	}
	return &OutboxTopicPublisher{
		producer: producer,
		fallback: fallbackTopic,
	}
}

func (p *OutboxTopicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	// Ключ «тип:id» держит все события одного агрегата в одной партиции.
	key := event.AggregateID
	if key == "" {
		key = event.ID
	}
	if event.AggregateType != "" {
		key = event.AggregateType + ":" + key
	}

	envelope := struct {
		ID            string          `json:"id"`
		AggregateType string          `json:"aggregate_type"`
		AggregateID   string          `json:"aggregate_id"`
		EventType     string          `json:"event_type"`
		Payload       json.RawMessage `json:"payload"`
		PublishedAt   time.Time       `json:"published_at"`
	}{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       json.RawMessage(event.Payload),
		PublishedAt:   time.Now().UTC(),
	}

	headers := map[string]string{
		headerEventType:     event.EventType,
		headerAggregateType: event.AggregateType,
	}

	return p.producer.PublishEvent(p.topicFor(event), key, envelope, headers)
}

func (p *OutboxTopicPublisher) topicFor(event domain.OutboxMessage) string {
	switch event.AggregateType {
	case AggregateTypeOrder:
		return TopicOrderEvents
	case AggregateTypeProduct:
		return TopicCatalogEvents
	default:
		return p.fallback
	}
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)

// dlqPublisher отправляет сообщения только в DLQ-топик, без маршрутизации
// по агрегату: мёртвое письмо не должно вернуться в исходный поток.
type dlqPublisher struct {
	producer *Producer
}

// NewDLQPublisher создаёт паблишер для dead letter queue.
func NewDLQPublisher(producer *Producer) domain.OutboxPublisher {
	return &dlqPublisher{producer: producer}
}

func (p *dlqPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka dlq publisher is not initialized")
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	headers := map[string]string{
		headerEventType:     event.EventType,
		headerAggregateType: event.AggregateType,
	}

	return p.producer.PublishEvent(TopicDeadLetterQueue, key, json.RawMessage(event.Payload), headers)
}
