package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dramaforge/shared/interfaces"
	"dramaforge/shared/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// SettlementQueueName - durable очередь для запросов подтверждения по умолчанию.
const SettlementQueueName = "drama_settlements"

var _ interfaces.Settler = (*AMQPSettler)(nil)

// ErrPublishNacked возвращается, если брокер отклонил сообщение.
var ErrPublishNacked = errors.New("broker did not acknowledge settlement")

// confirmPublisher публикует сообщение и ждет подтверждения брокера.
type confirmPublisher interface {
	PublishConfirmed(ctx context.Context, queue string, msg amqp.Publishing) (deliveryTag uint64, err error)
	Close() error
}

// channelPublisher - confirmPublisher поверх AMQP канала в режиме confirm.
type channelPublisher struct {
	ch *amqp.Channel
}

func (p *channelPublisher) PublishConfirmed(ctx context.Context, queue string, msg amqp.Publishing) (uint64, error) {
	confirm, err := p.ch.PublishWithDeferredConfirmWithContext(ctx,
		"",    // default exchange
		queue, // routing key
		true,  // mandatory
		false, // immediate
		msg,
	)
	if err != nil {
		return 0, err
	}
	if confirm == nil {
		return 0, errors.New("channel is not in confirm mode")
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return 0, err
	}
	if !acked {
		return 0, ErrPublishNacked
	}
	return confirm.DeliveryTag, nil
}

func (p *channelPublisher) Close() error {
	return p.ch.Close()
}

// AMQPSettler передает зафиксированные узлы воркеру подтверждения через RabbitMQ.
// Узел считается подтвержденным, когда брокер подтвердил сообщение.
type AMQPSettler struct {
	publisher confirmPublisher
	queue     string
	seed      uint64
	logger    *zap.Logger
}

// NewAMQPSettler открывает канал в режиме confirm и объявляет durable очередь.
func NewAMQPSettler(conn *amqp.Connection, queue string, seed uint64, logger *zap.Logger) (*AMQPSettler, error) {
	if conn == nil {
		return nil, fmt.Errorf("rabbitmq connection is nil")
	}
	if queue == "" {
		queue = SettlementQueueName
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("settlement publisher: не удалось открыть канал: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("settlement publisher: failed to enable confirm mode: %w", err)
	}
	_, err = ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("settlement publisher: failed to declare queue '%s': %w", queue, err)
	}
	return newAMQPSettler(&channelPublisher{ch: ch}, queue, seed, logger), nil
}

func newAMQPSettler(p confirmPublisher, queue string, seed uint64, logger *zap.Logger) *AMQPSettler {
	return &AMQPSettler{
		publisher: p,
		queue:     queue,
		seed:      seed,
		logger:    logger.Named("AMQPSettler"),
	}
}

// Settle публикует запрос и ждет подтверждения брокера.
func (s *AMQPSettler) Settle(ctx context.Context, req models.SettlementRequest) (*models.Receipt, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal settlement request: %w", err)
	}
	txID := TransactionID(s.seed, req)

	tag, err := s.publisher.PublishConfirmed(ctx, s.queue, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    txID,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		s.logger.Warn("Failed to publish settlement",
			zap.String("nodeID", req.Node.NodeID),
			zap.String("queue", s.queue),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", models.ErrSettlementFailed, err)
	}

	s.logger.Debug("Settlement published", zap.String("nodeID", req.Node.NodeID), zap.Uint64("deliveryTag", tag))
	return &models.Receipt{
		NodeID:         req.Node.NodeID,
		TransactionID:  txID,
		BlockReference: fmt.Sprintf("%s#%d", s.queue, tag),
	}, nil
}

// Close закрывает канал RabbitMQ.
func (s *AMQPSettler) Close() error {
	return s.publisher.Close()
}
