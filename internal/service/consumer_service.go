package service

import (
	"context"
	"encoding/json"
	"time"

	"finverse-chatbot/internal/dto"
	"finverse-chatbot/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill/message"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

const (
	maxIndexAttempts = 3
	indexRetryDelay  = 2 * time.Second
)

type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	indexer    IIndexerService
	logger     logger.ILogger
	retryDelay time.Duration
}

func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	indexer IIndexerService,
	logger logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		indexer:    indexer,
		logger:     logger,
		retryDelay: indexRetryDelay,
	}
}

// Consume processes index messages until ctx is cancelled
func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.IndexMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("CONSUMER", "Failed to unmarshal index message", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		msg.Ack() // redelivery cannot fix a malformed payload
		return
	}

	// embedding providers fail transiently; retry here instead of nacking
	// so the gochannel does not redeliver in a hot loop
	for attempt := 1; attempt <= maxIndexAttempts; attempt++ {
		chunks, err := cs.indexer.Index(ctx, payload)
		if err == nil {
			cs.logger.Info("CONSUMER", "Index message processed", map[string]interface{}{
				"kind":   payload.Kind,
				"id":     payload.Id.String(),
				"chunks": chunks,
			})
			msg.Ack()
			return
		}

		cs.logger.Warn("CONSUMER", "Indexing failed", map[string]interface{}{
			"kind":    payload.Kind,
			"id":      payload.Id.String(),
			"attempt": attempt,
			"error":   err.Error(),
		})

		if attempt == maxIndexAttempts {
			break
		}
		select {
		case <-ctx.Done():
			msg.Nack()
			return
		case <-time.After(cs.retryDelay):
		}
	}

	cs.logger.Error("CONSUMER", "Giving up on index message", map[string]interface{}{
		"kind": payload.Kind,
		"id":   payload.Id.String(),
	})
	msg.Ack()
}
