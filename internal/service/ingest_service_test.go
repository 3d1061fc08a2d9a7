package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"finverse-chatbot/internal/dto"
	"finverse-chatbot/internal/pkg/logger"
	"finverse-chatbot/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu       sync.Mutex
	messages []dto.IndexMessage
	err      error
}

func (p *recordingPublisher) Publish(ctx context.Context, payload []byte) error {
	if p.err != nil {
		return p.err
	}
	var msg dto.IndexMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return nil
}

func TestQueueCatalogPublishesEveryRecord(t *testing.T) {
	f := newCatalogFixture()
	publisher := &recordingPublisher{}
	svc := NewIngestService(&fakeFactory{uow: f.uow}, publisher, logger.NewNopLogger())

	n, err := svc.QueueCatalog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []dto.IndexMessage{
		{Kind: dto.IndexKindInstitution, Id: f.institution.Id},
		{Kind: dto.IndexKindProduct, Id: f.product.Id},
	}, publisher.messages)
}

func TestQueueCatalogPublishFailure(t *testing.T) {
	f := newCatalogFixture()
	svc := NewIngestService(&fakeFactory{uow: f.uow}, &recordingPublisher{err: errors.New("closed")}, logger.NewNopLogger())

	n, err := svc.QueueCatalog(context.Background())
	assert.Error(t, err)
	assert.Zero(t, n)
}

func TestHandleCatalogEvent(t *testing.T) {
	f := newCatalogFixture()
	publisher := &recordingPublisher{}
	svc := NewIngestService(&fakeFactory{uow: f.uow}, publisher, logger.NewNopLogger())

	err := svc.HandleCatalogEvent(context.Background(), events.BaseEvent{
		Type: events.EventCatalogProductChanged,
		Data: map[string]interface{}{
			"product_id":     f.product.Id.String(),
			"institution_id": f.institution.Id.String(),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []dto.IndexMessage{
		{Kind: dto.IndexKindProduct, Id: f.product.Id},
		{Kind: dto.IndexKindInstitution, Id: f.institution.Id},
	}, publisher.messages)

	// malformed events are dropped, not retried
	err = svc.HandleCatalogEvent(context.Background(), events.BaseEvent{
		Type: events.EventCatalogProductChanged,
		Data: map[string]interface{}{"product_id": "not-a-uuid"},
	})
	assert.NoError(t, err)
	assert.Len(t, publisher.messages, 2)
}

type countingIndexer struct {
	mu       sync.Mutex
	failures int
	calls    int
	done     chan dto.IndexMessage
}

func (c *countingIndexer) Index(ctx context.Context, msg dto.IndexMessage) (int, error) {
	c.mu.Lock()
	c.calls++
	fail := c.calls <= c.failures
	c.mu.Unlock()
	if fail {
		return 0, errors.New("embedding provider unavailable")
	}
	c.done <- msg
	return 1, nil
}

func (c *countingIndexer) IndexProduct(ctx context.Context, id uuid.UUID) (int, error) {
	return c.Index(ctx, dto.IndexMessage{Kind: dto.IndexKindProduct, Id: id})
}

func (c *countingIndexer) IndexInstitution(ctx context.Context, id uuid.UUID) (int, error) {
	return c.Index(ctx, dto.IndexMessage{Kind: dto.IndexKindInstitution, Id: id})
}

func (c *countingIndexer) IndexAll(ctx context.Context) (*dto.IndexReport, error) {
	return &dto.IndexReport{}, nil
}

func TestConsumerRetriesTransientFailures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	indexer := &countingIndexer{failures: 2, done: make(chan dto.IndexMessage, 1)}
	consumer := NewConsumerService(pubSub, "catalog-index", indexer, logger.NewNopLogger()).(*consumerService)
	consumer.retryDelay = time.Millisecond
	require.NoError(t, consumer.Consume(ctx))

	id := uuid.New()
	require.NoError(t, NewPublisherService("catalog-index", pubSub).Publish(ctx, mustJSON(t, dto.IndexMessage{Kind: dto.IndexKindProduct, Id: id})))

	select {
	case msg := <-indexer.done:
		assert.Equal(t, id, msg.Id)
	case <-time.After(2 * time.Second):
		t.Fatal("message was never indexed")
	}
	indexer.mu.Lock()
	assert.Equal(t, 3, indexer.calls)
	indexer.mu.Unlock()
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
