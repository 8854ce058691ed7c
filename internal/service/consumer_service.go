package service

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"ai-trivia-bot/internal/dto"
	"ai-trivia-bot/internal/pkg/logger"
	"ai-trivia-bot/internal/repository/archive"
	"ai-trivia-bot/pkg/embedding"
	"ai-trivia-bot/pkg/vectorindex"
)

// IConsumerService keeps the embedding index in sync with the archive.
//
// Rebuild policy: the index is rebuilt in full from the archive at startup,
// then maintained incrementally from mutation events. The archive document is
// always the source of truth; the index is a rebuildable cache.
type IConsumerService interface {
	Consume(ctx context.Context) error
	RebuildIndex(ctx context.Context) error
}

type consumerService struct {
	pubSub            *gochannel.GoChannel
	topicName         string
	archiveStore      *archive.Store
	embeddingProvider embedding.Provider
	index             *vectorindex.Index
	logger            logger.ILogger
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	archiveStore *archive.Store,
	embeddingProvider embedding.Provider,
	index *vectorindex.Index,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:            pubSub,
		topicName:         topicName,
		archiveStore:      archiveStore,
		embeddingProvider: embeddingProvider,
		index:             index,
		logger:            log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(msg *message.Message) {
	var payload dto.ArchiveMutationMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("Consumer", "Failed to unmarshal mutation message", map[string]interface{}{
			"error": err.Error(),
		})
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	switch payload.Action {
	case dto.MutationDelete:
		cs.index.Remove(payload.Question)
		cs.logger.Info("Consumer", "Dropped entry from embedding index", map[string]interface{}{
			"question": payload.Question,
		})
		msg.Ack()

	case dto.MutationUpsert:
		vector, err := cs.embeddingProvider.Embed(payload.Question)
		if err != nil {
			cs.logger.Error("Consumer", "Failed to embed upserted question", map[string]interface{}{
				"question": payload.Question,
				"error":    err.Error(),
			})
			msg.Nack() // Retriable: provider may recover
			return
		}
		cs.index.Upsert(payload.Question, vector)
		cs.logger.Info("Consumer", "Embedding index updated", map[string]interface{}{
			"question": payload.Question,
		})
		msg.Ack()

	default:
		cs.logger.Warn("Consumer", "Unknown mutation action", map[string]interface{}{
			"action": payload.Action,
		})
		msg.Ack()
	}
}

// RebuildIndex repopulates the index from the archive snapshot. Individual
// embedding failures are logged and skipped so one bad entry cannot block
// startup; those entries simply resolve through the non-semantic paths.
func (cs *consumerService) RebuildIndex(ctx context.Context) error {
	cs.index.Reset()

	snapshot := cs.archiveStore.Snapshot()
	for _, entry := range snapshot {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		vector, err := cs.embeddingProvider.Embed(entry.Question)
		if err != nil {
			cs.logger.Warn("Consumer", "Skipping entry during index rebuild", map[string]interface{}{
				"question": entry.Question,
				"error":    err.Error(),
			})
			continue
		}
		cs.index.Upsert(entry.Question, vector)
	}

	cs.logger.Info("Consumer", "Embedding index rebuilt", map[string]interface{}{
		"entries": cs.index.Len(),
		"archive": len(snapshot),
	})
	return nil
}
