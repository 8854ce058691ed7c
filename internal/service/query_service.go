package service

import (
	"context"

	"ai-trivia-bot/internal/constant"
	"ai-trivia-bot/internal/dto"
	"ai-trivia-bot/internal/pkg/logger"
	"ai-trivia-bot/internal/repository/archive"
	"ai-trivia-bot/pkg/embedding"
	"ai-trivia-bot/pkg/events"
	pktNats "ai-trivia-bot/pkg/nats"
	"ai-trivia-bot/pkg/resolver"
	"ai-trivia-bot/pkg/store"
	"ai-trivia-bot/pkg/vectorindex"
)

// ActivityBroadcaster fans domain events out to connected ops dashboards.
type ActivityBroadcaster interface {
	BroadcastEvent(event events.Event)
}

// IQueryService resolves free-text questions against the archive.
type IQueryService interface {
	Ask(ctx context.Context, question string, privileged bool) *dto.AskResponse
}

type queryService struct {
	archiveStore *archive.Store
	resolver     *resolver.Resolver

	// Semantic fallback; nil provider disables the path entirely.
	embeddingProvider embedding.Provider
	index             *vectorindex.Index
	maxDistance       float64

	eventPublisher *pktNats.Publisher
	activityHub    ActivityBroadcaster
	logger         logger.ILogger
}

func NewQueryService(
	archiveStore *archive.Store,
	res *resolver.Resolver,
	embeddingProvider embedding.Provider,
	index *vectorindex.Index,
	maxDistance float64,
	eventPublisher *pktNats.Publisher,
	activityHub ActivityBroadcaster,
	log logger.ILogger,
) IQueryService {
	return &queryService{
		archiveStore:      archiveStore,
		resolver:          res,
		embeddingProvider: embeddingProvider,
		index:             index,
		maxDistance:       maxDistance,
		eventPublisher:    eventPublisher,
		activityHub:       activityHub,
		logger:            log,
	}
}

// Ask runs the layered resolution strategy over the current archive snapshot:
// containment, fuzzy, then the semantic fallback when an embedding provider
// is configured. A miss is a valid outcome whose message depends on caller
// privilege.
func (qs *queryService) Ask(ctx context.Context, question string, privileged bool) *dto.AskResponse {
	snapshot := qs.archiveStore.Snapshot()

	match := qs.resolver.Resolve(question, snapshot)

	if !match.Matched && qs.embeddingProvider != nil {
		match = qs.resolveSemantic(question, snapshot)
	}

	if match.Matched {
		qs.logger.Info("Query", "Question resolved", map[string]interface{}{
			"query":  question,
			"match":  match.Question,
			"method": match.Method,
			"score":  match.Score,
		})
		qs.emit(ctx, events.NewQueryResolved(question, match.Question, match.Method, match.Score))

		return &dto.AskResponse{
			Matched:  true,
			Question: match.Question,
			Answer:   match.Answer,
			Score:    match.Score,
			Method:   match.Method,
			Message:  match.Answer,
		}
	}

	qs.logger.Info("Query", "No confident match", map[string]interface{}{
		"query":      question,
		"privileged": privileged,
	})
	qs.emit(ctx, events.NewQueryMissed(question))

	message := constant.MsgNoMatchUser
	if privileged {
		message = constant.MsgNoMatchAdmin
	}
	return &dto.AskResponse{
		Matched: false,
		Message: message,
	}
}

func (qs *queryService) resolveSemantic(question string, snapshot []store.Entry) resolver.MatchResult {
	vector, err := qs.embeddingProvider.Embed(question)
	if err != nil {
		qs.logger.Warn("Query", "Embedding failed, skipping semantic fallback", map[string]interface{}{
			"error": err.Error(),
		})
		return resolver.MatchResult{}
	}

	key, distance, ok := qs.index.Nearest(vector)
	if !ok || distance > qs.maxDistance {
		return resolver.MatchResult{}
	}

	for _, entry := range snapshot {
		if entry.Question == key {
			// Map distance onto the resolver's 0-100 scale for uniform logging.
			return resolver.MatchResult{
				Matched:  true,
				Question: entry.Question,
				Answer:   entry.Answer,
				Score:    (1 - distance) * 100,
				Method:   resolver.MethodSemantic,
			}
		}
	}

	// Index knows a key the snapshot no longer has: stale cache, treat as miss.
	qs.logger.Warn("Query", "Semantic index out of sync with archive", map[string]interface{}{
		"stale_key": key,
	})
	return resolver.MatchResult{}
}

func (qs *queryService) emit(ctx context.Context, event events.BaseEvent) {
	if qs.activityHub != nil {
		qs.activityHub.BroadcastEvent(event)
	}
	if qs.eventPublisher != nil {
		if err := qs.eventPublisher.Publish(ctx, event); err != nil {
			qs.logger.Warn("Query", "Failed to publish domain event", map[string]interface{}{
				"type":  event.EventType(),
				"error": err.Error(),
			})
		}
	}
}
