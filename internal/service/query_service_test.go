package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-trivia-bot/internal/constant"
	"ai-trivia-bot/internal/pkg/logger"
	"ai-trivia-bot/internal/repository/archive"
	"ai-trivia-bot/pkg/events"
	"ai-trivia-bot/pkg/resolver"
	"ai-trivia-bot/pkg/vectorindex"
)

type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (f *fakeEmbedder) Embed(text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	vec, ok := f.vectors[text]
	if !ok {
		return nil, errors.New("no canned vector for text")
	}
	return vec, nil
}

type queryFixture struct {
	service  IQueryService
	archive  *archive.Store
	index    *vectorindex.Index
	embedder *fakeEmbedder
	hub      *fakeHub
}

func newQueryFixture(t *testing.T, embedder *fakeEmbedder, threshold float64) *queryFixture {
	t.Helper()

	f := &queryFixture{
		archive:  archive.NewStore(filepath.Join(t.TempDir(), "questions.json"), nil),
		index:    vectorindex.New(),
		embedder: embedder,
		hub:      &fakeHub{},
	}
	log := logger.NewZapLogger(filepath.Join(t.TempDir(), "bot.log"), false)

	if embedder != nil {
		f.service = NewQueryService(f.archive, resolver.New(threshold), embedder, f.index, 0.5, nil, f.hub, log)
	} else {
		// A typed nil would re-enable the semantic path; pass the untyped nil.
		f.service = NewQueryService(f.archive, resolver.New(threshold), nil, f.index, 0.5, nil, f.hub, log)
	}
	return f
}

func TestAskContainmentHit(t *testing.T) {
	f := newQueryFixture(t, nil, resolver.DefaultThreshold)
	require.NoError(t, f.archive.Update("capital of France", "Paris"))

	resp := f.service.Ask(context.Background(), "What is the capital of France?", false)
	require.True(t, resp.Matched)
	assert.Equal(t, "Paris", resp.Answer)
	assert.Equal(t, resolver.MethodContainment, resp.Method)
	assert.Equal(t, "Paris", resp.Message)

	require.Len(t, f.hub.broadcast, 1)
	assert.Equal(t, events.TypeQueryResolved, f.hub.broadcast[0].EventType())
}

func TestAskMissMessagesDifferByPrivilege(t *testing.T) {
	f := newQueryFixture(t, nil, resolver.DefaultThreshold)

	resp := f.service.Ask(context.Background(), "anything at all", false)
	require.False(t, resp.Matched)
	assert.Equal(t, constant.MsgNoMatchUser, resp.Message)

	resp = f.service.Ask(context.Background(), "anything at all", true)
	require.False(t, resp.Matched)
	assert.Equal(t, constant.MsgNoMatchAdmin, resp.Message)

	require.Len(t, f.hub.broadcast, 2)
	assert.Equal(t, events.TypeQueryMissed, f.hub.broadcast[0].EventType())
}

func TestAskSemanticFallback(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"who painted the ceiling?": {1, 0},
	}}
	// Threshold 101 forces every fuzzy score below acceptance, so only the
	// semantic path can resolve.
	f := newQueryFixture(t, embedder, 101)

	require.NoError(t, f.archive.Update("Sistine Chapel ceiling artist", "Michelangelo"))
	f.index.Upsert("Sistine Chapel ceiling artist", []float32{1, 0})
	f.index.Upsert("deepest lake", []float32{0, 1})

	resp := f.service.Ask(context.Background(), "who painted the ceiling?", false)
	require.True(t, resp.Matched)
	assert.Equal(t, "Michelangelo", resp.Answer)
	assert.Equal(t, resolver.MethodSemantic, resp.Method)
	assert.InDelta(t, 100.0, resp.Score, 0.01)
}

func TestAskSemanticDistanceCutoff(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"unrelated question": {0, 1},
	}}
	f := newQueryFixture(t, embedder, 101)

	require.NoError(t, f.archive.Update("Sistine Chapel ceiling artist", "Michelangelo"))
	// Orthogonal vectors sit at distance 1.0, past the 0.5 cutoff.
	f.index.Upsert("Sistine Chapel ceiling artist", []float32{1, 0})

	resp := f.service.Ask(context.Background(), "unrelated question", false)
	assert.False(t, resp.Matched)
	assert.Equal(t, 1, embedder.calls)
}

func TestAskSemanticStaleIndexKeyIsMiss(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"q": {1, 0},
	}}
	f := newQueryFixture(t, embedder, 101)

	// Index still carries an entry the archive no longer has.
	f.index.Upsert("removed question", []float32{1, 0})

	resp := f.service.Ask(context.Background(), "q", false)
	assert.False(t, resp.Matched)
}

func TestAskEmbedFailureFallsThroughToMiss(t *testing.T) {
	embedder := &fakeEmbedder{err: errors.New("provider down")}
	f := newQueryFixture(t, embedder, 101)

	require.NoError(t, f.archive.Update("q", "a"))
	f.index.Upsert("q", []float32{1, 0})

	resp := f.service.Ask(context.Background(), "something else entirely", true)
	require.False(t, resp.Matched)
	assert.Equal(t, constant.MsgNoMatchAdmin, resp.Message)
}

func TestAskSemanticSkippedWithoutProvider(t *testing.T) {
	f := newQueryFixture(t, nil, 101)

	require.NoError(t, f.archive.Update("q", "a"))
	f.index.Upsert("q", []float32{1, 0})

	resp := f.service.Ask(context.Background(), "q but reworded beyond fuzz", false)
	assert.False(t, resp.Matched)
}
