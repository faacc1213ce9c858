package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonataserpa/docrag/internal/core/document"
	"github.com/jonataserpa/docrag/internal/core/embedding"
)

type stubSource struct {
	chunks []*document.Chunk
	err    error
}

func (s *stubSource) ListChunks(ctx context.Context) ([]*document.Chunk, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.chunks, nil
}

func (s *stubSource) ReadChunk(ctx context.Context, id string) (*document.Chunk, error) {
	for _, chunk := range s.chunks {
		if chunk.ID == id {
			return chunk, nil
		}
	}
	return nil, document.ErrChunkNotFound
}

func newTestService(source *stubSource, embedder *scriptedEmbedder, store *stubStore) *IngestService {
	return NewIngestService(
		source,
		embedder,
		store,
		WithIngestLogger(testLogger()),
		WithSchedulerConfig(fastSchedulerConfig()),
		WithWriterConfig(fastWriterConfig()),
	)
}

func TestIngestServiceProcessesAllChunks(t *testing.T) {
	source := &stubSource{chunks: makeChunks(120)}
	embedder := &scriptedEmbedder{}
	store := newStubStore()
	service := newTestService(source, embedder, store)

	result, err := service.Ingest(context.Background(), IngestParams{SkipExisting: true})
	require.NoError(t, err)

	assert.Equal(t, 120, result.TotalChunks)
	assert.Equal(t, 120, result.ProcessedChunks)
	assert.Equal(t, 5, result.Batches)
	assert.False(t, result.Skipped)
	assert.Equal(t, int64(120), result.FinalCount)
	assert.NotEqual(t, uuid.Nil, result.RunID)
}

func TestIngestServiceSkipsWhenStoreAlreadyPopulated(t *testing.T) {
	source := &stubSource{chunks: makeChunks(120)}
	embedder := &scriptedEmbedder{}
	store := newStubStore()
	populated := int64(120)
	store.countOverride = &populated

	service := newTestService(source, embedder, store)

	result, err := service.Ingest(context.Background(), IngestParams{SkipExisting: true})
	require.NoError(t, err)

	// 埋め込み呼び出しは一切発生しない（疎通確認も含む）
	assert.True(t, result.Skipped)
	assert.Zero(t, embedder.batchCalls)
	assert.Zero(t, store.insertCalls)
	assert.Equal(t, int64(120), result.FinalCount)
}

func TestIngestServiceReingestsWhenSkipExistingDisabled(t *testing.T) {
	source := &stubSource{chunks: makeChunks(50)}
	embedder := &scriptedEmbedder{}
	store := newStubStore()
	populated := int64(50)
	store.countOverride = &populated

	service := newTestService(source, embedder, store)

	result, err := service.Ingest(context.Background(), IngestParams{SkipExisting: false})
	require.NoError(t, err)

	assert.False(t, result.Skipped)
	assert.Equal(t, 50, result.ProcessedChunks)
	assert.Positive(t, embedder.batchCalls)
}

func TestIngestServiceClipsToMaxDocuments(t *testing.T) {
	source := &stubSource{chunks: makeChunks(120)}
	embedder := &scriptedEmbedder{}
	store := newStubStore()
	service := newTestService(source, embedder, store)

	result, err := service.Ingest(context.Background(), IngestParams{MaxDocuments: 50})
	require.NoError(t, err)

	assert.Equal(t, 50, result.TotalChunks)
	assert.Equal(t, 50, result.ProcessedChunks)
	require.Len(t, store.records, 50)
}

func TestIngestServiceFailsWhenConnectionProbeFails(t *testing.T) {
	source := &stubSource{chunks: makeChunks(10)}
	embedder := &scriptedEmbedder{probeFail: true}
	store := newStubStore()
	service := newTestService(source, embedder, store)

	_, err := service.Ingest(context.Background(), IngestParams{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbedderUnavailable)
	assert.Equal(t, embedding.FailureFatal, embedding.Classify(err))
	assert.Zero(t, store.insertCalls)
}

func TestIngestServiceReturnsSummaryOnFailure(t *testing.T) {
	source := &stubSource{chunks: makeChunks(50)}
	fatal := embedding.NewFatalError(errors.New("invalid model"))
	embedder := &scriptedEmbedder{
		// 疎通確認1回 + バッチ1成功 + バッチ2致命的エラー
		script: []error{nil, nil, fatal},
	}
	store := newStubStore()
	service := newTestService(source, embedder, store)

	result, err := service.Ingest(context.Background(), IngestParams{})
	require.Error(t, err)

	// 失敗時も部分実行のサマリが返る
	require.NotNil(t, result)
	assert.Equal(t, 50, result.TotalChunks)
	assert.Equal(t, 25, result.ProcessedChunks)
	assert.Equal(t, 1, result.Batches)
	assert.Equal(t, int64(25), result.FinalCount)
	assert.NotEmpty(t, result.String())
}

// blockingCountStore はCount呼び出しがcontextの期限まで応答しないストア
type blockingCountStore struct {
	*stubStore
}

func (s *blockingCountStore) Count(ctx context.Context) (int64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func TestIngestServiceSkipCheckCountHasIndependentTimeout(t *testing.T) {
	source := &stubSource{chunks: makeChunks(10)}
	store := &blockingCountStore{stubStore: newStubStore()}

	writerConfig := fastWriterConfig()
	writerConfig.CallTimeout = 20 * time.Millisecond

	service := NewIngestService(
		source,
		&scriptedEmbedder{},
		store,
		WithIngestLogger(testLogger()),
		WithSchedulerConfig(fastSchedulerConfig()),
		WithWriterConfig(writerConfig),
	)

	// 親contextは生きたままでも、件数照会は個別タイムアウトで打ち切られる
	start := time.Now()
	_, err := service.Ingest(context.Background(), IngestParams{SkipExisting: true})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to query store count")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, elapsed, time.Second)
}

func TestIngestServicePropagatesSourceFailure(t *testing.T) {
	source := &stubSource{err: errors.New("file unreadable")}
	service := newTestService(source, &scriptedEmbedder{}, newStubStore())

	_, err := service.Ingest(context.Background(), IngestParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list chunks")
}
