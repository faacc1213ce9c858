package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonataserpa/docrag/internal/core/document"
)

func makeRecords(n int) []*document.EmbeddedRecord {
	records := make([]*document.EmbeddedRecord, n)
	for i, chunk := range makeChunks(n) {
		records[i] = &document.EmbeddedRecord{
			Chunk:              *chunk,
			Vector:             make([]float32, 3),
			EmbeddingCreatedAt: time.Now(),
		}
	}
	return records
}

func TestStoreWriterSplitsIntoSubBatches(t *testing.T) {
	store := newStubStore()
	writer := NewStoreWriter(store, fastWriterConfig(), testLogger())

	written, err := writer.Write(context.Background(), makeRecords(120), 0)
	require.NoError(t, err)

	assert.Equal(t, 120, written)
	assert.Equal(t, []int{50, 50, 20}, store.insertSizes)
	// サブバッチごとに件数検証を行う
	assert.Equal(t, 3, store.countCalls)
	require.Len(t, store.records, 120)
}

func TestStoreWriterRejectsEmptyInput(t *testing.T) {
	writer := NewStoreWriter(newStubStore(), fastWriterConfig(), testLogger())

	_, err := writer.Write(context.Background(), nil, 0)
	require.Error(t, err)
}

func TestStoreWriterCountShortfallIsAdvisory(t *testing.T) {
	store := newStubStore()
	// ストア報告の件数が常に期待値を下回るケース
	low := int64(1)
	store.countOverride = &low

	writer := NewStoreWriter(store, fastWriterConfig(), testLogger())
	written, err := writer.Write(context.Background(), makeRecords(100), 0)

	// 不一致は警告のみで書き込みは成功する
	require.NoError(t, err)
	assert.Equal(t, 100, written)
}

func TestStoreWriterCountQueryFailureIsAdvisory(t *testing.T) {
	store := newStubStore()
	store.countErr = errors.New("count unavailable")

	writer := NewStoreWriter(store, fastWriterConfig(), testLogger())
	written, err := writer.Write(context.Background(), makeRecords(10), 0)

	require.NoError(t, err)
	assert.Equal(t, 10, written)
}

func TestStoreWriterPropagatesInsertFailure(t *testing.T) {
	store := newStubStore()
	store.insertScript = []error{nil, errors.New("bulk insert failed")}

	writer := NewStoreWriter(store, fastWriterConfig(), testLogger())
	written, err := writer.Write(context.Background(), makeRecords(100), 0)

	require.Error(t, err)
	// 先頭サブバッチ分のみ書き込み済み
	assert.Equal(t, 50, written)
}

func TestStoreWriterHonorsCancellationBetweenSubBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := newStubStore()
	writer := NewStoreWriter(store, fastWriterConfig(), testLogger())

	written, err := writer.Write(ctx, makeRecords(100), 0)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, written)
	assert.Zero(t, store.insertCalls)
}
