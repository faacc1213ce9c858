package openai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/stretchr/testify/assert"

	"github.com/jonataserpa/docrag/internal/core/embedding"
)

func TestNewEmbedderDefaults(t *testing.T) {
	embedder := NewEmbedder("test-api-key")

	assert.Equal(t, DefaultEmbeddingModel, embedder.ModelName())
	assert.Equal(t, DefaultEmbeddingDimension, embedder.Dimension())
	assert.Equal(t, DefaultRequestTimeout, embedder.timeout)
}

func TestNewEmbedderWithOptions(t *testing.T) {
	embedder := NewEmbedder(
		"test-api-key",
		WithEmbeddingModel("text-embedding-3-large"),
		WithEmbeddingDimension(3072),
		WithRequestTimeout(5*time.Second),
	)

	assert.Equal(t, "text-embedding-3-large", embedder.ModelName())
	assert.Equal(t, 3072, embedder.Dimension())
	assert.Equal(t, 5*time.Second, embedder.timeout)
}

func TestBatchEmbedRejectsEmptyInput(t *testing.T) {
	embedder := NewEmbedder("test-api-key")

	_, err := embedder.BatchEmbed(context.Background(), nil)
	assert.Error(t, err)
	assert.Equal(t, embedding.FailureFatal, embedding.Classify(err))
}

func TestClassifyAPIError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want embedding.FailureKind
	}{
		{
			name: "429 is rate limit",
			err:  &openai.Error{StatusCode: 429},
			want: embedding.FailureRateLimit,
		},
		{
			name: "400 is fatal",
			err:  &openai.Error{StatusCode: 400},
			want: embedding.FailureFatal,
		},
		{
			name: "401 is fatal",
			err:  &openai.Error{StatusCode: 401},
			want: embedding.FailureFatal,
		},
		{
			name: "404 is fatal",
			err:  &openai.Error{StatusCode: 404},
			want: embedding.FailureFatal,
		},
		{
			name: "500 is transient",
			err:  &openai.Error{StatusCode: 500},
			want: embedding.FailureTransient,
		},
		{
			name: "503 is transient",
			err:  &openai.Error{StatusCode: 503},
			want: embedding.FailureTransient,
		},
		{
			name: "deadline exceeded is transient",
			err:  context.DeadlineExceeded,
			want: embedding.FailureTransient,
		},
		{
			name: "cancellation is transient",
			err:  context.Canceled,
			want: embedding.FailureTransient,
		},
		{
			name: "plain network error is transient",
			err:  errors.New("dial tcp: connection refused"),
			want: embedding.FailureTransient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := classifyAPIError(tt.err)
			assert.Equal(t, tt.want, embedding.Classify(classified))
			// 元のエラーはUnwrapで辿れる
			assert.ErrorIs(t, classified, tt.err)
		})
	}
}
