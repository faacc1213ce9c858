package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/jonataserpa/docrag/internal/core/embedding"
)

const (
	// DefaultEmbeddingModel はモデル未指定時のデフォルトモデル
	DefaultEmbeddingModel = "text-embedding-3-small"
	// DefaultEmbeddingDimension はOpenAI推奨のデフォルト次元
	DefaultEmbeddingDimension = 1536
	// DefaultRequestTimeout はAPIリクエスト1回あたりのタイムアウト
	DefaultRequestTimeout = 30 * time.Second
	// MaxSubBatchSize は1リクエストに含めるテキスト数の上限
	// スケジューラのバッチより小さく保ち、ペイロードサイズを抑える
	MaxSubBatchSize = 25

	// connectionProbe は疎通確認に使う固定プローブ文字列
	connectionProbe = "connection test"
)

// Embedder は OpenAI API を使用してテキストをベクトルに変換する
// 失敗は embedding.ClassifiedError として分類して返す
type Embedder struct {
	client    openai.Client
	model     string
	dimension int
	timeout   time.Duration
}

type embedderOptions struct {
	model     string
	dimension int
	timeout   time.Duration
}

// EmbedderOption は Embedder のオプション設定
type EmbedderOption func(*embedderOptions)

// WithEmbeddingModel はモデル名を上書きする
func WithEmbeddingModel(model string) EmbedderOption {
	return func(o *embedderOptions) {
		o.model = model
	}
}

// WithEmbeddingDimension はベクトル次元を上書きする
func WithEmbeddingDimension(dimension int) EmbedderOption {
	return func(o *embedderOptions) {
		o.dimension = dimension
	}
}

// WithRequestTimeout はリクエストタイムアウトを上書きする
func WithRequestTimeout(timeout time.Duration) EmbedderOption {
	return func(o *embedderOptions) {
		o.timeout = timeout
	}
}

// NewEmbedder は新しい Embedder を作成する
func NewEmbedder(apiKey string, opts ...EmbedderOption) *Embedder {
	options := embedderOptions{
		model:     DefaultEmbeddingModel,
		dimension: DefaultEmbeddingDimension,
		timeout:   DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Embedder{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
		),
		model:     options.model,
		dimension: options.dimension,
		timeout:   options.timeout,
	}
}

// Embed は単一テキストの Embedding を生成する
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.BatchEmbed(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	if len(embeddings) == 0 {
		return nil, embedding.NewTransientError(fmt.Errorf("no embeddings generated"))
	}

	return embeddings[0], nil
}

// BatchEmbed はバッチで Embedding を生成する
// 入力はMaxSubBatchSizeごとのサブバッチへ分割され、1サブバッチにつき
// 1回のAPI呼び出し（独立したタイムアウト付き）を行う
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, embedding.NewFatalError(fmt.Errorf("no texts provided"))
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += MaxSubBatchSize {
		end := start + MaxSubBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		subVectors, err := e.embedSubBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, subVectors...)
	}

	return vectors, nil
}

// embedSubBatch は1サブバッチのEmbeddingを生成する
func (e *Embedder) embedSubBatch(ctx context.Context, texts []string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
	}

	if len(texts) == 1 {
		params.Input = openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(texts[0]),
		}
	} else {
		params.Input = openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		}
	}

	if e.dimension > 0 {
		params.Dimensions = openai.Int(int64(e.dimension))
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.Embeddings.New(callCtx, params)
	if err != nil {
		return nil, classifyAPIError(err)
	}

	if len(resp.Data) != len(texts) {
		return nil, embedding.NewTransientError(
			fmt.Errorf("incomplete embedding response: expected %d, got %d", len(texts), len(resp.Data)),
		)
	}

	vectors := make([][]float32, 0, len(resp.Data))
	for _, data := range resp.Data {
		// 次元の不一致は致命的エラー（切り詰め・パディングはしない）
		if e.dimension > 0 && len(data.Embedding) != e.dimension {
			return nil, embedding.NewFatalError(
				fmt.Errorf("embedding dimension mismatch: expected %d, got %d", e.dimension, len(data.Embedding)),
			)
		}

		vector := make([]float32, len(data.Embedding))
		for i, v := range data.Embedding {
			vector[i] = float32(v)
		}
		vectors = append(vectors, vector)
	}

	return vectors, nil
}

// TestConnection は固定プローブ文字列を埋め込み、疎通を確認する
func (e *Embedder) TestConnection(ctx context.Context) bool {
	_, err := e.Embed(ctx, connectionProbe)
	return err == nil
}

// ModelName はモデル名を返す
func (e *Embedder) ModelName() string {
	return e.model
}

// Dimension はベクトル次元数を返す
func (e *Embedder) Dimension() int {
	return e.dimension
}

// classifyAPIError はOpenAI APIのエラーをFailureKindへ分類する
// ステータスコードのみで判定し、メッセージ文字列には依存しない
func classifyAPIError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return embedding.NewTransientError(err)
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429:
			return embedding.NewRateLimitError(err)
		case apiErr.StatusCode == 400 || apiErr.StatusCode == 401 ||
			apiErr.StatusCode == 403 || apiErr.StatusCode == 404 ||
			apiErr.StatusCode == 422:
			// 認証失敗・モデル名不正・ペイロード不正
			return embedding.NewFatalError(err)
		case apiErr.StatusCode >= 500:
			return embedding.NewTransientError(err)
		}
	}

	// ネットワークエラー等は一時的エラーとして扱う
	return embedding.NewTransientError(err)
}

// インターフェース実装の確認
var _ embedding.Embedder = (*Embedder)(nil)
