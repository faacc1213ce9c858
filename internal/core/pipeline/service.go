package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jonataserpa/docrag/internal/core/document"
	"github.com/jonataserpa/docrag/internal/core/embedding"
)

// ErrEmbedderUnavailable はEmbedding APIの疎通確認に失敗した場合のエラー
var ErrEmbedderUnavailable = errors.New("embedding API connection test failed")

// IngestParams はインジェスト実行のパラメータ
type IngestParams struct {
	// MaxDocuments は処理するチャンク数の上限（0以下で無制限）
	MaxDocuments int
	// SkipExisting はストア件数が期待値以上の場合に埋め込みをスキップする
	SkipExisting bool
}

// IngestResult はインジェスト実行の結果サマリ
// 失敗時も部分実行の内容を報告するために返される
type IngestResult struct {
	RunID           uuid.UUID
	TotalChunks     int
	ProcessedChunks int
	TotalBatches    int
	Batches         int
	Retries         int
	RateLimitPauses int
	FinalCount      int64
	Skipped         bool
	Duration        time.Duration
}

// String はサマリを文字列表現で返す
func (r *IngestResult) String() string {
	if r.Skipped {
		return fmt.Sprintf(
			"Ingest %s: skipped (store already holds %d documents)",
			r.RunID, r.FinalCount,
		)
	}
	return fmt.Sprintf(
		"Ingest %s: %d/%d chunks in %d/%d batches | retries=%d rateLimitPauses=%d | store count=%d | %s",
		r.RunID,
		r.ProcessedChunks,
		r.TotalChunks,
		r.Batches,
		r.TotalBatches,
		r.Retries,
		r.RateLimitPauses,
		r.FinalCount,
		r.Duration.Round(time.Millisecond),
	)
}

// IngestService はバッチ埋め込みパイプラインのユースケースを提供する
type IngestService struct {
	source          document.ChunkSource
	embedder        embedding.Embedder
	store           VectorStore
	schedulerConfig *SchedulerConfig
	writerConfig    *WriterConfig
	logger          *slog.Logger
	onProgress      ProgressFunc
}

type ingestServiceOptions struct {
	schedulerConfig *SchedulerConfig
	writerConfig    *WriterConfig
	logger          *slog.Logger
	onProgress      ProgressFunc
}

// IngestServiceOption は IngestService のオプション設定
type IngestServiceOption func(*ingestServiceOptions)

// WithIngestLogger は IngestService にロガーを設定する
func WithIngestLogger(logger *slog.Logger) IngestServiceOption {
	return func(o *ingestServiceOptions) {
		o.logger = logger
	}
}

// WithSchedulerConfig はスケジューラ設定を上書きする
func WithSchedulerConfig(cfg *SchedulerConfig) IngestServiceOption {
	return func(o *ingestServiceOptions) {
		o.schedulerConfig = cfg
	}
}

// WithWriterConfig は書き込み設定を上書きする
func WithWriterConfig(cfg *WriterConfig) IngestServiceOption {
	return func(o *ingestServiceOptions) {
		o.writerConfig = cfg
	}
}

// WithIngestProgressFunc は進捗コールバックを設定する
func WithIngestProgressFunc(fn ProgressFunc) IngestServiceOption {
	return func(o *ingestServiceOptions) {
		o.onProgress = fn
	}
}

// NewIngestService は新しいIngestServiceを作成する
func NewIngestService(
	source document.ChunkSource,
	embedder embedding.Embedder,
	store VectorStore,
	opts ...IngestServiceOption,
) *IngestService {
	options := ingestServiceOptions{
		schedulerConfig: DefaultSchedulerConfig(),
		writerConfig:    DefaultWriterConfig(),
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	if options.schedulerConfig == nil {
		options.schedulerConfig = DefaultSchedulerConfig()
	}
	if options.writerConfig == nil {
		options.writerConfig = DefaultWriterConfig()
	}

	return &IngestService{
		source:          source,
		embedder:        embedder,
		store:           store,
		schedulerConfig: options.schedulerConfig,
		writerConfig:    options.writerConfig,
		logger:          options.logger,
		onProgress:      options.onProgress,
	}
}

// Ingest はチャンク列全体を埋め込み・永続化する
// エラー時も部分実行のサマリを返す（呼び出し側は「未知の長さの
// 先頭部分が書き込み済み」として扱うこと）
func (s *IngestService) Ingest(ctx context.Context, params IngestParams) (*IngestResult, error) {
	startTime := time.Now()

	result := &IngestResult{
		RunID: uuid.New(),
	}

	chunks, err := s.source.ListChunks(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list chunks: %w", err)
	}

	if params.MaxDocuments > 0 && len(chunks) > params.MaxDocuments {
		s.logger.Info("チャンク数を上限で切り詰め",
			"total", len(chunks),
			"maxDocuments", params.MaxDocuments,
		)
		chunks = chunks[:params.MaxDocuments]
	}
	result.TotalChunks = len(chunks)

	// 実行前のストア件数でスキップ判定を行う（他の外部呼び出しと同じく個別タイムアウト付き）
	baseCount, err := s.countWithTimeout(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to query store count: %w", err)
	}
	result.FinalCount = baseCount

	if params.SkipExisting && baseCount >= int64(len(chunks)) && len(chunks) > 0 {
		// 近似的な最適化: 件数のみの比較であり内容の同一性は確認しない
		s.logger.Info("ストアは既に投入済み、埋め込みをスキップ",
			"storedCount", baseCount,
			"expectedCount", len(chunks),
		)
		result.Skipped = true
		result.Duration = time.Since(startTime)
		return result, nil
	}

	if baseCount > 0 && baseCount < int64(len(chunks)) {
		// 中断された前回実行の可能性がある（upsertにより再実行は安全）
		s.logger.Warn("ストアに部分的なデータが存在、全件を再投入",
			"storedCount", baseCount,
			"expectedCount", len(chunks),
		)
	}

	// 本実行前の疎通確認
	if !s.embedder.TestConnection(ctx) {
		return result, embedding.NewFatalError(ErrEmbedderUnavailable)
	}

	writer := NewStoreWriter(s.store, s.writerConfig, s.logger)
	scheduler := NewBatchScheduler(
		s.embedder,
		writer,
		s.schedulerConfig,
		WithSchedulerLogger(s.logger),
		WithProgressFunc(s.onProgress),
	)

	stats, runErr := scheduler.Run(ctx, chunks, baseCount)
	result.ProcessedChunks = stats.ProcessedChunks
	result.TotalBatches = stats.TotalBatches
	result.Batches = stats.CompletedBatches
	result.Retries = stats.Retries
	result.RateLimitPauses = stats.RateLimitPauses
	result.Duration = time.Since(startTime)

	// 失敗・キャンセル時もサマリ用に最終件数を取得する
	countCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.writerConfig.CallTimeout)
	defer cancel()
	if finalCount, countErr := s.store.Count(countCtx); countErr == nil {
		result.FinalCount = finalCount
	} else {
		s.logger.Warn("最終ドキュメント数の取得に失敗", "error", countErr)
	}

	if runErr != nil {
		return result, fmt.Errorf("ingest run %s failed: %w", result.RunID, runErr)
	}

	return result, nil
}

// countWithTimeout はストア件数を個別タイムアウト付きで取得する
func (s *IngestService) countWithTimeout(ctx context.Context) (int64, error) {
	countCtx, cancel := context.WithTimeout(ctx, s.writerConfig.CallTimeout)
	defer cancel()

	return s.store.Count(countCtx)
}
