package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonataserpa/docrag/internal/core/document"
	"github.com/jonataserpa/docrag/internal/core/embedding"
)

const (
	// DefaultBatchSize はスケジューラのデフォルトバッチサイズ
	DefaultBatchSize = 25
	// DefaultMaxRetries は一時的エラーのデフォルトリトライ上限
	DefaultMaxRetries = 3
	// DefaultPacingUnit はペーシング遅延の基底時間（バッチ番号×この値）
	DefaultPacingUnit = time.Second
	// DefaultPacingMax はペーシング遅延の上限
	DefaultPacingMax = 10 * time.Second
	// DefaultBackoffUnit はExponential Backoffの基底時間
	DefaultBackoffUnit = time.Second
	// DefaultRateLimitPause はレート制限検出時のパイプライン全体の停止時間
	DefaultRateLimitPause = 60 * time.Second
)

// SchedulerConfig はバッチスケジューラの設定
type SchedulerConfig struct {
	// BatchSize は1バッチあたりのチャンク数（1以上）
	BatchSize int
	// MaxRetries は一時的エラーに対するバッチあたりのリトライ上限
	MaxRetries int
	// PacingUnit はバッチ間ペーシングの基底時間
	PacingUnit time.Duration
	// PacingMax はバッチ間ペーシングの上限
	PacingMax time.Duration
	// BackoffUnit はリトライバックオフの基底時間
	BackoffUnit time.Duration
	// RateLimitPause はレート制限検出時の停止時間
	RateLimitPause time.Duration
}

// DefaultSchedulerConfig はデフォルトのスケジューラ設定を返す
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		BatchSize:      DefaultBatchSize,
		MaxRetries:     DefaultMaxRetries,
		PacingUnit:     DefaultPacingUnit,
		PacingMax:      DefaultPacingMax,
		BackoffUnit:    DefaultBackoffUnit,
		RateLimitPause: DefaultRateLimitPause,
	}
}

// normalize は不正な設定値をデフォルトへ丸める
func (c *SchedulerConfig) normalize() {
	if c.BatchSize < 1 {
		c.BatchSize = DefaultBatchSize
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.PacingUnit <= 0 {
		c.PacingUnit = DefaultPacingUnit
	}
	if c.PacingMax <= 0 {
		c.PacingMax = DefaultPacingMax
	}
	if c.BackoffUnit <= 0 {
		c.BackoffUnit = DefaultBackoffUnit
	}
	if c.RateLimitPause <= 0 {
		c.RateLimitPause = DefaultRateLimitPause
	}
}

// Progress はバッチ処理の進捗状況
type Progress struct {
	// BatchIndex は完了したバッチ番号（1始まり）
	BatchIndex int
	// TotalBatches は総バッチ数
	TotalBatches int
	// Processed は処理済みチャンク数
	Processed int
	// Total は総チャンク数
	Total int
}

// Percentage は進捗率を返す
func (p Progress) Percentage() float64 {
	if p.Total == 0 {
		return 100.0
	}
	return float64(p.Processed) / float64(p.Total) * 100
}

// String は進捗を文字列表現で返す
func (p Progress) String() string {
	return fmt.Sprintf(
		"Batch %d/%d | %d/%d chunks (%.1f%%)",
		p.BatchIndex,
		p.TotalBatches,
		p.Processed,
		p.Total,
		p.Percentage(),
	)
}

// ProgressFunc は進捗更新時に呼ばれるコールバック
type ProgressFunc func(progress Progress)

// RunStats はスケジューラ実行の統計情報
type RunStats struct {
	// TotalChunks は入力チャンク数
	TotalChunks int
	// ProcessedChunks は埋め込み・永続化まで完了したチャンク数
	ProcessedChunks int
	// TotalBatches は総バッチ数
	TotalBatches int
	// CompletedBatches は完了したバッチ数
	CompletedBatches int
	// Retries は一時的エラーによるリトライ回数
	Retries int
	// RateLimitPauses はレート制限による停止回数
	RateLimitPauses int
}

// BatchScheduler はチャンク列を固定サイズのバッチへ分割し、バッチごとに
// Embedding生成→ストア書き込みを厳密な入力順・逐次で駆動する
//
// バッチ間にはペーシング遅延を挟み、失敗はEmbedding境界で分類された
// FailureKindに応じてリトライ・停止・即時中断を切り替える
type BatchScheduler struct {
	embedder   embedding.Embedder
	writer     *StoreWriter
	config     *SchedulerConfig
	logger     *slog.Logger
	onProgress ProgressFunc
}

type schedulerOptions struct {
	logger     *slog.Logger
	onProgress ProgressFunc
}

// SchedulerOption は BatchScheduler のオプション設定
type SchedulerOption func(*schedulerOptions)

// WithSchedulerLogger は BatchScheduler にロガーを設定する
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(o *schedulerOptions) {
		o.logger = logger
	}
}

// WithProgressFunc は進捗コールバックを設定する
func WithProgressFunc(fn ProgressFunc) SchedulerOption {
	return func(o *schedulerOptions) {
		o.onProgress = fn
	}
}

// NewBatchScheduler は新しいBatchSchedulerを作成する
func NewBatchScheduler(
	embedder embedding.Embedder,
	writer *StoreWriter,
	config *SchedulerConfig,
	opts ...SchedulerOption,
) *BatchScheduler {
	if config == nil {
		config = DefaultSchedulerConfig()
	}
	config.normalize()

	options := schedulerOptions{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	return &BatchScheduler{
		embedder:   embedder,
		writer:     writer,
		config:     config,
		logger:     options.logger,
		onProgress: options.onProgress,
	}
}

// Run はチャンク列全体をバッチ処理する
// baseCount は実行開始前のストア側ドキュメント数（件数検証の基準値）
// エラー時も統計は返す（既に完了したバッチはロールバックされない）
func (s *BatchScheduler) Run(ctx context.Context, chunks []*document.Chunk, baseCount int64) (*RunStats, error) {
	jobs := partitionChunks(chunks, s.config.BatchSize)

	stats := &RunStats{
		TotalChunks:  len(chunks),
		TotalBatches: len(jobs),
	}

	if len(jobs) == 0 {
		return stats, nil
	}

	s.logger.Info("バッチ処理を開始",
		"totalChunks", stats.TotalChunks,
		"totalBatches", stats.TotalBatches,
		"batchSize", s.config.BatchSize,
	)

	for i := range jobs {
		job := &jobs[i]

		// キャンセルはバッチ境界でのみ反映する
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		// 2番目以降のバッチの前にペーシング遅延を挟む
		if delay := pacingDelay(job.BatchIndex, s.config.PacingUnit, s.config.PacingMax); delay > 0 {
			s.logger.Debug("ペーシング待機",
				"batchIndex", job.BatchIndex,
				"delay", delay,
			)
			if err := sleepContext(ctx, delay); err != nil {
				return stats, err
			}
		}

		if err := s.processBatchWithRetry(ctx, job, stats, baseCount); err != nil {
			return stats, err
		}

		stats.ProcessedChunks += len(job.Chunks)
		stats.CompletedBatches++

		s.emitProgress(job.BatchIndex, stats)
	}

	s.logger.Info("バッチ処理が完了",
		"processedChunks", stats.ProcessedChunks,
		"batches", stats.CompletedBatches,
		"retries", stats.Retries,
	)

	return stats, nil
}

// processBatchWithRetry は1バッチを失敗分類に応じたリトライ付きで処理する
//
//   - rate-limit: パイプライン全体をRateLimitPauseだけ停止し、リトライ予算外で
//     同一バッチを一度だけ再試行する。2度目のレート制限はそのバッチで致命的
//   - transient: 2^attempt * BackoffUnit のバックオフでMaxRetriesまで再試行
//   - fatal: 即時中断（完了済みバッチはそのまま残る）
func (s *BatchScheduler) processBatchWithRetry(ctx context.Context, job *BatchJob, stats *RunStats, baseCount int64) error {
	rateLimitRetried := false

	for {
		err := s.processBatch(ctx, job, baseCount+int64(stats.ProcessedChunks))
		if err == nil {
			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		switch embedding.Classify(err) {
		case embedding.FailureFatal:
			return fmt.Errorf("batch %d failed with fatal error: %w", job.BatchIndex, err)

		case embedding.FailureRateLimit:
			if rateLimitRetried {
				return fmt.Errorf("batch %d rate limited twice, aborting run: %w", job.BatchIndex, err)
			}
			rateLimitRetried = true
			stats.RateLimitPauses++

			s.logger.Warn("レート制限を検出、パイプラインを一時停止",
				"batchIndex", job.BatchIndex,
				"pause", s.config.RateLimitPause,
				"error", err,
			)
			if sleepErr := sleepContext(ctx, s.config.RateLimitPause); sleepErr != nil {
				return sleepErr
			}

		case embedding.FailureTransient:
			job.Attempt++
			if job.Attempt > s.config.MaxRetries {
				return fmt.Errorf("batch %d exhausted retry budget (%d attempts): %w", job.BatchIndex, job.Attempt, err)
			}
			stats.Retries++

			delay := backoffDelay(job.Attempt, s.config.BackoffUnit)
			s.logger.Warn("一時的エラーを検出、バックオフ後に再試行",
				"batchIndex", job.BatchIndex,
				"attempt", job.Attempt,
				"backoff", delay,
				"error", err,
			)
			if sleepErr := sleepContext(ctx, delay); sleepErr != nil {
				return sleepErr
			}
		}
	}
}

// processBatch は1バッチのEmbedding生成とストア書き込みを順に実行する
func (s *BatchScheduler) processBatch(ctx context.Context, job *BatchJob, expectedBase int64) error {
	texts := make([]string, len(job.Chunks))
	for i, chunk := range job.Chunks {
		texts[i] = chunk.Content
	}

	vectors, err := s.embedder.BatchEmbed(ctx, texts)
	if err != nil {
		return fmt.Errorf("batch embed failed: %w", err)
	}

	if len(vectors) != len(job.Chunks) {
		return embedding.NewTransientError(
			fmt.Errorf("embedding count mismatch: expected %d, got %d", len(job.Chunks), len(vectors)),
		)
	}

	now := time.Now()
	records := make([]*document.EmbeddedRecord, len(job.Chunks))
	for i, chunk := range job.Chunks {
		records[i] = &document.EmbeddedRecord{
			Chunk:              *chunk,
			Vector:             vectors[i],
			EmbeddingCreatedAt: now,
		}
	}

	if _, err := s.writer.Write(ctx, records, expectedBase); err != nil {
		return fmt.Errorf("store write failed: %w", err)
	}

	return nil
}

// emitProgress は進捗をログとコールバックへ通知する
func (s *BatchScheduler) emitProgress(batchIndex int, stats *RunStats) {
	progress := Progress{
		BatchIndex:   batchIndex,
		TotalBatches: stats.TotalBatches,
		Processed:    stats.ProcessedChunks,
		Total:        stats.TotalChunks,
	}

	s.logger.Info("バッチ完了",
		"batchIndex", progress.BatchIndex,
		"totalBatches", progress.TotalBatches,
		"processed", progress.Processed,
		"total", progress.Total,
		"percentage", fmt.Sprintf("%.1f%%", progress.Percentage()),
	)

	if s.onProgress != nil {
		s.onProgress(progress)
	}
}
