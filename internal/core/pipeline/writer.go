package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonataserpa/docrag/internal/core/document"
)

const (
	// DefaultSubBatchSize はストア書き込みのデフォルトサブバッチサイズ
	DefaultSubBatchSize = 50
	// DefaultSubBatchPause はサブバッチ間のデフォルト待機時間
	DefaultSubBatchPause = 150 * time.Millisecond
	// DefaultStoreCallTimeout はストア呼び出し1回あたりのタイムアウト
	DefaultStoreCallTimeout = 30 * time.Second
)

// WriterConfig はストア書き込みの設定
type WriterConfig struct {
	// SubBatchSize は1回のバルク書き込みに含めるレコード数
	SubBatchSize int
	// SubBatchPause はサブバッチ間の待機時間（ストア過負荷の回避）
	SubBatchPause time.Duration
	// CallTimeout はストア呼び出し1回あたりのタイムアウト
	CallTimeout time.Duration
}

// DefaultWriterConfig はデフォルトの書き込み設定を返す
func DefaultWriterConfig() *WriterConfig {
	return &WriterConfig{
		SubBatchSize:  DefaultSubBatchSize,
		SubBatchPause: DefaultSubBatchPause,
		CallTimeout:   DefaultStoreCallTimeout,
	}
}

// StoreWriter はEmbeddedRecordをサブバッチ単位でベクトルストアへ永続化する
// 各サブバッチの書き込み後にストアのドキュメント数を照会し、期待累計との
// 差分を警告として記録する（ストア側の重複排除・結果整合は許容）
type StoreWriter struct {
	store  VectorStore
	config *WriterConfig
	logger *slog.Logger
}

// NewStoreWriter は新しいStoreWriterを作成する
func NewStoreWriter(store VectorStore, config *WriterConfig, logger *slog.Logger) *StoreWriter {
	if config == nil {
		config = DefaultWriterConfig()
	}
	if config.SubBatchSize < 1 {
		config.SubBatchSize = DefaultSubBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &StoreWriter{
		store:  store,
		config: config,
		logger: logger,
	}
}

// Write はレコードをサブバッチ単位で書き込み、書き込んだ件数を返す
// expectedBase は書き込み開始前のストア側の期待ドキュメント数
// キャンセルはサブバッチ境界でのみ反映される（処理中のサブバッチは完了させる）
func (w *StoreWriter) Write(ctx context.Context, records []*document.EmbeddedRecord, expectedBase int64) (int, error) {
	if len(records) == 0 {
		return 0, fmt.Errorf("no records to write")
	}

	written := 0
	for start := 0; start < len(records); start += w.config.SubBatchSize {
		// サブバッチ境界でのキャンセル判定
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		// 2番目以降のサブバッチの前に小休止
		if start > 0 && w.config.SubBatchPause > 0 {
			if err := sleepContext(ctx, w.config.SubBatchPause); err != nil {
				return written, err
			}
		}

		end := start + w.config.SubBatchSize
		if end > len(records) {
			end = len(records)
		}
		subBatch := records[start:end]

		if err := w.insertSubBatch(ctx, subBatch); err != nil {
			return written, fmt.Errorf("failed to insert sub-batch [%d:%d]: %w", start, end, err)
		}
		written += len(subBatch)

		// 書き込み後の件数検証（advisory: 不一致は警告のみ）
		w.verifyCount(ctx, expectedBase+int64(written))
	}

	return written, nil
}

// insertSubBatch は1サブバッチを独立したタイムアウト付きで書き込む
func (w *StoreWriter) insertSubBatch(ctx context.Context, subBatch []*document.EmbeddedRecord) error {
	callCtx, cancel := context.WithTimeout(ctx, w.config.CallTimeout)
	defer cancel()

	return w.store.BulkInsert(callCtx, subBatch)
}

// verifyCount はストア報告のドキュメント数を期待累計と比較する
func (w *StoreWriter) verifyCount(ctx context.Context, expected int64) {
	callCtx, cancel := context.WithTimeout(ctx, w.config.CallTimeout)
	defer cancel()

	count, err := w.store.Count(callCtx)
	if err != nil {
		w.logger.Warn("ドキュメント数の照会に失敗（書き込みは継続）",
			"error", err,
		)
		return
	}

	if count < expected {
		w.logger.Warn("ストア報告のドキュメント数が期待値を下回っています",
			"expected", expected,
			"actual", count,
		)
		return
	}

	w.logger.Debug("書き込み検証完了",
		"expected", expected,
		"actual", count,
	)
}

// sleepContext はcontextのキャンセルを尊重して待機する
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
