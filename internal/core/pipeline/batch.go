package pipeline

import (
	"time"

	"github.com/jonataserpa/docrag/internal/core/document"
)

// BatchJob は1スケジューリングサイクル分のチャンク断片 [start, end)
// 永続化されず、サイクル終了とともに破棄される
type BatchJob struct {
	// Chunks はこのバッチに属するチャンク（入力順）
	Chunks []*document.Chunk
	// BatchIndex は1始まりのバッチ番号
	BatchIndex int
	// Attempt は一時的エラーによるリトライ回数
	Attempt int
}

// partitionChunks はチャンク列をバッチサイズBごとに分割する
// N件の入力に対して ⌈N/B⌉ 個のバッチを入力順で返す（重複・欠落なし）
func partitionChunks(chunks []*document.Chunk, batchSize int) []BatchJob {
	if batchSize < 1 {
		batchSize = 1
	}

	jobs := make([]BatchJob, 0, (len(chunks)+batchSize-1)/batchSize)
	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		jobs = append(jobs, BatchJob{
			Chunks:     chunks[start:end],
			BatchIndex: len(jobs) + 1,
		})
	}

	return jobs
}

// pacingDelay はバッチ投入前のペーシング遅延を返す
// 1番目のバッチは遅延なし、2番目以降は min(i*unit, max) で単調増加する
func pacingDelay(batchIndex int, unit, max time.Duration) time.Duration {
	if batchIndex <= 1 {
		return 0
	}

	delay := time.Duration(batchIndex) * unit
	if delay > max {
		delay = max
	}
	return delay
}

// backoffDelay は一時的エラーのリトライ待機時間を返す（2^attempt * unit）
func backoffDelay(attempt int, unit time.Duration) time.Duration {
	return time.Duration(1<<attempt) * unit
}
