package pipeline

import (
	"context"

	"github.com/jonataserpa/docrag/internal/core/document"
)

// VectorStore はベクトルストアへの書き込み・集計アクセスを提供するインターフェース
// テスト時のモック用に消費者側で定義
type VectorStore interface {
	// BulkInsert はレコードを一括登録する（同一IDはupsert）
	BulkInsert(ctx context.Context, records []*document.EmbeddedRecord) error
	// Count はストアが報告するドキュメント数を返す
	Count(ctx context.Context) (int64, error)
	// Ping はストアとの疎通を確認する
	Ping(ctx context.Context) error
}
