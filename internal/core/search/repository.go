package search

import "context"

// Repository はベクトルストアの近傍検索アクセスを提供するインターフェース
// テスト時のモック用に消費者側で定義
type Repository interface {
	// KNNSearch はクエリベクトルのk近傍を距離昇順で返す
	KNNSearch(ctx context.Context, queryVector []float32, k int) ([]*Candidate, error)
}
