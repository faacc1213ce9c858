package search

import (
	"time"

	"github.com/jonataserpa/docrag/internal/core/document"
)

// Relevance は距離スコアから導出される3段階の関連度
type Relevance string

const (
	// RelevanceHigh は距離 0.3 以下
	RelevanceHigh Relevance = "high"
	// RelevanceMedium は距離 0.3 超 0.6 以下
	RelevanceMedium Relevance = "medium"
	// RelevanceLow は距離 0.6 超
	RelevanceLow Relevance = "low"
)

// 関連度境界値
// 固定の3段階ステップ関数であり、互換性のため変更してはならない
const (
	HighRelevanceMaxDistance   = 0.3
	MediumRelevanceMaxDistance = 0.6
)

// RelevanceForDistance は距離を関連度へ写像する純粋関数
// 境界値は下位側の段階に含まれる（0.3→high、0.6→medium）
func RelevanceForDistance(distance float64) Relevance {
	switch {
	case distance <= HighRelevanceMaxDistance:
		return RelevanceHigh
	case distance <= MediumRelevanceMaxDistance:
		return RelevanceMedium
	default:
		return RelevanceLow
	}
}

// Candidate はストアが返す (ドキュメント, 距離) ペア
// 距離は小さいほど良い（cosine距離系）
type Candidate struct {
	ID                 string
	Content            string
	Metadata           document.Metadata
	EmbeddingCreatedAt time.Time
	Distance           float64
}

// SearchResult はランキング後の検索結果
// Score は生の距離であり、関連度とは独立にしきい値フィルタへ使われる
type SearchResult struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Metadata  document.Metadata `json:"metadata"`
	Score     float64           `json:"score"`
	Relevance Relevance         `json:"relevance"`
}

// SearchFilter は検索時の任意フィルタを表す
type SearchFilter struct {
	// SourceContains はメタデータのSourceフィールドに対する部分一致
	SourceContains *string
}
