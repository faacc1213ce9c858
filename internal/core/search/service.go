package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

const (
	// DefaultLimit はMaxResults未指定時のデフォルト候補数
	DefaultLimit = 10
	// DefaultScoreThreshold はデフォルトの距離しきい値
	DefaultScoreThreshold = 0.8
)

// Embedder はテキストのEmbedding生成インターフェース
type Embedder interface {
	// Embed は単一テキストのEmbeddingを生成する
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SearchParams は検索パラメータを表す
type SearchParams struct {
	Query string
	// MaxResults はストアへ要求する候補数（0以下でDefaultLimit）
	// 上限20へのクランプは呼び出し側レイヤーの責務
	MaxResults int
	// ScoreThreshold は生の距離に対するしきい値（nilでDefaultScoreThreshold）
	// 0は「距離0の完全一致のみ」を意味する有効な値
	ScoreThreshold *float64
	Filter         *SearchFilter
}

// SearchService は検索ランキングのビジネスロジックを提供する
type SearchService struct {
	repo     Repository
	embedder Embedder
	logger   *slog.Logger
}

type searchServiceOptions struct {
	logger *slog.Logger
}

// SearchServiceOption は SearchService のオプション設定
type SearchServiceOption func(*searchServiceOptions)

// WithSearchLogger は SearchService にロガーを設定する
func WithSearchLogger(logger *slog.Logger) SearchServiceOption {
	return func(o *searchServiceOptions) {
		o.logger = logger
	}
}

// NewSearchService は新しいSearchServiceを作成する
func NewSearchService(repo Repository, embedder Embedder, opts ...SearchServiceOption) *SearchService {
	options := searchServiceOptions{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	return &SearchService{
		repo:     repo,
		embedder: embedder,
		logger:   options.logger,
	}
}

// Search はクエリに基づいてベクトル検索を実行し、関連度付きの
// 絞り込み済み結果を返す
//
//  1. クエリをEmbeddingへ変換する
//  2. ストアへk近傍を要求する（距離は小さいほど良い）
//  3. 距離を関連度（high/medium/low）へ写像する
//  4. 距離がしきい値を超える結果を除外する
//  5. メタデータフィルタを適用する
//  6. ストアの返却順を保持して返す（再ソートしない）
func (s *SearchService) Search(ctx context.Context, params SearchParams) ([]*SearchResult, error) {
	// バリデーション
	if params.Query == "" {
		return nil, fmt.Errorf("query is required")
	}

	// クエリをEmbeddingに変換
	queryVector, err := s.embedder.Embed(ctx, params.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	// デフォルトのLimit設定
	limit := params.MaxResults
	if limit <= 0 {
		limit = DefaultLimit
	}

	// デフォルトのしきい値設定（0も有効値のためnilで判定する）
	threshold := DefaultScoreThreshold
	if params.ScoreThreshold != nil {
		threshold = *params.ScoreThreshold
	}

	candidates, err := s.repo.KNNSearch(ctx, queryVector, limit)
	if err != nil {
		return nil, fmt.Errorf("knn search failed: %w", err)
	}

	// 候補ゼロは空結果（エラーではない）
	results := make([]*SearchResult, 0, len(candidates))
	for _, candidate := range candidates {
		// しきい値は関連度段階ではなく生の距離と比較する
		if candidate.Distance > threshold {
			continue
		}

		if !matchesFilter(candidate, params.Filter) {
			continue
		}

		results = append(results, &SearchResult{
			ID:        candidate.ID,
			Content:   candidate.Content,
			Metadata:  candidate.Metadata,
			Score:     candidate.Distance,
			Relevance: RelevanceForDistance(candidate.Distance),
		})
	}

	s.logger.Debug("検索完了",
		"query", params.Query,
		"candidates", len(candidates),
		"results", len(results),
		"threshold", threshold,
	)

	return results, nil
}

// matchesFilter はメタデータフィルタとの一致を判定する
func matchesFilter(candidate *Candidate, filter *SearchFilter) bool {
	if filter == nil {
		return true
	}

	if filter.SourceContains != nil && !strings.Contains(candidate.Metadata.Source, *filter.SourceContains) {
		return false
	}

	return true
}
