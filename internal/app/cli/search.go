package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/jonataserpa/docrag/internal/core/search"
)

// SearchAction はベクトル検索を実行するコマンドのアクション
func SearchAction(ctx context.Context, cmd *cli.Command) error {
	query := cmd.String("query")
	sourceFilter := cmd.String("source-filter")
	envFile := cmd.String("env")

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	// maxResultsはこの層で上限へクランプする
	maxResults, clamped := clampMaxResults(int(cmd.Int("max-results")), appCtx.Config.Search.MaxResults)
	if clamped {
		slog.Warn("max-resultsを上限へクランプ",
			"requested", cmd.Int("max-results"),
			"max", MaxSearchResults,
		)
	}

	// しきい値0は有効な値のため、フラグの明示指定で判定する
	scoreThreshold := appCtx.Config.Search.ScoreThreshold
	if cmd.IsSet("score-threshold") {
		scoreThreshold = cmd.Float("score-threshold")
	}

	params := search.SearchParams{
		Query:          query,
		MaxResults:     maxResults,
		ScoreThreshold: &scoreThreshold,
	}
	if sourceFilter != "" {
		params.Filter = &search.SearchFilter{SourceContains: &sourceFilter}
	}

	service := search.NewSearchService(
		appCtx.Store,
		appCtx.Embedder,
		search.WithSearchLogger(appCtx.Logger),
	)

	results, err := service.Search(ctx, params)
	if err != nil {
		slog.Error("検索に失敗しました", "error", err)
		return err
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	for i, result := range results {
		fmt.Printf("%d. [%s] score=%.4f source=%s chunk=%d/%d\n",
			i+1,
			result.Relevance,
			result.Score,
			result.Metadata.Source,
			result.Metadata.ChunkIndex+1,
			result.Metadata.TotalChunks,
		)
		fmt.Printf("   %s\n", truncate(result.Content, 200))
	}

	return nil
}

// truncate は表示用に文字列を切り詰める
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
