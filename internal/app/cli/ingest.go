package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/jonataserpa/docrag/internal/core/pipeline"
	"github.com/jonataserpa/docrag/internal/infra/file"
)

// IngestAction はJSONLチャンクファイルを埋め込み・永続化するコマンドのアクション
func IngestAction(ctx context.Context, cmd *cli.Command) error {
	chunkFile := cmd.String("file")
	envFile := cmd.String("env")

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	// フラグ未指定時は設定値へフォールバックする
	pipelineCfg := appCtx.Config.Pipeline
	batchSize := resolveInt(int(cmd.Int("batch-size")), pipelineCfg.BatchSize)
	maxDocuments := resolveInt(int(cmd.Int("max-documents")), pipelineCfg.MaxDocuments)
	skipExisting := resolveBool(cmd.IsSet("skip-existing"), cmd.Bool("skip-existing"), pipelineCfg.SkipExisting)

	slog.Info("インジェスト処理を開始",
		"file", chunkFile,
		"batchSize", batchSize,
		"maxDocuments", maxDocuments,
		"skipExisting", skipExisting,
	)

	schedulerConfig := pipeline.DefaultSchedulerConfig()
	schedulerConfig.BatchSize = batchSize
	schedulerConfig.MaxRetries = pipelineCfg.MaxRetries

	source := file.NewSource(chunkFile, appCtx.Logger)
	service := pipeline.NewIngestService(
		source,
		appCtx.Embedder,
		appCtx.Store,
		pipeline.WithIngestLogger(appCtx.Logger),
		pipeline.WithSchedulerConfig(schedulerConfig),
	)

	result, runErr := service.Ingest(ctx, pipeline.IngestParams{
		MaxDocuments: maxDocuments,
		SkipExisting: skipExisting,
	})

	// 部分実行でもサマリは必ず表示する
	fmt.Println(result.String())

	if runErr != nil {
		slog.Error("インジェスト処理に失敗しました", "error", runErr)
		return runErr
	}

	slog.Info("インジェスト処理が完了しました",
		"runID", result.RunID,
		"processedChunks", result.ProcessedChunks,
		"finalCount", result.FinalCount,
		"duration", result.Duration,
	)
	return nil
}
