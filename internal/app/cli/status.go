package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"
)

// StatusAction はストアの疎通とドキュメント数を表示するコマンドのアクション
func StatusAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if err := appCtx.Store.Ping(ctx); err != nil {
		slog.Error("ストアとの疎通確認に失敗しました", "error", err)
		return err
	}

	count, err := appCtx.Store.Count(ctx)
	if err != nil {
		slog.Error("ドキュメント数の取得に失敗しました", "error", err)
		return err
	}

	fmt.Printf("Store: ok | documents: %d | model: %s (dim=%d)\n",
		count,
		appCtx.Config.OpenAI.EmbeddingModel,
		appCtx.Config.OpenAI.EmbeddingDimension,
	)

	return nil
}
