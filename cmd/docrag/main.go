package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	appcli "github.com/jonataserpa/docrag/internal/app/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 構造化ログの設定
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	app := &cli.Command{
		Name:  "docrag",
		Usage: "ドキュメントチャンクの埋め込みパイプラインとベクトル検索",
		Commands: []*cli.Command{
			{
				Name:  "ingest",
				Usage: "JSONLチャンクファイルを埋め込みストアへ投入",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "環境変数ファイルパス",
						Value: ".env",
					},
					&cli.StringFlag{
						Name:     "file",
						Usage:    "チャンクJSONLファイルパス",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "1バッチあたりのチャンク数（未指定時は設定値）",
					},
					&cli.IntFlag{
						Name:  "max-documents",
						Usage: "処理するチャンク数の上限（未指定時は設定値）",
					},
					&cli.BoolFlag{
						Name:  "skip-existing",
						Usage: "ストア件数が期待値以上の場合は埋め込みをスキップ（未指定時は設定値）",
					},
				},
				Action: appcli.IngestAction,
			},
			{
				Name:  "search",
				Usage: "ベクトル検索を実行",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "環境変数ファイルパス",
						Value: ".env",
					},
					&cli.StringFlag{
						Name:     "query",
						Usage:    "検索クエリ",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "max-results",
						Usage: "結果件数の上限（最大20）",
					},
					&cli.FloatFlag{
						Name:  "score-threshold",
						Usage: "距離しきい値（0-1）",
					},
					&cli.StringFlag{
						Name:  "source-filter",
						Usage: "由来ファイル名の部分一致フィルタ",
					},
				},
				Action: appcli.SearchAction,
			},
			{
				Name:  "status",
				Usage: "ストアの疎通とドキュメント数を表示",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "環境変数ファイルパス",
						Value: ".env",
					},
				},
				Action: appcli.StatusAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
