package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonataserpa/docrag/internal/core/embedding"
	"github.com/jonataserpa/docrag/internal/infra/openai"
	"github.com/jonataserpa/docrag/internal/infra/postgres"
	"github.com/jonataserpa/docrag/internal/platform/logger"
	"github.com/jonataserpa/docrag/pkg/config"
	"github.com/jonataserpa/docrag/pkg/db"
)

// MaxSearchResults は検索APIへ渡すmaxResultsの上限
// エンジン自身はクランプしないため、この層で制限する
const MaxSearchResults = 20

// AppContext はコマンド実行に必要な共通コンテキストを保持する
type AppContext struct {
	Config   *config.Config
	Logger   *slog.Logger
	DB       *db.DB
	Store    *postgres.Store
	Embedder embedding.Embedder
}

// NewAppContext は設定ファイルを読み込み、DBに接続して AppContext を作成する
func NewAppContext(ctx context.Context, envFile string) (*AppContext, error) {
	// 設定の読み込み
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	// ロガーの初期化
	appLogger := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	// データベース接続
	database, err := db.New(ctx, db.ConnectionParams{
		Host:           cfg.Database.Host,
		Port:           cfg.Database.Port,
		User:           cfg.Database.User,
		Password:       cfg.Database.Password,
		DBName:         cfg.Database.DBName,
		SSLMode:        cfg.Database.SSLMode,
		MaxConns:       cfg.Database.MaxConns,
		ConnectTimeout: cfg.Database.ConnectTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	// ベクトルストアの初期化
	store := postgres.NewStore(database.Pool)
	if err := store.EnsureSchema(ctx, cfg.OpenAI.EmbeddingDimension); err != nil {
		database.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	// Embedderの初期化（RPM設定時はスロットリングを適用）
	var embedder embedding.Embedder = openai.NewEmbedder(
		cfg.OpenAI.APIKey,
		openai.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
		openai.WithEmbeddingDimension(cfg.OpenAI.EmbeddingDimension),
	)
	if cfg.OpenAI.RequestsPerMinute > 0 {
		embedder = embedding.NewThrottledEmbedder(embedder, cfg.OpenAI.RequestsPerMinute)
	}

	return &AppContext{
		Config:   cfg,
		Logger:   appLogger,
		DB:       database,
		Store:    store,
		Embedder: embedder,
	}, nil
}

// Close はAppContextが保持するリソースをクリーンアップする
// 成功・失敗どちらの経路でも呼び出すこと（通常はdefer文で）
func (ac *AppContext) Close() {
	if ac.DB != nil {
		ac.DB.Close()
	}
}
