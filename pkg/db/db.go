package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// DefaultMaxConns はプールの最大接続数のデフォルト
	// バルク書き込みとKNN検索が同じプールを共有する前提の値
	DefaultMaxConns = 4
	// DefaultConnectTimeout は接続確立のデフォルトタイムアウト
	DefaultConnectTimeout = 30 * time.Second
)

// DB はベクトルストアへの接続プールを保持します
type DB struct {
	Pool *pgxpool.Pool
}

// ConnectionParams はデータベース接続パラメータ
type ConnectionParams struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	// MaxConns はプールの最大接続数（0以下でDefaultMaxConns）
	MaxConns int
	// ConnectTimeout は接続確立のタイムアウト（0以下でDefaultConnectTimeout）
	ConnectTimeout time.Duration
}

// New は新しいデータベース接続プールを作成し、疎通を確認します
func New(ctx context.Context, params ConnectionParams) (*DB, error) {
	poolConfig, err := newPoolConfig(params)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// 疎通確認も接続タイムアウトの範囲内で行う
	pingCtx, cancel := context.WithTimeout(ctx, poolConfig.ConnConfig.ConnectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// newPoolConfig は接続パラメータからプール設定を組み立てます
func newPoolConfig(params ConnectionParams) (*pgxpool.Config, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		params.Host,
		params.Port,
		params.User,
		params.Password,
		params.DBName,
		params.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection params: %w", err)
	}

	maxConns := params.MaxConns
	if maxConns < 1 {
		maxConns = DefaultMaxConns
	}
	poolConfig.MaxConns = int32(maxConns)

	connectTimeout := params.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	poolConfig.ConnConfig.ConnectTimeout = connectTimeout

	return poolConfig, nil
}

// Close はデータベース接続を閉じます
func (db *DB) Close() {
	db.Pool.Close()
}
