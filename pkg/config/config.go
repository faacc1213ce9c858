package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// Database設定
	Database DatabaseConfig

	// OpenAI設定（Embeddings用）
	OpenAI OpenAIConfig

	// Pipeline設定（バッチ処理）
	Pipeline PipelineConfig

	// Search設定
	Search SearchConfig

	// Log設定
	Log LogConfig
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	// MaxConns はプールの最大接続数
	MaxConns int
	// ConnectTimeout は接続確立のタイムアウト
	ConnectTimeout time.Duration
}

// LogConfig はロガーの設定
type LogConfig struct {
	// Level は "debug" | "info" | "warn" | "error"
	Level string
	// Format は "json" | "text"
	Format string
}

// OpenAIConfig はOpenAI API設定（Embeddings用）
type OpenAIConfig struct {
	APIKey             string
	EmbeddingModel     string
	EmbeddingDimension int
	// RequestsPerMinute は0以下で無制限
	RequestsPerMinute int
}

// PipelineConfig はバッチ埋め込みパイプラインの設定
type PipelineConfig struct {
	BatchSize    int
	MaxRetries   int
	MaxDocuments int
	SkipExisting bool
}

// SearchConfig は検索デフォルト設定
type SearchConfig struct {
	ScoreThreshold float64
	MaxResults     int
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "docrag"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "docrag"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 4),
			ConnectTimeout: time.Duration(
				getEnvAsInt("DB_CONNECT_TIMEOUT_SECONDS", 30),
			) * time.Second,
		},
		OpenAI: OpenAIConfig{
			APIKey:             getEnv("OPENAI_API_KEY", ""),
			EmbeddingModel:     getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimension: getEnvAsInt("OPENAI_EMBEDDING_DIMENSION", 1536),
			RequestsPerMinute:  getEnvAsInt("OPENAI_REQUESTS_PER_MINUTE", 0),
		},
		Pipeline: PipelineConfig{
			BatchSize:    getEnvAsInt("PIPELINE_BATCH_SIZE", 25),
			MaxRetries:   getEnvAsInt("PIPELINE_MAX_RETRIES", 3),
			MaxDocuments: getEnvAsInt("PIPELINE_MAX_DOCUMENTS", 1000),
			SkipExisting: getEnvAsBool("PIPELINE_SKIP_EXISTING", true),
		},
		Search: SearchConfig{
			ScoreThreshold: getEnvAsFloat("SEARCH_SCORE_THRESHOLD", 0.8),
			MaxResults:     getEnvAsInt("SEARCH_MAX_RESULTS", 20),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat は環境変数を浮動小数点数として取得します
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool は環境変数を真偽値として取得します
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
