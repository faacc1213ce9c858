package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Config はロガーの設定
// 値は環境変数（LOG_LEVEL / LOG_FORMAT）由来の文字列をそのまま受け取る
type Config struct {
	// Level は "debug" | "info" | "warn" | "error"（不明な値はinfo）
	Level string
	// Format は "json" | "text"（不明な値はjson）
	Format string
}

// New は設定に従ったロガーを作成し、デフォルトロガーとして設定します
func New(cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

// ParseLevel はレベル文字列をslog.Levelへ変換します
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
