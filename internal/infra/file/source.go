package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-enry/go-enry/v2"
	"github.com/google/uuid"

	"github.com/jonataserpa/docrag/internal/core/document"
)

// maxLineSize はJSONL1行の最大バイト数（大きなチャンク本文を許容する）
const maxLineSize = 4 * 1024 * 1024

// Source はJSONLファイルを読むChunkSource実装
// 1行が1チャンクに対応し、ファイル内の行順が列挙順となる
type Source struct {
	path   string
	logger *slog.Logger
}

// NewSource は新しい Source を作成する
func NewSource(path string, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		path:   path,
		logger: logger,
	}
}

// ListChunks はファイルの行順でチャンク一覧を返す
func (s *Source) ListChunks(ctx context.Context) ([]*document.Chunk, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open chunk file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	chunks := make([]*document.Chunk, 0)
	lineNo := 0
	for scanner.Scan() {
		lineNo++

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var chunk document.Chunk
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			return nil, fmt.Errorf("failed to parse chunk at line %d: %w", lineNo, err)
		}

		if chunk.Content == "" {
			s.logger.Warn("本文が空のチャンクをスキップ", "line", lineNo)
			continue
		}

		if chunk.ID == "" {
			chunk.ID = fallbackID(chunk.Metadata)
		}

		if chunk.Metadata.ContentType == "" {
			chunk.Metadata.ContentType = detectContentType(chunk.Metadata.Source, chunk.Content)
		}

		chunks = append(chunks, &chunk)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read chunk file: %w", err)
	}

	s.logger.Debug("チャンク読み込み完了",
		"path", s.path,
		"chunks", len(chunks),
	)

	return chunks, nil
}

// ReadChunk はIDで単一チャンクを取得する
func (s *Source) ReadChunk(ctx context.Context, id string) (*document.Chunk, error) {
	chunks, err := s.ListChunks(ctx)
	if err != nil {
		return nil, err
	}

	for _, chunk := range chunks {
		if chunk.ID == id {
			return chunk, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", document.ErrChunkNotFound, id)
}

// fallbackID はID欠落時に由来情報から安定IDを導出する
// 由来情報もない場合はランダムUUIDを割り当てる
func fallbackID(meta document.Metadata) string {
	if meta.Source != "" {
		return fmt.Sprintf("%s#%d", meta.Source, meta.ChunkIndex)
	}
	return uuid.NewString()
}

// detectContentType は由来ファイル名と本文からコンテンツ種別を検出する
func detectContentType(source, content string) string {
	if source == "" {
		return "text"
	}

	language := enry.GetLanguage(filepath.Base(source), []byte(content))
	if language == "" {
		return "text"
	}
	return strings.ToLower(language)
}

// インターフェース実装の確認
var _ document.ChunkSource = (*Source)(nil)
