package document

import (
	"context"
	"errors"
)

// ErrChunkNotFound は指定IDのチャンクが存在しない場合のエラー
var ErrChunkNotFound = errors.New("chunk not found")

// ChunkSource は分割済みチャンクの供給元インターフェース
// コアは安定した順序での列挙と一意なIDのみを要求する
// テスト時のモック用に消費者側で定義
type ChunkSource interface {
	// ListChunks は安定した順序でチャンク一覧を返す
	ListChunks(ctx context.Context) ([]*Chunk, error)
	// ReadChunk はIDで単一チャンクを取得する
	ReadChunk(ctx context.Context, id string) (*Chunk, error)
}
