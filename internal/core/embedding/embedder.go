package embedding

import "context"

// Embedder はテキストのEmbedding生成インターフェース
// 実装はエラーをClassifiedErrorとして分類して返す
type Embedder interface {
	// Embed は単一テキストのEmbeddingを生成する
	Embed(ctx context.Context, text string) ([]float32, error)
	// BatchEmbed は複数テキストのEmbeddingを入力順で生成する
	// 返却ベクトル数は入力数と一致し、各ベクトルはDimension()の次元を持つ
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)
	// TestConnection は固定のプローブ文字列を埋め込み、疎通を確認する
	TestConnection(ctx context.Context) bool
	// ModelName はモデル名を返す
	ModelName() string
	// Dimension はベクトル次元数を返す
	Dimension() int
}
