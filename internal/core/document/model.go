package document

import "time"

// Metadata はチャンクの固定フィールドメタデータ
// 任意キーの動的バッグは持たず、由来情報のみを保持する
type Metadata struct {
	// Source は元ドキュメントの識別子（ファイル名など）
	Source string `json:"source"`
	// PageIndex は元ドキュメント内のページ番号（ページ概念がない場合はnil）
	PageIndex *int `json:"pageIndex,omitempty"`
	// ChunkIndex はドキュメント内のチャンク順序
	ChunkIndex int `json:"chunkIndex"`
	// TotalChunks はドキュメント全体のチャンク数
	TotalChunks int `json:"totalChunks"`
	// ContentType は検出されたコンテンツ種別（"text"、言語名など）
	ContentType string `json:"contentType,omitempty"`
}

// Chunk は分割済みテキストの最小単位
// Chunk Source が生成した後は不変であり、コアは読み取りのみ行う
type Chunk struct {
	ID       string   `json:"id"`
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// EmbeddedRecord はEmbedding生成済みのチャンク
// Embedding Client が生成し、以後変更されない
type EmbeddedRecord struct {
	Chunk
	Vector             []float32 `json:"vector"`
	EmbeddingCreatedAt time.Time `json:"embeddingCreatedAt"`
}
