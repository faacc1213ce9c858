package embedding

import (
	"context"
	"errors"
	"fmt"
)

// FailureKind はEmbedding API呼び出し失敗の分類を表す
// リトライ制御はメッセージ文字列ではなくこの型のswitchで行う
type FailureKind string

const (
	// FailureRateLimit はレート制限エラー（HTTP 429 / 明示的なスロットリング）
	FailureRateLimit FailureKind = "rate_limit"
	// FailureTransient は一時的エラー（タイムアウト・5xx・不完全なレスポンス）
	FailureTransient FailureKind = "transient"
	// FailureFatal は回復不能なエラー（認証失敗・モデル名不正・ペイロード不正）
	FailureFatal FailureKind = "fatal"
)

// ClassifiedError は分類済みのEmbedding失敗
type ClassifiedError struct {
	Kind FailureKind
	Err  error
}

// Error はエラーメッセージを返す
func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("embedding %s error: %v", e.Kind, e.Err)
}

// Unwrap は元のエラーを返す
func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// NewRateLimitError はレート制限エラーを生成する
func NewRateLimitError(err error) *ClassifiedError {
	return &ClassifiedError{Kind: FailureRateLimit, Err: err}
}

// NewTransientError は一時的エラーを生成する
func NewTransientError(err error) *ClassifiedError {
	return &ClassifiedError{Kind: FailureTransient, Err: err}
}

// NewFatalError は回復不能エラーを生成する
func NewFatalError(err error) *ClassifiedError {
	return &ClassifiedError{Kind: FailureFatal, Err: err}
}

// Classify はエラーからFailureKindを取り出す
// 未分類のエラーは一時的エラーとして扱う（ネットワーク起因を想定）
func Classify(err error) FailureKind {
	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.Kind
	}

	// 個別タイムアウトは一時的エラー
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTransient
	}

	return FailureTransient
}
