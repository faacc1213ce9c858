package embedding

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RateLimiter はEmbedding APIへのリクエストレートを分あたり件数で制限する
//
// トークンは経過時間に比例して連続的に補充され、上限までのバーストを
// 許容する。サーバ側のレート制限（429）に先回りしてクライアント側で
// リクエストを平滑化するためのもので、スケジューラの60秒停止とは独立に機能する
type RateLimiter struct {
	mu sync.Mutex

	// requestsPerMinute は1分あたりの許可リクエスト数
	requestsPerMinute int

	// available は現在利用可能なトークン数（補充の連続性のため小数で保持）
	available float64

	// lastRefill は最後に補充を反映した時刻
	lastRefill time.Time

	// waiting はトークン待ちのリクエスト数
	waiting int

	// inFlight は実行中のAPI呼び出しを数えるセマフォ
	inFlight chan struct{}
}

// NewRateLimiter は新しいRateLimiterを作成する
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		available:         float64(requestsPerMinute),
		lastRefill:        time.Now(),
		inFlight:          make(chan struct{}, requestsPerMinute),
	}
}

// Wait はトークンが利用可能になるまで待機し、実行権限を取得する
// contextがキャンセルされた場合は取得済みのセマフォを解放してエラーを返す
func (rl *RateLimiter) Wait(ctx context.Context) error {
	select {
	case rl.inFlight <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	for {
		rl.mu.Lock()
		rl.refill()
		if rl.available >= 1 {
			rl.available--
			rl.mu.Unlock()
			return nil
		}

		wait := rl.untilNextToken()
		rl.waiting++
		rl.mu.Unlock()

		if err := rl.sleep(ctx, wait); err != nil {
			rl.mu.Lock()
			rl.waiting--
			rl.mu.Unlock()
			<-rl.inFlight
			return err
		}

		rl.mu.Lock()
		rl.waiting--
		rl.mu.Unlock()
	}
}

// Release は実行権限を解放する
// Wait()の後に必ず呼ぶこと（通常はdefer文で）
func (rl *RateLimiter) Release() {
	<-rl.inFlight
}

// refill は前回補充からの経過時間に比例してトークンを補充する
// 呼び出し側でロックを取得していることを前提とする
func (rl *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(rl.lastRefill)
	if elapsed <= 0 {
		return
	}

	rl.available += elapsed.Minutes() * float64(rl.requestsPerMinute)
	if rl.available > float64(rl.requestsPerMinute) {
		rl.available = float64(rl.requestsPerMinute)
	}
	rl.lastRefill = now
}

// untilNextToken は次の1トークンが補充されるまでの時間を返す
// 呼び出し側でロックを取得していることを前提とする
func (rl *RateLimiter) untilNextToken() time.Duration {
	deficit := 1 - rl.available
	perToken := time.Minute / time.Duration(rl.requestsPerMinute)
	return time.Duration(deficit * float64(perToken))
}

// sleep はcontextのキャンセルを尊重して待機する
func (rl *RateLimiter) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetStatus は現在の状態を返す（デバッグ・監視用）
func (rl *RateLimiter) GetStatus() RateLimiterStatus {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()

	return RateLimiterStatus{
		MaxRequestsPerMinute: rl.requestsPerMinute,
		AvailableTokens:      int(rl.available),
		WaitingRequests:      rl.waiting,
		ActiveRequests:       len(rl.inFlight),
	}
}

// RateLimiterStatus はレート制限の状態
type RateLimiterStatus struct {
	MaxRequestsPerMinute int
	AvailableTokens      int
	WaitingRequests      int
	ActiveRequests       int
}

// String はステータスを文字列表現で返す
func (s RateLimiterStatus) String() string {
	return fmt.Sprintf(
		"RateLimiter: max=%d/min, available=%d, waiting=%d, active=%d",
		s.MaxRequestsPerMinute,
		s.AvailableTokens,
		s.WaitingRequests,
		s.ActiveRequests,
	)
}

// ThrottledEmbedder はレート制限付きのEmbedder
type ThrottledEmbedder struct {
	embedder    Embedder
	rateLimiter *RateLimiter
}

// NewThrottledEmbedder はレート制限付きのEmbedderを作成する
func NewThrottledEmbedder(embedder Embedder, maxRequestsPerMinute int) *ThrottledEmbedder {
	return &ThrottledEmbedder{
		embedder:    embedder,
		rateLimiter: NewRateLimiter(maxRequestsPerMinute),
	}
}

// Embed はレート制限に従って単一テキストを埋め込む
func (te *ThrottledEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := te.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}
	defer te.rateLimiter.Release()

	return te.embedder.Embed(ctx, text)
}

// BatchEmbed はレート制限に従ってバッチを埋め込む
func (te *ThrottledEmbedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := te.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}
	defer te.rateLimiter.Release()

	return te.embedder.BatchEmbed(ctx, texts)
}

// TestConnection は下位Embedderの疎通確認を行う（スロットリング対象外）
func (te *ThrottledEmbedder) TestConnection(ctx context.Context) bool {
	return te.embedder.TestConnection(ctx)
}

// ModelName はモデル名を返す
func (te *ThrottledEmbedder) ModelName() string {
	return te.embedder.ModelName()
}

// Dimension はベクトル次元数を返す
func (te *ThrottledEmbedder) Dimension() int {
	return te.embedder.Dimension()
}

// GetRateLimiterStatus はレート制限の状態を返す
func (te *ThrottledEmbedder) GetRateLimiterStatus() RateLimiterStatus {
	return te.rateLimiter.GetStatus()
}

// インターフェース実装の確認
var _ Embedder = (*ThrottledEmbedder)(nil)
