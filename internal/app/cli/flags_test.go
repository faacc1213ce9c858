package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampMaxResults(t *testing.T) {
	tests := []struct {
		name          string
		requested     int
		configDefault int
		want          int
		wantClamped   bool
	}{
		{"within limit", 10, 20, 10, false},
		{"exactly at limit", MaxSearchResults, 20, MaxSearchResults, false},
		{"above limit is clamped", 50, 20, MaxSearchResults, true},
		{"zero falls back to config", 0, 10, 10, false},
		{"negative falls back to config", -5, 10, 10, false},
		{"config default above limit is clamped too", 0, 100, MaxSearchResults, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, clamped := clampMaxResults(tt.requested, tt.configDefault)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantClamped, clamped)
		})
	}
}

func TestResolveInt(t *testing.T) {
	assert.Equal(t, 10, resolveInt(10, 25))
	// 未指定（0以下）は設定値へフォールバック
	assert.Equal(t, 25, resolveInt(0, 25))
	assert.Equal(t, 25, resolveInt(-1, 25))
}

func TestResolveBool(t *testing.T) {
	// フラグが明示されていれば設定値より優先される
	assert.False(t, resolveBool(true, false, true))
	assert.True(t, resolveBool(true, true, false))
	// 未指定なら設定値が使われる
	assert.True(t, resolveBool(false, false, true))
	assert.False(t, resolveBool(false, true, false))
}
