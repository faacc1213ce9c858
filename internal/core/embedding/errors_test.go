package embedding

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{
			name: "rate limit error",
			err:  NewRateLimitError(errors.New("429 too many requests")),
			want: FailureRateLimit,
		},
		{
			name: "transient error",
			err:  NewTransientError(errors.New("connection reset")),
			want: FailureTransient,
		},
		{
			name: "fatal error",
			err:  NewFatalError(errors.New("invalid api key")),
			want: FailureFatal,
		},
		{
			name: "wrapped classified error",
			err:  fmt.Errorf("batch 3 failed: %w", NewFatalError(errors.New("bad model"))),
			want: FailureFatal,
		},
		{
			name: "deadline exceeded is transient",
			err:  context.DeadlineExceeded,
			want: FailureTransient,
		},
		{
			name: "unclassified error defaults to transient",
			err:  errors.New("something unexpected"),
			want: FailureTransient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestClassifiedErrorUnwrap(t *testing.T) {
	cause := errors.New("underlying failure")
	err := NewTransientError(cause)

	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "transient")
	assert.Contains(t, err.Error(), "underlying failure")
}

func TestClassifySurvivesMultipleWrapping(t *testing.T) {
	inner := NewRateLimitError(errors.New("quota exceeded"))
	wrapped := fmt.Errorf("run failed: %w", fmt.Errorf("batch 1: %w", inner))

	assert.Equal(t, FailureRateLimit, Classify(wrapped))
	require.ErrorIs(t, wrapped, inner)
}
