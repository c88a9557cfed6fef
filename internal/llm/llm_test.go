package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStatusError_Classification(t *testing.T) {
	require.True(t, IsTransient(StatusError("test", 500, "boom")))
	require.True(t, IsTransient(StatusError("test", 503, "boom")))
	require.True(t, IsTransient(StatusError("test", 429, "slow down")))
	require.False(t, IsTransient(StatusError("test", 400, "bad request")))
	require.False(t, IsTransient(StatusError("test", 401, "unauthorized")))
}

func TestRetry_ExhaustsAfterThreeAttempts(t *testing.T) {
	retryBaseDelay = time.Millisecond
	t.Cleanup(func() { retryBaseDelay = time.Second })

	attempts := 0
	_, err := Retry(context.Background(), "test", func() (Completion, error) {
		attempts++
		return Completion{}, Transient(errors.New("always down"))
	})
	require.Error(t, err)
	require.Equal(t, 3, attempts)
}

func TestRetry_FatalStopsImmediately(t *testing.T) {
	attempts := 0
	_, err := Retry(context.Background(), "test", func() (Completion, error) {
		attempts++
		return Completion{}, errors.New("bad request")
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

func TestRetry_SucceedsAfterTransient(t *testing.T) {
	retryBaseDelay = time.Millisecond
	t.Cleanup(func() { retryBaseDelay = time.Second })

	attempts := 0
	comp, err := Retry(context.Background(), "test", func() (Completion, error) {
		attempts++
		if attempts < 2 {
			return Completion{}, Transient(errors.New("flaky"))
		}
		return Completion{Usage: Usage{PromptTokens: 1}}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, attempts)
	require.Equal(t, 1, comp.Usage.PromptTokens)
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	_, err := Retry(ctx, "test", func() (Completion, error) {
		return Completion{}, Transient(errors.New("down"))
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, time.Since(start), time.Second)
}

func TestCost_FlatRate(t *testing.T) {
	u := Usage{PromptTokens: 1_000_000, CompletionTokens: 100_000, CachedTokens: 200_000}
	got := Cost("gemini-2.5-flash", u)
	want := 800_000/1e6*0.30 + 100_000/1e6*2.50 + 200_000/1e6*0.03
	require.InDelta(t, want, got, 1e-9)
}

func TestCost_HighTierAboveThreshold(t *testing.T) {
	u := Usage{PromptTokens: 300_000, CompletionTokens: 10_000, CachedTokens: 50_000}
	got := Cost("google/gemini-3-pro", u)
	want := 250_000/1e6*4.00 + 10_000/1e6*18.00 + 50_000/1e6*0.40
	require.InDelta(t, want, got, 1e-9)
}

func TestCost_ThresholdBoundaryUsesBaseRate(t *testing.T) {
	u := Usage{PromptTokens: HighTierThreshold, CompletionTokens: 1000}
	got := Cost("gemini-3-pro", u)
	want := 200_000/1e6*2.00 + 1000/1e6*12.00
	require.InDelta(t, want, got, 1e-9)
}

func TestCost_UnknownModel(t *testing.T) {
	require.Zero(t, Cost("mystery-model", Usage{PromptTokens: 1000}))
}
