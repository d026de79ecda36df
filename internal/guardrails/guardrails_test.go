package guardrails

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLockExpired(t *testing.T) {
	l := Limits{ScopeLockTTLTicks: 3}
	require.False(t, LockExpired(10, 12, l))
	require.False(t, LockExpired(10, 13, l))
	require.True(t, LockExpired(10, 14, l))
	require.True(t, LockExpired(10, 20, l))
}

func TestLockExpired_DisabledWhenZero(t *testing.T) {
	l := Limits{ScopeLockTTLTicks: 0}
	require.False(t, LockExpired(0, 1_000_000, l))
}

func TestRetryExhausted(t *testing.T) {
	l := Limits{MaxRetry: 3}
	require.False(t, RetryExhausted(2, l))
	require.False(t, RetryExhausted(3, l))
	require.True(t, RetryExhausted(4, l))
}

func TestClassify(t *testing.T) {
	l := Limits{ConfidenceHigh: 0.8, ConfidenceLow: 0.5}
	require.Equal(t, BandHigh, Classify(0.8, l))
	require.Equal(t, BandHigh, Classify(0.95, l))
	require.Equal(t, BandMid, Classify(0.6, l))
	require.Equal(t, BandLow, Classify(0.5-0.001, l))
	require.Equal(t, BandLow, Classify(0.0, l))
}

func TestBudget_Exhausted_Tokens(t *testing.T) {
	b := NewBudget(Limits{MaxTokensTotal: 100})
	b.Record(50, 0)
	require.False(t, b.Exhausted())
	b.Record(50, 0)
	require.True(t, b.Exhausted())
}

func TestBudget_Exhausted_Dollars(t *testing.T) {
	b := NewBudget(Limits{MaxBudgetUSD: 1.0})
	b.Record(0, 0.5)
	require.False(t, b.Exhausted())
	b.Record(0, 0.6)
	require.True(t, b.Exhausted())
}

func TestBudget_Unbounded(t *testing.T) {
	b := NewBudget(Limits{})
	b.Record(1_000_000, 1_000_000)
	require.False(t, b.Exhausted())
}

func TestBudget_Spent(t *testing.T) {
	b := NewBudget(DefaultLimits())
	b.Record(10, 0.25)
	b.Record(5, 0.1)
	tokens, dollars := b.Spent()
	require.Equal(t, int64(15), tokens)
	require.InDelta(t, 0.35, dollars, 1e-9)
}
