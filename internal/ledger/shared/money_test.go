package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRound2(t *testing.T) {
	require.Equal(t, 10.57, Round2(10.565))
	require.Equal(t, 0.1, Round2(0.1))
	require.Equal(t, -2.35, Round2(-2.345))
}

func TestSum2AvoidsFloatDrift(t *testing.T) {
	// 0.1 added ten times drifts with raw float64 arithmetic.
	values := make([]float64, 10)
	for i := range values {
		values[i] = 0.1
	}
	require.Equal(t, 1.0, Sum2(values...))
}

func TestWithinEpsilon(t *testing.T) {
	require.True(t, WithinEpsilon(100.00, 100.01))
	require.True(t, WithinEpsilon(100.01, 100.00))
	require.False(t, WithinEpsilon(100.00, 100.02))
}

func TestBalanced(t *testing.T) {
	require.True(t, Balanced(500.00, 500.00))
	require.True(t, Balanced(500.00, 500.004))
	require.False(t, Balanced(500.00, 500.02))
}
