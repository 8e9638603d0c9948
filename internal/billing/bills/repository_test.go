package bills

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNumericFormattersKeepColumnPrecision(t *testing.T) {
	// quantity 0.125 at unit price 100.00 yields amount 12.50; the fractional
	// quantity must survive the write intact.
	require.Equal(t, "0.1250", toQuantity(0.125))
	require.Equal(t, "100.0000", toQuantity(100))
	require.Equal(t, "12.50", toNumeric(12.50))
}
