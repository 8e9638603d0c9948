package invoices

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNumericFormattersKeepColumnPrecision(t *testing.T) {
	require.Equal(t, "2.3300", toQuantity(2.33))
	require.Equal(t, "0.1250", toQuantity(0.125))
	require.Equal(t, "291.25", toNumeric(291.25))
}
