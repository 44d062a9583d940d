package repo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatLimitOffset(t *testing.T) {
	require.Equal(t, "LIMIT 10 OFFSET 5", FormatLimitOffset(10, 5))
	require.Equal(t, "LIMIT 10", FormatLimitOffset(10, 0))
	require.Equal(t, "OFFSET 5", FormatLimitOffset(0, 5))
	require.Empty(t, FormatLimitOffset(0, -1))
}
