package generic

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSortSlice(t *testing.T) {
	values := []string{"c", "a", "b"}

	SortSlice(values, false)
	require.Equal(t, []string{"a", "b", "c"}, values)

	SortSlice(values, true)
	require.Equal(t, []string{"c", "b", "a"}, values)
}
