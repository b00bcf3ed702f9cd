package scrape

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdentityKeyStableAcrossRuns(t *testing.T) {
	t.Parallel()

	a := IdentityKey("src-1", "https://x.com/jobs/42", "Engineer", "X", "Berlin")
	b := IdentityKey("src-1", "https://x.com/jobs/42", "Engineer", "X", "Berlin")
	require.Equal(t, a, b)
}

func TestIdentityKeyIgnoresTitleWhenURLPresent(t *testing.T) {
	t.Parallel()

	a := IdentityKey("src-1", "https://x.com/jobs/42", "Engineer", "X", "Berlin")
	b := IdentityKey("src-1", "https://x.com/jobs/42", "Senior Engineer", "X", "Berlin")
	require.Equal(t, a, b)
}

func TestIdentityKeyFallsBackToFields(t *testing.T) {
	t.Parallel()

	a := IdentityKey("src-1", "", "Engineer", "X", "Berlin")
	b := IdentityKey("src-1", "", "  engineer ", "x", "berlin")
	c := IdentityKey("src-1", "", "Designer", "X", "Berlin")
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}

func TestIdentityKeyDiffersAcrossSources(t *testing.T) {
	t.Parallel()

	a := IdentityKey("src-1", "https://x.com/jobs/42", "", "", "")
	b := IdentityKey("src-2", "https://x.com/jobs/42", "", "", "")
	require.NotEqual(t, a, b)
}
