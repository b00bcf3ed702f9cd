package adapters

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitLocationsHandlesCommonSeparators(t *testing.T) {
	t.Parallel()

	require.Equal(t,
		[]string{"Berlin", "Munich", "Remote"},
		splitLocations("Berlin; Munich / Remote"))
}

func TestMatchesLocationTermsFoldsAccents(t *testing.T) {
	t.Parallel()

	require.True(t, matchesLocationTerms([]string{"Zürich, Switzerland"}, []string{"zurich"}))
	require.False(t, matchesLocationTerms([]string{"São Paulo"}, []string{"zurich"}))
	require.True(t, matchesLocationTerms([]string{"São Paulo"}, []string{"sao paulo"}))
}

func TestMatchesLocationTermsEmptyTermsAcceptAll(t *testing.T) {
	t.Parallel()

	require.True(t, matchesLocationTerms([]string{"Anywhere"}, nil))
	require.True(t, matchesLocationTerms(nil, nil))
}
