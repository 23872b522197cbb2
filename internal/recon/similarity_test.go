package recon

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSimilarityIdentical(t *testing.T) {
	require.InDelta(t, 100.0, Similarity("john smith", "john smith"), 0.001)
}

func TestSimilarityCaseInsensitive(t *testing.T) {
	require.InDelta(t, 100.0, Similarity("JOHN SMITH", "john smith"), 0.001)
}

func TestSimilarityEmpty(t *testing.T) {
	require.InDelta(t, 0.0, Similarity("", "john"), 0.001)
	require.InDelta(t, 0.0, Similarity("john", ""), 0.001)
	require.InDelta(t, 100.0, Similarity("", ""), 0.001)
}

func TestSimilarityPartial(t *testing.T) {
	// "wor" plus "d" common over 9 total characters.
	require.InDelta(t, 88.888, Similarity("word", "world"), 0.01)
}

func TestSimilarityDisjoint(t *testing.T) {
	require.InDelta(t, 0.0, Similarity("abc", "xyz"), 0.001)
}

func TestSimilarityTrimsWhitespace(t *testing.T) {
	require.InDelta(t, 100.0, Similarity("  john smith ", "john smith"), 0.001)
}
