package memory

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/valdt/dotmatrix/dotmatrix/snapshot"
)

func encodeComponent(t *testing.T, s snapshot.Serializable) []byte {
	t.Helper()
	blob, err := snapshot.Encode(s)
	require.NoError(t, err)
	return blob
}

func decodeComponent(t *testing.T, s snapshot.Serializable, blob []byte) {
	t.Helper()
	require.NoError(t, snapshot.Decode(blob, s))
}
