package txn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArenaAllocNeverNil(t *testing.T) {
	var a Arena
	buf := a.Alloc(0)
	assert.NotNil(t, buf)
	assert.Len(t, buf, 0)
}

func TestArenaReusesBacking(t *testing.T) {
	var a Arena
	first := a.Alloc(64)
	require.Len(t, first, 64)

	second := a.Alloc(32)
	assert.Len(t, second, 32)
	// Same backing array: the arena recycles, callers copy out.
	assert.Equal(t, &first[0], &second[0])
}

func TestArenaCopy(t *testing.T) {
	var a Arena
	out := a.Copy([]byte("scratch"))
	assert.Equal(t, []byte("scratch"), out)
}

func TestTxnLifecycle(t *testing.T) {
	keys, records := &Arena{}, &Arena{}
	tx := Begin(Temporary, keys, records)
	assert.True(t, tx.Temporary())
	assert.Same(t, keys, tx.KeyArena)
	require.NoError(t, tx.Commit())

	tx2 := Begin(0, keys, records)
	assert.False(t, tx2.Temporary())
	require.NoError(t, tx2.Abort())
}
