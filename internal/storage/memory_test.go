package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCopiesValues(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	value := []byte("abc")
	require.NoError(t, m.Put(ctx, "k", value))
	value[0] = 'x'

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))

	got[1] = 'y'
	again, _ := m.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestOpenBackends(t *testing.T) {
	kv, err := Open(BackendMemory, "")
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, kv)

	kv, err = Open(BackendSQLite, t.TempDir())
	require.NoError(t, err)
	defer kv.Close()
	assert.IsType(t, &SQLite{}, kv)

	_, err = Open("etcd", "")
	assert.Error(t, err)
}
