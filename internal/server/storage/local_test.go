package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/cryptexdrive/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocal(t *testing.T) (*Local, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "uploads")
	l, err := NewLocal(root)
	require.NoError(t, err)
	return l, root
}

func TestLocal_SaveReadOverwrite(t *testing.T) {
	l, root := newLocal(t)
	ctx := context.Background()

	require.NoError(t, l.Save(ctx, "alice", "a.txt", []byte("one")))
	require.NoError(t, l.Save(ctx, "alice", "a.txt", []byte("two")))

	got, err := l.Read(ctx, "alice", "a.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got)

	entries, err := os.ReadDir(filepath.Join(root, "alice"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestLocal_ReadMissing(t *testing.T) {
	l, _ := newLocal(t)

	_, err := l.Read(context.Background(), "alice", "nope")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestLocal_List(t *testing.T) {
	l, root := newLocal(t)
	ctx := context.Background()

	names, err := l.List(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, names)
	assert.Empty(t, names)

	require.NoError(t, l.Save(ctx, "alice", "b.txt", []byte("b")))
	require.NoError(t, l.Save(ctx, "alice", "a.txt", []byte("a")))
	require.NoError(t, os.Mkdir(filepath.Join(root, "alice", "sub"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(root, "alice", tempPrefix+"123"), []byte("partial"), 0o600))

	names, err = l.List(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, names)
}

func TestLocal_Delete(t *testing.T) {
	l, _ := newLocal(t)
	ctx := context.Background()

	require.NoError(t, l.Save(ctx, "alice", "a.txt", []byte("a")))
	require.NoError(t, l.Delete(ctx, "alice", "a.txt"))
	assert.ErrorIs(t, l.Delete(ctx, "alice", "a.txt"), common.ErrorNotFound)
}

func TestLocal_RejectsTraversal(t *testing.T) {
	l, _ := newLocal(t)
	ctx := context.Background()

	assert.ErrorIs(t, l.Save(ctx, "alice", "../bob", []byte("x")), common.ErrInvalidName)
	assert.ErrorIs(t, l.Save(ctx, "..", "x", []byte("x")), common.ErrInvalidName)
	_, err := l.Read(ctx, "alice", "..")
	assert.ErrorIs(t, err, common.ErrInvalidName)
}
