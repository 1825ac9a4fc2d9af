package filesystem

import (
	"testing"

	"github.com/brettbedarf/tecnicofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_AllocateFirstFit(t *testing.T) {
	t.Parallel()

	table := NewTable(3, 2)

	for want := range 3 {
		got, err := table.Allocate(tecnicofs.FileNode)
		require.NoError(t, err)
		assert.Equal(t, tecnicofs.Inumber(want), got)
	}
	assert.Equal(t, 3, table.Allocated())

	_, err := table.Allocate(tecnicofs.FileNode)
	assert.ErrorIs(t, err, tecnicofs.ErrOutOfSpace)

	require.NoError(t, table.Free(1))
	got, err := table.Allocate(tecnicofs.DirNode)
	require.NoError(t, err)
	assert.Equal(t, tecnicofs.Inumber(1), got, "freed slot must be reused first")
	assert.True(t, table.inode(1).isDir())
}

func TestTable_GenerationBumpsOnReuse(t *testing.T) {
	t.Parallel()

	table := NewTable(1, 1)
	inum, err := table.Allocate(tecnicofs.FileNode)
	require.NoError(t, err)
	first := table.inode(inum).gen

	require.NoError(t, table.Free(inum))
	inum, err = table.Allocate(tecnicofs.FileNode)
	require.NoError(t, err)

	assert.Greater(t, table.inode(inum).gen, first)
}

func TestTable_FreeErrors(t *testing.T) {
	t.Parallel()

	table := NewTable(2, 1)

	assert.ErrorIs(t, table.Free(0), tecnicofs.ErrNotFound, "free slot")
	assert.ErrorIs(t, table.Free(-1), tecnicofs.ErrNotFound, "negative inumber")
	assert.ErrorIs(t, table.Free(2), tecnicofs.ErrNotFound, "past the end")
	assert.Equal(t, 0, table.Allocated())
}

func TestTable_Get(t *testing.T) {
	t.Parallel()

	table := NewTable(2, 1)
	_, err := table.Allocate(tecnicofs.DirNode)
	require.NoError(t, err)

	ino, err := table.Get(0)
	require.NoError(t, err)
	assert.Equal(t, tecnicofs.DirNode, ino.Kind())

	_, err = table.Get(5)
	assert.ErrorIs(t, err, tecnicofs.ErrNotFound)
}

func TestTable_Destroy(t *testing.T) {
	t.Parallel()

	table := NewTable(4, 2)
	for range 4 {
		_, err := table.Allocate(tecnicofs.DirNode)
		require.NoError(t, err)
	}

	table.Destroy()

	assert.Equal(t, 0, table.Allocated())
	for i := range table.Size() {
		assert.Equal(t, tecnicofs.NoNode, table.inode(tecnicofs.Inumber(i)).Kind())
	}
}

func TestInode_DirEntries(t *testing.T) {
	t.Parallel()

	table := NewTable(4, 2)
	dir, err := table.Allocate(tecnicofs.DirNode)
	require.NoError(t, err)
	node := table.inode(dir)

	assert.True(t, node.isEmpty())
	assert.Equal(t, tecnicofs.FreeInumber, node.lookupEntry("a"))

	require.NoError(t, node.addEntry("a", 1))
	require.NoError(t, node.addEntry("b", 2))
	assert.False(t, node.hasFreeEntry())
	assert.ErrorIs(t, node.addEntry("c", 3), tecnicofs.ErrDirFull)

	assert.Equal(t, tecnicofs.Inumber(2), node.lookupEntry("b"))

	cleared, err := node.clearEntry("a")
	require.NoError(t, err)
	assert.Equal(t, tecnicofs.Inumber(1), cleared)
	_, err = node.clearEntry("a")
	assert.ErrorIs(t, err, tecnicofs.ErrNotFound)

	// first fit puts the new entry in the slot "a" left behind
	require.NoError(t, node.addEntry("c", 3))
	live := node.liveEntries()
	require.Len(t, live, 2)
	assert.Equal(t, "c", live[0].name)
	assert.Equal(t, "b", live[1].name)
}

func TestInode_EntriesOnFile(t *testing.T) {
	t.Parallel()

	table := NewTable(1, 2)
	file, err := table.Allocate(tecnicofs.FileNode)
	require.NoError(t, err)
	node := table.inode(file)

	assert.ErrorIs(t, node.addEntry("a", 1), tecnicofs.ErrNotDirectory)
	_, err = node.clearEntry("a")
	assert.ErrorIs(t, err, tecnicofs.ErrNotDirectory)
	assert.Equal(t, tecnicofs.FreeInumber, node.lookupEntry("a"))
}

func TestLockSet_ReleaseInReverse(t *testing.T) {
	t.Parallel()

	table := NewTable(3, 1)
	ls := &LockSet{table: table, enabled: true}

	ls.lock(0, readLock)
	ls.lock(1, writeLock)
	require.True(t, ls.tryLock(2, readLock))

	assert.Equal(t, 3, ls.Len())
	assert.True(t, ls.Holds(1))
	mode, ok := ls.heldMode(1)
	assert.True(t, ok)
	assert.Equal(t, writeLock, mode)

	// a second set can share the read lock but not the write lock
	other := &LockSet{table: table, enabled: true}
	assert.True(t, other.tryLock(0, readLock))
	assert.False(t, other.tryLock(1, readLock))
	assert.False(t, other.tryLock(0, writeLock))
	other.Release()

	ls.Release()
	assert.Equal(t, 0, ls.Len())
	assert.False(t, ls.Holds(1))

	assert.True(t, other.tryLock(1, writeLock), "write lock must be free after release")
	other.Release()
	ls.Release()
}

func TestLockSet_Disabled(t *testing.T) {
	t.Parallel()

	table := NewTable(1, 1)
	ls := &LockSet{table: table}
	ls.lock(0, writeLock)
	assert.True(t, ls.Holds(0))

	// nothing was really locked
	assert.True(t, table.inode(0).mu.TryLock())
	table.inode(0).mu.Unlock()

	ls.Release()
	var nilSet *LockSet
	nilSet.Release()
}
