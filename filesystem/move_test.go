package filesystem

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brettbedarf/tecnicofs"
	"github.com/brettbedarf/tecnicofs/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSystem_Move(t *testing.T) {
	t.Parallel()

	for _, strategy := range allStrategies {
		t.Run(strategy.String(), func(t *testing.T) {
			t.Parallel()
			fs := newTestFS(t, strategy)
			mustCreate(t, fs, "a", tecnicofs.DirNode)
			mustCreate(t, fs, "a/x", tecnicofs.FileNode)
			mustCreate(t, fs, "b", tecnicofs.DirNode)
			x, err := fs.Lookup("a/x")
			require.NoError(t, err)

			require.NoError(t, fs.Move("a/x", "b/y"))
			_, err = fs.Lookup("a/x")
			assert.ErrorIs(t, err, tecnicofs.ErrNotFound)
			moved, err := fs.Lookup("b/y")
			require.NoError(t, err)
			assert.Equal(t, x, moved, "a move keeps the inumber")

			// rename within one directory
			require.NoError(t, fs.Move("b/y", "b/z"))
			assert.Equal(t, "/\n/a\n/b\n/b/z\n", dump(t, fs))

			// moving a directory carries its subtree
			mustCreate(t, fs, "b/sub", tecnicofs.DirNode)
			mustCreate(t, fs, "b/sub/leaf", tecnicofs.FileNode)
			require.NoError(t, fs.Move("b/sub", "a/sub"))
			_, err = fs.Lookup("a/sub/leaf")
			assert.NoError(t, err)
			assert.Equal(t, 6, fs.Allocated())
		})
	}
}

func TestFileSystem_MoveErrors(t *testing.T) {
	t.Parallel()

	fs := newTestFS(t, config.PerNodeLock)
	mustCreate(t, fs, "a", tecnicofs.DirNode)
	mustCreate(t, fs, "a/b", tecnicofs.DirNode)
	mustCreate(t, fs, "a/b/c", tecnicofs.DirNode)
	mustCreate(t, fs, "f", tecnicofs.FileNode)
	mustCreate(t, fs, "g", tecnicofs.FileNode)
	before := dump(t, fs)

	tests := []struct {
		name     string
		src, dst string
		want     error
	}{
		{"source_missing", "nope", "x", tecnicofs.ErrNotFound},
		{"source_parent_missing", "nope/x", "x", tecnicofs.ErrNotFound},
		{"destination_exists", "f", "g", tecnicofs.ErrExists},
		{"same_path", "f", "f", tecnicofs.ErrExists},
		{"destination_parent_missing", "f", "nope/f", tecnicofs.ErrNotFound},
		{"destination_parent_is_file", "g", "f/g", tecnicofs.ErrNotDirectory},
		{"into_itself", "a", "a/a", tecnicofs.ErrInvalidMove},
		{"into_child", "a", "a/b/a", tecnicofs.ErrInvalidMove},
		{"into_grandchild", "a", "a/b/c/a", tecnicofs.ErrInvalidMove},
		{"root_source", "/", "x", tecnicofs.ErrInvalidPath},
		{"root_destination", "f", "/", tecnicofs.ErrInvalidPath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fs.Move(tt.src, tt.dst)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Equal(t, before, dump(t, fs), "failed moves leave the tree untouched")
}

func TestFileSystem_MoveIntoFullDirRestoresSource(t *testing.T) {
	t.Parallel()

	cfg := createTestConfig(config.PerNodeLock)
	cfg.MaxDirEntries = 2
	fs := newTestFSWith(t, cfg)
	mustCreate(t, fs, "full", tecnicofs.DirNode)
	mustCreate(t, fs, "full/1", tecnicofs.FileNode)
	mustCreate(t, fs, "full/2", tecnicofs.FileNode)
	mustCreate(t, fs, "src", tecnicofs.DirNode)
	mustCreate(t, fs, "src/x", tecnicofs.FileNode)
	x, err := fs.Lookup("src/x")
	require.NoError(t, err)

	err = fs.Move("src/x", "full/x")
	assert.ErrorIs(t, err, tecnicofs.ErrDirFull)
	assert.NotErrorIs(t, err, tecnicofs.ErrEntryLost)

	restored, err := fs.Lookup("src/x")
	require.NoError(t, err)
	assert.Equal(t, x, restored)
}

func TestFileSystem_MoveBoundedRetries(t *testing.T) {
	t.Parallel()

	cfg := createTestConfig(config.PerNodeLock)
	cfg.MaxMoveRetries = 2
	fs := newTestFSWith(t, cfg)
	mustCreate(t, fs, "s", tecnicofs.DirNode)
	mustCreate(t, fs, "s/x", tecnicofs.FileNode)
	mustCreate(t, fs, "d", tecnicofs.DirNode)
	mustCreate(t, fs, "d/e", tecnicofs.DirNode)

	// another operation sits on d/e; the destination is try-locked second
	holder := fs.newLockSet()
	_, err := fs.traverse("d/e", holder, ModeModify)
	require.NoError(t, err)

	err = fs.Move("s/x", "d/e/y")
	assert.ErrorIs(t, err, tecnicofs.ErrBusy)
	assert.Equal(t, tecnicofs.CodeBusy, tecnicofs.ResultCode(err))

	holder.Release()
	require.NoError(t, fs.Move("s/x", "d/e/y"))
}

func TestFileSystem_MoveWaitsForContention(t *testing.T) {
	t.Parallel()

	fs := newTestFS(t, config.PerNodeLock)
	mustCreate(t, fs, "s", tecnicofs.DirNode)
	mustCreate(t, fs, "s/x", tecnicofs.FileNode)
	mustCreate(t, fs, "d", tecnicofs.DirNode)
	mustCreate(t, fs, "d/e", tecnicofs.DirNode)

	holder := fs.newLockSet()
	_, err := fs.traverse("d/e", holder, ModeModify)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- fs.Move("s/x", "d/e/y") }()

	select {
	case err := <-done:
		t.Fatalf("move finished while destination was held: %v", err)
	case <-time.After(20 * time.Millisecond):
	}
	holder.Release()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("move never completed after contention cleared")
	}
}

// Opposing moves between two directories would deadlock under naive
// lock ordering.
func TestFileSystem_ConcurrentOpposingMoves(t *testing.T) {
	t.Parallel()

	for _, strategy := range concurrentStrategies {
		t.Run(strategy.String(), func(t *testing.T) {
			t.Parallel()
			cfg := createTestConfig(strategy)
			cfg.InodeTableSize = 100
			fs := newTestFSWith(t, cfg)
			for _, d := range []string{"p", "p/a", "p/b", "q", "q/c"} {
				mustCreate(t, fs, d, tecnicofs.DirNode)
			}
			for i := range 8 {
				mustCreate(t, fs, fmt.Sprintf("p/a/f%d", i), tecnicofs.FileNode)
				mustCreate(t, fs, fmt.Sprintf("q/c/g%d", i), tecnicofs.FileNode)
			}
			allocated := fs.Allocated()

			var wg sync.WaitGroup
			for i := range 8 {
				wg.Go(func() {
					for range 25 {
						_ = fs.Move(fmt.Sprintf("p/a/f%d", i), fmt.Sprintf("q/c/f%d", i))
						_ = fs.Move(fmt.Sprintf("q/c/f%d", i), fmt.Sprintf("p/a/f%d", i))
					}
				})
				wg.Go(func() {
					for range 25 {
						_ = fs.Move(fmt.Sprintf("q/c/g%d", i), fmt.Sprintf("p/b/g%d", i))
						_ = fs.Move(fmt.Sprintf("p/b/g%d", i), fmt.Sprintf("q/c/g%d", i))
					}
				})
				wg.Go(func() {
					for range 25 {
						_ = fs.Move("p/b", "q/b")
						_ = fs.Move("q/b", "p/b")
						_, _ = fs.Lookup(fmt.Sprintf("p/a/f%d", i))
					}
				})
			}

			finished := make(chan struct{})
			go func() {
				wg.Wait()
				close(finished)
			}()
			select {
			case <-finished:
			case <-time.After(30 * time.Second):
				t.Fatal("moves deadlocked")
			}

			assert.Equal(t, allocated, fs.Allocated(), "moves never allocate or free")
			lines := strings.Count(dump(t, fs), "\n")
			assert.Equal(t, allocated, lines, "every inode stays reachable exactly once")
			for i := range 8 {
				// p/a and q/c never move, so every f round trip completes
				_, err := fs.Lookup(fmt.Sprintf("p/a/f%d", i))
				assert.NoError(t, err)
			}
		})
	}
}
