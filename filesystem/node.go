package filesystem

import (
	"errors"
	"fmt"

	"github.com/brettbedarf/tecnicofs"
)

// Mode selects how a traversal locks the nodes it visits.
type Mode uint8

const (
	// ModeFind read-locks every node on the way and releases all of them
	// before returning.
	ModeFind Mode = iota
	// ModeModify read-locks ancestors and write-locks the terminal node. The
	// locks stay in the caller's [LockSet].
	ModeModify
	// ModeMoveTry behaves like ModeModify but never blocks. Nodes already in
	// the set are skipped; a contended node ends the walk with errWouldBlock.
	ModeMoveTry
)

func (m Mode) String() string {
	switch m {
	case ModeFind:
		return "find"
	case ModeModify:
		return "modify"
	case ModeMoveTry:
		return "move-try"
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// errWouldBlock ends a try walk that met a node held by another operation.
// It never leaves the package: Move retries on it.
var errWouldBlock = errors.New("lock would block")

// walkResult is the outcome of a traversal
type walkResult struct {
	// inumber is the terminal node, or the deepest node reached on failure
	inumber tecnicofs.Inumber
	// chain holds every node visited from the root, terminal included
	chain []tecnicofs.Inumber
}

// traverse resolves path from the root under the given mode. In ModeFind the
// locks are gone when it returns; otherwise they remain in ls on success and
// on failure alike, and the caller's deferred Release drops them.
func (fs *FileSystem) traverse(path string, ls *LockSet, mode Mode) (walkResult, error) {
	res, err := fs.walk(path, ls, mode)
	if mode == ModeFind {
		ls.Release()
	}
	return res, err
}

// walk does the work of traverse without the final release, so callers can
// read the terminal node while it is still locked.
func (fs *FileSystem) walk(path string, ls *LockSet, mode Mode) (walkResult, error) {
	names := components(path)
	terminalMode := readLock
	if mode != ModeFind {
		terminalMode = writeLock
	}
	modeFor := func(i int) lockMode {
		if i == len(names) {
			return terminalMode
		}
		return readLock
	}

	res := walkResult{inumber: tecnicofs.RootInumber}
	if err := fs.acquire(ls, tecnicofs.RootInumber, modeFor(0), mode); err != nil {
		return res, err
	}
	res.chain = append(res.chain, tecnicofs.RootInumber)

	for i, name := range names {
		cur := fs.table.inode(res.inumber)
		if !cur.isDir() {
			parent := "/"
			if i > 0 {
				parent = names[i-1]
			}
			return res, fmt.Errorf("%w: %q is not a directory in %q", tecnicofs.ErrNotDirectory, parent, path)
		}
		child := cur.lookupEntry(name)
		if child == tecnicofs.FreeInumber {
			return res, fmt.Errorf("%w: %q in %q", tecnicofs.ErrNotFound, name, path)
		}
		if err := fs.acquire(ls, child, modeFor(i+1), mode); err != nil {
			return res, err
		}
		res.inumber = child
		res.chain = append(res.chain, child)
	}
	return res, nil
}

// acquire adds inumber to ls in the wanted lock mode. Try walks skip handles the
// set already holds and fail instead of waiting.
func (fs *FileSystem) acquire(ls *LockSet, inumber tecnicofs.Inumber, want lockMode, mode Mode) error {
	if mode != ModeMoveTry {
		ls.lock(inumber, want)
		return nil
	}
	if have, ok := ls.heldMode(inumber); ok {
		if want == writeLock && have != writeLock && ls.enabled {
			// the depth ordering of two-path operations rules this out
			return fmt.Errorf("%w: lock upgrade on inumber %d", tecnicofs.ErrIO, inumber)
		}
		return nil
	}
	if !ls.tryLock(inumber, want) {
		return errWouldBlock
	}
	return nil
}
