package filesystem

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/brettbedarf/tecnicofs"
	"github.com/brettbedarf/tecnicofs/internal/util"
)

const (
	moveBackoffMin = 50 * time.Microsecond
	moveBackoffMax = 10 * time.Millisecond
)

// endpoint is one side of a move resolved under lock
type endpoint struct {
	parent tecnicofs.Inumber
	child  tecnicofs.Inumber // FreeInumber when the name is absent
	chain  []tecnicofs.Inumber
}

// Move re-links the node at src as dst. The two paths are locked in a fixed
// order (fewer components first, then lexicographic); the second one is only
// try-locked, and a contended attempt drops every lock and starts over.
func (fs *FileSystem) Move(src, dst string) error {
	logger := util.GetLogger("FS.Move")
	logger.Trace().Str("src", src).Str("dst", dst).Msg("Move called")

	srcParent, srcName, err := splitParentChild(src)
	if err != nil {
		return fmt.Errorf("move %s to %s: %w", src, dst, err)
	}
	dstParent, dstName, err := splitParentChild(dst)
	if err != nil {
		return fmt.Errorf("move %s to %s: %w", src, dst, err)
	}
	if err := fs.checkName(dstName); err != nil {
		return fmt.Errorf("move %s to %s: %w", src, dst, err)
	}

	defer fs.serialize()()

	backoff := moveBackoffMin
	for attempt := 1; ; attempt++ {
		err := fs.tryMove(srcParent, srcName, dstParent, dstName)
		if !errors.Is(err, errWouldBlock) {
			if err != nil {
				return fmt.Errorf("move %s to %s: %w", src, dst, err)
			}
			logger.Debug().Str("src", src).Str("dst", dst).Int("attempts", attempt).Msg("Moved node")
			return nil
		}
		if fs.cfg.MaxMoveRetries > 0 && attempt > fs.cfg.MaxMoveRetries {
			logger.Warn().Str("src", src).Str("dst", dst).Int("attempts", attempt).Msg("Giving up on contended move")
			return fmt.Errorf("move %s to %s: %w after %d attempts", src, dst, tecnicofs.ErrBusy, attempt)
		}
		logger.Trace().Str("src", src).Str("dst", dst).Int("attempt", attempt).Msg("Move contended, retrying")
		time.Sleep(moveBackoffMin + rand.N(backoff))
		backoff = min(backoff*2, moveBackoffMax)
	}
}

// tryMove runs one locked attempt. errWouldBlock means nothing was changed
// and every lock is already released.
func (fs *FileSystem) tryMove(srcParent, srcName, dstParent, dstName string) error {
	ls := fs.newLockSet()
	defer ls.Release()

	var s, d endpoint
	var err error
	if pathLess(joinPath(srcParent, srcName), joinPath(dstParent, dstName)) {
		if s, err = fs.resolveEndpoint(srcParent, srcName, ls, ModeModify, true); err != nil {
			return err
		}
		if s.child == tecnicofs.FreeInumber {
			return fmt.Errorf("source %w", tecnicofs.ErrNotFound)
		}
		if d, err = fs.resolveEndpoint(dstParent, dstName, ls, ModeMoveTry, false); err != nil {
			return err
		}
		if d.child != tecnicofs.FreeInumber {
			return fmt.Errorf("destination %w", tecnicofs.ErrExists)
		}
	} else {
		if d, err = fs.resolveEndpoint(dstParent, dstName, ls, ModeModify, false); err != nil {
			return err
		}
		if d.child != tecnicofs.FreeInumber {
			return fmt.Errorf("destination %w", tecnicofs.ErrExists)
		}
		if s, err = fs.resolveEndpoint(srcParent, srcName, ls, ModeMoveTry, true); err != nil {
			return err
		}
		if s.child == tecnicofs.FreeInumber {
			return fmt.Errorf("source %w", tecnicofs.ErrNotFound)
		}
	}

	// the destination chain runs from the root to the new parent; finding the
	// source there means the source would become its own ancestor
	if slices.Contains(d.chain, s.child) {
		return tecnicofs.ErrInvalidMove
	}

	from := fs.table.inode(s.parent)
	to := fs.table.inode(d.parent)
	if _, err := from.clearEntry(srcName); err != nil {
		return err
	}
	if err := to.addEntry(dstName, s.child); err != nil {
		if rerr := from.addEntry(srcName, s.child); rerr != nil {
			logger := util.GetLogger("FS.Move")
			logger.Error().
				Err(rerr).
				Str("name", srcName).
				Int32("inumber", int32(s.child)).
				Msg("Entry was lost while undoing a failed move")
			return fmt.Errorf("%w: %w", err, tecnicofs.ErrEntryLost)
		}
		return err
	}
	return nil
}

// resolveEndpoint locks the parent directory of one side of a move and looks
// the name up in it. The source child is write-locked as well so no other
// operation is inside it while it changes parent.
func (fs *FileSystem) resolveEndpoint(parentPath, name string, ls *LockSet, mode Mode, lockChild bool) (endpoint, error) {
	res, err := fs.traverse(parentPath, ls, mode)
	if err != nil {
		if errors.Is(err, errWouldBlock) {
			return endpoint{}, err
		}
		return endpoint{}, fmt.Errorf("invalid parent dir %q: %w", parentPath, err)
	}
	parent := fs.table.inode(res.inumber)
	if !parent.isDir() {
		return endpoint{}, fmt.Errorf("parent %q: %w", parentPath, tecnicofs.ErrNotDirectory)
	}
	ep := endpoint{parent: res.inumber, child: parent.lookupEntry(name), chain: res.chain}
	if ep.child == tecnicofs.FreeInumber || !lockChild {
		return ep, nil
	}
	if err := fs.acquire(ls, ep.child, writeLock, mode); err != nil {
		return endpoint{}, err
	}
	return ep, nil
}
