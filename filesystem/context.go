package filesystem

import (
	"slices"

	"github.com/brettbedarf/tecnicofs"
)

type lockMode uint8

const (
	readLock lockMode = iota
	writeLock
)

type heldLock struct {
	inumber tecnicofs.Inumber
	mode    lockMode
	// unlock is nil when the strategy does not use node locks; the entry
	// still records that the handle is part of the operation
	unlock func()
}

// LockSet records the node locks one operation holds, in acquisition order.
// Release unwinds them in reverse. A handle is never acquired twice: callers
// check Holds first.
//
// NOTE: a LockSet is owned by a single goroutine and must not be shared.
//
// Example:
//
//	ls := fs.newLockSet()
//	defer ls.Release()
type LockSet struct {
	table   *Table
	enabled bool
	held    []heldLock
}

// Holds reports whether inumber is already part of the set
func (ls *LockSet) Holds(inumber tecnicofs.Inumber) bool {
	_, ok := ls.find(inumber)
	return ok
}

// heldMode returns the mode inumber was acquired in
func (ls *LockSet) heldMode(inumber tecnicofs.Inumber) (lockMode, bool) {
	i, ok := ls.find(inumber)
	if !ok {
		return 0, false
	}
	return ls.held[i].mode, true
}

func (ls *LockSet) find(inumber tecnicofs.Inumber) (int, bool) {
	i := slices.IndexFunc(ls.held, func(h heldLock) bool { return h.inumber == inumber })
	return i, i >= 0
}

// Len returns the number of recorded handles
func (ls *LockSet) Len() int {
	return len(ls.held)
}

// lock blocks until inumber is held in the given mode
func (ls *LockSet) lock(inumber tecnicofs.Inumber, mode lockMode) {
	if !ls.enabled {
		ls.held = append(ls.held, heldLock{inumber: inumber, mode: mode})
		return
	}
	mu := &ls.table.inode(inumber).mu
	if mode == writeLock {
		mu.Lock()
		ls.held = append(ls.held, heldLock{inumber, mode, mu.Unlock})
		return
	}
	mu.RLock()
	ls.held = append(ls.held, heldLock{inumber, mode, mu.RUnlock})
}

// tryLock is the non-blocking variant of lock
func (ls *LockSet) tryLock(inumber tecnicofs.Inumber, mode lockMode) bool {
	if !ls.enabled {
		ls.held = append(ls.held, heldLock{inumber: inumber, mode: mode})
		return true
	}
	mu := &ls.table.inode(inumber).mu
	if mode == writeLock {
		if !mu.TryLock() {
			return false
		}
		ls.held = append(ls.held, heldLock{inumber, mode, mu.Unlock})
		return true
	}
	if !mu.TryRLock() {
		return false
	}
	ls.held = append(ls.held, heldLock{inumber, mode, mu.RUnlock})
	return true
}

// Release unlocks everything in reverse acquisition order.
// Safe to call on a nil or already released set, so `defer ls.Release()`
// can be used unconditionally.
func (ls *LockSet) Release() {
	if ls == nil {
		return
	}
	for i := len(ls.held) - 1; i >= 0; i-- {
		if unlock := ls.held[i].unlock; unlock != nil {
			unlock()
		}
	}
	ls.held = ls.held[:0]
}
