package filesystem

import (
	"fmt"
	"sync"

	"github.com/brettbedarf/tecnicofs"
	"github.com/brettbedarf/tecnicofs/internal/util"
)

// Inode is one slot of the [Table]. mu guards the node's content only;
// allocation state (kind, gen) is owned by the table.
type Inode struct {
	mu      sync.RWMutex
	kind    tecnicofs.NodeType // NoNode while the slot is free
	gen     uint64
	entries []dirEntry // directory content; nil for files
}

// Table is a fixed-size arena of inodes addressed by inumber.
type Table struct {
	inodes     []Inode
	maxEntries int

	mu        sync.Mutex // protects allocation state of every slot
	allocated int
}

// NewTable creates an empty table with size slots whose directories hold
// maxEntries entries each.
func NewTable(size, maxEntries int) *Table {
	return &Table{
		inodes:     make([]Inode, size),
		maxEntries: maxEntries,
	}
}

// Size returns the fixed capacity of the table
func (t *Table) Size() int {
	return len(t.inodes)
}

// Allocated returns the number of slots currently in use
func (t *Table) Allocated() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.allocated
}

// Allocate claims the first free slot for a node of the given kind.
// The new inode is not linked anywhere and nobody else can reach it yet.
func (t *Table) Allocate(kind tecnicofs.NodeType) (tecnicofs.Inumber, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.inodes {
		ino := &t.inodes[i]
		if ino.kind != tecnicofs.NoNode {
			continue
		}
		ino.kind = kind
		ino.gen++
		ino.entries = nil
		if kind == tecnicofs.DirNode {
			ino.entries = newDirEntries(t.maxEntries)
		}
		t.allocated++
		return tecnicofs.Inumber(i), nil
	}
	return tecnicofs.FreeInumber, fmt.Errorf("%w: all %d inodes in use", tecnicofs.ErrOutOfSpace, len(t.inodes))
}

// Free releases the slot and drops its content. Callers hold the node's
// write lock (or run under a coarser strategy) and have already unlinked it.
func (t *Table) Free(inumber tecnicofs.Inumber) error {
	if !t.valid(inumber) {
		return fmt.Errorf("%w: inumber %d out of range", tecnicofs.ErrNotFound, inumber)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	ino := &t.inodes[inumber]
	if ino.kind == tecnicofs.NoNode {
		return fmt.Errorf("%w: inumber %d already free", tecnicofs.ErrNotFound, inumber)
	}
	ino.kind = tecnicofs.NoNode
	ino.entries = nil
	t.allocated--
	return nil
}

// Get returns the slot for inumber. Reading its content requires holding
// the slot's lock under the per-node strategy.
func (t *Table) Get(inumber tecnicofs.Inumber) (*Inode, error) {
	if !t.valid(inumber) {
		return nil, fmt.Errorf("%w: inumber %d out of range", tecnicofs.ErrNotFound, inumber)
	}
	return &t.inodes[inumber], nil
}

// inode is Get for handles that came out of a directory entry or the lock
// set and are therefore known to be in range
func (t *Table) inode(inumber tecnicofs.Inumber) *Inode {
	return &t.inodes[inumber]
}

func (t *Table) valid(inumber tecnicofs.Inumber) bool {
	return inumber >= 0 && int(inumber) < len(t.inodes)
}

// Destroy frees every slot. It assumes no operation is still in flight.
func (t *Table) Destroy() {
	logger := util.GetLogger("Table.Destroy")

	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.inodes {
		ino := &t.inodes[i]
		ino.kind = tecnicofs.NoNode
		ino.entries = nil
	}
	logger.Debug().Int("allocated", t.allocated).Msg("Inode table destroyed")
	t.allocated = 0
}

// Kind returns the node kind; the caller holds the node lock
func (n *Inode) Kind() tecnicofs.NodeType {
	return n.kind
}

func (n *Inode) isDir() bool {
	return n.kind == tecnicofs.DirNode
}
