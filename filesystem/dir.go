package filesystem

import (
	"fmt"

	"github.com/brettbedarf/tecnicofs"
)

// dirEntry is one slot of a directory's fixed entry table.
// An empty slot has inumber FreeInumber.
type dirEntry struct {
	name    string
	inumber tecnicofs.Inumber
}

func newDirEntries(n int) []dirEntry {
	entries := make([]dirEntry, n)
	for i := range entries {
		entries[i].inumber = tecnicofs.FreeInumber
	}
	return entries
}

// The helpers below operate on directory content whose lock is already held.

// lookupEntry returns the inumber named name, or FreeInumber
func (n *Inode) lookupEntry(name string) tecnicofs.Inumber {
	for _, e := range n.entries {
		if e.inumber != tecnicofs.FreeInumber && e.name == name {
			return e.inumber
		}
	}
	return tecnicofs.FreeInumber
}

// hasFreeEntry reports whether addEntry would find a slot
func (n *Inode) hasFreeEntry() bool {
	for _, e := range n.entries {
		if e.inumber == tecnicofs.FreeInumber {
			return true
		}
	}
	return false
}

// addEntry stores (name, inumber) in the first empty slot
func (n *Inode) addEntry(name string, inumber tecnicofs.Inumber) error {
	if !n.isDir() {
		return tecnicofs.ErrNotDirectory
	}
	for i := range n.entries {
		if n.entries[i].inumber == tecnicofs.FreeInumber {
			n.entries[i] = dirEntry{name: name, inumber: inumber}
			return nil
		}
	}
	return fmt.Errorf("%w: %d entries in use", tecnicofs.ErrDirFull, len(n.entries))
}

// clearEntry empties the slot holding name and returns its inumber
func (n *Inode) clearEntry(name string) (tecnicofs.Inumber, error) {
	if !n.isDir() {
		return tecnicofs.FreeInumber, tecnicofs.ErrNotDirectory
	}
	for i := range n.entries {
		e := n.entries[i]
		if e.inumber != tecnicofs.FreeInumber && e.name == name {
			n.entries[i] = dirEntry{inumber: tecnicofs.FreeInumber}
			return e.inumber, nil
		}
	}
	return tecnicofs.FreeInumber, fmt.Errorf("%w: no entry %q", tecnicofs.ErrNotFound, name)
}

func (n *Inode) isEmpty() bool {
	for _, e := range n.entries {
		if e.inumber != tecnicofs.FreeInumber {
			return false
		}
	}
	return true
}

// liveEntries returns the used slots in slot order
func (n *Inode) liveEntries() []dirEntry {
	live := make([]dirEntry, 0, len(n.entries))
	for _, e := range n.entries {
		if e.inumber != tecnicofs.FreeInumber {
			live = append(live, e)
		}
	}
	return live
}
