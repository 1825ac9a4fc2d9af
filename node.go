package tecnicofs

// NodeInfo is a read-only snapshot of an allocated inode
type NodeInfo struct {
	Inumber Inumber
	Type    NodeType
	// Gen increases every time the slot is allocated so a reused inumber
	// can be told apart from its previous occupant
	Gen uint64
}

// IsDir reports whether the node is a directory
func (i NodeInfo) IsDir() bool {
	return i.Type == DirNode
}

// Entry is one (name, inumber) slot of a directory listing
type Entry struct {
	Name    string
	Inumber Inumber
	Type    NodeType
}
