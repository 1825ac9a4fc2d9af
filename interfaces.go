package tecnicofs

import "io"

// Operator defines the namespace operations every front end needs.
// Paths are slash separated and resolved from the root; "" and "/" both
// denote the root itself.
type Operator interface {
	// Create adds a new file or directory at path. The parent must exist
	// and be a directory.
	Create(path string, kind NodeType) error

	// Delete removes the node at path. Directories must be empty.
	Delete(path string) error

	// Lookup resolves path to its inumber
	Lookup(path string) (Inumber, error)

	// Move re-links the node at src under the name and parent given by dst
	Move(src, dst string) error

	// PrintTree writes one absolute path per line for every node reachable
	// from the root, depth first in directory slot order
	PrintTree(w io.Writer) error
}

// Inspector is implemented by engines that can describe nodes without
// mutating them. The FUSE bridge needs it in addition to [Operator].
type Inspector interface {
	Stat(path string) (NodeInfo, error)
	ReadDir(path string) ([]Entry, error)
}

// Namespace is the full engine surface
type Namespace interface {
	Operator
	Inspector
}
