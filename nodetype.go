package tecnicofs

import "fmt"

// NodeType valid types are FileNode "f", DirNode "d"
type NodeType byte

const (
	// NoNode is the zero value and never names an allocated inode
	NoNode   NodeType = 0
	FileNode NodeType = 'f'
	DirNode  NodeType = 'd'
)

// ParseNodeType converts the single letter used by the command grammar
func ParseNodeType(s string) (NodeType, error) {
	if len(s) == 1 {
		switch t := NodeType(s[0]); t {
		case FileNode, DirNode:
			return t, nil
		}
	}
	return NoNode, fmt.Errorf("%w: invalid node type %q", ErrMalformed, s)
}

func (t NodeType) String() string {
	switch t {
	case FileNode:
		return "file"
	case DirNode:
		return "directory"
	default:
		return "none"
	}
}

// Letter returns the grammar token for the type ("f" or "d")
func (t NodeType) Letter() string {
	return string(rune(t))
}
