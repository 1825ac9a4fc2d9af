// Package requests implements the line oriented command grammar shared by
// every front end.
//
//	c <path> <f|d>    create a file or directory
//	l <path>          lookup
//	d <path>          delete
//	m <src> <dst>     move
//	p <outputfile>    print the tree to a file
//	# ...             comment
package requests

import (
	"fmt"
	"strings"

	"github.com/brettbedarf/tecnicofs"
)

// Op is the single letter that opens a command
type Op byte

const (
	OpCreate Op = 'c'
	OpLookup Op = 'l'
	OpDelete Op = 'd'
	OpMove   Op = 'm'
	OpPrint  Op = 'p'
)

// Operation sets accepted by each front end
var (
	BatchOps     = []Op{OpCreate, OpLookup, OpDelete}
	QueueOps     = []Op{OpCreate, OpLookup, OpDelete, OpMove}
	TransportOps = []Op{OpCreate, OpLookup, OpDelete, OpMove, OpPrint}
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpLookup:
		return "lookup"
	case OpDelete:
		return "delete"
	case OpMove:
		return "move"
	case OpPrint:
		return "print"
	}
	return fmt.Sprintf("Op(%q)", byte(o))
}

// arity is the token count of a well formed command, op included
func (o Op) arity() int {
	switch o {
	case OpCreate, OpMove:
		return 3
	case OpLookup, OpDelete, OpPrint:
		return 2
	}
	return 0
}

// Command is one parsed line of the grammar
type Command struct {
	Op Op
	// Path is the node path, the move source, or the print output file
	Path string
	// Kind is set for OpCreate only
	Kind tecnicofs.NodeType
	// Target is the move destination
	Target string
}

// Create returns a create command
func Create(path string, kind tecnicofs.NodeType) Command {
	return Command{Op: OpCreate, Path: path, Kind: kind}
}

func Lookup(path string) Command { return Command{Op: OpLookup, Path: path} }

func Delete(path string) Command { return Command{Op: OpDelete, Path: path} }

func Move(src, dst string) Command { return Command{Op: OpMove, Path: src, Target: dst} }

func Print(outputFile string) Command { return Command{Op: OpPrint, Path: outputFile} }

// String encodes the command in the grammar; Parse(c.String()) yields c
func (c Command) String() string {
	var b strings.Builder
	b.WriteByte(byte(c.Op))
	b.WriteByte(' ')
	b.WriteString(c.Path)
	switch c.Op {
	case OpCreate:
		b.WriteByte(' ')
		b.WriteString(c.Kind.Letter())
	case OpMove:
		b.WriteByte(' ')
		b.WriteString(c.Target)
	}
	return b.String()
}

// MarshalText implements encoding.TextMarshaler
func (c Command) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler using [Parse]
func (c *Command) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
