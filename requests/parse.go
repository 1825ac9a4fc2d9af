package requests

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/brettbedarf/tecnicofs"
)

// ErrNoCommand is returned for blank and comment lines. Front ends skip them.
var ErrNoCommand = errors.New("no command")

// Parse decodes one line of the grammar. Trailing newlines, a trailing NUL
// and surrounding blanks are ignored.
func Parse(line string) (Command, error) {
	line = strings.TrimRight(line, "\x00\r\n")
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return Command{}, ErrNoCommand
	}
	if len(fields[0]) != 1 {
		return Command{}, fmt.Errorf("%w: unknown operation %q", tecnicofs.ErrMalformed, fields[0])
	}

	op := Op(fields[0][0])
	want := op.arity()
	if want == 0 {
		return Command{}, fmt.Errorf("%w: unknown operation %q", tecnicofs.ErrMalformed, fields[0])
	}
	if len(fields) != want {
		return Command{}, fmt.Errorf("%w: %s takes %d arguments, got %d", tecnicofs.ErrMalformed, op, want-1, len(fields)-1)
	}

	cmd := Command{Op: op, Path: fields[1]}
	switch op {
	case OpCreate:
		kind, err := tecnicofs.ParseNodeType(fields[2])
		if err != nil {
			return Command{}, err
		}
		cmd.Kind = kind
	case OpMove:
		cmd.Target = fields[2]
	}
	return cmd, nil
}

// Parser applies front end limits on top of [Parse]
type Parser struct {
	// Allowed lists the operations the front end accepts; nil accepts all
	Allowed []Op
	// MaxInputSize rejects longer lines when positive
	MaxInputSize int
}

// Parse decodes line and checks it against the parser's limits
func (p Parser) Parse(line string) (Command, error) {
	if p.MaxInputSize > 0 && len(line) > p.MaxInputSize {
		return Command{}, fmt.Errorf("%w: command of %d bytes exceeds limit %d", tecnicofs.ErrMalformed, len(line), p.MaxInputSize)
	}
	cmd, err := Parse(line)
	if err != nil {
		return Command{}, err
	}
	if p.Allowed != nil && !slices.Contains(p.Allowed, cmd.Op) {
		return Command{}, fmt.Errorf("%w: %s not accepted here", tecnicofs.ErrMalformed, cmd.Op)
	}
	return cmd, nil
}
