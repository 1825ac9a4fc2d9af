package requests

import (
	"errors"
	"fmt"
	"os"

	"github.com/brettbedarf/tecnicofs"
	"github.com/brettbedarf/tecnicofs/internal/util"
)

// Apply runs cmd against op. It returns the result code sent back to
// clients (the inumber for a successful lookup) together with the
// underlying error, if any.
func Apply(op tecnicofs.Operator, cmd Command) (int32, error) {
	logger := util.GetLogger("Apply")

	var err error
	switch cmd.Op {
	case OpCreate:
		logger.Info().Str("path", cmd.Path).Msgf("Create %s", cmd.Kind)
		err = op.Create(cmd.Path, cmd.Kind)
	case OpDelete:
		logger.Info().Str("path", cmd.Path).Msg("Delete")
		err = op.Delete(cmd.Path)
	case OpLookup:
		inumber, lerr := op.Lookup(cmd.Path)
		if lerr == nil {
			logger.Info().Str("path", cmd.Path).Int32("inumber", int32(inumber)).Msg("Search found")
			return int32(inumber), nil
		}
		logger.Info().Str("path", cmd.Path).Msg("Search not found")
		err = lerr
	case OpMove:
		logger.Info().Str("src", cmd.Path).Str("dst", cmd.Target).Msg("Move")
		err = op.Move(cmd.Path, cmd.Target)
	case OpPrint:
		logger.Info().Str("file", cmd.Path).Msg("Print tree")
		err = PrintToFile(op, cmd.Path)
	default:
		err = fmt.Errorf("%w: cannot apply %s", tecnicofs.ErrMalformed, cmd.Op)
	}
	if err != nil {
		logger.Debug().Err(err).Str("command", cmd.String()).Msg("Command failed")
	}
	return tecnicofs.ResultCode(err), err
}

// PrintToFile writes the tree dump to path, replacing the file
func PrintToFile(op tecnicofs.Operator, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %w", tecnicofs.ErrIO, err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	if err := op.PrintTree(f); err != nil {
		return fmt.Errorf("%w: %w", tecnicofs.ErrIO, err)
	}
	return nil
}
