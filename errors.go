package tecnicofs

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("no such file or directory")
	ErrExists       = errors.New("file exists")
	ErrNotEmpty     = errors.New("directory not empty")
	ErrNotDirectory = errors.New("not a directory")
	ErrOutOfSpace   = errors.New("inode table full")
	ErrDirFull      = errors.New("directory full")
	ErrInvalidPath  = errors.New("invalid path")
	ErrNameTooLong  = errors.New("file name too long")
	ErrInvalidMove  = errors.New("cannot move a directory beneath itself")
	ErrEntryLost    = errors.New("entry lost while recovering failed move")
	ErrBusy         = errors.New("resource busy")
	ErrMalformed    = errors.New("malformed command")
	ErrIO           = errors.New("input/output error")
)

// Result codes carried in transport responses. Non-negative values are
// success (0, or the inumber for a lookup); failures are negated errno values.
const (
	CodeOK          int32 = 0
	CodeIO          int32 = -5
	CodeNoent       int32 = -2
	CodeBusy        int32 = -16
	CodeExist       int32 = -17
	CodeNotdir      int32 = -20
	CodeInval       int32 = -22
	CodeNospc       int32 = -28
	CodeNameTooLong int32 = -36
	CodeNotempty    int32 = -39
)

// codeErrors is ordered; the first match wins when an error wraps several
var codeErrors = []struct {
	code int32
	err  error
}{
	{CodeNoent, ErrNotFound},
	{CodeExist, ErrExists},
	{CodeNotempty, ErrNotEmpty},
	{CodeNotdir, ErrNotDirectory},
	{CodeNospc, ErrOutOfSpace},
	{CodeNospc, ErrDirFull},
	{CodeNameTooLong, ErrNameTooLong},
	{CodeInval, ErrInvalidPath},
	{CodeInval, ErrInvalidMove},
	{CodeInval, ErrMalformed},
	{CodeBusy, ErrBusy},
	{CodeIO, ErrEntryLost},
	{CodeIO, ErrIO},
}

// ResultCode maps an operation error to the code sent back to a client.
// Unknown errors map to CodeIO.
func ResultCode(err error) int32 {
	if err == nil {
		return CodeOK
	}
	for _, ce := range codeErrors {
		if errors.Is(err, ce.err) {
			return ce.code
		}
	}
	return CodeIO
}

// ErrorFromCode is the inverse of [ResultCode] for negative codes.
// Non-negative codes return nil.
func ErrorFromCode(code int32) error {
	if code >= 0 {
		return nil
	}
	for _, ce := range codeErrors {
		if ce.code == code {
			return ce.err
		}
	}
	return fmt.Errorf("%w: result code %d", ErrIO, code)
}
