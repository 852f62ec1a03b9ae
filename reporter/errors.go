package reporter

import (
	"errors"
	"fmt"

	"github.com/codaschema/coda/ast"
)

// ErrInvalidSource is returned by Analyzer.Compile (and by the codagen and
// codadump commands after parsing) when source or semantic errors were
// reported but the caller's ErrorReporter always returned nil (i.e. asked
// to keep going rather than abort).
var ErrInvalidSource = errors.New("invalid coda source")

// ErrorWithPos is an error that carries the source location that caused it.
type ErrorWithPos interface {
	error
	GetPosition() ast.SourcePos
	Unwrap() error
}

// Error wraps err with pos, implementing ErrorWithPos.
func Error(pos ast.SourcePos, err error) ErrorWithPos {
	return errorWithSourcePos{pos: pos, underlying: err}
}

// Errorf formats a message and wraps it with pos.
func Errorf(pos ast.SourcePos, format string, args ...interface{}) ErrorWithPos {
	return errorWithSourcePos{pos: pos, underlying: fmt.Errorf(format, args...)}
}

type errorWithSourcePos struct {
	underlying error
	pos        ast.SourcePos
}

func (e errorWithSourcePos) Error() string {
	return fmt.Sprintf("%s: %v", e.pos, e.underlying)
}

func (e errorWithSourcePos) GetPosition() ast.SourcePos { return e.pos }
func (e errorWithSourcePos) Unwrap() error              { return e.underlying }

var _ ErrorWithPos = errorWithSourcePos{}
