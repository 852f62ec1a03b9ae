package ast

import (
	"fmt"

	"github.com/codaschema/coda/token"
)

// SourcePos identifies a location within a named source file. It is the
// unit of location information attached to every AST node and every
// diagnostic (spec §4.1: "tracks line number and byte position for every
// token so the error reporter can render caret-marked source excerpts").
type SourcePos struct {
	Filename string
	token.Pos
}

func (p SourcePos) String() string {
	if p.Filename == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Col)
	}
	return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Col)
}
