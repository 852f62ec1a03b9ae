// Package lexer tokenizes CODA IDL source (spec §4.1).
package lexer

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rivo/uniseg"

	"github.com/codaschema/coda/ast"
	"github.com/codaschema/coda/reporter"
	"github.com/codaschema/coda/token"
)

// Lexer reads runes from a byte slice and emits tokens. One Lexer is used
// per file; it is not safe for concurrent use.
type Lexer struct {
	filename string
	data     []byte
	pos      int // byte offset
	line     int
	lineStart int // byte offset of start of current line

	rep reporter.Reporter
}

// New creates a Lexer over the contents of one source file.
func New(filename string, data []byte, rep reporter.Reporter) *Lexer {
	return &Lexer{filename: filename, data: data, pos: 0, line: 1, lineStart: 0, rep: rep}
}

func (l *Lexer) curPos() ast.SourcePos {
	return ast.SourcePos{
		Filename: l.filename,
		Pos: token.Pos{
			Line:   l.line,
			Col:    l.displayCol(),
			Offset: l.pos,
		},
	}
}

// displayCol returns the 1-based display column of the current byte
// offset within the current line, measuring display width rather than
// bytes or runes so reported columns account for wide/combining
// characters (spec §4.1).
func (l *Lexer) displayCol() int {
	lineBytes := l.data[l.lineStart:l.pos]
	width := uniseg.StringWidth(string(lineBytes))
	return width + 1
}

func (l *Lexer) errorf(pos ast.SourcePos, format string, args ...interface{}) error {
	err := reporter.Errorf(pos, format, args...)
	if l.rep != nil {
		return l.rep.Error(err)
	}
	return err
}

func (l *Lexer) peekByte() (byte, bool) {
	if l.pos >= len(l.data) {
		return 0, false
	}
	return l.data[l.pos], true
}

func (l *Lexer) advance() {
	if l.pos >= len(l.data) {
		return
	}
	if l.data[l.pos] == '\n' {
		l.line++
		l.pos++
		l.lineStart = l.pos
		return
	}
	_, size := utf8.DecodeRune(l.data[l.pos:])
	if size == 0 {
		size = 1
	}
	l.pos += size
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isIdentCont(b byte) bool {
	return isIdentStart(b) || (b >= '0' && b <= '9')
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// Next returns the next token, or a token.EOF token at end of input.
// Comments (`#` to end of line) and whitespace are skipped. Errors (bad
// escapes, unterminated strings) are reported through the Lexer's
// Reporter; if the reporter chooses to abort, Next returns the error it
// produced. The input is not checked for valid UTF-8.
func (l *Lexer) Next() (token.Token, error) {
	for {
		b, ok := l.peekByte()
		if !ok {
			return token.Token{Kind: token.EOF, Pos: l.curPos()}, nil
		}
		if b == ' ' || b == '\t' || b == '\r' || b == '\n' {
			l.advance()
			continue
		}
		if b == '#' {
			for {
				b, ok := l.peekByte()
				if !ok || b == '\n' {
					break
				}
				l.advance()
			}
			continue
		}
		break
	}

	start := l.curPos()
	b, _ := l.peekByte()

	switch {
	case isIdentStart(b):
		begin := l.pos
		for {
			b, ok := l.peekByte()
			if !ok || !isIdentCont(b) {
				break
			}
			l.advance()
		}
		text := string(l.data[begin:l.pos])
		return token.Token{Kind: token.Ident, Text: text, Pos: start}, nil

	case isDigit(b):
		begin := l.pos
		for {
			b, ok := l.peekByte()
			if !ok || !isDigit(b) {
				break
			}
			l.advance()
		}
		text := string(l.data[begin:l.pos])
		return token.Token{Kind: token.Int, Text: text, Pos: start}, nil

	case b == '"' || b == '\'':
		s, err := l.lexString(b)
		if err != nil {
			if e := l.errorf(start, "%v", err); e != nil {
				return token.Token{}, e
			}
		}
		return token.Token{Kind: token.Str, Text: s, Pos: start}, nil

	case b == '=':
		l.advance()
		return token.Token{Kind: token.Equals, Text: "=", Pos: start}, nil
	case b == ':':
		l.advance()
		return token.Token{Kind: token.Colon, Text: ":", Pos: start}, nil
	case b == ';':
		l.advance()
		return token.Token{Kind: token.Semi, Text: ";", Pos: start}, nil
	case b == ',':
		l.advance()
		return token.Token{Kind: token.Comma, Text: ",", Pos: start}, nil
	case b == '.':
		l.advance()
		return token.Token{Kind: token.Dot, Text: ".", Pos: start}, nil
	case b == '[':
		l.advance()
		return token.Token{Kind: token.LBracket, Text: "[", Pos: start}, nil
	case b == ']':
		l.advance()
		return token.Token{Kind: token.RBracket, Text: "]", Pos: start}, nil
	case b == '{':
		l.advance()
		return token.Token{Kind: token.LBrace, Text: "{", Pos: start}, nil
	case b == '}':
		l.advance()
		return token.Token{Kind: token.RBrace, Text: "}", Pos: start}, nil
	case b == '(':
		l.advance()
		return token.Token{Kind: token.LParen, Text: "(", Pos: start}, nil
	case b == ')':
		l.advance()
		return token.Token{Kind: token.RParen, Text: ")", Pos: start}, nil
	case b == '-':
		l.advance()
		if nb, ok := l.peekByte(); ok && nb == '>' {
			l.advance()
			return token.Token{Kind: token.Arrow, Text: "->", Pos: start}, nil
		}
		if e := l.errorf(start, "unexpected character %q", b); e != nil {
			return token.Token{}, e
		}
		return l.Next()
	default:
		l.advance()
		if e := l.errorf(start, "unexpected character %q", b); e != nil {
			return token.Token{}, e
		}
		return l.Next()
	}
}

// lexString consumes a quoted string literal starting at the current
// position (the opening quote has not yet been consumed) and returns its
// decoded value. Escapes are `\\ \n \r \t \" \'`, matching spec §4.1.
func (l *Lexer) lexString(quote byte) (string, error) {
	start := l.curPos()
	l.advance() // opening quote
	var sb strings.Builder
	for {
		b, ok := l.peekByte()
		if !ok {
			return sb.String(), fmt.Errorf("unterminated string literal")
		}
		if b == quote {
			l.advance()
			return sb.String(), nil
		}
		if b == '\n' {
			return sb.String(), fmt.Errorf("unterminated string literal (newline in string)")
		}
		if b == '\\' {
			l.advance()
			eb, ok := l.peekByte()
			if !ok {
				return sb.String(), fmt.Errorf("unterminated escape sequence")
			}
			switch eb {
			case '\\':
				sb.WriteByte('\\')
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case '"':
				sb.WriteByte('"')
			case '\'':
				sb.WriteByte('\'')
			default:
				l.advance()
				return sb.String(), fmt.Errorf("unknown escape sequence \\%c", eb)
			}
			l.advance()
			continue
		}
		sb.WriteByte(b)
		l.advance()
	}
	_ = start
}

// ParseIntLiteral converts a decimal integer token's text to an int64,
// surfacing overflow as an error (used by the parser for field ids,
// subtype ids, and enum values).
func ParseIntLiteral(text string) (int64, error) {
	return strconv.ParseInt(text, 10, 64)
}
