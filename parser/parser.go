// Package parser turns a token stream from the lexer into an AST
// (spec §4.2). It is a hand-written recursive-descent parser: CODA's
// grammar is small and its error-recovery policy (abort after 8
// accumulated errors) is easiest to express
// directly rather than through a parser-generator or combinator library.
package parser

import (
	"fmt"
	"math"

	"github.com/codaschema/coda/ast"
	"github.com/codaschema/coda/lexer"
	"github.com/codaschema/coda/reporter"
	"github.com/codaschema/coda/token"
)

// MaxExtensionID is 2^32-1, the value `max` denotes in an extension range
// (spec §6).
const MaxExtensionID = math.MaxUint32

// maxErrors is how many errors accumulate before Parse aborts (spec §4.2).
const maxErrors = 8

// Parser consumes tokens from a Lexer and builds an *ast.File.
type Parser struct {
	lex      *lexer.Lexer
	filename string
	rep      reporter.Reporter
	errCount int

	cur  token.Token
	have bool
}

// Parse reads one complete CODA source file and returns its AST. rep
// receives every syntax error; if rep.Error returns non-nil, or if 8
// errors accumulate, Parse stops and returns the accumulated error.
func Parse(filename string, data []byte, rep reporter.Reporter) (*ast.File, error) {
	p := &Parser{
		lex:      lexer.New(filename, data, rep),
		filename: filename,
		rep:      rep,
	}
	return p.parseFile()
}

func (p *Parser) errorf(pos ast.SourcePos, format string, args ...interface{}) error {
	p.errCount++
	err := reporter.Errorf(pos, format, args...)
	var reportErr error
	if p.rep != nil {
		reportErr = p.rep.Error(err)
	} else {
		reportErr = err
	}
	if reportErr != nil {
		return reportErr
	}
	if p.errCount >= maxErrors {
		return fmt.Errorf("%s: too many errors, aborting", pos)
	}
	return nil
}

func (p *Parser) advance() error {
	tok, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.cur = tok
	p.have = true
	return nil
}

func (p *Parser) peek() (token.Token, error) {
	if !p.have {
		if err := p.advance(); err != nil {
			return token.Token{}, err
		}
	}
	return p.cur, nil
}

func (p *Parser) consume() (token.Token, error) {
	tok, err := p.peek()
	if err != nil {
		return token.Token{}, err
	}
	p.have = false
	return tok, nil
}

func (p *Parser) expect(k token.Kind) (token.Token, error) {
	tok, err := p.peek()
	if err != nil {
		return token.Token{}, err
	}
	if tok.Kind != k {
		return token.Token{}, p.errorf(p.pos(tok), "expected %s, found %q", k, tok.Text)
	}
	return p.consume()
}

func (p *Parser) expectKeyword(kw string) error {
	tok, err := p.peek()
	if err != nil {
		return err
	}
	if tok.Kind != token.Ident || tok.Text != kw {
		return p.errorf(p.pos(tok), "expected keyword %q, found %q", kw, tok.Text)
	}
	_, err = p.consume()
	return err
}

func (p *Parser) pos(tok token.Token) ast.SourcePos {
	return ast.SourcePos{Filename: p.filename, Pos: tok.Pos}
}

func (p *Parser) isKeyword(tok token.Token, kw string) bool {
	return tok.Kind == token.Ident && tok.Text == kw
}

// dottedName parses `ident(.ident)*` and returns the joined string and the
// position of its first token.
func (p *Parser) dottedName() (string, ast.SourcePos, error) {
	first, err := p.expect(token.Ident)
	if err != nil {
		return "", ast.SourcePos{}, err
	}
	name := first.Text
	pos := p.pos(first)
	for {
		tok, err := p.peek()
		if err != nil {
			return "", ast.SourcePos{}, err
		}
		if tok.Kind != token.Dot {
			break
		}
		if _, err := p.consume(); err != nil {
			return "", ast.SourcePos{}, err
		}
		part, err := p.expect(token.Ident)
		if err != nil {
			return "", ast.SourcePos{}, err
		}
		name += "." + part.Text
	}
	return name, pos, nil
}

func (p *Parser) parseFile() (*ast.File, error) {
	file := &ast.File{Path: p.filename, Pos: ast.SourcePos{Filename: p.filename, Pos: token.Pos{Line: 1, Col: 1}}}

	for {
		tok, err := p.peek()
		if err != nil {
			return file, err
		}
		if tok.Kind == token.EOF {
			break
		}
		switch {
		case p.isKeyword(tok, "package"):
			if err := p.parsePackage(file); err != nil {
				return file, err
			}
		case p.isKeyword(tok, "import"):
			if err := p.parseImport(file); err != nil {
				return file, err
			}
		case p.isKeyword(tok, "options"):
			opts, err := p.parseOptionsBlock()
			if err != nil {
				return file, err
			}
			file.Options = append(file.Options, opts...)
		case p.isKeyword(tok, "struct"):
			sd, err := p.parseStruct()
			if err != nil {
				return file, err
			}
			file.Structs = append(file.Structs, sd)
		case p.isKeyword(tok, "enum"):
			ed, err := p.parseEnum()
			if err != nil {
				return file, err
			}
			file.Enums = append(file.Enums, ed)
		case p.isKeyword(tok, "extend"):
			ext, err := p.parseExtend()
			if err != nil {
				return file, err
			}
			file.Extensions = append(file.Extensions, ext)
		default:
			if err := p.errorf(p.pos(tok), "unexpected token %q at top level", tok.Text); err != nil {
				return file, err
			}
			if _, err := p.consume(); err != nil {
				return file, err
			}
		}
	}
	return file, nil
}

func (p *Parser) parsePackage(file *ast.File) error {
	if _, err := p.consume(); err != nil { // 'package'
		return err
	}
	name, _, err := p.dottedName()
	if err != nil {
		return err
	}
	file.Package = name
	_, err = p.expect(token.Semi)
	return err
}

func (p *Parser) parseImport(file *ast.File) error {
	kwTok, err := p.consume() // 'import'
	if err != nil {
		return err
	}
	pub := false
	tok, err := p.peek()
	if err != nil {
		return err
	}
	if p.isKeyword(tok, "public") {
		pub = true
		if _, err := p.consume(); err != nil {
			return err
		}
	}
	pathTok, err := p.expect(token.Str)
	if err != nil {
		return err
	}
	if _, err := p.expect(token.Semi); err != nil {
		return err
	}
	file.Imports = append(file.Imports, ast.Import{
		Pos:    p.pos(kwTok),
		Path:   pathTok.Text,
		Public: pub,
	})
	return nil
}

// parseOptionsBlock parses `options { opt; opt; ... }`.
func (p *Parser) parseOptionsBlock() ([]ast.Option, error) {
	if _, err := p.consume(); err != nil { // 'options'
		return nil, err
	}
	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}
	var opts []ast.Option
	for {
		tok, err := p.peek()
		if err != nil {
			return opts, err
		}
		if tok.Kind == token.RBrace {
			_, _ = p.consume()
			return opts, nil
		}
		opt, err := p.parseOptionStatement()
		if err != nil {
			return opts, err
		}
		opts = append(opts, opt)
	}
}

// parseOptionStatement parses one `name[:scope] = value;` statement.
func (p *Parser) parseOptionStatement() (ast.Option, error) {
	opt, err := p.parseOptionAssignment(token.Semi)
	if err != nil {
		return opt, err
	}
	_, err = p.expect(token.Semi)
	return opt, err
}

// parseOptionAssignment parses `name[:scope] = value` without consuming
// the terminator (the caller expects `term` next: Semi for statements,
// Comma/RBracket for bracketed option lists).
func (p *Parser) parseOptionAssignment(term token.Kind) (ast.Option, error) {
	nameTok, err := p.expect(token.Ident)
	if err != nil {
		return ast.Option{}, err
	}
	opt := ast.Option{Pos: p.pos(nameTok), Name: nameTok.Text}
	tok, err := p.peek()
	if err != nil {
		return opt, err
	}
	if tok.Kind == token.Colon {
		if _, err := p.consume(); err != nil {
			return opt, err
		}
		scopeTok, err := p.expect(token.Ident)
		if err != nil {
			return opt, err
		}
		opt.Scope = scopeTok.Text
	}
	if _, err := p.expect(token.Equals); err != nil {
		return opt, err
	}
	val, err := p.parseOptionValue()
	if err != nil {
		return opt, err
	}
	opt.Value = val
	_ = term
	return opt, nil
}

// parseOptionValue parses an option literal: bool, int, string, or list.
// Float and bytes literals are rejected here (spec §4.3, §9: "explicitly
// unimplemented").
func (p *Parser) parseOptionValue() (ast.OptionValue, error) {
	tok, err := p.peek()
	if err != nil {
		return ast.OptionValue{}, err
	}
	pos := p.pos(tok)
	switch {
	case tok.Kind == token.Str:
		if _, err := p.consume(); err != nil {
			return ast.OptionValue{}, err
		}
		s := tok.Text
		return ast.OptionValue{Pos: pos, Str: &s}, nil
	case tok.Kind == token.Int:
		if _, err := p.consume(); err != nil {
			return ast.OptionValue{}, err
		}
		n, err := lexer.ParseIntLiteral(tok.Text)
		if err != nil {
			if e := p.errorf(pos, "invalid integer literal %q: %v", tok.Text, err); e != nil {
				return ast.OptionValue{}, e
			}
		}
		return ast.OptionValue{Pos: pos, Int: &n}, nil
	case p.isKeyword(tok, "true") || p.isKeyword(tok, "false"):
		if _, err := p.consume(); err != nil {
			return ast.OptionValue{}, err
		}
		b := tok.Text == "true"
		return ast.OptionValue{Pos: pos, Bool: &b}, nil
	case tok.Kind == token.LBracket:
		if _, err := p.consume(); err != nil {
			return ast.OptionValue{}, err
		}
		var list []ast.OptionValue
		for {
			tok2, err := p.peek()
			if err != nil {
				return ast.OptionValue{}, err
			}
			if tok2.Kind == token.RBracket {
				_, _ = p.consume()
				return ast.OptionValue{Pos: pos, List: list}, nil
			}
			if len(list) > 0 {
				if _, err := p.expect(token.Comma); err != nil {
					return ast.OptionValue{}, err
				}
			}
			v, err := p.parseOptionValue()
			if err != nil {
				return ast.OptionValue{}, err
			}
			list = append(list, v)
		}
	default:
		return ast.OptionValue{}, p.errorf(pos, "unsupported option literal %q (float and bytes literals are not implemented)", tok.Text)
	}
}

// parseFieldOptions parses `[ name=value, name=value ]`.
func (p *Parser) parseFieldOptions() ([]ast.Option, error) {
	if _, err := p.expect(token.LBracket); err != nil {
		return nil, err
	}
	var opts []ast.Option
	for {
		tok, err := p.peek()
		if err != nil {
			return opts, err
		}
		if tok.Kind == token.RBracket {
			_, _ = p.consume()
			return opts, nil
		}
		if len(opts) > 0 {
			if _, err := p.expect(token.Comma); err != nil {
				return opts, err
			}
		}
		opt, err := p.parseOptionAssignment(token.Comma)
		if err != nil {
			return opts, err
		}
		opts = append(opts, opt)
	}
}

// parseTypeName parses `dotted.Name` or `name[args,...]`.
func (p *Parser) parseTypeName() (ast.TypeName, error) {
	name, pos, err := p.dottedName()
	if err != nil {
		return ast.TypeName{}, err
	}
	tn := ast.TypeName{Pos: pos, Name: name}
	tok, err := p.peek()
	if err != nil {
		return tn, err
	}
	if tok.Kind == token.LBracket {
		if _, err := p.consume(); err != nil {
			return tn, err
		}
		for {
			arg, err := p.parseTypeName()
			if err != nil {
				return tn, err
			}
			tn.Args = append(tn.Args, arg)
			tok, err := p.peek()
			if err != nil {
				return tn, err
			}
			if tok.Kind == token.Comma {
				if _, err := p.consume(); err != nil {
					return tn, err
				}
				continue
			}
			break
		}
		if _, err := p.expect(token.RBracket); err != nil {
			return tn, err
		}
	}
	return tn, nil
}

// parseFieldType parses an optional `const`/`shared` modifier prefix
// followed by a type name.
func (p *Parser) parseFieldType() (ast.FieldType, error) {
	tok, err := p.peek()
	if err != nil {
		return ast.FieldType{}, err
	}
	pos := p.pos(tok)
	isConst, isShared := false, false
	for p.isKeyword(tok, "const") || p.isKeyword(tok, "shared") {
		if p.isKeyword(tok, "const") {
			isConst = true
		} else {
			isShared = true
		}
		if _, err := p.consume(); err != nil {
			return ast.FieldType{}, err
		}
		tok, err = p.peek()
		if err != nil {
			return ast.FieldType{}, err
		}
	}
	base, err := p.parseTypeName()
	if err != nil {
		return ast.FieldType{}, err
	}
	if isConst || isShared {
		return ast.FieldType{Pos: pos, Modified: &ast.ModifiedType{Pos: pos, Base: base, Const: isConst, Shared: isShared}}, nil
	}
	return ast.FieldType{Pos: pos, Plain: &base}, nil
}

// parseStruct parses `struct Name [subtype-decl] { members }`.
func (p *Parser) parseStruct() (*ast.StructDef, error) {
	kwTok, err := p.consume() // 'struct'
	if err != nil {
		return nil, err
	}
	nameTok, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	sd := &ast.StructDef{Pos: p.pos(kwTok), Name: nameTok.Text}

	tok, err := p.peek()
	if err != nil {
		return sd, err
	}
	if tok.Kind == token.LParen || tok.Kind == token.Equals {
		decl, err := p.parseSubtypeDecl()
		if err != nil {
			return sd, err
		}
		sd.Subtype = decl
	}

	if _, err := p.expect(token.LBrace); err != nil {
		return sd, err
	}
	for {
		tok, err := p.peek()
		if err != nil {
			return sd, err
		}
		if tok.Kind == token.RBrace {
			_, _ = p.consume()
			return sd, nil
		}
		switch {
		case p.isKeyword(tok, "struct"):
			nested, err := p.parseStruct()
			if err != nil {
				return sd, err
			}
			sd.Structs = append(sd.Structs, nested)
		case p.isKeyword(tok, "enum"):
			nested, err := p.parseEnum()
			if err != nil {
				return sd, err
			}
			sd.Enums = append(sd.Enums, nested)
		case p.isKeyword(tok, "extend"):
			ext, err := p.parseExtend()
			if err != nil {
				return sd, err
			}
			sd.Extensions = append(sd.Extensions, ext)
		case p.isKeyword(tok, "options"):
			opts, err := p.parseOptionsBlock()
			if err != nil {
				return sd, err
			}
			sd.Options = append(sd.Options, opts...)
		case p.isKeyword(tok, "extensions"):
			rng, err := p.parseExtensionRange()
			if err != nil {
				return sd, err
			}
			if sd.ExtensionRange.Declared {
				if e := p.errorf(rng.Pos, "extension range already defined"); e != nil {
					return sd, e
				}
			} else {
				sd.ExtensionRange = rng
			}
		default:
			member, err := p.parseMember()
			if err != nil {
				return sd, err
			}
			switch m := member.(type) {
			case ast.Field:
				sd.Fields = append(sd.Fields, m)
			case ast.Method:
				sd.Methods = append(sd.Methods, m)
			}
		}
	}
}

// parseSubtypeDecl parses `(Base) = id` or `= id`.
func (p *Parser) parseSubtypeDecl() (*ast.SubtypeDecl, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	decl := &ast.SubtypeDecl{Pos: p.pos(tok)}
	if tok.Kind == token.LParen {
		if _, err := p.consume(); err != nil {
			return decl, err
		}
		base, err := p.parseTypeName()
		if err != nil {
			return decl, err
		}
		decl.BaseType = &base
		if _, err := p.expect(token.RParen); err != nil {
			return decl, err
		}
	}
	if _, err := p.expect(token.Equals); err != nil {
		return decl, err
	}
	idTok, err := p.peek()
	if err != nil {
		return decl, err
	}
	if idTok.Kind == token.Int {
		if _, err := p.consume(); err != nil {
			return decl, err
		}
		n, err := lexer.ParseIntLiteral(idTok.Text)
		if err != nil {
			if e := p.errorf(p.pos(idTok), "invalid type id %q: %v", idTok.Text, err); e != nil {
				return decl, e
			}
		}
		decl.TypeIDLit = &n
	} else {
		ref, err := p.parseTypeName()
		if err != nil {
			return decl, err
		}
		decl.TypeIDIdent = &ref
	}
	return decl, nil
}

// parseExtensionRange parses `extensions N to M;` or `extensions N to max;`.
func (p *Parser) parseExtensionRange() (ast.ExtensionRange, error) {
	kwTok, err := p.consume() // 'extensions'
	if err != nil {
		return ast.ExtensionRange{}, err
	}
	rng := ast.ExtensionRange{Pos: p.pos(kwTok), Declared: true}
	minTok, err := p.expect(token.Int)
	if err != nil {
		return rng, err
	}
	n, err := lexer.ParseIntLiteral(minTok.Text)
	if err != nil {
		if e := p.errorf(p.pos(minTok), "invalid extension id %q: %v", minTok.Text, err); e != nil {
			return rng, e
		}
	}
	rng.Min = uint32(n)
	if err := p.expectKeyword("to"); err != nil {
		return rng, err
	}
	tok, err := p.peek()
	if err != nil {
		return rng, err
	}
	if p.isKeyword(tok, "max") {
		if _, err := p.consume(); err != nil {
			return rng, err
		}
		rng.Max = MaxExtensionID
	} else {
		maxTok, err := p.expect(token.Int)
		if err != nil {
			return rng, err
		}
		m, err := lexer.ParseIntLiteral(maxTok.Text)
		if err != nil {
			if e := p.errorf(p.pos(maxTok), "invalid extension id %q: %v", maxTok.Text, err); e != nil {
				return rng, e
			}
		}
		rng.Max = uint32(m)
	}
	_, err = p.expect(token.Semi)
	return rng, err
}

// parseMember parses a field or method declaration and returns either an
// ast.Field or an ast.Method.
//
//	field:  name: type = index [options];
//	method: name(params) -> returnType = index [options];
//	        name(params) = index [options];   (void return)
func (p *Parser) parseMember() (interface{}, error) {
	nameTok, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind == token.LParen {
		return p.parseMethodTail(nameTok)
	}
	return p.parseFieldTail(nameTok)
}

func (p *Parser) parseFieldTail(nameTok token.Token) (ast.Field, error) {
	f := ast.Field{Pos: p.pos(nameTok), Name: nameTok.Text}
	if _, err := p.expect(token.Colon); err != nil {
		return f, err
	}
	ft, err := p.parseFieldType()
	if err != nil {
		return f, err
	}
	f.Type = ft
	if _, err := p.expect(token.Equals); err != nil {
		return f, err
	}
	idTok, err := p.expect(token.Int)
	if err != nil {
		return f, err
	}
	n, err := lexer.ParseIntLiteral(idTok.Text)
	if err != nil {
		if e := p.errorf(p.pos(idTok), "invalid field id %q: %v", idTok.Text, err); e != nil {
			return f, e
		}
	}
	f.Index = uint32(n)
	tok, err := p.peek()
	if err != nil {
		return f, err
	}
	if tok.Kind == token.LBracket {
		opts, err := p.parseFieldOptions()
		if err != nil {
			return f, err
		}
		f.Options = opts
	}
	_, err = p.expect(token.Semi)
	return f, err
}

func (p *Parser) parseMethodTail(nameTok token.Token) (ast.Method, error) {
	m := ast.Method{Pos: p.pos(nameTok), Name: nameTok.Text}
	if _, err := p.expect(token.LParen); err != nil {
		return m, err
	}
	for {
		tok, err := p.peek()
		if err != nil {
			return m, err
		}
		if tok.Kind == token.RParen {
			_, _ = p.consume()
			break
		}
		if len(m.Params) > 0 {
			if _, err := p.expect(token.Comma); err != nil {
				return m, err
			}
		}
		pnameTok, err := p.expect(token.Ident)
		if err != nil {
			return m, err
		}
		if _, err := p.expect(token.Colon); err != nil {
			return m, err
		}
		ptype, err := p.parseFieldType()
		if err != nil {
			return m, err
		}
		m.Params = append(m.Params, ast.Param{Pos: p.pos(pnameTok), Name: pnameTok.Text, Type: ptype})
	}
	tok, err := p.peek()
	if err != nil {
		return m, err
	}
	if tok.Kind == token.Arrow {
		if _, err := p.consume(); err != nil {
			return m, err
		}
		rt, err := p.parseFieldType()
		if err != nil {
			return m, err
		}
		m.ReturnType = &rt
	}
	if _, err := p.expect(token.Equals); err != nil {
		return m, err
	}
	idTok, err := p.expect(token.Int)
	if err != nil {
		return m, err
	}
	n, err := lexer.ParseIntLiteral(idTok.Text)
	if err != nil {
		if e := p.errorf(p.pos(idTok), "invalid method id %q: %v", idTok.Text, err); e != nil {
			return m, e
		}
	}
	m.Index = uint32(n)
	tok, err = p.peek()
	if err != nil {
		return m, err
	}
	if tok.Kind == token.LBracket {
		opts, err := p.parseFieldOptions()
		if err != nil {
			return m, err
		}
		m.Options = opts
	}
	_, err = p.expect(token.Semi)
	return m, err
}

func (p *Parser) parseEnum() (*ast.EnumDef, error) {
	kwTok, err := p.consume() // 'enum'
	if err != nil {
		return nil, err
	}
	nameTok, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	ed := &ast.EnumDef{Pos: p.pos(kwTok), Name: nameTok.Text}
	if _, err := p.expect(token.LBrace); err != nil {
		return ed, err
	}
	for {
		tok, err := p.peek()
		if err != nil {
			return ed, err
		}
		if tok.Kind == token.RBrace {
			_, _ = p.consume()
			return ed, nil
		}
		if p.isKeyword(tok, "options") {
			opts, err := p.parseOptionsBlock()
			if err != nil {
				return ed, err
			}
			ed.Options = append(ed.Options, opts...)
			continue
		}
		valNameTok, err := p.expect(token.Ident)
		if err != nil {
			return ed, err
		}
		if _, err := p.expect(token.Equals); err != nil {
			return ed, err
		}
		valTok, err := p.expect(token.Int)
		if err != nil {
			return ed, err
		}
		n, err := lexer.ParseIntLiteral(valTok.Text)
		if err != nil {
			if e := p.errorf(p.pos(valTok), "invalid enum value %q: %v", valTok.Text, err); e != nil {
				return ed, e
			}
		}
		if _, err := p.expect(token.Semi); err != nil {
			return ed, err
		}
		ed.Values = append(ed.Values, ast.EnumValue{Pos: p.pos(valNameTok), Name: valNameTok.Text, Value: n})
	}
}

// parseExtend parses `extend Target { field declarations }`.
func (p *Parser) parseExtend() (ast.ExtendDef, error) {
	kwTok, err := p.consume() // 'extend'
	if err != nil {
		return ast.ExtendDef{}, err
	}
	target, err := p.parseTypeName()
	if err != nil {
		return ast.ExtendDef{}, err
	}
	ext := ast.ExtendDef{Pos: p.pos(kwTok), Target: target}
	if _, err := p.expect(token.LBrace); err != nil {
		return ext, err
	}
	for {
		tok, err := p.peek()
		if err != nil {
			return ext, err
		}
		if tok.Kind == token.RBrace {
			_, _ = p.consume()
			return ext, nil
		}
		nameTok, err := p.expect(token.Ident)
		if err != nil {
			return ext, err
		}
		f, err := p.parseFieldTail(nameTok)
		if err != nil {
			return ext, err
		}
		ext.Fields = append(ext.Fields, f)
	}
}
