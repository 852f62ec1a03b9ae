package textcodec

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/codaschema/coda/object"
	"github.com/codaschema/coda/registry"
	"github.com/codaschema/coda/schema"
)

// Decoder parses CODA's text wire format back into Instances. It shares
// the lexer package's hand-rolled-scanner approach rather than pulling
// in a grammar library, since the text format's token set is tiny and
// the teacher's own lexer is the closest grounded precedent.
type Decoder struct {
	src  []rune
	pos  int
	reg  *registry.Registry
	refs map[uint32]*object.Instance
}

// NewDecoder creates a Decoder reading src against reg (used to resolve
// `$N` subtype tags to concrete StructDescriptors).
func NewDecoder(src string, reg *registry.Registry) *Decoder {
	return &Decoder{src: []rune(src), reg: reg, refs: map[uint32]*object.Instance{}}
}

func (d *Decoder) peek() rune {
	d.skipSpace()
	if d.pos >= len(d.src) {
		return 0
	}
	return d.src[d.pos]
}

func (d *Decoder) skipSpace() {
	for d.pos < len(d.src) && unicode.IsSpace(d.src[d.pos]) {
		d.pos++
	}
}

func (d *Decoder) next() rune {
	d.skipSpace()
	if d.pos >= len(d.src) {
		return 0
	}
	r := d.src[d.pos]
	d.pos++
	return r
}

func (d *Decoder) expect(r rune) error {
	got := d.next()
	if got != r {
		return fmt.Errorf("textcodec: expected %q, got %q at offset %d", r, got, d.pos)
	}
	return nil
}

func (d *Decoder) readIdent() string {
	d.skipSpace()
	start := d.pos
	for d.pos < len(d.src) && (unicode.IsLetter(d.src[d.pos]) || unicode.IsDigit(d.src[d.pos]) || d.src[d.pos] == '_' || d.src[d.pos] == '.') {
		d.pos++
	}
	return string(d.src[start:d.pos])
}

func (d *Decoder) readNumber() (string, error) {
	d.skipSpace()
	start := d.pos
	if d.pos < len(d.src) && (d.src[d.pos] == '-' || d.src[d.pos] == '+') {
		d.pos++
	}
	for d.pos < len(d.src) && (unicode.IsDigit(d.src[d.pos]) || d.src[d.pos] == '.' || d.src[d.pos] == 'e' || d.src[d.pos] == 'E' || d.src[d.pos] == '-' || d.src[d.pos] == '+') {
		d.pos++
	}
	if d.pos == start {
		return "", fmt.Errorf("textcodec: expected number at offset %d", d.pos)
	}
	return string(d.src[start:d.pos]), nil
}

func (d *Decoder) readQuotedString() (string, error) {
	if err := d.expect('"'); err != nil {
		return "", err
	}
	var sb strings.Builder
	for {
		if d.pos >= len(d.src) {
			return "", fmt.Errorf("textcodec: unterminated string literal")
		}
		r := d.src[d.pos]
		d.pos++
		if r == '"' {
			return sb.String(), nil
		}
		if r == '\\' && d.pos < len(d.src) {
			esc := d.src[d.pos]
			d.pos++
			switch esc {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case '"', '\\':
				sb.WriteRune(esc)
			default:
				sb.WriteRune(esc)
			}
			continue
		}
		sb.WriteRune(r)
	}
}

// Decode parses one top-level struct value.
func (d *Decoder) Decode(desc *schema.StructDescriptor) (*object.Instance, error) {
	return d.decodeStruct(desc, 0)
}

func (d *Decoder) decodeStruct(desc *schema.StructDescriptor, depth int) (*object.Instance, error) {
	if depth > MaxDepth {
		return nil, fmt.Errorf("textcodec: max nesting depth %d exceeded", MaxDepth)
	}
	if d.peek() == 'n' {
		ident := d.readIdent()
		if ident == "null" {
			return nil, nil
		}
		return nil, fmt.Errorf("textcodec: unexpected identifier %q", ident)
	}
	if d.peek() == '$' {
		d.next()
		numStr, err := d.readNumber()
		if err != nil {
			return nil, err
		}
		id, err := strconv.ParseUint(numStr, 10, 32)
		if err != nil {
			return nil, err
		}
		if err := d.expect('('); err != nil {
			return nil, err
		}
		d.readIdent() // the printed type name; the registry id is authoritative
		if err := d.expect(')'); err != nil {
			return nil, err
		}
		sub, ok := d.reg.Subtype(desc, uint32(id))
		if !ok {
			return nil, fmt.Errorf("textcodec: unknown subtype id %d of %s", id, desc.FullName())
		}
		desc = sub
	} else if d.peek() == '(' {
		d.next()
		d.readIdent()
		if err := d.expect(')'); err != nil {
			return nil, err
		}
	}

	if err := d.expect(':'); err != nil {
		return nil, err
	}
	if err := d.expect('{'); err != nil {
		return nil, err
	}

	inst := object.New(desc)
	for d.peek() != '}' {
		name := d.readIdent()
		fd := desc.FieldByName(name)
		if err := d.expect(':'); err != nil {
			return nil, err
		}
		if fd == nil {
			if err := d.skipValue(depth); err != nil {
				return nil, err
			}
		} else {
			v, err := d.decodeValue(fd.Type, depth+1)
			if err != nil {
				return nil, err
			}
			if v != nil {
				inst.Set(fd, v)
			}
		}
		if d.peek() == ';' {
			d.next()
		}
	}
	if err := d.expect('}'); err != nil {
		return nil, err
	}
	return inst, nil
}

func (d *Decoder) decodeValue(t schema.Type, depth int) (interface{}, error) {
	switch t.Kind() {
	case schema.KindBool:
		ident := d.readIdent()
		return ident == "true", nil
	case schema.KindInteger, schema.KindEnum:
		s, err := d.readNumber()
		if err != nil {
			return nil, err
		}
		v, err := strconv.ParseInt(s, 10, 64)
		return v, err
	case schema.KindFloat:
		s, err := d.readNumber()
		if err != nil {
			return nil, err
		}
		v, err := strconv.ParseFloat(s, 32)
		return float32(v), err
	case schema.KindDouble:
		s, err := d.readNumber()
		if err != nil {
			return nil, err
		}
		return strconv.ParseFloat(s, 64)
	case schema.KindString:
		return d.readQuotedString()
	case schema.KindBytes:
		return d.readBinaryLiteral()
	case schema.KindList:
		return d.decodeList(t.Elem(), depth)
	case schema.KindSet:
		return d.decodeSet(t.Elem(), depth)
	case schema.KindMap:
		return d.decodeMap(t.Key(), t.Val(), depth)
	case schema.KindModified:
		if t.IsShared() {
			return d.decodeSharedRef(t, depth)
		}
		return d.decodeStruct(t.Elem().Struct(), depth)
	case schema.KindStruct:
		return d.decodeStruct(t.Struct(), depth)
	default:
		return nil, fmt.Errorf("textcodec: unsupported type kind %s", t.Kind())
	}
}

func (d *Decoder) readBinaryLiteral() ([]byte, error) {
	if err := d.expect('<'); err != nil {
		return nil, err
	}
	if err := d.expect('['); err != nil {
		return nil, err
	}
	start := d.pos
	for d.pos < len(d.src) && d.src[d.pos] != ']' {
		d.pos++
	}
	hexStr := strings.TrimSpace(string(d.src[start:d.pos]))
	if err := d.expect(']'); err != nil {
		return nil, err
	}
	if err := d.expect('>'); err != nil {
		return nil, err
	}
	if hexStr == "" {
		return nil, nil
	}
	out := make([]byte, len(hexStr)/2)
	for i := range out {
		var b int
		if _, err := fmt.Sscanf(hexStr[i*2:i*2+2], "%02x", &b); err != nil {
			return nil, err
		}
		out[i] = byte(b)
	}
	return out, nil
}

func (d *Decoder) decodeList(elem schema.Type, depth int) (*object.List, error) {
	if err := d.expect('['); err != nil {
		return nil, err
	}
	l := &object.List{}
	for d.peek() != ']' {
		v, err := d.decodeValue(elem, depth)
		if err != nil {
			return nil, err
		}
		l.Elems = append(l.Elems, v)
		if d.peek() == ',' {
			d.next()
		}
	}
	if err := d.expect(']'); err != nil {
		return nil, err
	}
	return l, nil
}

func (d *Decoder) decodeSet(elem schema.Type, depth int) (*object.Set, error) {
	if err := d.expect('['); err != nil {
		return nil, err
	}
	s := &object.Set{}
	for d.peek() != ']' {
		v, err := d.decodeValue(elem, depth)
		if err != nil {
			return nil, err
		}
		s.Add(v)
		if d.peek() == ',' {
			d.next()
		}
	}
	if err := d.expect(']'); err != nil {
		return nil, err
	}
	return s, nil
}

func (d *Decoder) decodeMap(key, val schema.Type, depth int) (interface{}, error) {
	if err := d.expect('{'); err != nil {
		return nil, err
	}
	m := &object.Map{}
	for d.peek() != '}' {
		k, err := d.decodeValue(key, depth)
		if err != nil {
			return nil, err
		}
		if err := d.expectArrow(); err != nil {
			return nil, err
		}
		v, err := d.decodeValue(val, depth)
		if err != nil {
			return nil, err
		}
		m.Set(k, v)
		if d.peek() == ',' {
			d.next()
		}
	}
	if err := d.expect('}'); err != nil {
		return nil, err
	}
	return m, nil
}

func (d *Decoder) expectArrow() error {
	if err := d.expect('='); err != nil {
		return err
	}
	return d.expect('>')
}

func (d *Decoder) decodeSharedRef(t schema.Type, depth int) (interface{}, error) {
	switch d.peek() {
	case '%':
		d.next()
		s, err := d.readNumber()
		if err != nil {
			return nil, err
		}
		id, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return nil, err
		}
		inst, ok := d.refs[uint32(id)]
		if !ok {
			return nil, fmt.Errorf("textcodec: forward shared reference %%%d", id)
		}
		return inst, nil
	case '#':
		d.next()
		s, err := d.readNumber()
		if err != nil {
			return nil, err
		}
		id, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return nil, err
		}
		inst, err := d.decodeStruct(t.Elem().Struct(), depth)
		if err != nil {
			return nil, err
		}
		d.refs[uint32(id)] = inst
		return inst, nil
	default:
		return d.decodeStruct(t.Elem().Struct(), depth)
	}
}

// skipValue discards one value of unknown type, used for forward
// compatibility when a field name in the source isn't in the current
// descriptor.
func (d *Decoder) skipValue(depth int) error {
	switch d.peek() {
	case '"':
		_, err := d.readQuotedString()
		return err
	case '[':
		d.next()
		for d.peek() != ']' {
			if err := d.skipValue(depth); err != nil {
				return err
			}
			if d.peek() == ',' {
				d.next()
			}
		}
		return d.expect(']')
	case '{':
		d.next()
		for d.peek() != '}' {
			if err := d.skipValue(depth); err != nil {
				return err
			}
			if d.peek() == '=' {
				d.expectArrow()
				if err := d.skipValue(depth); err != nil {
					return err
				}
			}
			if d.peek() == ',' {
				d.next()
			}
		}
		return d.expect('}')
	case '<':
		_, err := d.readBinaryLiteral()
		return err
	case '$':
		d.next()
		d.readNumber()
		d.expect('(')
		d.readIdent()
		d.expect(')')
		return d.skipValue(depth)
	case '(':
		d.next()
		d.readIdent()
		d.expect(')')
		return d.skipValue(depth)
	case '%':
		d.next()
		_, err := d.readNumber()
		return err
	case '#':
		d.next()
		if _, err := d.readNumber(); err != nil {
			return err
		}
		return d.skipValue(depth)
	default:
		ident := d.readIdent()
		if ident == "" {
			if _, err := d.readNumber(); err != nil {
				return fmt.Errorf("textcodec: cannot skip value at offset %d", d.pos)
			}
		}
		return nil
	}
}
