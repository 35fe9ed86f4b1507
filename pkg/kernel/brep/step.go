package brep

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
)

// ISO 10303-21 exchange structure: a HEADER section followed by a DATA
// section of "#id = RECORD(params);" instances. Complex instances list
// several records inside parentheses.

// stepRef is an entity instance name (#12).
type stepRef int

// stepEnum is an enumeration value (.T., .UNSPECIFIED.).
type stepEnum string

// stepTyped is a typed parameter such as LENGTH_MEASURE(2.5).
type stepTyped struct {
	name string
	args []any
}

// stepRecord is one NAME(params) record.
type stepRecord struct {
	name string
	args []any
}

// stepEntity is a simple (one record) or complex instance.
type stepEntity struct {
	id      int
	records []stepRecord
}

// record returns the record with the given name.
func (e *stepEntity) record(name string) (stepRecord, bool) {
	for _, r := range e.records {
		if r.name == name {
			return r, true
		}
	}
	return stepRecord{}, false
}

// is reports whether the entity carries a record with the given name.
func (e *stepEntity) is(name string) bool {
	_, ok := e.record(name)
	return ok
}

// stepFile is the parsed DATA section.
type stepFile struct {
	entities map[int]*stepEntity
	order    []int
}

func (f *stepFile) get(ref any) (*stepEntity, error) {
	r, ok := ref.(stepRef)
	if !ok {
		return nil, fmt.Errorf("expected entity reference, got %T", ref)
	}
	e, ok := f.entities[int(r)]
	if !ok {
		return nil, fmt.Errorf("dangling reference #%d", r)
	}
	return e, nil
}

// parseSTEP reads an exchange structure.
func parseSTEP(r io.Reader) (*stepFile, error) {
	lx := &stepLexer{r: bufio.NewReader(r)}
	tok, err := lx.next()
	if err != nil {
		return nil, err
	}
	if tok.kind != tokKeyword || tok.text != "ISO-10303-21" {
		return nil, fmt.Errorf("missing ISO-10303-21 header")
	}

	f := &stepFile{entities: make(map[int]*stepEntity)}
	inData := false
	for {
		tok, err := lx.next()
		if err != nil {
			return nil, err
		}
		switch {
		case tok.kind == tokEOF:
			return nil, fmt.Errorf("unexpected end of file")
		case tok.kind == tokKeyword && tok.text == "END-ISO-10303-21":
			if len(f.order) == 0 {
				return nil, fmt.Errorf("no DATA section instances")
			}
			return f, nil
		case tok.kind == tokKeyword && tok.text == "DATA":
			inData = true
		case tok.kind == tokKeyword && tok.text == "ENDSEC":
			inData = false
		case tok.kind == tokRef && inData:
			e, err := parseInstance(lx, int(tok.num))
			if err != nil {
				return nil, fmt.Errorf("#%d: %w", int(tok.num), err)
			}
			if _, dup := f.entities[e.id]; dup {
				return nil, fmt.Errorf("duplicate instance #%d", e.id)
			}
			f.entities[e.id] = e
			f.order = append(f.order, e.id)
		}
	}
}

func parseInstance(lx *stepLexer, id int) (*stepEntity, error) {
	if err := lx.expect(tokEquals); err != nil {
		return nil, err
	}
	e := &stepEntity{id: id}
	tok, err := lx.next()
	if err != nil {
		return nil, err
	}
	switch tok.kind {
	case tokKeyword:
		args, err := parseParams(lx)
		if err != nil {
			return nil, err
		}
		e.records = []stepRecord{{name: tok.text, args: args}}
	case tokLParen:
		for {
			tok, err := lx.next()
			if err != nil {
				return nil, err
			}
			if tok.kind == tokRParen {
				break
			}
			if tok.kind != tokKeyword {
				return nil, fmt.Errorf("expected record name in complex instance, got %q", tok.text)
			}
			args, err := parseParams(lx)
			if err != nil {
				return nil, err
			}
			e.records = append(e.records, stepRecord{name: tok.text, args: args})
		}
	default:
		return nil, fmt.Errorf("unexpected %q after '='", tok.text)
	}
	return e, lx.expect(tokSemicolon)
}

// parseParams parses a parenthesised parameter list, the opening
// parenthesis included.
func parseParams(lx *stepLexer) ([]any, error) {
	if err := lx.expect(tokLParen); err != nil {
		return nil, err
	}
	args := []any{}
	for {
		tok, err := lx.next()
		if err != nil {
			return nil, err
		}
		if tok.kind == tokRParen {
			return args, nil
		}
		if tok.kind == tokComma {
			continue
		}
		v, err := parseValue(lx, tok)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
}

func parseValue(lx *stepLexer, tok stepToken) (any, error) {
	switch tok.kind {
	case tokNumber:
		return tok.num, nil
	case tokString:
		return tok.text, nil
	case tokRef:
		return stepRef(tok.num), nil
	case tokEnum:
		return stepEnum(tok.text), nil
	case tokUnset:
		return nil, nil
	case tokLParen:
		lx.unread(tok)
		return parseParams(lx)
	case tokKeyword:
		args, err := parseParams(lx)
		if err != nil {
			return nil, err
		}
		return stepTyped{name: tok.text, args: args}, nil
	}
	return nil, fmt.Errorf("unexpected token %q", tok.text)
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokKeyword
	tokNumber
	tokString
	tokRef
	tokEnum
	tokUnset
	tokLParen
	tokRParen
	tokComma
	tokEquals
	tokSemicolon
)

type stepToken struct {
	kind tokenKind
	text string
	num  float64
}

type stepLexer struct {
	r       *bufio.Reader
	pending *stepToken
}

func (lx *stepLexer) unread(t stepToken) {
	lx.pending = &t
}

func (lx *stepLexer) expect(k tokenKind) error {
	tok, err := lx.next()
	if err != nil {
		return err
	}
	if tok.kind != k {
		return fmt.Errorf("unexpected %q", tok.text)
	}
	return nil
}

func (lx *stepLexer) next() (stepToken, error) {
	if lx.pending != nil {
		t := *lx.pending
		lx.pending = nil
		return t, nil
	}
	for {
		c, err := lx.r.ReadByte()
		if err == io.EOF {
			return stepToken{kind: tokEOF}, nil
		}
		if err != nil {
			return stepToken{}, err
		}
		switch {
		case unicode.IsSpace(rune(c)):
			continue
		case c == '/':
			if p, _ := lx.r.Peek(1); len(p) == 1 && p[0] == '*' {
				if err := lx.skipComment(); err != nil {
					return stepToken{}, err
				}
				continue
			}
			return stepToken{}, fmt.Errorf("stray '/'")
		case c == '(':
			return stepToken{kind: tokLParen, text: "("}, nil
		case c == ')':
			return stepToken{kind: tokRParen, text: ")"}, nil
		case c == ',':
			return stepToken{kind: tokComma, text: ","}, nil
		case c == '=':
			return stepToken{kind: tokEquals, text: "="}, nil
		case c == ';':
			return stepToken{kind: tokSemicolon, text: ";"}, nil
		case c == '$' || c == '*':
			return stepToken{kind: tokUnset, text: string(c)}, nil
		case c == '\'':
			s, err := lx.readString()
			return stepToken{kind: tokString, text: s}, err
		case c == '.':
			s, err := lx.readUntil('.')
			return stepToken{kind: tokEnum, text: s}, err
		case c == '#':
			s := lx.readWhile(func(b byte) bool { return b >= '0' && b <= '9' })
			n, err := strconv.Atoi(s)
			if err != nil {
				return stepToken{}, fmt.Errorf("bad instance name #%s", s)
			}
			return stepToken{kind: tokRef, text: "#" + s, num: float64(n)}, nil
		case c == '-' || c == '+' || (c >= '0' && c <= '9'):
			s := string(c) + lx.readWhile(isNumberByte)
			if s == "-" || s == "+" {
				// Keywords such as END-ISO-10303-21 are handled below.
				return stepToken{}, fmt.Errorf("stray %q", s)
			}
			n, err := strconv.ParseFloat(normalizeReal(s), 64)
			if err != nil {
				return stepToken{}, fmt.Errorf("bad number %q", s)
			}
			return stepToken{kind: tokNumber, text: s, num: n}, nil
		case c == '_' || unicode.IsLetter(rune(c)):
			s := string(c) + lx.readWhile(func(b byte) bool {
				return b == '_' || b == '-' || unicode.IsLetter(rune(b)) || unicode.IsDigit(rune(b))
			})
			return stepToken{kind: tokKeyword, text: strings.ToUpper(s)}, nil
		default:
			return stepToken{}, fmt.Errorf("unexpected character %q", c)
		}
	}
}

func isNumberByte(b byte) bool {
	return (b >= '0' && b <= '9') || b == '.' || b == 'E' || b == 'e' || b == '-' || b == '+'
}

// normalizeReal turns STEP reals like "1.E-07" or "3." into Go syntax.
func normalizeReal(s string) string {
	s = strings.Replace(s, ".E", ".0E", 1)
	s = strings.Replace(s, ".e", ".0e", 1)
	if strings.HasSuffix(s, ".") {
		s += "0"
	}
	return s
}

func (lx *stepLexer) readWhile(ok func(byte) bool) string {
	var sb strings.Builder
	for {
		p, err := lx.r.Peek(1)
		if err != nil || !ok(p[0]) {
			return sb.String()
		}
		b, _ := lx.r.ReadByte()
		sb.WriteByte(b)
	}
}

func (lx *stepLexer) readUntil(end byte) (string, error) {
	s, err := lx.r.ReadString(end)
	if err != nil {
		return "", fmt.Errorf("unterminated token")
	}
	return s[:len(s)-1], nil
}

// readString reads a quoted string; a doubled quote is an escaped quote.
func (lx *stepLexer) readString() (string, error) {
	var sb strings.Builder
	for {
		s, err := lx.readUntil('\'')
		if err != nil {
			return "", fmt.Errorf("unterminated string")
		}
		sb.WriteString(s)
		if p, _ := lx.r.Peek(1); len(p) == 1 && p[0] == '\'' {
			lx.r.ReadByte()
			sb.WriteByte('\'')
			continue
		}
		return sb.String(), nil
	}
}

func (lx *stepLexer) skipComment() error {
	lx.r.ReadByte() // '*'
	prev := byte(0)
	for {
		c, err := lx.r.ReadByte()
		if err != nil {
			return fmt.Errorf("unterminated comment")
		}
		if prev == '*' && c == '/' {
			return nil
		}
		prev = c
	}
}
