package loader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zeusync/typedrpc/internal/core/schema/registry"
)

type exprKind int

const (
	exprName exprKind = iota
	exprVec
	exprOption
	exprArray
	exprTuple
	exprMap
)

// expr is a parsed type expression such as Vec<(Text, u32)> or [u8; 12].
type expr struct {
	kind   exprKind
	name   string
	args   []*expr
	length uint32
}

// String renders the canonical spelling, which is also the registry name
// of an anonymous composite.
func (e *expr) String() string {
	switch e.kind {
	case exprVec:
		return "Vec<" + e.args[0].String() + ">"
	case exprOption:
		return "Option<" + e.args[0].String() + ">"
	case exprArray:
		return fmt.Sprintf("[%s; %d]", e.args[0], e.length)
	case exprTuple:
		parts := make([]string, len(e.args))
		for i, a := range e.args {
			parts[i] = a.String()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case exprMap:
		return "BTreeMap<" + e.args[0].String() + ", " + e.args[1].String() + ">"
	default:
		return e.name
	}
}

// entryName names the key/value pair element of a map expression.
func (e *expr) entryName() string {
	return "MapEntry<" + e.args[0].String() + ", " + e.args[1].String() + ">"
}

// Canonical parses a type expression and returns its canonical spelling,
// e.g. "[u8;12]" becomes "[u8; 12]" and "HashMap<Text,u32>" becomes
// "BTreeMap<Text, u32>".
func Canonical(s string) (registry.TypeName, error) {
	e, err := parseExpr(s)
	if err != nil {
		return "", err
	}
	return registry.TypeName(e.String()), nil
}

func parseExpr(s string) (*expr, error) {
	p := &parser{src: s}
	e, err := p.parseType()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected %q", p.src[p.pos:])
	}
	return e, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %q at %d: %s", ErrSyntax, p.src, p.pos, fmt.Sprintf(format, args...))
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t' || p.src[p.pos] == '\n') {
		p.pos++
	}
}

func (p *parser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) expect(c byte) error {
	if p.peek() != c {
		return p.errorf("expected %q", c)
	}
	p.pos++
	return nil
}

func (p *parser) parseType() (*expr, error) {
	switch p.peek() {
	case '[':
		return p.parseArray()
	case '(':
		return p.parseTuple()
	case 0:
		return nil, p.errorf("expected a type")
	default:
		return p.parseNamed()
	}
}

func (p *parser) parseArray() (*expr, error) {
	p.pos++
	elem, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if err = p.expect(';'); err != nil {
		return nil, err
	}
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
		p.pos++
	}
	n, err := strconv.ParseUint(p.src[start:p.pos], 10, 32)
	if err != nil {
		return nil, p.errorf("bad array length")
	}
	if err = p.expect(']'); err != nil {
		return nil, err
	}
	return &expr{kind: exprArray, args: []*expr{elem}, length: uint32(n)}, nil
}

func (p *parser) parseTuple() (*expr, error) {
	p.pos++
	var members []*expr
	if p.peek() == ')' {
		p.pos++
		return &expr{kind: exprTuple}, nil
	}
	for {
		m, err := p.parseType()
		if err != nil {
			return nil, err
		}
		members = append(members, m)
		switch p.peek() {
		case ',':
			p.pos++
			// trailing comma
			if p.peek() == ')' {
				p.pos++
				return &expr{kind: exprTuple, args: members}, nil
			}
		case ')':
			p.pos++
			return &expr{kind: exprTuple, args: members}, nil
		default:
			return nil, p.errorf("expected ',' or ')'")
		}
	}
}

func isIdentByte(c byte, first bool) bool {
	switch {
	case c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
		return true
	case c >= '0' && c <= '9':
		return !first
	default:
		return false
	}
}

// parseIdent reads an identifier, dropping any path qualifier such as
// T::AccountId.
func (p *parser) parseIdent() (string, error) {
	p.skipSpace()
	for {
		start := p.pos
		for p.pos < len(p.src) && isIdentByte(p.src[p.pos], p.pos == start) {
			p.pos++
		}
		if p.pos == start {
			return "", p.errorf("expected an identifier")
		}
		ident := p.src[start:p.pos]
		if strings.HasPrefix(p.src[p.pos:], "::") {
			p.pos += 2
			continue
		}
		return ident, nil
	}
}

func (p *parser) parseNamed() (*expr, error) {
	name, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	if p.peek() != '<' {
		return &expr{kind: exprName, name: name}, nil
	}

	p.pos++
	var args []*expr
	for {
		a, err := p.parseType()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if p.peek() == ',' {
			p.pos++
			continue
		}
		if err = p.expect('>'); err != nil {
			return nil, err
		}
		break
	}

	arity := func(n int) error {
		if len(args) != n {
			return p.errorf("%s takes %d type arguments, got %d", name, n, len(args))
		}
		return nil
	}
	switch name {
	case "Vec", "VecDeque", "BTreeSet":
		if err = arity(1); err != nil {
			return nil, err
		}
		return &expr{kind: exprVec, args: args}, nil
	case "Option":
		if err = arity(1); err != nil {
			return nil, err
		}
		return &expr{kind: exprOption, args: args}, nil
	case "Box":
		if err = arity(1); err != nil {
			return nil, err
		}
		return args[0], nil
	case "BTreeMap", "HashMap":
		if err = arity(2); err != nil {
			return nil, err
		}
		return &expr{kind: exprMap, args: args}, nil
	default:
		return nil, fmt.Errorf("%w: %s<...> in %q", ErrUnsupportedExpr, name, p.src)
	}
}
