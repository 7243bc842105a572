// Package plan parses and executes multi-step command plans against the verb
// registry, with variable chaining between steps and undo-group bracketing
// around mutating plans.
package plan

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/wwise-tools/wwise-mcp/pkg/waapi"
)

// Step is one parsed plan entry: a verb name, its positional arguments,
// keyword arguments, and an optional variable name the result is stored under.
type Step struct {
	Command string
	Args    []any
	Kwargs  map[string]any
	SaveAs  string
}

// ParseStep accepts either call syntax ("verb(arg, kw=val)") or a structured
// object ({"command": ..., "args": {...}, "save_as": ...}) where "args" maps
// parameter names to values. A positional "args" list and a separate "kwargs"
// object are also accepted.
func ParseStep(raw any) (*Step, error) {
	switch v := raw.(type) {
	case string:
		return parseCall(v)
	case map[string]any:
		return parseStructured(v)
	default:
		return nil, waapi.NewValidationError("plan step must be a string or object, got %T", raw)
	}
}

func parseStructured(m map[string]any) (*Step, error) {
	command, _ := m["command"].(string)
	if strings.TrimSpace(command) == "" {
		return nil, waapi.NewValidationError("plan step object is missing a command")
	}
	step := &Step{Command: strings.TrimSpace(command), Kwargs: map[string]any{}}

	if args, ok := m["args"]; ok && args != nil {
		switch v := args.(type) {
		case map[string]any:
			for key, value := range v {
				step.Kwargs[key] = value
			}
		case []any:
			step.Args = v
		default:
			return nil, waapi.NewValidationError(
				"step %q: args must be an object of keyword arguments or a list, got %T", command, args)
		}
	}
	if kwargs, ok := m["kwargs"]; ok && kwargs != nil {
		kw, ok := kwargs.(map[string]any)
		if !ok {
			return nil, waapi.NewValidationError("step %q: kwargs must be an object, got %T", command, kwargs)
		}
		for key, value := range kw {
			if _, dup := step.Kwargs[key]; dup {
				return nil, waapi.NewValidationError("step %q: duplicate keyword %q", command, key)
			}
			step.Kwargs[key] = value
		}
	}
	if saveAs, ok := m["save_as"].(string); ok {
		step.SaveAs = strings.TrimPrefix(strings.TrimSpace(saveAs), "$")
	}
	return step, nil
}

// parseCall parses "verb(positional, key=value, ...)" where values are
// literals: quoted strings, numbers, booleans, None/null, lists, tuples,
// dicts, or $variable references.
func parseCall(src string) (*Step, error) {
	p := &parser{src: src}
	p.skipSpace()

	name := p.ident()
	if name == "" {
		return nil, waapi.NewValidationError("cannot parse plan step %q: expected a command name", src)
	}
	p.skipSpace()
	if !p.consume('(') {
		return nil, waapi.NewValidationError("cannot parse plan step %q: expected '(' after %q", src, name)
	}

	step := &Step{Command: name, Kwargs: map[string]any{}}
	p.skipSpace()
	if !p.consume(')') {
		for {
			p.skipSpace()

			// key=value when an identifier is followed by '='.
			if key := p.peekKeyword(); key != "" {
				p.pos += len(key)
				p.skipSpace()
				p.consume('=')
				value, err := p.value()
				if err != nil {
					return nil, parseError(src, err)
				}
				if _, dup := step.Kwargs[key]; dup {
					return nil, waapi.NewValidationError("cannot parse plan step %q: duplicate keyword %q", src, key)
				}
				step.Kwargs[key] = value
			} else {
				if len(step.Kwargs) > 0 {
					return nil, waapi.NewValidationError(
						"cannot parse plan step %q: positional argument after keyword argument", src)
				}
				value, err := p.value()
				if err != nil {
					return nil, parseError(src, err)
				}
				step.Args = append(step.Args, value)
			}

			p.skipSpace()
			if p.consume(',') {
				continue
			}
			if p.consume(')') {
				break
			}
			return nil, waapi.NewValidationError(
				"cannot parse plan step %q: expected ',' or ')' at offset %d", src, p.pos)
		}
	}

	p.skipSpace()
	if !p.done() {
		return nil, waapi.NewValidationError(
			"cannot parse plan step %q: unexpected trailing input at offset %d", src, p.pos)
	}
	return step, nil
}

func parseError(src string, err error) error {
	return waapi.NewValidationError("cannot parse plan step %q: %v", src, err)
}

type parser struct {
	src string
	pos int
}

func (p *parser) done() bool { return p.pos >= len(p.src) }

func (p *parser) skipSpace() {
	for !p.done() && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *parser) consume(c byte) bool {
	if !p.done() && p.src[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *parser) ident() string {
	start := p.pos
	for !p.done() {
		c := p.src[p.pos]
		if c == '_' || unicode.IsLetter(rune(c)) || (p.pos > start && unicode.IsDigit(rune(c))) {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

// peekKeyword returns the identifier at the cursor when it is followed by a
// single '=' (not '=='), without advancing.
func (p *parser) peekKeyword() string {
	save := p.pos
	name := p.ident()
	p.skipSpace()
	isKeyword := name != "" && !p.done() && p.src[p.pos] == '=' &&
		(p.pos+1 >= len(p.src) || p.src[p.pos+1] != '=')
	p.pos = save
	if !isKeyword {
		return ""
	}
	return name
}

func (p *parser) value() (any, error) {
	p.skipSpace()
	if p.done() {
		return nil, fmt.Errorf("unexpected end of input")
	}

	switch c := p.src[p.pos]; {
	case c == '\'' || c == '"':
		return p.stringLit(c)
	case c == '$':
		return p.varRef()
	case c == '[':
		return p.list('[', ']')
	case c == '(':
		return p.list('(', ')')
	case c == '{':
		return p.dict()
	case c == '-' || unicode.IsDigit(rune(c)):
		return p.number()
	default:
		return p.word()
	}
}

func (p *parser) stringLit(quote byte) (string, error) {
	p.pos++ // opening quote
	var b strings.Builder
	for !p.done() {
		c := p.src[p.pos]
		switch c {
		case quote:
			p.pos++
			return b.String(), nil
		case '\\':
			p.pos++
			if p.done() {
				return "", fmt.Errorf("unterminated escape in string literal")
			}
			switch esc := p.src[p.pos]; esc {
			case '\\', '\'', '"':
				b.WriteByte(esc)
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				// Keep unknown escapes verbatim; project paths are
				// backslash-heavy.
				b.WriteByte('\\')
				b.WriteByte(esc)
			}
			p.pos++
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return "", fmt.Errorf("unterminated string literal")
}

// varRef captures a $name or $name.field reference as a string for later
// resolution against the plan's variable store.
func (p *parser) varRef() (string, error) {
	start := p.pos
	p.pos++ // '$'
	if p.ident() == "" {
		return "", fmt.Errorf("expected a variable name after '$'")
	}
	if p.consume('.') {
		if p.ident() == "" {
			return "", fmt.Errorf("expected a field name after '.' in variable reference")
		}
	}
	return p.src[start:p.pos], nil
}

func (p *parser) list(open, close byte) ([]any, error) {
	p.pos++ // open
	items := []any{}
	p.skipSpace()
	if p.consume(close) {
		return items, nil
	}
	for {
		item, err := p.value()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		p.skipSpace()
		if p.consume(',') {
			p.skipSpace()
			// trailing comma
			if p.consume(close) {
				return items, nil
			}
			continue
		}
		if p.consume(close) {
			return items, nil
		}
		return nil, fmt.Errorf("expected ',' or %q in list at offset %d", string(close), p.pos)
	}
}

func (p *parser) dict() (map[string]any, error) {
	p.pos++ // '{'
	out := map[string]any{}
	p.skipSpace()
	if p.consume('}') {
		return out, nil
	}
	for {
		p.skipSpace()
		if p.done() || (p.src[p.pos] != '\'' && p.src[p.pos] != '"') {
			return nil, fmt.Errorf("expected a quoted key in dict at offset %d", p.pos)
		}
		key, err := p.stringLit(p.src[p.pos])
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if !p.consume(':') {
			return nil, fmt.Errorf("expected ':' after dict key %q", key)
		}
		value, err := p.value()
		if err != nil {
			return nil, err
		}
		out[key] = value
		p.skipSpace()
		if p.consume(',') {
			p.skipSpace()
			if p.consume('}') {
				return out, nil
			}
			continue
		}
		if p.consume('}') {
			return out, nil
		}
		return nil, fmt.Errorf("expected ',' or '}' in dict at offset %d", p.pos)
	}
}

func (p *parser) number() (any, error) {
	start := p.pos
	p.consume('-')
	for !p.done() {
		c := p.src[p.pos]
		if unicode.IsDigit(rune(c)) || c == '.' || c == 'e' || c == 'E' ||
			((c == '+' || c == '-') && (p.src[p.pos-1] == 'e' || p.src[p.pos-1] == 'E')) {
			p.pos++
			continue
		}
		break
	}
	text := p.src[start:p.pos]
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", text)
	}
	return f, nil
}

// word handles bare literals: booleans and null in both Python and JSON
// spelling.
func (p *parser) word() (any, error) {
	name := p.ident()
	switch name {
	case "True", "true":
		return true, nil
	case "False", "false":
		return false, nil
	case "None", "null":
		return nil, nil
	case "":
		return nil, fmt.Errorf("unexpected character %q at offset %d", string(p.src[p.pos]), p.pos)
	default:
		return nil, fmt.Errorf("unexpected bare word %q (strings must be quoted)", name)
	}
}
