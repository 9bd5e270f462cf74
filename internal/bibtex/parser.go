// Package bibtex parses BibTeX text into catalog import records.
//
// The parser understands regular entries delimited by braces or parentheses,
// quoted and braced values with nesting, bare numeric values, '#'
// concatenation, and @string macros. @comment and @preamble blocks are
// skipped, as is any text outside an entry.
package bibtex

import (
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/bibliotheca/catalog-service/internal/domain"
)

// Entry is one raw BibTeX entry.
type Entry struct {
	// Type is the lowercased entry type, e.g. "inproceedings".
	Type string
	// Key is the citation key.
	Key string
	// Fields maps lowercased field names to their cleaned values.
	Fields map[string]string
}

// Field returns the trimmed value of the named field, or "" when absent.
func (e Entry) Field(name string) string {
	return strings.TrimSpace(e.Fields[name])
}

// SyntaxError reports malformed BibTeX input.
type SyntaxError struct {
	Line int
	Msg  string
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("bibtex syntax error at line %d: %s", e.Line, e.Msg)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *SyntaxError) Unwrap() error {
	return domain.ErrInvalidBibTeX
}

// ParseEntries reads every entry from r in source order.
func ParseEntries(r io.Reader) ([]Entry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read bibtex input: %w", err)
	}

	p := &parser{src: string(data), macros: defaultMacros()}
	if err := p.checkEncoding(); err != nil {
		return nil, err
	}
	return p.parse()
}

// checkEncoding rejects input the database cannot store: text must be
// UTF-8 and free of NUL bytes.
func (p *parser) checkEncoding() error {
	for i, r := range p.src {
		switch {
		case r == utf8.RuneError && !strings.HasPrefix(p.src[i:], "\uFFFD"):
			p.pos = i
			return p.errorf("invalid UTF-8 byte 0x%02x", p.src[i])
		case r == 0:
			p.pos = i
			return p.errorf("NUL byte in input")
		}
	}
	return nil
}

// defaultMacros holds the month abbreviations every BibTeX style predefines.
func defaultMacros() map[string]string {
	return map[string]string{
		"jan": "January", "feb": "February", "mar": "March", "apr": "April",
		"may": "May", "jun": "June", "jul": "July", "aug": "August",
		"sep": "September", "oct": "October", "nov": "November", "dec": "December",
	}
}

type parser struct {
	src    string
	pos    int
	macros map[string]string
}

func (p *parser) parse() ([]Entry, error) {
	var entries []Entry

	for {
		at := strings.IndexByte(p.src[p.pos:], '@')
		if at < 0 {
			return entries, nil
		}
		p.pos += at + 1

		start := p.pos
		typ := strings.ToLower(p.readIdent())
		p.skipSpace()
		if typ == "" || p.eof() || (p.peek() != '{' && p.peek() != '(') {
			// a stray '@' in free text
			p.pos = start
			continue
		}

		closer := byte('}')
		if p.peek() == '(' {
			closer = ')'
		}
		p.pos++

		switch typ {
		case "comment", "preamble":
			if err := p.skipBlock(closer); err != nil {
				return nil, err
			}
		case "string":
			if err := p.parseMacro(closer); err != nil {
				return nil, err
			}
		default:
			entry, err := p.parseEntry(typ, closer)
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		}
	}
}

func (p *parser) parseEntry(typ string, closer byte) (Entry, error) {
	entry := Entry{Type: typ, Fields: make(map[string]string)}

	p.skipSpace()
	keyStart := p.pos
	for !p.eof() && p.peek() != ',' && p.peek() != closer && !isSpace(p.peek()) {
		p.pos++
	}
	entry.Key = p.src[keyStart:p.pos]
	if entry.Key == "" {
		return Entry{}, p.errorf("missing citation key in @%s entry", typ)
	}

	p.skipSpace()
	if p.eof() {
		return Entry{}, p.errorf("unterminated entry %q", entry.Key)
	}
	if p.peek() == closer {
		p.pos++
		return entry, nil
	}
	if p.peek() != ',' {
		return Entry{}, p.errorf("expected ',' after citation key %q", entry.Key)
	}
	p.pos++

	for {
		p.skipSpace()
		if p.eof() {
			return Entry{}, p.errorf("unterminated entry %q", entry.Key)
		}
		if p.peek() == closer {
			p.pos++
			return entry, nil
		}

		name, value, err := p.parseField(closer)
		if err != nil {
			return Entry{}, err
		}
		entry.Fields[name] = value

		p.skipSpace()
		switch {
		case p.eof():
			return Entry{}, p.errorf("unterminated entry %q", entry.Key)
		case p.peek() == ',':
			p.pos++
		case p.peek() == closer:
			p.pos++
			return entry, nil
		default:
			return Entry{}, p.errorf("expected ',' or '%c' after field %q in entry %q", closer, name, entry.Key)
		}
	}
}

func (p *parser) parseMacro(closer byte) error {
	p.skipSpace()
	name, value, err := p.parseField(closer)
	if err != nil {
		return err
	}
	p.macros[name] = value

	p.skipSpace()
	if p.eof() || p.peek() != closer {
		return p.errorf("unterminated @string %q", name)
	}
	p.pos++
	return nil
}

// parseField reads `name = value`, returning the lowercased name and cleaned value.
func (p *parser) parseField(closer byte) (string, string, error) {
	name := strings.ToLower(p.readIdent())
	if name == "" {
		return "", "", p.errorf("expected field name")
	}

	p.skipSpace()
	if p.eof() || p.peek() != '=' {
		return "", "", p.errorf("expected '=' after field %q", name)
	}
	p.pos++

	var sb strings.Builder
	for {
		p.skipSpace()
		if p.eof() {
			return "", "", p.errorf("missing value for field %q", name)
		}

		part, err := p.parseValuePart(closer)
		if err != nil {
			return "", "", err
		}
		sb.WriteString(part)

		p.skipSpace()
		if p.eof() || p.peek() != '#' {
			break
		}
		p.pos++
	}

	return name, clean(sb.String()), nil
}

func (p *parser) parseValuePart(closer byte) (string, error) {
	switch c := p.peek(); {
	case c == '{':
		p.pos++
		start := p.pos
		if err := p.skipBlock('}'); err != nil {
			return "", err
		}
		return p.src[start : p.pos-1], nil
	case c == '"':
		p.pos++
		start := p.pos
		depth := 0
		for !p.eof() {
			switch p.peek() {
			case '{':
				depth++
			case '}':
				depth--
			case '"':
				if depth == 0 {
					value := p.src[start:p.pos]
					p.pos++
					return value, nil
				}
			}
			p.pos++
		}
		return "", p.errorf("unterminated quoted value")
	default:
		start := p.pos
		for !p.eof() && p.peek() != ',' && p.peek() != '#' && p.peek() != closer && !isSpace(p.peek()) {
			p.pos++
		}
		token := p.src[start:p.pos]
		if token == "" {
			return "", p.errorf("expected value")
		}
		if expansion, ok := p.macros[strings.ToLower(token)]; ok {
			return expansion, nil
		}
		return token, nil
	}
}

// skipBlock advances past the closer that balances an already consumed opener.
func (p *parser) skipBlock(closer byte) error {
	opener := byte('{')
	if closer == ')' {
		opener = '('
	}

	depth := 1
	for !p.eof() {
		switch p.peek() {
		case opener:
			depth++
		case closer:
			depth--
			if depth == 0 {
				p.pos++
				return nil
			}
		}
		p.pos++
	}
	return p.errorf("unbalanced '%c'", opener)
}

func (p *parser) readIdent() string {
	start := p.pos
	for !p.eof() {
		c := rune(p.peek())
		if !unicode.IsLetter(c) && !unicode.IsDigit(c) && !strings.ContainsRune("_-:.+/", c) {
			break
		}
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *parser) skipSpace() {
	for !p.eof() && isSpace(p.peek()) {
		p.pos++
	}
}

func (p *parser) peek() byte { return p.src[p.pos] }

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) errorf(format string, args ...interface{}) error {
	line := 1 + strings.Count(p.src[:min(p.pos, len(p.src))], "\n")
	return &SyntaxError{Line: line, Msg: fmt.Sprintf(format, args...)}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

// clean drops case-protection braces and collapses whitespace.
func clean(value string) string {
	value = strings.NewReplacer("{", "", "}", "").Replace(value)
	return strings.Join(strings.Fields(value), " ")
}
