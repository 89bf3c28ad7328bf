// Package sqlident locates the table reference of a generated query.
//
// It is not a SQL parser. It walks the text once, skipping string literals
// and comments and tracking parenthesis depth, and picks the first top-level
// FROM keyword. The token after it must be exactly dataset.table.
package sqlident

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrMalformedIdentifier marks a FROM target that is not exactly dataset.table.
var ErrMalformedIdentifier = errors.New("malformed table identifier")

// Ref is a dataset-qualified table name.
type Ref struct {
	Dataset string
	Table   string
}

func (r Ref) String() string {
	return r.Dataset + "." + r.Table
}

// ExtractTableRef returns the table referenced by the first top-level FROM
// clause of sqlText. found is false when there is no such clause; err wraps
// ErrMalformedIdentifier when the reference is not exactly dataset.table.
//
// A derived table (FROM followed by a parenthesised query) is resolved to the
// first FROM clause inside it.
func ExtractTableRef(sqlText string) (ref Ref, found bool, err error) {
	return resolve(tokenize(sqlText), 0, 0)
}

func resolve(tokens []token, start, depth int) (Ref, bool, error) {
	for i := start; i < len(tokens); i++ {
		tok := tokens[i]
		if tok.depth < depth {
			break
		}
		if tok.depth != depth || tok.quoted || !strings.EqualFold(tok.text, "FROM") {
			continue
		}
		if i+1 >= len(tokens) || tokens[i+1].depth < depth {
			return Ref{}, true, fmt.Errorf("%w: missing table after FROM", ErrMalformedIdentifier)
		}
		next := tokens[i+1]
		if next.depth > depth {
			ref, found, err := resolve(tokens, i+1, next.depth)
			if !found && err == nil {
				return Ref{}, true, fmt.Errorf("%w: derived table without FROM", ErrMalformedIdentifier)
			}
			return ref, true, err
		}
		ref, err := splitRef(next.text)
		return ref, true, err
	}
	return Ref{}, false, nil
}

func splitRef(raw string) (Ref, error) {
	name := strings.TrimRight(raw, ";,")
	parts := strings.Split(name, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Ref{}, fmt.Errorf("%w: %q", ErrMalformedIdentifier, raw)
	}
	return Ref{Dataset: parts[0], Table: parts[1]}, nil
}

type token struct {
	text   string
	depth  int
	quoted bool
}

// tokenize splits on whitespace, commas and parentheses. String literals and
// comments are dropped; quoted identifiers are unwrapped into the token they
// are glued to, so `sales`.`orders` becomes sales.orders.
func tokenize(sqlText string) []token {
	var (
		tokens  []token
		current strings.Builder
		quoted  bool
		depth   int
	)
	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, token{text: current.String(), depth: depth, quoted: quoted})
		}
		current.Reset()
		quoted = false
	}

	runes := []rune(sqlText)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case unicode.IsSpace(r) || r == ',':
			flush()
		case r == '-' && i+1 < len(runes) && runes[i+1] == '-':
			flush()
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
		case r == '/' && i+1 < len(runes) && runes[i+1] == '*':
			flush()
			i += 2
			for i+1 < len(runes) && !(runes[i] == '*' && runes[i+1] == '/') {
				i++
			}
			i++
		case r == '\'':
			flush()
			i = skipQuoted(runes, i, '\'')
		case r == '`' || r == '"':
			quoted = true
			end := skipQuoted(runes, i, r)
			for _, inner := range runes[i+1 : min(end, len(runes))] {
				current.WriteRune(inner)
			}
			i = end
		case r == '(':
			flush()
			depth++
		case r == ')':
			flush()
			if depth > 0 {
				depth--
			}
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return tokens
}

// skipQuoted returns the index of the quote closing the one at start,
// honouring doubled quotes and backslash escapes.
func skipQuoted(runes []rune, start int, quote rune) int {
	for i := start + 1; i < len(runes); i++ {
		switch runes[i] {
		case '\\':
			i++
		case quote:
			if i+1 < len(runes) && runes[i+1] == quote {
				i++
				continue
			}
			return i
		}
	}
	return len(runes)
}
