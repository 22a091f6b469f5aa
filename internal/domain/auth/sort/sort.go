// Package sort parses compact sort-directive strings such as
// "firstName:asc,lastName:desc" into ordered (field, direction) pairs used
// for multi-column listing queries.
package sort

import (
	"strings"
	"unicode"
)

type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

type Directive struct {
	Field     string
	Direction Direction
}

// Parse splits spec on commas and each token on ":". The direction token is
// case-insensitive; an absent or unrecognized direction falls back to ASC.
// Tokens whose field is not a valid identifier are skipped, preserving the
// lenient behavior of the listing endpoint.
func Parse(spec string) []Directive {
	if spec == "" {
		return nil
	}

	var out []Directive
	for _, token := range strings.Split(spec, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		field := token
		dir := Asc
		if i := strings.IndexByte(token, ':'); i >= 0 {
			field = strings.TrimSpace(token[:i])
			if strings.EqualFold(strings.TrimSpace(token[i+1:]), "desc") {
				dir = Desc
			}
		}

		if !validField(field) {
			continue
		}
		out = append(out, Directive{Field: field, Direction: dir})
	}
	return out
}

// ParseAll parses several directive strings left to right, so callers can
// accept either one comma-separated value or a repeated query parameter.
func ParseAll(specs ...string) []Directive {
	var out []Directive
	for _, s := range specs {
		out = append(out, Parse(s)...)
	}
	return out
}

// OrderClauses renders directives as SQL order expressions over snake_case
// columns, with a trailing "id ASC" tiebreak so equal-key rows keep a stable
// order across pages.
func OrderClauses(dirs []Directive) []string {
	clauses := make([]string, 0, len(dirs)+1)
	for _, d := range dirs {
		clauses = append(clauses, snakeCase(d.Field)+" "+string(d.Direction))
	}
	return append(clauses, "id ASC")
}

func validField(field string) bool {
	if field == "" {
		return false
	}
	for i, r := range field {
		switch {
		case unicode.IsLetter(r):
		case r == '_':
		case unicode.IsDigit(r) && i > 0:
		default:
			return false
		}
	}
	return true
}

func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
