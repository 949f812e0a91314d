package sqlcell

import (
	"fmt"
	"strconv"
	"strings"
)

// PlaceholderStyle selects the bind-parameter syntax a driver expects.
type PlaceholderStyle int

const (
	// Question renders parameters as "?".
	Question PlaceholderStyle = iota
	// Dollar renders parameters as "$1", "$2", and so on.
	Dollar
)

// PlaceholderFor returns the bind style for a dialect name.
func PlaceholderFor(dialect string) PlaceholderStyle {
	switch dialect {
	case "postgresql", "redshift", "cockroachdb":
		return Dollar
	}
	return Question
}

// Expand replaces {{name}} references in a SQL statement with bind
// placeholders and returns the argument list in placeholder order. A
// reference to a name missing from params is an error. Values may repeat;
// each occurrence binds its own argument.
func Expand(statement string, params map[string]any, style PlaceholderStyle) (string, []any, error) {
	var (
		out  strings.Builder
		args []any
	)
	rest := statement
	for {
		open := strings.Index(rest, "{{")
		if open < 0 {
			out.WriteString(rest)
			break
		}
		closing := strings.Index(rest[open:], "}}")
		if closing < 0 {
			return "", nil, fmt.Errorf("unterminated {{...}} reference in statement")
		}
		name := strings.TrimSpace(rest[open+2 : open+closing])
		if name == "" {
			return "", nil, fmt.Errorf("empty {{...}} reference in statement")
		}
		value, ok := params[name]
		if !ok {
			return "", nil, fmt.Errorf("no value supplied for template variable %q", name)
		}
		out.WriteString(rest[:open])
		args = append(args, value)
		switch style {
		case Dollar:
			out.WriteString("$" + strconv.Itoa(len(args)))
		default:
			out.WriteString("?")
		}
		rest = rest[open+closing+2:]
	}
	return out.String(), args, nil
}
