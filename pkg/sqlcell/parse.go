// Package sqlcell parses and executes the contents of SQL cells: an
// optional connection reference, an optional result-variable capture, and
// one or more templated SQL statements.
package sqlcell

import (
	"strings"
)

// Cell is the decoded structure of a SQL cell.
type Cell struct {
	// Connection is the first-token connection reference: an "@handle",
	// a datasource human name cannot appear here (names contain spaces),
	// or a full DSN containing "://". Empty when the cell relies on the
	// default connection.
	Connection string

	// ResultVar is the variable name from a leading "name <<" capture.
	ResultVar string

	// Statement is the remaining cell text with -- comments stripped.
	Statement string
}

// IsMetaCommand reports whether the statement is a backslash meta command
// rather than SQL.
func (c Cell) IsMetaCommand() bool {
	return strings.HasPrefix(c.Statement, `\`)
}

// Parse decodes a cell. The connection token and "<<" capture are
// grandfathered syntax; everything else should be flags on the command.
func Parse(cell string) Cell {
	var result Cell

	rest := strings.TrimSpace(cell)
	if tok, after := nextToken(rest); isConnectionToken(tok) {
		result.Connection = tok
		rest = after
	}

	if tok, after := nextToken(rest); tok != "" {
		if op, afterOp := nextToken(after); op == "<<" {
			result.ResultVar = tok
			rest = afterOp
		}
	}

	lines := strings.Split(rest, "\n")
	for i, line := range lines {
		lines[i] = stripLineComment(line)
	}
	result.Statement = strings.TrimSpace(strings.Join(lines, "\n"))
	return result
}

// nextToken splits off the first whitespace-delimited token.
func nextToken(s string) (token, rest string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ""
	}
	if i := strings.IndexFunc(s, isSpace); i >= 0 {
		return s[:i], strings.TrimSpace(s[i:])
	}
	return s, ""
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// isConnectionToken reports whether a token references a connection.
func isConnectionToken(tok string) bool {
	return strings.HasPrefix(tok, "@") || strings.Contains(tok, "://")
}

// stripLineComment removes a trailing "-- comment" from a line, honoring
// single and double quoted strings.
func stripLineComment(line string) string {
	var inSingle, inDouble bool
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\'':
			if !inDouble {
				inSingle = !inSingle
			}
		case '"':
			if !inSingle {
				inDouble = !inDouble
			}
		case '-':
			if !inSingle && !inDouble && i+1 < len(line) && line[i+1] == '-' {
				return strings.TrimRight(line[:i], " \t")
			}
		}
	}
	return line
}
