package sqlcell

import "strings"

// SplitStatements splits a SQL script on semicolons that sit outside of
// quoted strings and comments. Empty statements are dropped.
func SplitStatements(script string) []string {
	var (
		statements []string
		start      int
		inSingle   bool
		inDouble   bool
		inLine     bool
		inBlock    bool
	)

	flush := func(end int) {
		stmt := strings.TrimSpace(script[start:end])
		if stmt != "" {
			statements = append(statements, stmt)
		}
	}

	for i := 0; i < len(script); i++ {
		c := script[i]
		switch {
		case inLine:
			if c == '\n' {
				inLine = false
			}
		case inBlock:
			if c == '*' && i+1 < len(script) && script[i+1] == '/' {
				inBlock = false
				i++
			}
		case inSingle:
			if c == '\'' {
				inSingle = false
			}
		case inDouble:
			if c == '"' {
				inDouble = false
			}
		case c == '\'':
			inSingle = true
		case c == '"':
			inDouble = true
		case c == '-' && i+1 < len(script) && script[i+1] == '-':
			inLine = true
			i++
		case c == '/' && i+1 < len(script) && script[i+1] == '*':
			inBlock = true
			i++
		case c == ';':
			flush(i)
			start = i + 1
		}
	}
	flush(len(script))
	return statements
}
