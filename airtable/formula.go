package airtable

import "strings"

// Formula is an Airtable filterByFormula expression.
type Formula string

// Field references a column by name, e.g. {Academic Email}.
func Field(name string) Formula {
	return Formula("{" + name + "}")
}

// Text quotes a literal string value.
func Text(value string) Formula {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `'`, `\'`)
	return Formula("'" + escaped + "'")
}

// EQ compares a column against a literal string value.
func EQ(field, value string) Formula {
	return Field(field) + "=" + Text(value)
}

func AND(terms ...Formula) Formula {
	return combine("AND", terms)
}

func OR(terms ...Formula) Formula {
	return combine("OR", terms)
}

func NOT(term Formula) Formula {
	return "NOT(" + term + ")"
}

// FIND tests whether needle occurs in a column, which is how multi-select
// columns get matched.
func FIND(needle, field string) Formula {
	return "FIND(" + Text(needle) + ", " + Field(field) + ")"
}

func combine(op string, terms []Formula) Formula {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = string(t)
	}
	return Formula(op + "(" + strings.Join(parts, ", ") + ")")
}
