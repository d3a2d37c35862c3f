package airtable

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormulaBuilders(t *testing.T) {
	assert.Equal(t, Formula("{Academic Email}='kay@example.edu'"),
		EQ("Academic Email", "kay@example.edu"))

	assert.Equal(t, Formula("NOT(FIND('Fall 2025', {Session(s)}))"),
		NOT(FIND("Fall 2025", "Session(s)")))

	assert.Equal(t, Formula("AND({A}='1', OR({B}='2', {C}='3'))"),
		AND(EQ("A", "1"), OR(EQ("B", "2"), EQ("C", "3"))))
}

func TestTextEscapesQuotes(t *testing.T) {
	assert.Equal(t, Formula(`'O\'Brien'`), Text("O'Brien"))
	assert.Equal(t, Formula(`'a\\b'`), Text(`a\b`))
}
