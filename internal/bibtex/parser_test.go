package bibtex

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibliotheca/catalog-service/internal/domain"
)

const sbesEntry = `@inproceedings{paper1,
  title     = {Distributed Consensus Revisited},
  author    = {Ana Silva and Bruno Costa},
  booktitle = {SBES},
  year      = {2024},
  pages     = {10--20},
  address   = {Curitiba},
  publisher = {SBC}
}`

func TestParseEntries_SingleEntry(t *testing.T) {
	entries, err := ParseEntries(strings.NewReader(sbesEntry))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, "inproceedings", e.Type)
	assert.Equal(t, "paper1", e.Key)
	assert.Equal(t, "Distributed Consensus Revisited", e.Field("title"))
	assert.Equal(t, "Ana Silva and Bruno Costa", e.Field("author"))
	assert.Equal(t, "2024", e.Field("year"))
	assert.Equal(t, "10--20", e.Field("pages"))
}

func TestParseEntries_ValueForms(t *testing.T) {
	input := `
This text is outside of any entry and is ignored. Contact: someone @ example.
@string{ sbes = "Simpósio Brasileiro de Engenharia de Software" }
@comment{ anything {goes} here }
@preamble{ "\newcommand{\noop}[1]{}" }

@Article(key2,
  TITLE = "A {Q}uoted {T}itle with {braces}",
  Author = "Carla Souza",
  journal = sbes,
  year = 2023,
  month = mar,
  note = "part one" # { and } # "part two",
  abstract = {Spans
     multiple
     lines},
)
`
	entries, err := ParseEntries(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, "article", e.Type)
	assert.Equal(t, "key2", e.Key)
	assert.Equal(t, "A Quoted Title with braces", e.Field("title"))
	assert.Equal(t, "Carla Souza", e.Field("author"))
	assert.Equal(t, "Simpósio Brasileiro de Engenharia de Software", e.Field("journal"))
	assert.Equal(t, "2023", e.Field("year"))
	assert.Equal(t, "March", e.Field("month"))
	assert.Equal(t, "part one and part two", e.Field("note"))
	assert.Equal(t, "Spans multiple lines", e.Field("abstract"))
}

func TestParseEntries_PreservesOrder(t *testing.T) {
	input := `@misc{c, title={Third entry here}}
@misc{a, title={First entry here}}
@misc{b, title={Second entry here}}`

	entries, err := ParseEntries(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "c", entries[0].Key)
	assert.Equal(t, "a", entries[1].Key)
	assert.Equal(t, "b", entries[2].Key)
}

func TestParseEntries_KeyOnlyEntry(t *testing.T) {
	entries, err := ParseEntries(strings.NewReader(`@misc{lonely}`))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "lonely", entries[0].Key)
	assert.Empty(t, entries[0].Fields)
}

func TestParseEntries_SyntaxErrors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		contains string
	}{
		{
			name:     "unbalanced braces",
			input:    "@article{k1,\n title = {Never {closed\n}",
			contains: "unbalanced",
		},
		{
			name:     "missing key",
			input:    "@article{, title = {x}}",
			contains: "missing citation key",
		},
		{
			name:     "missing equals",
			input:    "@article{k1, title {x}}",
			contains: "expected '=' after field \"title\"",
		},
		{
			name:     "unterminated quote",
			input:    "@article{k1, title = \"open",
			contains: "unterminated quoted value",
		},
		{
			name:     "unterminated entry",
			input:    "@article{k1, title = {x}",
			contains: "unterminated entry",
		},
		{
			name:     "NUL byte in a value",
			input:    "@article{k1, title = {Nul\x00Title}}",
			contains: "NUL byte",
		},
		{
			name:     "latin-1 text",
			input:    "@article{k1,\n author = {Jo\xe3o Silva}}",
			contains: "invalid UTF-8 byte 0xe3",
		},
		{
			name:     "garbage between fields",
			input:    "@article{k1, title = {x} year = {2020}}",
			contains: "expected ',' or '}'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEntries(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInvalidBibTeX))
			assert.Contains(t, err.Error(), tt.contains)

			var syntaxErr *SyntaxError
			require.True(t, errors.As(err, &syntaxErr))
			assert.GreaterOrEqual(t, syntaxErr.Line, 1)
		})
	}
}

func TestParseEntries_AcceptsUTF8(t *testing.T) {
	entries, err := ParseEntries(strings.NewReader("@misc{k, author = {João Silva}, note = {\uFFFD}}"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "João Silva", entries[0].Field("author"))
}

func TestSyntaxError_LineNumber(t *testing.T) {
	_, err := ParseEntries(strings.NewReader("@misc{ok, title={Fine title}}\n\n@misc{bad title={x}}"))
	require.Error(t, err)

	var syntaxErr *SyntaxError
	require.True(t, errors.As(err, &syntaxErr))
	assert.Equal(t, 3, syntaxErr.Line)
}
