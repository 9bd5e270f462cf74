package bibtex

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibliotheca/catalog-service/internal/domain"
)

func TestParse_SBESScenario(t *testing.T) {
	records, err := Parse(strings.NewReader(sbesEntry))
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "paper1", r.CitationKey)
	assert.Equal(t, "Distributed Consensus Revisited", r.Title)
	assert.Equal(t, "Ana Silva and Bruno Costa", r.Authors)
	assert.Equal(t, "SBES", r.EventName)
	require.NotNil(t, r.Year)
	assert.Equal(t, 2024, *r.Year)
	require.NotNil(t, r.StartPage)
	require.NotNil(t, r.EndPage)
	assert.Equal(t, 10, *r.StartPage)
	assert.Equal(t, 20, *r.EndPage)
	assert.Equal(t, "SBES", r.Booktitle)
	assert.Equal(t, "SBC", r.Publisher)
	assert.Equal(t, "Curitiba", r.Location)
	assert.Empty(t, r.PDFPath)
}

func TestParse_EmptyInput(t *testing.T) {
	for _, input := range []string{"", "   \n", "% just a comment\n@comment{nothing}"} {
		_, err := Parse(strings.NewReader(input))
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrInvalidBibTeX))
		assert.Contains(t, err.Error(), "no entries found")
	}
}

func TestParse_KeepsEntriesWithoutTitle(t *testing.T) {
	records, err := Parse(strings.NewReader(`@misc{notitle, author={Ana Silva}}`))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "notitle", records[0].CitationKey)
	assert.Empty(t, records[0].Title)
}

func TestToRecord_EventNameFallback(t *testing.T) {
	tests := []struct {
		name     string
		fields   map[string]string
		expected string
	}{
		{
			name:     "dedicated event field wins",
			fields:   map[string]string{"event": "SBES", "booktitle": "Proceedings of SBES 2024", "journal": "J"},
			expected: "SBES",
		},
		{
			name:     "booktitle before journal",
			fields:   map[string]string{"booktitle": "SBES", "journal": "JSERD", "publisher": "SBC"},
			expected: "SBES",
		},
		{
			name:     "journal before publisher",
			fields:   map[string]string{"journal": "JSERD", "publisher": "SBC"},
			expected: "JSERD",
		},
		{
			name:     "publisher last",
			fields:   map[string]string{"publisher": "SBC"},
			expected: "SBC",
		},
		{
			name:     "blank values are skipped",
			fields:   map[string]string{"booktitle": "  ", "journal": "JSERD"},
			expected: "JSERD",
		},
		{
			name:     "nothing available",
			fields:   map[string]string{},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ToRecord(Entry{Key: "k", Fields: tt.fields})
			assert.Equal(t, tt.expected, rec.EventName)
		})
	}
}

func TestToRecord_Year(t *testing.T) {
	tests := []struct {
		input    string
		expected *int
	}{
		{"2024", intPtr(2024)},
		{" 2024 ", intPtr(2024)},
		{"in press", nil},
		{"2024a", nil},
		{"", nil},
		{"-5", nil},
		{"2147483647", intPtr(2147483647)},
		{"3000000000", nil},
		{"99999999999999999999", nil},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			rec := ToRecord(Entry{Key: "k", Fields: map[string]string{"year": tt.input}})
			assert.Equal(t, tt.expected, rec.Year)
		})
	}
}

func TestToRecord_Pages(t *testing.T) {
	tests := []struct {
		name          string
		fields        map[string]string
		expectedStart *int
		expectedEnd   *int
	}{
		{"range", map[string]string{"pages": "10--20"}, intPtr(10), intPtr(20)},
		{"range with spaces", map[string]string{"pages": "10 -- 20"}, intPtr(10), intPtr(20)},
		{"single page", map[string]string{"pages": "7"}, intPtr(7), nil},
		{"open end", map[string]string{"pages": "10--"}, intPtr(10), nil},
		{"roman numerals", map[string]string{"pages": "iv--x"}, nil, nil},
		{"explicit start and end", map[string]string{"page_start": "3", "page_end": "9"}, intPtr(3), intPtr(9)},
		{"end beyond integer range", map[string]string{"pages": "1--99999999999"}, intPtr(1), nil},
		{"absent", map[string]string{}, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ToRecord(Entry{Key: "k", Fields: tt.fields})
			assert.Equal(t, tt.expectedStart, rec.StartPage)
			assert.Equal(t, tt.expectedEnd, rec.EndPage)
		})
	}
}

func TestToRecord_Location(t *testing.T) {
	rec := ToRecord(Entry{Key: "k", Fields: map[string]string{"address": "Curitiba", "location": "Brazil"}})
	assert.Equal(t, "Curitiba", rec.Location)

	rec = ToRecord(Entry{Key: "k", Fields: map[string]string{"location": "Brazil"}})
	assert.Equal(t, "Brazil", rec.Location)
}

func intPtr(v int) *int { return &v }
