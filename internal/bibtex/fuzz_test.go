package bibtex

import (
	"errors"
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/bibliotheca/catalog-service/internal/domain"
)

// FuzzParse checks that arbitrary input never panics and that every failure
// is reported as invalid BibTeX.
func FuzzParse(f *testing.F) {
	seeds := []string{
		"",
		"@inproceedings{paper1, title={Distributed Consensus Revisited}, year=2024}",
		`@article(key, title = "quoted {nested} value", pages = "10--20")`,
		"@string{sbes = {SBES}} @misc{k, booktitle = sbes # { 2024}}",
		"@comment{ignored} @preamble{\"x\"}",
		"@inproceedings{unterminated, title={open",
		"@{}",
		"@misc{k, title = {{{{{{}}}}}}}",
		"@misc{k, title = '; DROP TABLE articles; --}",
		"@misc{k, title = {<script>alert('x')</script>}}",
		"@misc{k, author = {Schödinger and ‮LTR}}",
		"\x00@misc{\x00,\x00=\x00}",
		"@misc{k, year = 99999999999999999999}",
		"@misc{k, pages = {--}}",
		"@misc{k, year = {3000000000}, pages = {1--99999999999}}",
		"@misc{k, title = {Jo\xe3o}}",
	}
	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, input string) {
		records, err := Parse(strings.NewReader(input))
		if err != nil {
			if !errors.Is(err, domain.ErrInvalidBibTeX) {
				t.Fatalf("error does not wrap ErrInvalidBibTeX: %v", err)
			}
			if records != nil {
				t.Fatalf("records returned alongside error: %d", len(records))
			}
			return
		}
		if len(records) == 0 {
			t.Fatal("successful parse returned no records")
		}
		for _, rec := range records {
			for _, n := range []*int{rec.Year, rec.StartPage, rec.EndPage} {
				if n != nil && (*n <= 0 || *n > math.MaxInt32) {
					t.Fatalf("number outside INTEGER range: %d", *n)
				}
			}
			for _, v := range []string{rec.CitationKey, rec.Title, rec.Authors, rec.Booktitle, rec.EventName} {
				if !utf8.ValidString(v) || strings.ContainsRune(v, 0) {
					t.Fatalf("unstorable text %q", v)
				}
			}
		}
	})
}
