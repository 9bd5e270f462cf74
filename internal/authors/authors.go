// Package authors handles BibTeX-style author lists ("A and B and C") and
// the name normalization used to match authors against subscribers.
package authors

import (
	"strings"
)

// Separator joins names in a BibTeX author field.
const Separator = " and "

// Split breaks a raw author field into individual names.
// Names are trimmed and empty segments are dropped.
func Split(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, Separator)
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if name := strings.TrimSpace(p); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// NormalizeName lowercases a name and collapses every run of whitespace
// (spaces, tabs, newlines) to a single space. Punctuation is preserved, so
// "A. Silva" and "A Silva" stay distinct.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Contains reports whether name matches, after normalization, any author in
// the raw author field.
func Contains(raw, name string) bool {
	target := NormalizeName(name)
	if target == "" {
		return false
	}
	for _, author := range Split(raw) {
		if NormalizeName(author) == target {
			return true
		}
	}
	return false
}
