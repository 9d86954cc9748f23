package model

import (
	"slices"
	"strings"
	"testing"
)

func TestFingerprint_IgnoresIdentityAndOrdering(t *testing.T) {
	a := Item{
		SourceID: "b1",
		Origin:   BookmarkSide,
		Title:    "Go Memory Model",
		URL:      "https://go.dev/ref/mem",
		Tags:     []string{"go", "Concurrency"},
	}
	b := Item{
		SourceID: "src-9",
		Origin:   NotebookSide,
		Title:    "  Go   Memory Model ",
		URL:      "HTTPS://Go.dev:443/ref/mem/#top",
		Tags:     []string{"concurrency", "GO", "go"},
	}

	fa, fb := Fingerprint(a), Fingerprint(b)
	if fa != fb {
		t.Errorf("fingerprints differ for equivalent content:\n  %s\n  %s", fa, fb)
	}
	if !strings.HasPrefix(fa, FingerprintPrefix) {
		t.Errorf("fingerprint %q missing prefix %q", fa, FingerprintPrefix)
	}
}

func TestFingerprint_DetectsContentChanges(t *testing.T) {
	base := Item{Title: "t", URL: "https://example.com/a", Note: "n", Tags: []string{"x"}}

	tests := map[string]func(Item) Item{
		"title": func(i Item) Item { i.Title = "other"; return i },
		"url":   func(i Item) Item { i.URL = "https://example.com/b"; return i },
		"note":  func(i Item) Item { i.Note = "changed"; return i },
		"tags":  func(i Item) Item { i.Tags = []string{"x", "y"}; return i },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			if Fingerprint(base) == Fingerprint(mutate(base)) {
				t.Errorf("changing %s did not change the fingerprint", name)
			}
		})
	}
}

func TestNormalizeTags(t *testing.T) {
	tests := map[string]struct {
		in   []string
		want []string
	}{
		"nil":              {in: nil, want: nil},
		"only blanks":      {in: []string{" ", ""}, want: nil},
		"dedupe and sort":  {in: []string{"b", "A", "a", " b "}, want: []string{"a", "b"}},
		"inner whitespace": {in: []string{"machine   learning"}, want: []string{"machine learning"}},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got := NormalizeTags(tt.in)
			if !slices.Equal(got, tt.want) {
				t.Errorf("NormalizeTags(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := map[string]struct {
		in   string
		want string
	}{
		"lowercases host":      {in: "https://EXAMPLE.com/Path", want: "https://example.com/Path"},
		"drops default port":   {in: "http://example.com:80/a", want: "http://example.com/a"},
		"keeps custom port":    {in: "http://example.com:8080/a", want: "http://example.com:8080/a"},
		"drops fragment":       {in: "https://example.com/a#section", want: "https://example.com/a"},
		"drops trailing slash": {in: "https://example.com/", want: "https://example.com"},
		"keeps query":          {in: "https://example.com/a?q=1", want: "https://example.com/a?q=1"},
		"non url reference":    {in: "  doc:1234 ", want: "doc:1234"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if got := NormalizeURL(tt.in); got != tt.want {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
