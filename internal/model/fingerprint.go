package model

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// FingerprintPrefix tags the hash algorithm so a future change of algorithm
// never silently compares equal to an old fingerprint.
const FingerprintPrefix = "sha256:"

// fieldSep separates normalized fields inside the hashed payload.
const fieldSep = "\x1f"

// Fingerprint returns a deterministic hash of the item's normalized content.
// Identity fields (source id, origin) and timestamps do not participate, so
// the same bookmark stored on either side hashes the same.
func Fingerprint(i Item) string {
	payload := strings.Join([]string{
		NormalizeURL(i.URL),
		NormalizeText(i.Title),
		NormalizeText(i.Note),
		strings.Join(NormalizeTags(i.Tags), ","),
	}, fieldSep)

	sum := sha256.Sum256([]byte(payload))
	return FingerprintPrefix + hex.EncodeToString(sum[:])
}

// NormalizeText applies NFC normalization, collapses runs of whitespace and
// trims the result.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// NormalizeTags case-folds, trims and deduplicates tags and returns them
// sorted. Empty tags are dropped. A nil result means "no tags".
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}

	fold := cases.Fold()
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = NormalizeText(fold.String(t))
		if t == "" {
			continue
		}
		set[t] = struct{}{}
	}
	if len(set) == 0 {
		return nil
	}

	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// NormalizeURL lower-cases scheme and host, drops default ports, fragments
// and a trailing slash. Strings that do not parse as absolute URLs are
// returned trimmed.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host += ":" + port
	}
	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawPath = ""

	return u.String()
}
