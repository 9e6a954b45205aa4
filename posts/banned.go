package posts

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"
)

// BannedTerms matches content against a fixed list of whole-word terms.
// It is built once at startup and safe for concurrent use.
type BannedTerms struct {
	terms    []string
	patterns []*regexp.Regexp
}

// ParseBannedTerms reads one term per line. Blank lines and lines starting
// with '#' are skipped, duplicates are folded case-insensitively.
func ParseBannedTerms(data []byte) (*BannedTerms, error) {
	b := &BannedTerms{}
	seen := map[string]bool{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		term := strings.ToLower(strings.TrimSpace(sc.Text()))
		if term == "" || strings.HasPrefix(term, "#") || seen[term] {
			continue
		}
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
		if err != nil {
			return nil, err
		}
		seen[term] = true
		b.terms = append(b.terms, term)
		b.patterns = append(b.patterns, re)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return b, nil
}

// Len returns the number of terms.
func (b *BannedTerms) Len() int {
	if b == nil {
		return 0
	}
	return len(b.terms)
}

// Match returns the distinct terms found in content, in list order.
func (b *BannedTerms) Match(content string) []string {
	if b == nil {
		return nil
	}
	var hits []string
	for i, re := range b.patterns {
		if re.MatchString(content) {
			hits = append(hits, b.terms[i])
		}
	}
	return hits
}
