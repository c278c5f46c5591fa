// Package search ranks an in-memory snapshot of credentials against a
// free-text keyword and provides strict domain matching for "credentials
// for this site" lookups. It is independent of the storage layer's plain
// LIKE search.
package search

import (
	"net/url"
	"sort"
	"strings"

	"github.com/snipermjy/password-manager/internal/storage"
)

const (
	// MinKeywordLength is the shortest keyword that triggers ranking;
	// anything shorter returns the snapshot unchanged.
	MinKeywordLength = 1
	// MaxResults caps ranked output.
	MaxResults = 100
)

type fieldWeight struct {
	weight int
	get    func(*storage.Credential) string
}

var rankedFields = []fieldWeight{
	{10, func(c *storage.Credential) string { return c.SiteName }},
	{8, func(c *storage.Credential) string { return c.LoginAccount }},
	{7, func(c *storage.Credential) string { return c.Email }},
	{6, func(c *storage.Credential) string { return c.Phone }},
	{5, func(c *storage.Credential) string { return c.URL }},
	{3, func(c *storage.Credential) string { return c.Notes }},
}

type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Rank scores every record against the keyword and returns the matches
// ordered by score descending, input order preserved within equal scores.
// Records scoring zero are dropped; output is capped at MaxResults.
func (e *Engine) Rank(records []storage.Credential, keyword string) []storage.Credential {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if len([]rune(keyword)) < MinKeywordLength {
		return records
	}

	type scored struct {
		record storage.Credential
		score  int
	}
	matches := make([]scored, 0, len(records))
	for i := range records {
		score := relevanceScore(&records[i], keyword)
		if score > 0 {
			matches = append(matches, scored{record: records[i], score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })

	if len(matches) > MaxResults {
		matches = matches[:MaxResults]
	}
	out := make([]storage.Credential, len(matches))
	for i, m := range matches {
		out[i] = m.record
	}
	return out
}

func relevanceScore(cred *storage.Credential, keyword string) int {
	score := 0
	for _, field := range rankedFields {
		value := field.get(cred)
		if value == "" {
			continue
		}
		value = strings.ToLower(value)

		switch {
		case keyword == value:
			score += field.weight * 10
		case strings.HasPrefix(value, keyword):
			score += field.weight * 5
		case strings.Contains(value, keyword):
			score += field.weight * 3
		case fuzzyMatch(keyword, value):
			score += field.weight * 1
		}
	}
	return score
}

// fuzzyMatch is true when the space-stripped keyword is a substring of the
// space-stripped text, or when every distinct keyword rune also occurs
// somewhere in the text (order-independent, no multiplicity check).
func fuzzyMatch(keyword, text string) bool {
	if strings.Contains(strings.ReplaceAll(text, " ", ""), strings.ReplaceAll(keyword, " ", "")) {
		return true
	}

	textRunes := map[rune]struct{}{}
	for _, r := range text {
		textRunes[r] = struct{}{}
	}
	for _, r := range keyword {
		if _, ok := textRunes[r]; !ok {
			return false
		}
	}
	return true
}

// MatchDomain reports whether two domains (or URLs) refer to the same site:
// identical after normalization, or one is a strict parent domain of the
// other. The suffix test avoids naive substring containment, which would
// wrongly equate example.com with example.com.cn.
func MatchDomain(a, b string) bool {
	if a == "" || b == "" {
		return false
	}

	a = NormalizeDomain(a)
	b = NormalizeDomain(b)

	if a == b {
		return true
	}
	return strings.HasSuffix(a, "."+b) || strings.HasSuffix(b, "."+a)
}

// NormalizeDomain lowercases and trims the input, extracts the host from a
// full URL, and strips a leading "www." label.
func NormalizeDomain(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))

	if strings.Contains(domain, "://") {
		if parsed, err := url.Parse(domain); err == nil && parsed.Hostname() != "" {
			domain = parsed.Hostname()
		}
	}

	return strings.TrimPrefix(domain, "www.")
}

// FindByDomain returns the records whose site name or URL domain-matches
// the target domain.
func (e *Engine) FindByDomain(records []storage.Credential, domain string) []storage.Credential {
	domain = NormalizeDomain(domain)

	var matched []storage.Credential
	for i := range records {
		if records[i].SiteName != "" && MatchDomain(domain, records[i].SiteName) {
			matched = append(matched, records[i])
			continue
		}
		if records[i].URL != "" && MatchDomain(domain, NormalizeDomain(records[i].URL)) {
			matched = append(matched, records[i])
		}
	}
	return matched
}

// Criteria is a composite filter; nil/empty members skip their stage.
type Criteria struct {
	Keyword  string
	Category string
	HasEmail *bool
	HasPhone *bool
}

// FilterByCriteria narrows the snapshot stage by stage: ranked keyword
// search, exact category equality, then email/phone presence.
func (e *Engine) FilterByCriteria(records []storage.Credential, criteria Criteria) []storage.Credential {
	filtered := records

	if criteria.Keyword != "" {
		filtered = e.Rank(filtered, criteria.Keyword)
	}

	if criteria.Category != "" {
		kept := filtered[:0:0]
		for _, record := range filtered {
			if record.Category == criteria.Category {
				kept = append(kept, record)
			}
		}
		filtered = kept
	}

	if criteria.HasEmail != nil {
		kept := filtered[:0:0]
		for _, record := range filtered {
			if (record.Email != "") == *criteria.HasEmail {
				kept = append(kept, record)
			}
		}
		filtered = kept
	}

	if criteria.HasPhone != nil {
		kept := filtered[:0:0]
		for _, record := range filtered {
			if (record.Phone != "") == *criteria.HasPhone {
				kept = append(kept, record)
			}
		}
		filtered = kept
	}

	return filtered
}
