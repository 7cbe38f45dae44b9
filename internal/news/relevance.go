package news

import (
	"fmt"
	"strings"
)

// Matcher reports whether free text mentions any of the configured
// market keywords. Matching is a plain substring test on lowercased
// text, no word boundaries: "oil" is allowed to hit "boiler". False
// positives are cheaper than missed crude stories, later stages trim
// the noise.
type Matcher struct {
	keywords []string
}

// NewMatcher prepares the keyword set. Entries are trimmed and
// lowercased once. An empty entry would match everything, so it is
// rejected here rather than silently letting the filter degrade.
func NewMatcher(keywords []string) (*Matcher, error) {
	if len(keywords) == 0 {
		return nil, fmt.Errorf("relevance: keyword list is empty")
	}

	prepared := make([]string, 0, len(keywords))
	for i, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			return nil, fmt.Errorf("relevance: keyword %d is empty", i)
		}
		prepared = append(prepared, k)
	}

	return &Matcher{keywords: prepared}, nil
}

// Match reports whether any keyword occurs in the text. Empty text
// never matches.
func (m *Matcher) Match(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}

	text = strings.ToLower(text)
	for _, k := range m.keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// MatchItem runs Match over the title and description together, the
// same text enrichment later sees.
func (m *Matcher) MatchItem(it Item) bool {
	return m.Match(it.Title + " " + it.Description)
}
