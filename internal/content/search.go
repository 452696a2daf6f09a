package content

import (
	"strings"

	"github.com/sahilm/fuzzy"
)

// Kind distinguishes the two collections in search results.
type Kind string

const (
	KindSite Kind = "site"
	KindTerm Kind = "term"
)

// SearchHit is one fuzzy match.
type SearchHit struct {
	Kind  Kind
	ID    string
	Name  LocalizedText
	Score int
}

type searchEntry struct {
	kind Kind
	base BaseContent
	text string
}

// searchSource adapts the current collections to fuzzy.Source.
type searchSource []searchEntry

func (s searchSource) String(i int) string { return s[i].text }
func (s searchSource) Len() int            { return len(s) }

// Search fuzzy-matches query against names and pinyin of sites and terms,
// best matches first. limit <= 0 means no limit.
func (s *Synchronizer) Search(query string, limit int) []SearchHit {
	query = strings.TrimSpace(query)
	hits := []SearchHit{}
	if query == "" {
		return hits
	}

	s.mu.RLock()
	source := make(searchSource, 0, len(s.state.Sites)+len(s.state.Terms))
	for _, site := range s.state.Sites {
		source = append(source, searchEntry{kind: KindSite, base: site.BaseContent, text: searchText(site.BaseContent)})
	}
	for _, term := range s.state.Terms {
		source = append(source, searchEntry{kind: KindTerm, base: term.BaseContent, text: searchText(term.BaseContent)})
	}
	s.mu.RUnlock()

	for _, match := range fuzzy.FindFrom(strings.ToLower(query), source) {
		entry := source[match.Index]
		hits = append(hits, SearchHit{
			Kind:  entry.kind,
			ID:    entry.base.ID,
			Name:  entry.base.Name,
			Score: match.Score,
		})
		if limit > 0 && len(hits) == limit {
			break
		}
	}
	return hits
}

func searchText(b BaseContent) string {
	return strings.ToLower(strings.Join([]string{b.Name.Zh, b.Name.En, b.Pinyin}, " "))
}
