package content

import "sort"

// MaxRelated caps the number of items returned by RelatedTerms and
// RelatedSites.
const MaxRelated = 6

// Categories returns the distinct site categories in first-seen order.
func (s *Synchronizer) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	categories := []string{}
	for _, site := range s.state.Sites {
		if seen[site.Category] {
			continue
		}
		seen[site.Category] = true
		categories = append(categories, site.Category)
	}
	return categories
}

// TagCloud counts every tag occurrence across terms. Sites don't
// contribute.
func (s *Synchronizer) TagCloud() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, term := range s.state.Terms {
		for _, tag := range term.Tags {
			counts[tag]++
		}
	}
	return counts
}

// TagCount is one entry of a sorted tag cloud.
type TagCount struct {
	Tag   string
	Count int
}

// SortedTagCloud returns TagCloud ordered by count (descending), then tag.
func (s *Synchronizer) SortedTagCloud() []TagCount {
	cloud := s.TagCloud()
	out := make([]TagCount, 0, len(cloud))
	for tag, count := range cloud {
		out = append(out, TagCount{Tag: tag, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}

// TermByID returns the first term with the given id.
func (s *Synchronizer) TermByID(id string) (Term, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, term := range s.state.Terms {
		if term.ID == id {
			return term, true
		}
	}
	return Term{}, false
}

// SiteByID returns the first site with the given id.
func (s *Synchronizer) SiteByID(id string) (Site, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, site := range s.state.Sites {
		if site.ID == id {
			return site, true
		}
	}
	return Site{}, false
}

// RelatedTerms returns up to MaxRelated terms, in collection order, that
// share at least one tag with tags and whose id isn't excludeID. An empty
// excludeID excludes nothing.
func (s *Synchronizer) RelatedTerms(tags []string, excludeID string) []Term {
	s.mu.RLock()
	defer s.mu.RUnlock()

	related := []Term{}
	for _, term := range s.state.Terms {
		if len(related) == MaxRelated {
			break
		}
		if excludeID != "" && term.ID == excludeID {
			continue
		}
		if term.HasAnyTag(tags) {
			related = append(related, term)
		}
	}
	return related
}

// RelatedSites is RelatedTerms for sites.
func (s *Synchronizer) RelatedSites(tags []string, excludeID string) []Site {
	s.mu.RLock()
	defer s.mu.RUnlock()

	related := []Site{}
	for _, site := range s.state.Sites {
		if len(related) == MaxRelated {
			break
		}
		if excludeID != "" && site.ID == excludeID {
			continue
		}
		if site.HasAnyTag(tags) {
			related = append(related, site)
		}
	}
	return related
}

// SitesForTerm returns the sites whose TermID points at termID.
func (s *Synchronizer) SitesForTerm(termID string) []Site {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sites := []Site{}
	if termID == "" {
		return sites
	}
	for _, site := range s.state.Sites {
		if site.TermID == termID {
			sites = append(sites, site)
		}
	}
	return sites
}

// SitesInCategory returns the sites of one category in collection order.
func (s *Synchronizer) SitesInCategory(category string) []Site {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sites := []Site{}
	for _, site := range s.state.Sites {
		if site.Category == category {
			sites = append(sites, site)
		}
	}
	return sites
}
