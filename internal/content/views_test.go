package content

import (
	"fmt"
	"testing"

	"golang.org/x/text/language"
	"pgregory.net/rapid"
)

func loadedSynchronizer(t *testing.T, sites []Site, terms []Term) *Synchronizer {
	t.Helper()
	s := NewSynchronizer(NewDataset(sites, terms), newCountingStore(), WithLogger(quietLogger()))
	s.Hydrate(false)
	return s
}

func TestViews_Scenario(t *testing.T) {
	s := loadedSynchronizer(t,
		[]Site{siteAt("A", "2024-01-01", "a", "b")},
		[]Term{termAt("T", "2024-06-01", "b")},
	)

	if got := s.RelatedSites([]string{"b"}, "A"); len(got) != 0 {
		t.Errorf("RelatedSites excluded A but got %+v", got)
	}
	if got := s.RelatedTerms([]string{"a", "b"}, "A"); len(got) != 1 || got[0].ID != "T" {
		t.Errorf("RelatedTerms = %+v, want [T]", got)
	}
	if got := s.TagCloud(); len(got) != 1 || got["b"] != 1 {
		t.Errorf("TagCloud = %v, want map[b:1]", got)
	}
}

func TestViews_BeforeHydrate(t *testing.T) {
	s := NewSynchronizer(testDataset(), newCountingStore(), WithLogger(quietLogger()))

	if got := s.Categories(); got == nil || len(got) != 0 {
		t.Errorf("Categories = %#v, want empty", got)
	}
	if got := s.TagCloud(); len(got) != 0 {
		t.Errorf("TagCloud = %v, want empty", got)
	}
	if _, ok := s.TermByID("T"); ok {
		t.Error("TermByID found a term before hydration")
	}
}

func TestCategories(t *testing.T) {
	sites := []Site{
		{BaseContent: BaseContent{ID: "1"}, Category: "museum"},
		{BaseContent: BaseContent{ID: "2"}, Category: "landmark"},
		{BaseContent: BaseContent{ID: "3"}, Category: "museum"},
		{BaseContent: BaseContent{ID: "4"}, Category: "park"},
	}
	s := loadedSynchronizer(t, sites, nil)

	want := []string{"museum", "landmark", "park"}
	got := s.Categories()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("Categories = %v, want %v", got, want)
	}
}

func TestTagCloud_TermsOnly(t *testing.T) {
	s := loadedSynchronizer(t,
		[]Site{siteAt("s1", "", "x", "y")},
		[]Term{
			termAt("t1", "", "x", "z"),
			termAt("t2", "", "z"),
			termAt("t3", "", "z", "x"),
		},
	)

	cloud := s.TagCloud()
	if cloud["x"] != 2 || cloud["z"] != 3 {
		t.Errorf("TagCloud = %v", cloud)
	}
	if _, ok := cloud["y"]; ok {
		t.Error("site-only tag counted")
	}

	sorted := s.SortedTagCloud()
	if len(sorted) != 2 || sorted[0] != (TagCount{"z", 3}) || sorted[1] != (TagCount{"x", 2}) {
		t.Errorf("SortedTagCloud = %v", sorted)
	}
}

func TestLookupByID(t *testing.T) {
	s := loadedSynchronizer(t,
		[]Site{siteAt("dup", "", "first"), siteAt("dup", "", "second")},
		[]Term{termAt("t1", "")},
	)

	site, ok := s.SiteByID("dup")
	if !ok || site.Tags[0] != "first" {
		t.Errorf("SiteByID returned %+v, %v; want first match", site, ok)
	}
	if _, ok := s.SiteByID("missing"); ok {
		t.Error("SiteByID found a missing id")
	}
	if term, ok := s.TermByID("t1"); !ok || term.ID != "t1" {
		t.Errorf("TermByID = %+v, %v", term, ok)
	}
	if _, ok := s.TermByID(""); ok {
		t.Error("TermByID matched an empty id")
	}
}

func TestRelated_EmptyTags(t *testing.T) {
	s := loadedSynchronizer(t,
		[]Site{siteAt("s1", "", "a")},
		[]Term{termAt("t1", "", "a")},
	)
	if got := s.RelatedSites(nil, ""); got == nil || len(got) != 0 {
		t.Errorf("RelatedSites(nil) = %#v, want empty", got)
	}
	if got := s.RelatedTerms([]string{}, "x"); len(got) != 0 {
		t.Errorf("RelatedTerms([]) = %+v, want empty", got)
	}
}

func TestRelated_EmptyExcludeKeepsAll(t *testing.T) {
	s := loadedSynchronizer(t, nil, []Term{termAt("", "", "a"), termAt("t2", "", "a")})
	if got := s.RelatedTerms([]string{"a"}, ""); len(got) != 2 {
		t.Errorf("RelatedTerms = %+v, want both terms", got)
	}
}

func TestRelated_Properties(t *testing.T) {
	tagPool := []string{"a", "b", "c", "d"}

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 15).Draw(t, "n")
		terms := make([]Term, n)
		sites := make([]Site, n)
		for i := 0; i < n; i++ {
			tags := rapid.SliceOfNDistinct(rapid.SampledFrom(tagPool), 0, 3, rapid.ID[string]).Draw(t, "tags")
			id := fmt.Sprintf("id-%d", rapid.IntRange(0, 5).Draw(t, "id"))
			terms[i] = termAt(id, "2024-01-01", tags...)
			sites[i] = siteAt(id, "2024-01-01", tags...)
		}
		query := rapid.SliceOfNDistinct(rapid.SampledFrom(tagPool), 0, 2, rapid.ID[string]).Draw(t, "query")
		exclude := fmt.Sprintf("id-%d", rapid.IntRange(0, 5).Draw(t, "exclude"))

		s := NewSynchronizer(NewDataset(sites, terms), newCountingStore(), WithLogger(quietLogger()))
		s.Hydrate(false)

		related := s.RelatedTerms(query, exclude)
		if len(related) > MaxRelated {
			t.Fatalf("got %d related terms, cap is %d", len(related), MaxRelated)
		}
		if len(query) == 0 && len(related) != 0 {
			t.Fatalf("empty query returned %d terms", len(related))
		}
		for _, term := range related {
			if term.ID == exclude {
				t.Fatalf("excluded id %s returned", exclude)
			}
			if !term.HasAnyTag(query) {
				t.Fatalf("term %s shares no tag with %v", term.ID, query)
			}
		}

		relatedSites := s.RelatedSites(query, exclude)
		if len(relatedSites) != len(related) {
			t.Fatalf("sites and terms with identical tags disagree: %d vs %d", len(relatedSites), len(related))
		}
	})
}

func TestSitesForTermAndCategory(t *testing.T) {
	sites := []Site{
		{BaseContent: BaseContent{ID: "s1"}, Category: "landmark", TermID: "t1"},
		{BaseContent: BaseContent{ID: "s2"}, Category: "museum"},
		{BaseContent: BaseContent{ID: "s3"}, Category: "landmark", TermID: "t1"},
	}
	s := loadedSynchronizer(t, sites, nil)

	if got := s.SitesForTerm("t1"); len(got) != 2 || got[0].ID != "s1" || got[1].ID != "s3" {
		t.Errorf("SitesForTerm = %+v", got)
	}
	if got := s.SitesForTerm(""); len(got) != 0 {
		t.Errorf("SitesForTerm(\"\") = %+v, want empty", got)
	}
	if got := s.SitesInCategory("museum"); len(got) != 1 || got[0].ID != "s2" {
		t.Errorf("SitesInCategory = %+v", got)
	}
}

func TestSearch(t *testing.T) {
	s := loadedSynchronizer(t,
		[]Site{
			{BaseContent: BaseContent{ID: "drum", Name: LocalizedText{Zh: "鼓楼", En: "Drum Tower"}, Pinyin: "gu lou"}},
			{BaseContent: BaseContent{ID: "wall", Name: LocalizedText{Zh: "城墙", En: "City Wall"}, Pinyin: "cheng qiang"}},
		},
		[]Term{
			{BaseContent: BaseContent{ID: "bracket", Name: LocalizedText{Zh: "斗拱", En: "Dougong"}, Pinyin: "dou gong"}},
		},
	)

	hits := s.Search("TOWER", 0)
	if len(hits) != 1 || hits[0].ID != "drum" || hits[0].Kind != KindSite {
		t.Errorf("Search(TOWER) = %+v", hits)
	}

	hits = s.Search("gong", 0)
	if len(hits) != 1 || hits[0].Kind != KindTerm {
		t.Errorf("Search(gong) = %+v", hits)
	}

	if hits := s.Search("城", 0); len(hits) != 1 || hits[0].ID != "wall" {
		t.Errorf("Search(城) = %+v", hits)
	}

	if hits := s.Search("  ", 0); len(hits) != 0 {
		t.Errorf("blank query returned %+v", hits)
	}

	if hits := s.Search("o", 1); len(hits) != 1 {
		t.Errorf("limit ignored: %d hits", len(hits))
	}
}

func TestLocalizedText(t *testing.T) {
	text := LocalizedText{Zh: "鼓楼", En: "Drum Tower"}
	tests := []struct {
		name string
		text LocalizedText
		tag  language.Tag
		want string
	}{
		{"english", text, language.English, "Drum Tower"},
		{"british english", text, language.BritishEnglish, "Drum Tower"},
		{"chinese", text, language.SimplifiedChinese, "鼓楼"},
		{"unsupported falls back to chinese", text, language.French, "鼓楼"},
		{"empty english falls through", LocalizedText{Zh: "鼓楼"}, language.English, "鼓楼"},
		{"empty chinese falls through", LocalizedText{En: "Drum Tower"}, language.Chinese, "Drum Tower"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.text.Text(tt.tag); got != tt.want {
				t.Errorf("Text(%v) = %q, want %q", tt.tag, got, tt.want)
			}
		})
	}
}
