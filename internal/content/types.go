package content

import (
	"golang.org/x/text/language"
)

// MediaType identifies the kind of a media attachment.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaAudio MediaType = "audio"
)

var supportedLanguages = []language.Tag{
	language.Chinese, // first entry is the matcher's fallback
	language.English,
}

var languageMatcher = language.NewMatcher(supportedLanguages)

// LocalizedText carries the same text in Chinese and English.
type LocalizedText struct {
	Zh string `json:"zh"`
	En string `json:"en"`
}

// Text returns the variant best matching tag. Chinese is the fallback, and
// an empty preferred variant falls through to the other one.
func (t LocalizedText) Text(tag language.Tag) string {
	_, idx, conf := languageMatcher.Match(tag)
	if conf == language.No {
		idx = 0
	}
	primary, secondary := t.Zh, t.En
	if supportedLanguages[idx] == language.English {
		primary, secondary = t.En, t.Zh
	}
	if primary == "" {
		return secondary
	}
	return primary
}

// MediaItem is an image or audio clip attached to a content item.
type MediaItem struct {
	Type    MediaType `json:"type"`
	Src     string    `json:"src"`
	Caption string    `json:"caption,omitempty"`
}

// SourceLink is a bibliographic reference.
type SourceLink struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// LatLng is a required coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// GeoLocation is a loosely specified place; any field may be missing.
type GeoLocation struct {
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
	Address string   `json:"address,omitempty"`
}

// BaseContent holds the fields shared by sites and terms.
type BaseContent struct {
	ID         string        `json:"id"`
	Name       LocalizedText `json:"name"`
	Pinyin     string        `json:"pinyin,omitempty"`
	Location   *LatLng       `json:"location,omitempty"`
	Tags       []string      `json:"tags"`
	Summary    LocalizedText `json:"summary"`
	Background LocalizedText `json:"background"`
	Media      []MediaItem   `json:"media"`
	Sources    []SourceLink  `json:"sources"`
	UpdatedAt  string        `json:"updatedAt"`
}

// HasAnyTag reports whether the item carries at least one of tags.
func (b BaseContent) HasAnyTag(tags []string) bool {
	for _, own := range b.Tags {
		for _, want := range tags {
			if own == want {
				return true
			}
		}
	}
	return false
}

// Term is a glossary entry.
type Term struct {
	BaseContent
	Category string `json:"category,omitempty"`
}

// Site is a physical place. TermID is a weak reference to a Term and may
// point at nothing.
type Site struct {
	BaseContent
	Category string      `json:"category"`
	Geo      GeoLocation `json:"geo"`
	TermID   string      `json:"termId,omitempty"`
}

// State is the synchronizer's view of the dataset.
type State struct {
	Sites         []Site
	Terms         []Term
	Loaded        bool
	LastUpdatedAt string // empty until the first hydration
}

func (s State) clone() State {
	out := s
	out.Sites = append([]Site(nil), s.Sites...)
	out.Terms = append([]Term(nil), s.Terms...)
	return out
}
