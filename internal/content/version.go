package content

import (
	"strings"
	"time"
)

// VersionLayout is the ISO-8601 form used for version stamps, UTC with
// millisecond precision (e.g. 2024-06-01T00:00:00.000Z).
const VersionLayout = "2006-01-02T15:04:05.000Z"

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp parses an updatedAt value. Zone-less forms are read as UTC.
func ParseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatVersion renders t as a version stamp.
func FormatVersion(t time.Time) string {
	return t.UTC().Format(VersionLayout)
}

// ComputeVersion returns the latest parseable updatedAt across both
// collections. Unparseable values are skipped; when nothing parses the
// current time is returned.
func ComputeVersion(sites []Site, terms []Term) string {
	return computeVersion(sites, terms, time.Now)
}

func computeVersion(sites []Site, terms []Term, now func() time.Time) string {
	var (
		latest time.Time
		found  bool
	)
	consider := func(updatedAt string) {
		t, ok := ParseTimestamp(updatedAt)
		if !ok {
			return
		}
		if !found || t.After(latest) {
			latest = t
			found = true
		}
	}
	for _, s := range sites {
		consider(s.UpdatedAt)
	}
	for _, t := range terms {
		consider(t.UpdatedAt)
	}
	if !found {
		return FormatVersion(now())
	}
	return FormatVersion(latest)
}
