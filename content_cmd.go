package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/changdang/companion/internal/config"
	"github.com/changdang/companion/internal/content"
	"github.com/changdang/companion/internal/dataset"
	"github.com/changdang/companion/internal/kv"
	"github.com/changdang/companion/internal/logging"
)

var (
	forceHydrate bool
	copySource   bool
	searchLimit  int

	errUnknownKind = errors.New("kind must be site or term")

	contentCmd = &cobra.Command{
		Use:   "content",
		Short: "Inspect and refresh the content cache",
		Long:  paragraph(fmt.Sprintf("\nInspect the %s and the sites and terms it holds.", keyword("content cache"))),
	}

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show where the content came from and how much there is",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withContent(func(s *content.Synchronizer, store string) error {
				res := s.Hydrate(false)
				return writeStatus(cmd.OutOrStdout(), s.State(), res, store)
			})
		},
	}

	hydrateCmd = &cobra.Command{
		Use:   "hydrate",
		Short: "Load the content cache, reseeding it from the dataset with --force",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withContent(func(s *content.Synchronizer, store string) error {
				res := s.Hydrate(forceHydrate)
				return writeStatus(cmd.OutOrStdout(), s.State(), res, store)
			})
		},
	}

	exportCmd = &cobra.Command{
		Use:   "export DIR",
		Short: "Write the built-in dataset files to DIR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			written, err := dataset.Export(args[0])
			if err != nil {
				return err
			}
			for _, p := range written {
				fmt.Fprintln(cmd.OutOrStdout(), "Wrote", p)
			}
			return nil
		},
	}

	categoriesCmd = &cobra.Command{
		Use:   "categories",
		Short: "List site categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withLoaded(func(s *content.Synchronizer) error {
				return writeCategories(cmd.OutOrStdout(), s)
			})
		},
	}

	tagsCmd = &cobra.Command{
		Use:   "tags",
		Short: "List term tags, most used first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withLoaded(func(s *content.Synchronizer) error {
				return writeTags(cmd.OutOrStdout(), s.SortedTagCloud())
			})
		},
	}

	showCmd = &cobra.Command{
		Use:       "show site|term ID",
		Short:     "Show one site or term",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(content.KindSite), string(content.KindTerm)},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLoaded(func(s *content.Synchronizer) error {
				base, err := showItem(cmd.OutOrStdout(), s, content.Kind(args[0]), args[1], cfg.LanguageTag(), outputWidth())
				if err != nil {
					return err
				}
				if copySource {
					return copyFirstSource(cmd.OutOrStdout(), base)
				}
				return nil
			})
		},
	}

	relatedCmd = &cobra.Command{
		Use:   "related site|term ID",
		Short: "List items sharing tags with a site or term",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLoaded(func(s *content.Synchronizer) error {
				return writeRelated(cmd.OutOrStdout(), s, content.Kind(args[0]), args[1], cfg.LanguageTag())
			})
		},
	}

	searchCmd = &cobra.Command{
		Use:   "search QUERY",
		Short: "Fuzzy-search site and term names",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLoaded(func(s *content.Synchronizer) error {
				hits := s.Search(strings.Join(args, " "), searchLimit)
				return writeHits(cmd.OutOrStdout(), hits, cfg.LanguageTag())
			})
		},
	}
)

// withContent opens the configured dataset and store, builds a
// synchronizer over them and closes the store afterwards.
func withContent(fn func(s *content.Synchronizer, store string) error) error {
	ds := dataset.Embedded()
	if cfg.Content.DatasetDir != "" {
		var err error
		if ds, err = dataset.Override(cfg.Content.DatasetDir); err != nil {
			return err
		}
	}

	dataDir := ""
	if cfg.Store.Path == "" && cfg.Store.Backend != kv.BackendMemory {
		var err error
		if dataDir, err = config.DataDir(); err != nil {
			return err
		}
	}
	kvCfg := cfg.KVConfig(dataDir)
	store, err := kv.Open(kvCfg)
	if err != nil {
		return fmt.Errorf("unable to open store: %w", err)
	}
	defer func() { _ = store.Close() }()

	s := content.NewSynchronizer(ds, store,
		content.WithLogger(logging.Named(logging.PrefixContent)),
		content.WithKeyPrefix(cfg.Store.KeyPrefix),
	)
	desc := kvCfg.Backend
	if kvCfg.Path != "" {
		desc += " " + kvCfg.Path
	}
	return fn(s, desc)
}

// withLoaded runs fn against a hydrated synchronizer.
func withLoaded(fn func(s *content.Synchronizer) error) error {
	return withContent(func(s *content.Synchronizer, _ string) error {
		s.Hydrate(false)
		return fn(s)
	})
}

func writeStatus(w io.Writer, st content.State, res content.HydrationResult, store string) error {
	age := "unknown"
	if t, ok := content.ParseTimestamp(st.LastUpdatedAt); ok {
		age = humanize.Time(t)
	}
	persisted := "n/a"
	if res.Source == content.SourceStatic {
		persisted = fmt.Sprint(res.Persisted)
	}

	rows := [][2]string{
		{"Source", res.Source.String()},
		{"Store", store},
		{"Persisted", persisted},
		{"Version", st.LastUpdatedAt},
		{"Updated", age},
		{"Sites", humanize.Comma(int64(len(st.Sites)))},
		{"Terms", humanize.Comma(int64(len(st.Terms)))},
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(w, "%s %s\n", headingStyle.Render(padRight(r[0], 10)), r[1]); err != nil {
			return err
		}
	}
	return nil
}

func writeCategories(w io.Writer, s *content.Synchronizer) error {
	cats := s.Categories()
	width := columnWidth(cats)
	for _, c := range cats {
		n := len(s.SitesInCategory(c))
		if _, err := fmt.Fprintf(w, "%s  %s\n", padRight(c, width), faintStyle.Render(humanize.Comma(int64(n)))); err != nil {
			return err
		}
	}
	return nil
}

func writeTags(w io.Writer, tags []content.TagCount) error {
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Tag
	}
	width := columnWidth(names)
	for _, t := range tags {
		if _, err := fmt.Fprintf(w, "%s  %d\n", padRight(t.Tag, width), t.Count); err != nil {
			return err
		}
	}
	return nil
}

// showItem prints one site or term and returns its shared fields.
func showItem(w io.Writer, s *content.Synchronizer, kind content.Kind, id string, lang language.Tag, width int) (content.BaseContent, error) {
	var b strings.Builder
	var base content.BaseContent

	switch kind {
	case content.KindSite:
		site, ok := s.SiteByID(id)
		if !ok {
			return base, fmt.Errorf("no site with id %q", id)
		}
		base = site.BaseContent
		writeHeader(&b, base, site.Category, lang)
		if site.Geo.Address != "" {
			fmt.Fprintf(&b, "%s\n", faintStyle.Render(site.Geo.Address))
		}
		if term, ok := s.TermByID(site.TermID); ok {
			fmt.Fprintf(&b, "Term: %s (%s)\n", term.Name.Text(lang), term.ID)
		}
	case content.KindTerm:
		term, ok := s.TermByID(id)
		if !ok {
			return base, fmt.Errorf("no term with id %q", id)
		}
		base = term.BaseContent
		writeHeader(&b, base, term.Category, lang)
		for _, site := range s.SitesForTerm(term.ID) {
			fmt.Fprintf(&b, "Site: %s (%s)\n", site.Name.Text(lang), site.ID)
		}
	default:
		return base, fmt.Errorf("%w: %q", errUnknownKind, kind)
	}

	writeSection(&b, "Summary", base.Summary.Text(lang), width)
	writeSection(&b, "Background", base.Background.Text(lang), width)

	if len(base.Media) > 0 {
		fmt.Fprintf(&b, "\n%s\n", headingStyle.Render("Media"))
		for _, m := range base.Media {
			fmt.Fprintf(&b, "  %s %s", m.Type, m.Src)
			if m.Caption != "" {
				fmt.Fprintf(&b, " %s", faintStyle.Render(m.Caption))
			}
			b.WriteString("\n")
		}
	}
	if len(base.Sources) > 0 {
		fmt.Fprintf(&b, "\n%s\n", headingStyle.Render("Sources"))
		for _, src := range base.Sources {
			fmt.Fprintf(&b, "  %s\n  %s\n", src.Title, faintStyle.Render(src.URL))
		}
	}

	_, err := io.WriteString(w, b.String())
	return base, err
}

func writeHeader(b *strings.Builder, base content.BaseContent, category string, lang language.Tag) {
	b.WriteString(headingStyle.Render(base.Name.Text(lang)))
	if base.Pinyin != "" {
		b.WriteString("  " + faintStyle.Render(base.Pinyin))
	}
	b.WriteString("\n")
	if category != "" {
		fmt.Fprintf(b, "Category: %s\n", category)
	}
	if len(base.Tags) > 0 {
		fmt.Fprintf(b, "Tags: %s\n", strings.Join(base.Tags, ", "))
	}
	if t, ok := content.ParseTimestamp(base.UpdatedAt); ok {
		fmt.Fprintf(b, "Updated %s\n", humanize.Time(t))
	}
}

// writeSection renders a titled block of body text wrapped to width.
// Chinese text has no spaces to break on, so words longer than the line
// are hard-wrapped.
func writeSection(b *strings.Builder, title, body string, width int) {
	if body == "" {
		return
	}
	const margin = 2
	text := wrap.String(wordwrap.String(body, width-margin), width-margin)
	fmt.Fprintf(b, "\n%s\n%s\n", headingStyle.Render(title), indent.String(text, margin))
}

func copyFirstSource(w io.Writer, base content.BaseContent) error {
	for _, src := range base.Sources {
		if src.URL == "" {
			continue
		}
		if err := clipboard.WriteAll(src.URL); err != nil {
			return fmt.Errorf("unable to copy to clipboard: %w", err)
		}
		_, err := fmt.Fprintln(w, "Copied", src.URL)
		return err
	}
	return errors.New("item has no source links")
}

func writeRelated(w io.Writer, s *content.Synchronizer, kind content.Kind, id string, lang language.Tag) error {
	var tags []string
	// ids are only unique within their own collection
	var excludeSite, excludeTerm string
	switch kind {
	case content.KindSite:
		site, ok := s.SiteByID(id)
		if !ok {
			return fmt.Errorf("no site with id %q", id)
		}
		tags = site.Tags
		excludeSite = id
	case content.KindTerm:
		term, ok := s.TermByID(id)
		if !ok {
			return fmt.Errorf("no term with id %q", id)
		}
		tags = term.Tags
		excludeTerm = id
	default:
		return fmt.Errorf("%w: %q", errUnknownKind, kind)
	}

	var rows [][2]string
	for _, t := range s.RelatedTerms(tags, excludeTerm) {
		rows = append(rows, [2]string{string(content.KindTerm), t.Name.Text(lang) + " (" + t.ID + ")"})
	}
	for _, site := range s.RelatedSites(tags, excludeSite) {
		rows = append(rows, [2]string{string(content.KindSite), site.Name.Text(lang) + " (" + site.ID + ")"})
	}
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, faintStyle.Render("nothing related"))
		return err
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(w, "%s  %s\n", faintStyle.Render(r[0]), r[1]); err != nil {
			return err
		}
	}
	return nil
}

func writeHits(w io.Writer, hits []content.SearchHit, lang language.Tag) error {
	if len(hits) == 0 {
		_, err := fmt.Fprintln(w, faintStyle.Render("no matches"))
		return err
	}
	names := make([]string, len(hits))
	for i, h := range hits {
		names[i] = h.Name.Text(lang)
	}
	width := columnWidth(names)
	for i, h := range hits {
		if _, err := fmt.Fprintf(w, "%s  %s  %s\n", faintStyle.Render(string(h.Kind)), padRight(names[i], width), h.ID); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	hydrateCmd.Flags().BoolVarP(&forceHydrate, "force", "f", false, "replace the cache with the built-in dataset")
	showCmd.Flags().BoolVarP(&copySource, "copy", "c", false, "copy the first source link to the clipboard")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results (0 for all)")

	contentCmd.AddCommand(statusCmd, hydrateCmd, exportCmd, categoriesCmd, tagsCmd, showCmd, relatedCmd, searchCmd)
}
