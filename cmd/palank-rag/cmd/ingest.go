package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/PALAN-K/palank-rag/internal/collect"
	"github.com/PALAN-K/palank-rag/internal/extract"
	"github.com/PALAN-K/palank-rag/internal/fetch"
	"github.com/PALAN-K/palank-rag/internal/output"
	"github.com/PALAN-K/palank-rag/internal/store"
)

// directInputURL is the document identity used for literal text ingests;
// re-ingesting replaces the previous direct input.
const directInputURL = "direct-input"

func newIngestCmd() *cobra.Command {
	var framework string
	var text string
	var title string

	cmd := &cobra.Command{
		Use:   "ingest [url|file|directory]",
		Short: "Add content to the knowledge base",
		Long: `Ingest adds content to the knowledge base from a URL, a file, a
directory, or literal text via --text.

URLs are scraped for their main content. Files are read as text;
directories are walked recursively, collecting markdown, text, code,
and config files.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if text == "" && len(args) == 0 {
				return fmt.Errorf("provide a source argument or --text")
			}
			if text != "" && len(args) > 0 {
				return fmt.Errorf("--text cannot be combined with a source argument")
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			ctx := cmd.Context()
			if text != "" {
				return ingestDirectText(ctx, a, text, title, framework)
			}

			source := args[0]
			switch {
			case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
				return ingestURL(ctx, a, source, framework)
			default:
				return ingestPath(ctx, a, source, framework)
			}
		},
	}

	cmd.Flags().StringVar(&framework, "framework", "", "Framework tag for the ingested documents")
	cmd.Flags().StringVar(&text, "text", "", "Ingest literal text instead of a source")
	cmd.Flags().StringVar(&title, "title", "Direct Input", "Title for --text ingests")

	return cmd
}

// formatDocument renders the stored content body.
func formatDocument(title, content string) string {
	return fmt.Sprintf("# %s\n\n%s", title, content)
}

func ingestDirectText(ctx context.Context, a *app, text, title, framework string) error {
	id, err := a.retriever.AddDocument(ctx, &store.Document{
		URL:       directInputURL,
		Title:     title,
		Content:   formatDocument(title, text),
		Framework: framework,
	})
	if err != nil {
		return err
	}
	a.markDirty()
	a.out.Successf("Ingested direct input as document %d", id)
	return nil
}

func ingestURL(ctx context.Context, a *app, url, framework string) error {
	scraper := fetch.NewScraper(scraperConfig(a))

	a.out.Statusf("→", "Scraping %s", url)
	page, err := scraper.Scrape(ctx, url)
	if err != nil {
		return err
	}

	title := page.Title
	if title == "" {
		title = url
	}
	if strings.TrimSpace(page.Content) == "" {
		return fmt.Errorf("no content extracted from %s", url)
	}

	id, err := a.retriever.AddDocument(ctx, &store.Document{
		URL:       url,
		Title:     title,
		Content:   formatDocument(title, page.Content),
		Framework: framework,
	})
	if err != nil {
		return err
	}
	a.markDirty()
	a.out.Successf("Ingested %q as document %d", title, id)
	return nil
}

// scraperConfig translates the config file's pacing interval into the
// scraper's token bucket.
func scraperConfig(a *app) fetch.ScraperConfig {
	cfg := fetch.DefaultScraperConfig()
	cfg.Timeout = a.cfg.Scraper.TimeoutDuration()
	cfg.UserAgent = a.cfg.Scraper.UserAgent
	if interval := a.cfg.Scraper.MinFetchIntervalDuration(); interval > 0 {
		cfg.RequestsPerSecond = float64(time.Second) / float64(interval)
	}
	return cfg
}

func ingestPath(ctx context.Context, a *app, path, framework string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}

	collector := collect.NewCollector(collect.CollectorConfig{
		MaxFileSize:      a.cfg.Collector.MaxFileSize,
		IncludeHidden:    a.cfg.Collector.IncludeHidden,
		RespectGitignore: a.cfg.Collector.RespectGitignore,
		Extensions:       a.cfg.Collector.Extensions,
	})
	extractor := extract.NewExtractor()

	if !info.IsDir() {
		file, err := collector.CollectFile(path)
		if err != nil {
			return err
		}
		id, err := addExtracted(ctx, a, extractor, file, framework)
		if err != nil {
			return err
		}
		a.out.Successf("Ingested %s as document %d", path, id)
		return nil
	}

	files, stats, err := collector.CollectDirectory(ctx, path)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		a.out.Warning("No supported files found")
		return nil
	}

	a.out.Statusf("→", "Found %d files (%s), %d skipped",
		stats.Found, output.FormatBytes(stats.Bytes), stats.Skipped)

	ingested, failed := 0, 0
	for i, file := range files {
		a.out.Statusf(" ", "[%d/%d] %s", i+1, len(files), file.Path)
		if _, err := addExtracted(ctx, a, extractor, file, framework); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// One bad file must not abort a directory ingest.
			failed++
			a.out.Warningf("skipped %s: %v", file.Path, err)
			continue
		}
		ingested++
	}

	a.out.Successf("Ingested %d documents (%d failed)", ingested, failed)
	return nil
}

func addExtracted(ctx context.Context, a *app, extractor *extract.Extractor, file *collect.CollectedFile, framework string) (int64, error) {
	doc, err := extractor.Extract(file)
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(doc.Content) == "" {
		return 0, fmt.Errorf("empty file")
	}

	id, err := a.retriever.AddDocument(ctx, &store.Document{
		URL:       doc.URL,
		Title:     doc.Title,
		Content:   formatDocument(doc.Title, doc.Content),
		Framework: framework,
	})
	if err != nil {
		return 0, err
	}
	a.markDirty()
	return id, nil
}
