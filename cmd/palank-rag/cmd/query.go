package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/PALAN-K/palank-rag/internal/search"
)

func newQueryCmd() *cobra.Command {
	var limit int
	var mode string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Search the knowledge base",
		Long: `Query searches the knowledge base with hybrid retrieval: keyword
(BM25) and vector (semantic) rankings merged with Reciprocal Rank
Fusion. Use --mode to restrict the search to a single leg.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if limit <= 0 {
				limit = a.cfg.Search.MaxResults
			}

			results, err := runSearch(cmd.Context(), a, args[0], mode, limit)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSONResults(results)
			}

			if len(results) == 0 {
				a.out.Warning("No results found")
				return nil
			}
			a.out.Newline()
			for i, r := range results {
				a.out.Result(i+1, r)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results (default from config)")
	cmd.Flags().StringVar(&mode, "mode", "hybrid", "Search mode: hybrid, keyword, or vector")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit results as JSON")

	return cmd
}

func runSearch(ctx context.Context, a *app, query, mode string, limit int) ([]*search.FusedResult, error) {
	switch mode {
	case "hybrid":
		return a.retriever.Search(ctx, query, limit)
	case "keyword":
		return a.retriever.SearchKeywordOnly(ctx, query, limit)
	case "vector":
		return a.retriever.SearchVectorOnly(ctx, query, limit)
	default:
		return nil, fmt.Errorf("invalid --mode %q: must be hybrid, keyword, or vector", mode)
	}
}

// jsonResult is the stable machine-readable shape of a search hit.
type jsonResult struct {
	DocID      int64   `json:"doc_id"`
	URL        string  `json:"url"`
	Title      string  `json:"title"`
	Snippet    string  `json:"snippet,omitempty"`
	ChunkText  string  `json:"chunk_text,omitempty"`
	Score      float64 `json:"score"`
	Provenance string  `json:"provenance"`
}

func writeJSONResults(results []*search.FusedResult) error {
	out := make([]jsonResult, 0, len(results))
	for _, r := range results {
		out = append(out, jsonResult{
			DocID:      r.DocID,
			URL:        r.URL,
			Title:      r.Title,
			Snippet:    r.Snippet,
			ChunkText:  r.ChunkText,
			Score:      r.Score,
			Provenance: string(r.Provenance),
		})
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
