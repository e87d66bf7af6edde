package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/PALAN-K/palank-rag/internal/logging"
	"github.com/PALAN-K/palank-rag/internal/output"
	"github.com/PALAN-K/palank-rag/internal/store"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show knowledge base statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			stats, err := a.retriever.Stats(cmd.Context())
			if err != nil {
				return err
			}

			a.out.Header("Knowledge Base")
			a.out.KeyValue("Data directory", a.cfg.DataDir)
			a.out.KeyValue("Keyword backend", a.cfg.Search.KeywordBackend)
			a.out.KeyValue("Documents", fmt.Sprintf("%d", stats.DocumentCount))
			a.out.KeyValue("Vectors", fmt.Sprintf("%d", stats.VectorCount))
			a.out.KeyValue("Embedding model", a.cfg.Embeddings.Model)
			a.out.KeyValue("Dimensions", fmt.Sprintf("%d", a.cfg.Embeddings.Dimensions))

			if len(stats.Frameworks) > 0 {
				a.out.Newline()
				a.out.Header("Frameworks")
				names := make([]string, 0, len(stats.Frameworks))
				for name := range stats.Frameworks {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					a.out.KeyValue(name, fmt.Sprintf("%d", stats.Frameworks[name]))
				}
			}

			a.out.Newline()
			a.out.Header("Storage")
			a.out.KeyValue("Keyword index", fileSize(filepath.Join(a.cfg.DataDir, "knowledge.db")))
			a.out.KeyValue("Vector snapshot", fileSize(store.VectorStorePath(a.cfg.DataDir)))
			a.out.KeyValue("Log file", fileSize(logging.LogPath(a.cfg.DataDir)))
			return nil
		},
	}
}

func fileSize(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "not present"
	}
	return output.FormatBytes(info.Size())
}
