package cmd

import (
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all documents in the knowledge base",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			docs, err := a.keyword.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				a.out.Warning("Knowledge base is empty")
				return nil
			}

			a.out.Header("Documents")
			for _, doc := range docs {
				a.out.DocumentRow(doc)
			}
			a.out.Newline()
			a.out.Statusf("", "%d documents", len(docs))
			return nil
		},
	}
}
