package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a document from the knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid document id %q", args[0])
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			existed, err := a.retriever.DeleteDocument(cmd.Context(), docID)
			if err != nil {
				return err
			}
			if !existed {
				a.out.Warningf("Document %d not found", docID)
				return nil
			}
			a.markDirty()
			a.out.Successf("Deleted document %d", docID)
			return nil
		},
	}
}
