package cmd

import (
	"github.com/spf13/cobra"
)

func newRebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the keyword search index",
		Long: `Rebuild reconstructs the full-text index from the stored documents.
Use it after a keyword backend change or a suspected index corruption.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			a.out.Status("→", "Rebuilding keyword index")
			if err := a.keyword.RebuildIndex(cmd.Context()); err != nil {
				return err
			}
			a.out.Success("Keyword index rebuilt")
			return nil
		},
	}
}
