package main

import (
	"fmt"
	"os"

	"github.com/aretw0/tapestry/pkg/pipeline"
	"github.com/spf13/cobra"
)

func newImportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <pipeline.json> <document>",
		Short: "Create a document from pipeline JSON",
		Long: `Lays out every task of the pipeline as a Task node and connects the next, on_error and interrupt lists.
Names that are referenced but never defined become Unknown placeholder nodes.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, dest := args[0], args[1]
			f, err := os.Open(src)
			if err != nil {
				return fmt.Errorf("failed to open pipeline: %w", err)
			}
			defer f.Close()

			p, err := pipeline.Decode(f)
			if err != nil {
				return err
			}
			for name, keys := range p.Ignored {
				a.logger.Warn("ignored pipeline fields", "task", name, "fields", keys)
			}

			m, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			res, err := pipeline.Import(p, m.Registry(), nil)
			if err != nil {
				return err
			}
			if err := m.SaveGraph(cmd.Context(), dest, res.Snapshot); err != nil {
				return err
			}
			for _, name := range res.Placeholders {
				a.logger.Warn("task referenced but not defined", "task", name)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %s into %s\n", plural(len(p.Tasks), "task"), dest)
			return nil
		},
	}
	return cmd
}
