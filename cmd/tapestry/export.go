package main

import (
	"bytes"
	"fmt"

	"github.com/aretw0/tapestry/pkg/adapters/file"
	"github.com/aretw0/tapestry/pkg/pipeline"
	"github.com/spf13/cobra"
)

func newExportCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export <document>",
		Short: "Write the document as pipeline JSON",
		Long:  `Converts every Task node to a pipeline entry. Connections from the next, on_error and interrupt ports become the matching name lists.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.loadDocument(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			p, err := pipeline.Export(d.Graph())
			if err != nil {
				return err
			}
			if output == "" {
				return pipeline.Encode(cmd.OutOrStdout(), p)
			}
			var buf bytes.Buffer
			if err := pipeline.Encode(&buf, p); err != nil {
				return err
			}
			if err := file.WriteAtomic(output, buf.Bytes()); err != nil {
				return fmt.Errorf("failed to write pipeline: %w", err)
			}
			a.logger.Info("pipeline exported", "path", output, "tasks", len(p.Tasks))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	return cmd
}
