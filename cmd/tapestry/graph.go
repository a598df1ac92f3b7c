package main

import (
	"fmt"

	"github.com/aretw0/tapestry/internal/presentation/graph"
	"github.com/aretw0/tapestry/pkg/resource"
	"github.com/spf13/cobra"
)

func newGraphCmd(a *app) *cobra.Command {
	var resources string
	cmd := &cobra.Command{
		Use:   "graph <document>",
		Short: "Export the document graph visualization",
		Long:  `Loads the document and outputs a Mermaid diagram (graph LR). Nodes with templates missing from the resource library are highlighted.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("resources") {
				resources = a.cfg.Resources.Root
			}
			d, err := a.loadDocument(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			lib, err := a.scanResources(cmd.Context(), resources)
			if err != nil {
				return err
			}

			var overlay *graph.Overlay
			if lib != nil {
				overlay = &graph.Overlay{}
				missing := resource.Missing(d, *lib)
				for _, n := range d.Graph().Nodes() {
					if _, ok := missing[n.ID]; ok {
						overlay.Missing = append(overlay.Missing, n.ID)
					}
				}
			}
			fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(d.Snapshot(), overlay))
			return nil
		},
	}
	cmd.Flags().StringVar(&resources, "resources", "", "Resource library root used to highlight missing templates")
	return cmd
}
