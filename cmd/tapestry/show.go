package main

import (
	"fmt"

	"github.com/aretw0/tapestry/internal/presentation/tui"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/resource"
	"github.com/spf13/cobra"
)

func newShowCmd(a *app) *cobra.Command {
	var plain bool
	var resources string
	cmd := &cobra.Command{
		Use:   "show <document>",
		Short: "Print a summary of the document",
		Long:  `Lists the nodes and connections of the document. On a terminal the summary is rendered; otherwise, or with --plain, markdown is printed.`,
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
			var missing map[domain.NodeID][]string
			if lib != nil {
				missing = resource.Missing(d, *lib)
			}

			md := tui.Markdown(args[0], d.Snapshot(), missing)
			out := cmd.OutOrStdout()
			if plain || !tui.IsTerminal(out) {
				fmt.Fprint(out, md)
				return nil
			}
			render, err := tui.NewRenderer("", tui.Width(out, 100))
			if err != nil {
				return err
			}
			rendered, err := render(md)
			if err != nil {
				return err
			}
			fmt.Fprint(out, rendered)
			return nil
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "Print markdown without terminal rendering")
	cmd.Flags().StringVar(&resources, "resources", "", "Resource library root used to list missing templates")
	return cmd
}
