package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/resource"
	"github.com/spf13/cobra"
)

func newValidateCmd(a *app) *cobra.Command {
	var resources string
	cmd := &cobra.Command{
		Use:   "validate <document>...",
		Short: "Check documents against the node type registry",
		Long: `Loads each document, checking the file format, every node type, property value and connection.
With a resource root, image templates that are not in the library are reported too.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("resources") {
				resources = a.cfg.Resources.Root
			}
			lib, err := a.scanResources(cmd.Context(), resources)
			if err != nil {
				return err
			}

			failed := 0
			out := cmd.OutOrStdout()
			for _, path := range args {
				d, err := a.loadDocument(cmd.Context(), path)
				if err != nil {
					failed++
					fmt.Fprintf(out, "FAIL %s: %v\n", path, err)
					continue
				}
				snap := d.Snapshot()
				fmt.Fprintf(out, "ok   %s (%s, %s)\n", path, plural(len(snap.Nodes), "node"), plural(len(snap.Connections), "connection"))
				if lib == nil {
					continue
				}
				missing := resource.Missing(d, *lib)
				ids := make([]string, 0, len(missing))
				for id := range missing {
					ids = append(ids, string(id))
				}
				sort.Strings(ids)
				for _, id := range ids {
					for _, img := range missing[domain.NodeID(id)] {
						fmt.Fprintf(out, "     missing template %s on node %s\n", img, id)
					}
				}
			}
			if failed > 0 {
				return errors.New(plural(failed, "document") + " failed validation")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&resources, "resources", "", "Resource library root used to check image templates")
	return cmd
}
