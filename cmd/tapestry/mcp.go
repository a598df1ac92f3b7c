package main

import (
	"context"
	"errors"

	"github.com/aretw0/tapestry"
	"github.com/aretw0/tapestry/pkg/adapters/mcp"
	"github.com/aretw0/tapestry/pkg/document"
	"github.com/spf13/cobra"
)

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp <document>",
		Short: "Edit a document from an MCP client over stdio",
		Long:  `Opens the document and serves editing tools over the Model Context Protocol on stdin/stdout. The document is saved when the client disconnects.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.registry(cmd.Context())
			if err != nil {
				return err
			}
			b, err := openBackend(a.cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			ed, err := tapestry.New(a.editorOptions(b, reg)...)
			if err != nil {
				return err
			}
			ws, err := ed.Open(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			srv := mcp.NewServer(ws.Document(), mcp.WithLogger(a.logger))
			runErr := srv.ServeStdio()

			ctx := context.WithoutCancel(cmd.Context())
			err = srv.Edit(func(*document.Document) error {
				return errors.Join(ws.Save(ctx), ed.Close(ctx))
			})
			return errors.Join(runErr, err)
		},
	}
}
