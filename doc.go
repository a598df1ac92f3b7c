/*
Package tapestry is the document and command engine of a node-graph editor for
automation task flows.

A document is a graph of typed nodes joined through ports. Every edit runs as
an undoable command, observers learn about changes from a notification bus,
and documents are saved in a versioned file format with a separate layout
file and periodic recovery copies.

# Usage

The Editor opens documents by key. Opening restores the saved copy, or the
autosave copy when the saved one is unusable, or starts empty.

	ed, err := tapestry.New(tapestry.WithStore(file.New("")))
	if err != nil {
		log.Fatal(err)
	}
	defer ed.Close(ctx)

	ws, err := ed.Open(ctx, "flows/main.json")
	if err != nil {
		log.Fatal(err)
	}
	id, _ := ws.Document().CreateNode(registry.TypeTask, domain.Position{}, map[string]any{"name": "Start"})
	_ = ws.Document().SetProperty(id, "recognition", "TemplateMatch")
	_ = ws.Save(ctx)

Lower level packages can be used on their own: pkg/graph holds the model,
pkg/command the undo engine, pkg/document bundles them for one open document
and pkg/pipeline converts to and from the pipeline JSON of the automation
engine.
*/
package tapestry
