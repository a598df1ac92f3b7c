package tapestry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/tapestry/pkg/document"
	"github.com/aretw0/tapestry/pkg/layout"
	"github.com/aretw0/tapestry/pkg/persistence"
	"github.com/aretw0/tapestry/pkg/pipeline"
	"github.com/aretw0/tapestry/pkg/session"
)

// Workspace is one document opened through an Editor.
// Its methods must be called from the editing context.
type Workspace struct {
	editor    *Editor
	session   *session.Session
	autosaver *persistence.Autosaver
	detach    []func()
	logger    *slog.Logger
	closed    bool
}

// Key returns the document key.
func (w *Workspace) Key() string { return w.session.Key }

// Document returns the live document.
func (w *Workspace) Document() *document.Document { return w.session.Document }

// Source tells whether the document came from the saved copy, the autosave
// copy or started empty.
func (w *Workspace) Source() session.Source { return w.session.Source }

// Layout returns the window and panel state saved with the document.
func (w *Workspace) Layout() layout.Snapshot { return w.session.Layout.Clone() }

// SetLayout replaces the layout written on the next save.
func (w *Workspace) SetLayout(l layout.Snapshot) { w.session.Layout = l.Clone() }

// Autosaver returns the recovery writer, or nil when autosave is off.
func (w *Workspace) Autosaver() *persistence.Autosaver { return w.autosaver }

// Save writes the document and layout and drops the autosave copy. When the
// write fails the changes stay pending for the autosaver.
func (w *Workspace) Save(ctx context.Context) error {
	if w.closed {
		return document.ErrClosed
	}
	save := func() error { return w.editor.sessions.Save(ctx, w.session) }
	var err error
	if w.autosaver != nil {
		err = w.autosaver.Checkpoint(save)
	} else {
		err = save()
	}
	if err != nil {
		return fmt.Errorf("failed to save document %q: %w", w.Key(), err)
	}
	w.logger.Info("document saved")
	return nil
}

// ImportPipeline replaces the document with the tasks of a pipeline file.
// The replacement is a single undoable step. It returns the names that were
// referenced but not defined.
func (w *Workspace) ImportPipeline(r io.Reader) ([]string, error) {
	p, err := pipeline.Decode(r)
	if err != nil {
		return nil, err
	}
	res, err := pipeline.Import(p, w.editor.registry, nil)
	if err != nil {
		return nil, err
	}
	if err := w.Document().Load(res.Snapshot); err != nil {
		return nil, err
	}
	return res.Placeholders, nil
}

// ExportPipeline writes the Task nodes as pipeline JSON.
func (w *Workspace) ExportPipeline(out io.Writer) error {
	p, err := pipeline.Export(w.Document().Graph())
	if err != nil {
		return err
	}
	return pipeline.Encode(out, p)
}

// Close stops the autosaver, writing pending changes to the autosave copy,
// and ends the document lifecycle.
func (w *Workspace) Close(ctx context.Context) error {
	if w.closed {
		return nil
	}
	w.closed = true
	defer w.editor.forget(w.Key())

	var errs []error
	if w.autosaver != nil {
		if err := w.autosaver.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to write autosave copy: %w", err))
		}
	}
	for _, detach := range w.detach {
		detach()
	}
	if err := w.Document().Close(); err != nil {
		errs = append(errs, err)
	}
	w.logger.Info("document closed")
	return errors.Join(errs...)
}
