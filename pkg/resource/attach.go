package resource

import (
	"fmt"
	"slices"

	"github.com/aretw0/tapestry/pkg/document"
	"github.com/aretw0/tapestry/pkg/domain"
)

// TemplateProperty is the node property holding recognition images.
const TemplateProperty = "template"

// Attach appends an image path to the template list of a node as one
// undoable edit. Attaching an image already on the node does nothing.
func Attach(d *document.Document, id domain.NodeID, imagePath string) error {
	current, err := templates(d, id)
	if err != nil {
		return err
	}
	if slices.Contains(current, any(imagePath)) {
		return nil
	}
	return d.SetProperty(id, TemplateProperty, append(current, imagePath))
}

// Detach removes an image path from the template list of a node.
func Detach(d *document.Document, id domain.NodeID, imagePath string) error {
	current, err := templates(d, id)
	if err != nil {
		return err
	}
	i := slices.Index(current, any(imagePath))
	if i < 0 {
		return nil
	}
	return d.SetProperty(id, TemplateProperty, slices.Delete(current, i, i+1))
}

func templates(d *document.Document, id domain.NodeID) ([]any, error) {
	n, ok := d.Graph().Node(id)
	if !ok {
		return nil, domain.NodeNotFound(id)
	}
	t, err := d.Registry().Lookup(n.Type)
	if err != nil {
		return nil, err
	}
	if _, ok := t.Properties.Lookup(TemplateProperty); !ok {
		return nil, &domain.TypeMismatchError{Node: id, Key: TemplateProperty, Reason: fmt.Sprintf("%s nodes take no images", n.Type)}
	}
	v, _ := n.Property(TemplateProperty)
	list, _ := v.([]any)
	return slices.Clone(list), nil
}

// Missing returns the template paths of the document that are not in snap.
func Missing(d *document.Document, snap Snapshot) map[domain.NodeID][]string {
	out := make(map[domain.NodeID][]string)
	for _, n := range d.Graph().Nodes() {
		v, ok := n.Property(TemplateProperty)
		if !ok {
			continue
		}
		list, _ := v.([]any)
		for _, e := range list {
			if p, ok := e.(string); ok && !snap.Contains(p) {
				out[n.ID] = append(out[n.ID], p)
			}
		}
	}
	return out
}
