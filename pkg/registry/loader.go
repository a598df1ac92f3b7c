package registry

import (
	"fmt"
	"io"
	"os"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/schema"
	"gopkg.in/yaml.v3"
)

// Definition is the YAML form of a node type.
type Definition struct {
	Tag           string        `yaml:"tag"`
	DisplayName   string        `yaml:"display_name,omitempty"`
	Category      string        `yaml:"category,omitempty"`
	Description   string        `yaml:"description,omitempty"`
	Ports         []PortDef     `yaml:"ports"`
	Properties    []PropertyDef `yaml:"properties,omitempty"`
	AllowSelfLoop bool          `yaml:"allow_self_loop,omitempty"`
}

// PortDef is the YAML form of a port. Max defaults to unbounded.
type PortDef struct {
	ID        string `yaml:"id"`
	Direction string `yaml:"direction"`
	Max       *int   `yaml:"max,omitempty"`
}

// PropertyDef is the YAML form of a property. Type uses the ParseType syntax.
type PropertyDef struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Default any    `yaml:"default,omitempty"`
}

type definitionFile struct {
	Types []Definition `yaml:"types"`
}

// NodeType converts the definition, resolving property types.
func (d Definition) NodeType() (NodeType, error) {
	t := NodeType{
		Tag:           domain.TypeTag(d.Tag),
		DisplayName:   d.DisplayName,
		Category:      d.Category,
		Description:   d.Description,
		AllowSelfLoop: d.AllowSelfLoop,
	}
	if t.DisplayName == "" {
		t.DisplayName = d.Tag
	}

	for _, p := range d.Ports {
		limit := domain.Unbounded
		if p.Max != nil {
			limit = *p.Max
		}
		t.Ports = append(t.Ports, PortSpec{
			ID:             domain.PortID(p.ID),
			Direction:      domain.PortDirection(p.Direction),
			MaxConnections: limit,
		})
	}

	for _, p := range d.Properties {
		typ, err := schema.ParseType(p.Type)
		if err != nil {
			return NodeType{}, fmt.Errorf("node type %s: property %q: %w", d.Tag, p.Name, err)
		}
		t.Properties = append(t.Properties, schema.Field{Name: p.Name, Type: typ, Default: p.Default})
	}
	return t, nil
}

// Decode reads node type definitions from r and registers them.
func (r *Registry) Decode(src io.Reader) error {
	var file definitionFile
	if err := yaml.NewDecoder(src).Decode(&file); err != nil {
		return fmt.Errorf("failed to decode node types: %w", err)
	}
	for _, d := range file.Types {
		t, err := d.NodeType()
		if err != nil {
			return err
		}
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// LoadFile registers the node types declared in the YAML file at path.
func (r *Registry) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open node types file: %w", err)
	}
	defer f.Close()
	return r.Decode(f)
}
