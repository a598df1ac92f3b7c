// Package loam loads node type definitions from a directory of documents
// (Markdown with frontmatter, JSON or YAML), one node type per document.
package loam

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/loam"
	"github.com/aretw0/tapestry/pkg/registry"
	"github.com/mitchellh/mapstructure"
)

// Library reads node type documents through a Loam repository.
type Library struct {
	Repo *loam.TypedRepository[TypeMetadata]
}

// New wraps an existing typed repository.
func New(repo *loam.TypedRepository[TypeMetadata]) *Library {
	return &Library{Repo: repo}
}

// Open initializes a read-only Loam repository at dir.
func Open(dir string) (*Library, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	// Strict mode yields json.Number for every numeric value regardless of
	// the file format.
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[TypeMetadata](repo)), nil
}

// Definitions returns every node type in the repository, sorted by tag.
// A document without a tag is named after its file.
func (l *Library) Definitions(ctx context.Context) ([]registry.Definition, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string)
	defs := make([]registry.Definition, 0, len(docs))
	for _, entry := range docs {
		// List serves cached frontmatter without the body, so each document
		// is read in full for its description and strict numbers.
		doc, err := l.Repo.Get(ctx, entry.ID)
		if err != nil {
			return nil, fmt.Errorf("loam get failed for %s: %w", entry.ID, err)
		}
		meta := doc.Data
		tag := meta.Tag
		if tag == "" {
			tag = trimExtension(filepath.Base(doc.ID))
		}
		if existing, ok := seen[tag]; ok {
			return nil, fmt.Errorf("collision detected: node type '%s' is defined in both '%s' and '%s'", tag, existing, doc.ID)
		}
		seen[tag] = doc.ID

		def := registry.Definition{
			Tag:           tag,
			DisplayName:   meta.DisplayName,
			Category:      meta.Category,
			Description:   strings.TrimSpace(doc.Content),
			AllowSelfLoop: meta.AllowSelfLoop,
		}
		if err := decodeList(meta.Ports, &def.Ports); err != nil {
			return nil, fmt.Errorf("node type %s: ports: %w", tag, err)
		}
		if err := decodeList(meta.Properties, &def.Properties); err != nil {
			return nil, fmt.Errorf("node type %s: properties: %w", tag, err)
		}
		for i := range def.Properties {
			def.Properties[i].Default = normalizeNumber(def.Properties[i].Default)
		}
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Tag < defs[j].Tag })
	return defs, nil
}

// Register adds every node type of the repository to reg and returns how
// many were registered.
func (l *Library) Register(ctx context.Context, reg *registry.Registry) (int, error) {
	defs, err := l.Definitions(ctx)
	if err != nil {
		return 0, err
	}
	for _, d := range defs {
		t, err := d.NodeType()
		if err != nil {
			return 0, err
		}
		if err := reg.Register(t); err != nil {
			return 0, err
		}
	}
	return len(defs), nil
}

// decodeList maps loosely typed frontmatter entries onto out. Field names
// match case-insensitively and numbers may arrive as json.Number.
func decodeList(in []map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}

// normalizeNumber turns whole numbers into int64 and the rest into float64.
func normalizeNumber(v any) any {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	case int:
		return int64(n)
	case uint64:
		return int64(n)
	default:
		return v
	}
}

func trimExtension(id string) string {
	return filepath.ToSlash(strings.TrimSuffix(id, filepath.Ext(id)))
}
