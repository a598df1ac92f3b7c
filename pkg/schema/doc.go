// Package schema provides the property type system used by node type schemas.
//
// Every Type coerces a runtime value into its canonical form or rejects it. The
// canonical forms are the ones a JSON round trip produces (float64 numbers, []any
// lists, map[string]any structures), with integers kept as int64, so values set
// through the API and values restored from disk compare equal.
//
// Basic usage:
//
//	fields := schema.Fields{
//	    {Name: "threshold", Type: schema.Number(), Default: 0.7},
//	    {Name: "template", Type: schema.List(schema.ImageRef()), Default: []any{}},
//	    {Name: "recognition", Type: schema.Enum("DirectHit", "TemplateMatch")},
//	}
//
//	props, err := schema.Coerce(fields, map[string]any{"threshold": 0.9})
//	if err != nil {
//	    // Handle validation errors
//	}
//
// Types can also be parsed from their names, which is how node types declared in
// YAML files describe their properties:
//
//	t, err := schema.ParseType("[image]")
package schema
