package schema

import (
	"sort"

	"github.com/aretw0/tapestry/pkg/domain"
)

// Field declares one property: its name, type and default value.
type Field struct {
	Name    string
	Type    Type
	Default any
}

// Fields is an ordered property schema.
type Fields []Field

// Lookup returns the field declared under name.
func (f Fields) Lookup(name string) (Field, bool) {
	for _, field := range f {
		if field.Name == name {
			return field, true
		}
	}
	return Field{}, false
}

// Defaults returns the canonical default values of every field that declares one.
func (f Fields) Defaults() map[string]any {
	out := make(map[string]any, len(f))
	for _, field := range f {
		if field.Default == nil {
			continue
		}
		v, err := field.Type.Coerce(field.Default)
		if err != nil {
			continue
		}
		out[field.Name] = domain.CloneValue(v)
	}
	return out
}

// Coerce overlays data on the schema defaults and returns the canonical map.
// Every failure is collected in key order; the result is nil if any field fails.
func Coerce(fields Fields, data map[string]any) (map[string]any, error) {
	out := fields.Defaults()

	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var errs []error
	for _, key := range keys {
		value := data[key]
		field, ok := fields.Lookup(key)
		if !ok {
			errs = append(errs, &ValidationError{
				Key:    key,
				Reason: "not defined in schema",
			})
			continue
		}

		v, err := field.Type.Coerce(value)
		if err != nil {
			errs = append(errs, &ValidationError{
				Key:    key,
				Reason: err.Error(),
				Value:  value,
			})
			continue
		}
		out[key] = v
	}

	if len(errs) > 0 {
		return nil, &AggregateError{Errors: errs}
	}
	return out, nil
}

// CoerceField validates a single value against the named field.
func CoerceField(fields Fields, key string, value any) (any, error) {
	field, ok := fields.Lookup(key)
	if !ok {
		return nil, &ValidationError{Key: key, Reason: "not defined in schema"}
	}
	v, err := field.Type.Coerce(value)
	if err != nil {
		return nil, &ValidationError{Key: key, Reason: err.Error(), Value: value}
	}
	return v, nil
}
