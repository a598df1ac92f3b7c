package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"
)

// Type defines the contract for property values.
type Type interface {
	// Name returns the human-readable name of the type (e.g., "string", "[number]").
	Name() string
	// Coerce returns the canonical form of value, or an error if it does not conform.
	Coerce(value any) (any, error)
}

// Validate checks if a value conforms to t.
func Validate(t Type, value any) error {
	_, err := t.Coerce(value)
	return err
}

// --- Built-in Type Implementations ---

// StringType accepts strings.
type StringType struct{}

func (t *StringType) Name() string { return "string" }

func (t *StringType) Coerce(value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("expected string, got %T", value)
	}
	return s, nil
}

// NumberType accepts any numeric value and stores it as float64.
type NumberType struct{}

func (t *NumberType) Name() string { return "number" }

func (t *NumberType) Coerce(value any) (any, error) {
	f, ok := toFloat(value)
	if !ok {
		return nil, fmt.Errorf("expected number, got %T", value)
	}
	return f, nil
}

// IntType accepts whole numbers and stores them as int64.
type IntType struct{}

func (t *IntType) Name() string { return "int" }

// Coerce accepts integers and whole floats that fit in an int64.
func (t *IntType) Coerce(value any) (any, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return uintToInt(uint64(v))
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return uintToInt(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
	}
	f, ok := toFloat(value)
	if !ok {
		return nil, fmt.Errorf("expected int, got %T", value)
	}
	if f != math.Trunc(f) {
		return nil, fmt.Errorf("expected int, got float (not a whole number)")
	}
	// float64(math.MaxInt64) rounds up to 2^63, itself out of range.
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return nil, fmt.Errorf("expected int, got %v (out of int64 range)", f)
	}
	return int64(f), nil
}

func uintToInt(v uint64) (any, error) {
	if v > math.MaxInt64 {
		return nil, fmt.Errorf("expected int, got %d (out of int64 range)", v)
	}
	return int64(v), nil
}

// BoolType accepts booleans.
type BoolType struct{}

func (t *BoolType) Name() string { return "bool" }

func (t *BoolType) Coerce(value any) (any, error) {
	b, ok := value.(bool)
	if !ok {
		return nil, fmt.Errorf("expected bool, got %T", value)
	}
	return b, nil
}

// EnumType accepts one string out of a fixed set.
type EnumType struct {
	values []string
}

func (t *EnumType) Name() string {
	return "enum(" + strings.Join(t.values, "|") + ")"
}

// Values returns the allowed values in declaration order.
func (t *EnumType) Values() []string {
	return append([]string(nil), t.values...)
}

func (t *EnumType) Coerce(value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("expected one of %v, got %T", t.values, value)
	}
	for _, v := range t.values {
		if v == s {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%q is not one of %v", s, t.values)
}

// ImageRefType accepts a path to an image resource. Only the path is stored.
type ImageRefType struct{}

func (t *ImageRefType) Name() string { return "image" }

func (t *ImageRefType) Coerce(value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("expected image path, got %T", value)
	}
	return s, nil
}

// ListType accepts slices whose elements conform to a single type.
type ListType struct {
	elemType Type
}

func (t *ListType) Name() string {
	return fmt.Sprintf("[%s]", t.elemType.Name())
}

// Elem returns the element type.
func (t *ListType) Elem() Type { return t.elemType }

func (t *ListType) Coerce(value any) (any, error) {
	if value == nil {
		return nil, fmt.Errorf("expected list, got nil")
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("expected list, got %T", value)
	}

	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		elem, err := t.elemType.Coerce(rv.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = elem
	}
	return out, nil
}

// StructType accepts nested structures with a fixed set of fields.
type StructType struct {
	fields Fields
}

func (t *StructType) Name() string {
	names := make([]string, 0, len(t.fields))
	for _, f := range t.fields {
		names = append(names, f.Name+":"+f.Type.Name())
	}
	return "{" + strings.Join(names, ",") + "}"
}

// Fields returns the nested field declarations.
func (t *StructType) Fields() Fields { return t.fields }

func (t *StructType) Coerce(value any) (any, error) {
	m, ok := toMap(value)
	if !ok {
		return nil, fmt.Errorf("expected structure, got %T", value)
	}
	return Coerce(t.fields, m)
}

// AnyType accepts any JSON-compatible value.
type AnyType struct{}

func (t *AnyType) Name() string { return "any" }

func (t *AnyType) Coerce(value any) (any, error) {
	return normalize(value)
}

// CustomType applies a user-defined coercion function.
type CustomType struct {
	name   string
	coerce func(any) (any, error)
}

func (t *CustomType) Name() string { return t.name }

func (t *CustomType) Coerce(value any) (any, error) {
	return t.coerce(value)
}

// --- Factory Functions ---

// String creates a string type.
func String() Type { return &StringType{} }

// Number creates a floating-point number type.
func Number() Type { return &NumberType{} }

// Int creates an integer type.
func Int() Type { return &IntType{} }

// Bool creates a boolean type.
func Bool() Type { return &BoolType{} }

// Enum creates a type restricted to the given values.
func Enum(values ...string) Type { return &EnumType{values: values} }

// ImageRef creates an image-reference type.
func ImageRef() Type { return &ImageRefType{} }

// List creates a list type for elements of the given type.
func List(elemType Type) Type { return &ListType{elemType: elemType} }

// Struct creates a nested structure type.
func Struct(fields Fields) Type { return &StructType{fields: fields} }

// Any creates a type accepting every JSON-compatible value.
func Any() Type { return &AnyType{} }

// Custom creates a custom type with a user-defined coercion.
func Custom(name string, coerce func(any) (any, error)) Type {
	return &CustomType{name: name, coerce: coerce}
}

// ParseType converts a type name to a Type.
// Supports "string", "number", "int", "bool", "image", "any",
// "enum(a|b|c)" and list forms such as "[image]" or "[[number]]".
func ParseType(typeStr string) (Type, error) {
	typeStr = strings.TrimSpace(typeStr)

	if len(typeStr) > 2 && typeStr[0] == '[' && typeStr[len(typeStr)-1] == ']' {
		elemType, err := ParseType(typeStr[1 : len(typeStr)-1])
		if err != nil {
			return nil, err
		}
		return List(elemType), nil
	}

	if strings.HasPrefix(typeStr, "enum(") && strings.HasSuffix(typeStr, ")") {
		inner := typeStr[len("enum(") : len(typeStr)-1]
		if inner == "" {
			return nil, fmt.Errorf("enum without values")
		}
		return Enum(strings.Split(inner, "|")...), nil
	}

	switch typeStr {
	case "string":
		return String(), nil
	case "number", "float":
		return Number(), nil
	case "int":
		return Int(), nil
	case "bool":
		return Bool(), nil
	case "image":
		return ImageRef(), nil
	case "any":
		return Any(), nil
	default:
		return nil, fmt.Errorf("unsupported type: %s", typeStr)
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func toMap(value any) (map[string]any, bool) {
	switch v := value.(type) {
	case map[string]any:
		return v, true
	case map[string]string:
		out := make(map[string]any, len(v))
		for k, s := range v {
			out[k] = s
		}
		return out, true
	default:
		return nil, false
	}
}

// normalize converts a value into the shapes a JSON decoder produces.
func normalize(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	if f, ok := toFloat(value); ok {
		return f, nil
	}
	switch v := value.(type) {
	case string, bool:
		return v, nil
	}
	if m, ok := toMap(value); ok {
		out := make(map[string]any, len(m))
		for k, e := range m {
			n, err := normalize(e)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			out[k] = n
		}
		return out, nil
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			n, err := normalize(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = n
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported value of type %T", value)
}
