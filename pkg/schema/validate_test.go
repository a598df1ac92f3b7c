package schema

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func testFields() Fields {
	return Fields{
		{Name: "name", Type: String(), Default: ""},
		{Name: "threshold", Type: Number(), Default: 0.7},
		{Name: "template", Type: List(ImageRef()), Default: []any{}},
		{Name: "enabled", Type: Bool(), Default: true},
		{Name: "note", Type: String()},
	}
}

func TestCoerce_OverlaysDefaults(t *testing.T) {
	got, err := Coerce(testFields(), map[string]any{
		"threshold": 1,
		"template":  []string{"a.png"},
	})
	if err != nil {
		t.Fatalf("Coerce() error = %v, want nil", err)
	}

	want := map[string]any{
		"name":      "",
		"threshold": 1.0,
		"template":  []any{"a.png"},
		"enabled":   true,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Coerce() = %#v, want %#v", got, want)
	}
	if _, ok := got["note"]; ok {
		t.Error("field without default should stay absent")
	}
}

func TestCoerce_CollectsAllErrors(t *testing.T) {
	_, err := Coerce(testFields(), map[string]any{
		"threshold": "high",
		"enabled":   "yes",
		"missing":   1,
	})
	if err == nil {
		t.Fatal("Coerce() error = nil, want error")
	}

	errs := ValidationErrors(err)
	if len(errs) != 3 {
		t.Fatalf("ValidationErrors() returned %d errors, want 3: %v", len(errs), err)
	}

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Error("errors.As(*ValidationError) should succeed through AggregateError")
	}
}

func TestValidationErrors_ThroughWrapping(t *testing.T) {
	_, err := Coerce(testFields(), map[string]any{"threshold": "high", "enabled": "yes"})
	wrapped := fmt.Errorf("failed to set properties: %w", err)

	if got := len(ValidationErrors(wrapped)); got != 2 {
		t.Fatalf("ValidationErrors(wrapped) returned %d errors, want 2", got)
	}
	if !strings.Contains(wrapped.Error(), `property "threshold"`) {
		t.Errorf("error %q should name the property", wrapped)
	}
	if ValidationErrors(errors.New("other")) != nil {
		t.Error("ValidationErrors of an unrelated error should be nil")
	}
}

func TestCoerce_DefaultsAreIsolated(t *testing.T) {
	fields := testFields()

	a, _ := Coerce(fields, nil)
	a["template"] = append(a["template"].([]any), "mutated.png")

	b, _ := Coerce(fields, nil)
	if len(b["template"].([]any)) != 0 {
		t.Error("mutating one coerced map leaked into the schema defaults")
	}
}

func TestCoerceField(t *testing.T) {
	fields := testFields()

	v, err := CoerceField(fields, "threshold", 2)
	if err != nil || v != 2.0 {
		t.Errorf("CoerceField(threshold, 2) = %v, %v", v, err)
	}

	if _, err := CoerceField(fields, "nope", 1); err == nil {
		t.Error("CoerceField() on an undeclared key should fail")
	}
	if _, err := CoerceField(fields, "enabled", 1); err == nil {
		t.Error("CoerceField() with a wrong type should fail")
	}
}
