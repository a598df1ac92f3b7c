package registry

import (
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/schema"
)

// Built-in node type tags.
const (
	TypeTask        domain.TypeTag = "Task"
	TypeClick       domain.TypeTag = "Click"
	TypeSwipe       domain.TypeTag = "Swipe"
	TypeLog         domain.TypeTag = "Log"
	TypeRecognition domain.TypeTag = "Recognition"
	TypeIf          domain.TypeTag = "If"
	TypeUnknown     domain.TypeTag = "Unknown"
)

// Standard port ids.
const (
	PortIn        domain.PortID = "in"
	PortOut       domain.PortID = "out"
	PortNext      domain.PortID = "next"
	PortOnError   domain.PortID = "on_error"
	PortInterrupt domain.PortID = "interrupt"
	PortTrue      domain.PortID = "true"
	PortFalse     domain.PortID = "false"
)

// RecognitionTypes lists the recognition algorithms a Task can use.
var RecognitionTypes = []string{
	"DirectHit", "TemplateMatch", "FeatureMatch", "ColorMatch",
	"OCR", "NeuralNetworkClassify", "NeuralNetworkDetect", "Custom",
}

// ActionTypes lists the actions a Task can perform.
var ActionTypes = []string{
	"DoNothing", "Click", "Swipe", "MultiSwipe", "Key",
	"InputText", "StartApp", "StopApp", "StopTask", "Command", "Custom",
}

func in() PortSpec {
	return PortSpec{ID: PortIn, Direction: domain.PortInput, MaxConnections: domain.Unbounded}
}

func out(id domain.PortID, limit int) PortSpec {
	return PortSpec{ID: id, Direction: domain.PortOutput, MaxConnections: limit}
}

// Default returns a registry holding the built-in task-flow node types.
func Default() *Registry {
	r := NewRegistry()
	for _, t := range Builtins() {
		r.MustRegister(t)
	}
	return r
}

// Builtins returns fresh declarations of the built-in node types.
func Builtins() []NodeType {
	return []NodeType{
		{
			Tag:         TypeTask,
			DisplayName: "Task",
			Category:    "Pipeline",
			Description: "A pipeline step: recognize, then act, then continue on next, on_error or interrupt.",
			Ports: []PortSpec{
				in(),
				out(PortNext, domain.Unbounded),
				out(PortOnError, domain.Unbounded),
				out(PortInterrupt, domain.Unbounded),
			},
			Properties: schema.Fields{
				{Name: "name", Type: schema.String(), Default: ""},
				{Name: "recognition", Type: schema.Enum(RecognitionTypes...), Default: "DirectHit"},
				{Name: "action", Type: schema.Enum(ActionTypes...), Default: "DoNothing"},
				{Name: "template", Type: schema.List(schema.ImageRef()), Default: []any{}},
				{Name: "threshold", Type: schema.Number(), Default: 0.7},
				{Name: "roi", Type: schema.List(schema.Number()), Default: []any{0, 0, 0, 0}},
				{Name: "expected", Type: schema.List(schema.String())},
				{Name: "target", Type: schema.Any()},
				{Name: "input_text", Type: schema.String()},
				{Name: "package", Type: schema.String()},
				{Name: "is_sub", Type: schema.Bool(), Default: false},
				{Name: "inverse", Type: schema.Bool(), Default: false},
				{Name: "enabled", Type: schema.Bool(), Default: true},
				{Name: "focus", Type: schema.Bool(), Default: false},
				{Name: "rate_limit", Type: schema.Int(), Default: 1000},
				{Name: "timeout", Type: schema.Int(), Default: 20000},
				{Name: "pre_delay", Type: schema.Int(), Default: 200},
				{Name: "post_delay", Type: schema.Int(), Default: 200},
			},
			AllowSelfLoop: true,
		},
		{
			Tag:         TypeClick,
			DisplayName: "Click",
			Category:    "Action",
			Ports:       []PortSpec{in(), out(PortOut, 1)},
			Properties: schema.Fields{
				{Name: "target", Type: schema.List(schema.Number()), Default: []any{0, 0}},
				{Name: "pre_delay", Type: schema.Int(), Default: 200},
				{Name: "post_delay", Type: schema.Int(), Default: 200},
			},
		},
		{
			Tag:         TypeSwipe,
			DisplayName: "Swipe",
			Category:    "Action",
			Ports:       []PortSpec{in(), out(PortOut, 1)},
			Properties: schema.Fields{
				{Name: "swipe", Type: schema.Struct(schema.Fields{
					{Name: "begin", Type: schema.List(schema.Number()), Default: []any{0, 0}},
					{Name: "end", Type: schema.List(schema.Number()), Default: []any{0, 0}},
					{Name: "duration", Type: schema.Int(), Default: 200},
				}), Default: map[string]any{}},
			},
		},
		{
			Tag:         TypeLog,
			DisplayName: "Log",
			Category:    "Utility",
			Ports:       []PortSpec{in(), out(PortOut, 1)},
			Properties: schema.Fields{
				{Name: "message", Type: schema.String(), Default: ""},
				{Name: "level", Type: schema.Enum("info", "warn", "error"), Default: "info"},
			},
		},
		{
			Tag:         TypeRecognition,
			DisplayName: "Recognition",
			Category:    "Recognition",
			Ports:       []PortSpec{in(), out(PortNext, domain.Unbounded), out(PortOnError, domain.Unbounded)},
			Properties: schema.Fields{
				{Name: "template", Type: schema.List(schema.ImageRef()), Default: []any{}},
				{Name: "threshold", Type: schema.Number(), Default: 0.7},
				{Name: "method", Type: schema.Int(), Default: 5},
			},
		},
		{
			Tag:         TypeIf,
			DisplayName: "If",
			Category:    "Flow",
			Ports:       []PortSpec{in(), out(PortTrue, 1), out(PortFalse, 1)},
			Properties: schema.Fields{
				{Name: "condition", Type: schema.String(), Default: ""},
			},
		},
		{
			Tag:         TypeUnknown,
			DisplayName: "Unknown",
			Category:    "Pipeline",
			Description: "Placeholder for a task referenced but not defined.",
			Ports:       []PortSpec{in()},
			Properties: schema.Fields{
				{Name: "name", Type: schema.String(), Default: ""},
			},
		},
	}
}
