// Package pipeline converts between document graphs and the pipeline JSON
// consumed by the automation engine.
//
// A pipeline is a JSON object mapping task names to task definitions:
//
//	{
//	    "Start": {"recognition": "TemplateMatch", "template": ["start.png"], "next": ["Confirm"]},
//	    "Confirm": {"action": "Click"}
//	}
//
// Each Task node exports as one entry. Its next, on_error and interrupt
// lists are derived from the connections leaving the matching output ports.
package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/mitchellh/mapstructure"
)

var (
	// ErrDuplicateTask is returned when two tasks share a name.
	ErrDuplicateTask = errors.New("duplicate task name")
	// ErrInvalidPipeline is returned when the input is not a pipeline object.
	ErrInvalidPipeline = errors.New("invalid pipeline")
)

// Task is one pipeline step. Pointer fields distinguish unset from zero.
type Task struct {
	Name string `json:"-" mapstructure:"name"`

	Recognition *string   `json:"recognition,omitempty" mapstructure:"recognition"`
	Action      *string   `json:"action,omitempty" mapstructure:"action"`
	Template    []string  `json:"template,omitempty" mapstructure:"template"`
	Threshold   *float64  `json:"threshold,omitempty" mapstructure:"threshold"`
	ROI         []float64 `json:"roi,omitempty" mapstructure:"roi"`
	Expected    []string  `json:"expected,omitempty" mapstructure:"expected"`
	Target      any       `json:"target,omitempty" mapstructure:"target"`
	InputText   *string   `json:"input_text,omitempty" mapstructure:"input_text"`
	Package     *string   `json:"package,omitempty" mapstructure:"package"`
	IsSub       *bool     `json:"is_sub,omitempty" mapstructure:"is_sub"`
	Inverse     *bool     `json:"inverse,omitempty" mapstructure:"inverse"`
	Enabled     *bool     `json:"enabled,omitempty" mapstructure:"enabled"`
	Focus       *bool     `json:"focus,omitempty" mapstructure:"focus"`
	RateLimit   *int64    `json:"rate_limit,omitempty" mapstructure:"rate_limit"`
	Timeout     *int64    `json:"timeout,omitempty" mapstructure:"timeout"`
	PreDelay    *int64    `json:"pre_delay,omitempty" mapstructure:"pre_delay"`
	PostDelay   *int64    `json:"post_delay,omitempty" mapstructure:"post_delay"`

	Next      []string `json:"next,omitempty" mapstructure:"next"`
	OnError   []string `json:"on_error,omitempty" mapstructure:"on_error"`
	Interrupt []string `json:"interrupt,omitempty" mapstructure:"interrupt"`
}

// Pipeline is an ordered set of tasks. JSON object order is kept on both
// decode and encode.
type Pipeline struct {
	Tasks []Task

	// Ignored lists, per task, the decoded keys no Task field accepts.
	Ignored map[string][]string
}

// Task returns the task with the given name.
func (p *Pipeline) Task(name string) (Task, bool) {
	for _, t := range p.Tasks {
		if t.Name == name {
			return t, true
		}
	}
	return Task{}, false
}

// Names returns task names in order.
func (p *Pipeline) Names() []string {
	out := make([]string, len(p.Tasks))
	for i, t := range p.Tasks {
		out[i] = t.Name
	}
	return out
}

// MarshalJSON writes the tasks as one object in task order.
func (p Pipeline) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, t := range p.Tasks {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(t.Name)
		if err != nil {
			return nil, err
		}
		body, err := json.Marshal(t)
		if err != nil {
			return nil, fmt.Errorf("task %q: %w", t.Name, err)
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(body)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a pipeline object, keeping task order.
func (p *Pipeline) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPipeline, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("%w: expected an object of tasks", ErrInvalidPipeline)
	}

	var tasks []Task
	ignored := make(map[string][]string)
	seen := make(map[string]bool)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPipeline, err)
		}
		name := tok.(string)
		if seen[name] {
			return fmt.Errorf("%w: %q", ErrDuplicateTask, name)
		}
		seen[name] = true

		var raw map[string]any
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("%w: task %q: %v", ErrInvalidPipeline, name, err)
		}
		task, unused, err := decodeTask(name, raw)
		if err != nil {
			return err
		}
		if len(unused) > 0 {
			ignored[name] = unused
		}
		tasks = append(tasks, task)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPipeline, err)
	}
	p.Tasks = tasks
	p.Ignored = ignored
	return nil
}

// decodeTask maps loosely typed JSON onto a Task. A single string where a
// list is expected becomes a one-element list, as the engine accepts both.
func decodeTask(name string, raw map[string]any) (Task, []string, error) {
	delete(raw, "name")
	var task Task
	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &task,
		Metadata:         &md,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return Task{}, nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return Task{}, nil, fmt.Errorf("%w: task %q: %v", ErrInvalidPipeline, name, err)
	}
	task.Name = name
	task.Target = normalizeNumbers(task.Target)
	sort.Strings(md.Unused)
	return task, md.Unused, nil
}

// normalizeNumbers turns json.Number leaves into float64.
func normalizeNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return x.String()
		}
		return f
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalizeNumbers(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalizeNumbers(e)
		}
		return out
	default:
		return v
	}
}

// Decode reads a pipeline from r.
func Decode(r io.Reader) (*Pipeline, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline: %w", err)
	}
	var p Pipeline
	if err := p.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return &p, nil
}

// Encode writes p as indented JSON.
func Encode(w io.Writer, p *Pipeline) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode pipeline: %w", err)
	}
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "    "); err != nil {
		return fmt.Errorf("failed to encode pipeline: %w", err)
	}
	out.WriteByte('\n')
	_, err = w.Write(out.Bytes())
	return err
}
