package registry

import (
	"errors"
	"strings"
	"testing"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Builtins(t *testing.T) {
	r := Default()

	task, err := r.Lookup(TypeTask)
	require.NoError(t, err)
	assert.True(t, task.AllowSelfLoop)

	next, ok := task.Port(PortNext)
	require.True(t, ok)
	assert.Equal(t, domain.PortOutput, next.Direction)
	assert.Equal(t, domain.Unbounded, next.MaxConnections)

	click, err := r.Lookup(TypeClick)
	require.NoError(t, err)
	outPort, ok := click.Port(PortOut)
	require.True(t, ok)
	assert.Equal(t, 1, outPort.MaxConnections)

	defaults := task.Properties.Defaults()
	assert.Equal(t, "DirectHit", defaults["recognition"])
	assert.Equal(t, int64(20000), defaults["timeout"])
	assert.Equal(t, true, defaults["enabled"])

	assert.Len(t, r.Types(), 7)
}

func TestLookup_Unknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Lookup("Missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidType))
}

func TestRegister_RejectsBadPorts(t *testing.T) {
	r := NewRegistry()

	err := r.Register(NodeType{Tag: "A", Ports: []PortSpec{in(), in()}})
	assert.Error(t, err, "duplicate port ids")

	err = r.Register(NodeType{Tag: "B", Ports: []PortSpec{{ID: "x", Direction: "sideways", MaxConnections: 1}}})
	assert.Error(t, err, "invalid direction")

	err = r.Register(NodeType{Tag: "C", Ports: []PortSpec{{ID: "x", Direction: domain.PortInput, MaxConnections: 0}}})
	assert.Error(t, err, "zero capacity")

	err = r.Register(NodeType{})
	assert.Error(t, err, "missing tag")
}

func TestInstantiatePorts_Independent(t *testing.T) {
	r := Default()
	task, _ := r.Lookup(TypeTask)

	a := task.InstantiatePorts()
	a[0].MaxConnections = 5
	b := task.InstantiatePorts()
	assert.Equal(t, domain.Unbounded, b[0].MaxConnections)
}

func TestDecode_YAMLDefinitions(t *testing.T) {
	src := `
types:
  - tag: Wait
    category: Flow
    ports:
      - id: in
        direction: input
      - id: out
        direction: output
        max: 1
    properties:
      - name: millis
        type: int
        default: 100
      - name: images
        type: "[image]"
`
	r := NewRegistry()
	require.NoError(t, r.Decode(strings.NewReader(src)))

	wait, err := r.Lookup("Wait")
	require.NoError(t, err)
	assert.Equal(t, "Wait", wait.DisplayName)

	inPort, _ := wait.Port("in")
	assert.Equal(t, domain.Unbounded, inPort.MaxConnections)
	outPort, _ := wait.Port("out")
	assert.Equal(t, 1, outPort.MaxConnections)

	assert.Equal(t, map[string]any{"millis": int64(100)}, wait.Properties.Defaults())
}

func TestDecode_BadPropertyType(t *testing.T) {
	src := `
types:
  - tag: Broken
    ports: []
    properties:
      - name: x
        type: matrix
`
	err := NewRegistry().Decode(strings.NewReader(src))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported type")
}
