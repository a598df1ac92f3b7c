package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pipelineJSON = `{
    "Start": {"recognition": "TemplateMatch", "template": "start.png", "next": ["Tap"]},
    "Tap": {"action": "Click", "on_error": ["Gone"]}
}`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCLI_ImportValidateGraphExport(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "pipeline.json")
	doc := filepath.Join(dir, "flow.json")
	require.NoError(t, os.WriteFile(src, []byte(pipelineJSON), 0o644))

	out, err := run(t, "import", src, doc)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 2 tasks")

	out, err = run(t, "validate", doc)
	require.NoError(t, err)
	assert.Contains(t, out, "ok   "+doc+" (3 nodes, 2 connections)")

	out, err = run(t, "graph", doc)
	require.NoError(t, err)
	assert.Contains(t, out, "graph LR")
	assert.Contains(t, out, "Start")

	exported := filepath.Join(dir, "out.json")
	_, err = run(t, "export", doc, "-o", exported)
	require.NoError(t, err)
	data, err := os.ReadFile(exported)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Tap"`)
}

func TestCLI_ValidateReportsMissingTemplates(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "pipeline.json")
	doc := filepath.Join(dir, "flow.json")
	images := filepath.Join(dir, "images")
	require.NoError(t, os.MkdirAll(images, 0o755))
	require.NoError(t, os.WriteFile(src, []byte(pipelineJSON), 0o644))

	_, err := run(t, "import", src, doc)
	require.NoError(t, err)

	out, err := run(t, "validate", "--resources", images, doc)
	require.NoError(t, err)
	assert.Contains(t, out, "missing template start.png")
}

func TestCLI_ValidateFailsOnCorruptFile(t *testing.T) {
	doc := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(doc, []byte("{not json"), 0o644))

	out, err := run(t, "validate", doc)
	require.Error(t, err)
	assert.Contains(t, out, "FAIL")
}

func TestCLI_RejectsInvalidConfig(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("log:\n  level: loud\n"), 0o644))

	_, err := run(t, "--config", cfg, "validate", "x.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestCLI_Version(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "tapestry version dev")
}

func TestCLI_ShowPlain(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "pipeline.json")
	doc := filepath.Join(dir, "flow.json")
	require.NoError(t, os.WriteFile(src, []byte(pipelineJSON), 0o644))
	_, err := run(t, "import", src, doc)
	require.NoError(t, err)

	out, err := run(t, "show", doc)
	require.NoError(t, err)
	assert.Contains(t, out, "nodes: 3, connections: 2")
	assert.Contains(t, out, "- `Start` next -> `Tap` in")
}
