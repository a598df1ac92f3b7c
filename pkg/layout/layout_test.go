package layout

import (
	"errors"
	"testing"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	s := Default()
	s.Window.Maximized = true
	s.Docks[DockController] = Dock{Visible: false}
	s.Canvas = Canvas{Zoom: 1.5, Center: domain.Position{X: 10, Y: -4}}
	s.Controller.DeviceType = DeviceWin32
	s.RecentFiles.PipelinePath = "/work/pipeline"

	data, err := Encode(s)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestDecode_MergesOverDefaults(t *testing.T) {
	data := []byte(`
format: tapestry/layout
version: 1
window:
  maximized: true
docks:
  properties:
    visible: false
canvas:
  zoom: 2
future_section:
  anything: 1
`)

	got, err := Decode(data)
	require.NoError(t, err)

	assert.True(t, got.Window.Maximized)
	assert.Equal(t, [2]int{1200, 800}, got.Window.Size, "unset keys keep defaults")
	assert.False(t, got.Visible(DockProperties))
	assert.True(t, got.Visible(DockNodeLibrary))
	assert.Equal(t, 2.0, got.Canvas.Zoom)
	assert.Equal(t, "127.0.0.1:5555", got.Controller.ADBAddress)
}

func TestDecode_Failures(t *testing.T) {
	tests := []struct {
		name string
		data string
		is   error
	}{
		{"garbage", "window: [unclosed", domain.ErrCorruptFile},
		{"missing format", "version: 1", domain.ErrCorruptFile},
		{"future version", "format: tapestry/layout\nversion: 7", domain.ErrUnsupportedVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.is), "got %v", err)
			assert.Equal(t, Default(), got, "failures fall back to defaults")
		})
	}
}

func TestDecode_Normalizes(t *testing.T) {
	got, err := Decode([]byte("format: tapestry/layout\nversion: 1\ncanvas:\n  zoom: -3\ncontroller:\n  device_type: USB\n"))
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Canvas.Zoom)
	assert.Equal(t, DeviceADB, got.Controller.DeviceType)
}

func TestClone_Independent(t *testing.T) {
	a := Default()
	b := a.Clone()
	b.Docks[DockController] = Dock{Visible: false}
	assert.True(t, a.Visible(DockController))
}
