// Package layout holds the view state persisted next to a document: window
// geometry, dock visibility, canvas viewport, controller binding and recent
// files. It never carries graph data; losing it only costs the defaults.
package layout

import (
	"bytes"
	"fmt"

	"github.com/aretw0/tapestry/pkg/domain"
	"gopkg.in/yaml.v3"
)

const (
	// Format identifies a layout section.
	Format = "tapestry/layout"
	// Version is the layout version this build writes.
	Version = 1
)

// Dock names known to the editor shell.
const (
	DockNodeLibrary     = "node_library"
	DockProperties      = "properties"
	DockResourceLibrary = "resource_library"
	DockController      = "controller"
)

// Controller device types.
const (
	DeviceADB   = "ADB"
	DeviceWin32 = "WIN32"
)

// Snapshot is the persisted layout.
type Snapshot struct {
	Format      string          `yaml:"format"`
	Version     int             `yaml:"version"`
	Window      Window          `yaml:"window"`
	Docks       map[string]Dock `yaml:"docks"`
	Canvas      Canvas          `yaml:"canvas"`
	Controller  Controller      `yaml:"controller"`
	RecentFiles RecentFiles     `yaml:"recent_files"`
}

// Window is the main window geometry. Geometry and State are opaque blobs
// owned by the view toolkit.
type Window struct {
	Geometry  string `yaml:"geometry,omitempty"`
	State     string `yaml:"state,omitempty"`
	Size      [2]int `yaml:"size,flow"`
	Position  [2]int `yaml:"position,flow"`
	Maximized bool   `yaml:"maximized"`
}

// Dock is the state of one side panel.
type Dock struct {
	Visible bool `yaml:"visible"`
}

// Canvas is the node canvas viewport.
type Canvas struct {
	Zoom   float64         `yaml:"zoom"`
	Center domain.Position `yaml:"center"`
}

// Controller is the device binding shown in the controller panel.
type Controller struct {
	DeviceType       string `yaml:"device_type"`
	ADBAddress       string `yaml:"adb_address"`
	ADBPath          string `yaml:"adb_path"`
	HWND             string `yaml:"hwnd"`
	InputMethod      int    `yaml:"input_method"`
	ScreenshotMethod int    `yaml:"screenshot_method"`
	Connected        bool   `yaml:"connected"`
}

// RecentFiles remembers where the user worked last.
type RecentFiles struct {
	BaseResourcePath  string `yaml:"base_resource_path,omitempty"`
	PipelinePath      string `yaml:"pipeline_path,omitempty"`
	CurrentOpenedFile string `yaml:"current_opened_file,omitempty"`
}

// Default returns the layout used when none was saved.
func Default() Snapshot {
	return Snapshot{
		Format:  Format,
		Version: Version,
		Window: Window{
			Size:     [2]int{1200, 800},
			Position: [2]int{100, 100},
		},
		Docks: map[string]Dock{
			DockNodeLibrary:     {Visible: true},
			DockProperties:      {Visible: true},
			DockResourceLibrary: {Visible: true},
			DockController:      {Visible: true},
		},
		Canvas: Canvas{Zoom: 1},
		Controller: Controller{
			DeviceType:       DeviceADB,
			ADBAddress:       "127.0.0.1:5555",
			InputMethod:      1,
			ScreenshotMethod: 1,
		},
	}
}

// Clone returns an independent copy.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Docks = make(map[string]Dock, len(s.Docks))
	for k, v := range s.Docks {
		out.Docks[k] = v
	}
	return out
}

// Encode serializes the layout as YAML.
func Encode(s Snapshot) ([]byte, error) {
	s.Format, s.Version = Format, Version
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("failed to encode layout: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode layout: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses data over the defaults: keys present replace the default,
// nested sections merge field by field and unknown keys are ignored.
func Decode(data []byte) (Snapshot, error) {
	s := Default()
	s.Format, s.Version = "", 0
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Default(), domain.WrapFormat(domain.ErrCorruptFile, "layout", err)
	}
	if s.Format != Format {
		return Default(), domain.Formatf(domain.ErrCorruptFile, "layout: unexpected format %q", s.Format)
	}
	if s.Version > Version || s.Version < 1 {
		return Default(), domain.Formatf(domain.ErrUnsupportedVersion, "layout version %d", s.Version)
	}
	s.normalize()
	return s, nil
}

func (s *Snapshot) normalize() {
	if s.Canvas.Zoom <= 0 {
		s.Canvas.Zoom = 1
	}
	if s.Docks == nil {
		s.Docks = Default().Docks
	}
	if s.Controller.DeviceType != DeviceADB && s.Controller.DeviceType != DeviceWin32 {
		s.Controller.DeviceType = DeviceADB
	}
}

// Visible reports whether the named dock is shown. Unknown docks are shown.
func (s Snapshot) Visible(dock string) bool {
	d, ok := s.Docks[dock]
	return !ok || d.Visible
}
