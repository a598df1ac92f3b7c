package resource_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/tapestry/pkg/document"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/registry"
	"github.com/aretw0/tapestry/pkg/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte("img"), 0o644))
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "start.png")
	writeFile(t, root, "battle/boss.JPG")
	writeFile(t, root, "battle/deep/icon.bmp")
	writeFile(t, root, "notes.txt")

	lib, err := resource.NewLibrary(root)
	require.NoError(t, err)

	snap, err := lib.Scan(context.Background())
	require.NoError(t, err)

	var paths []string
	for _, img := range snap.Images {
		paths = append(paths, img.Path)
	}
	assert.Equal(t, []string{"battle/boss.JPG", "battle/deep/icon.bmp", "start.png"}, paths)
	assert.Equal(t, "icon.bmp", snap.Images[1].Name())
	assert.Equal(t, int64(3), snap.Images[2].Size)
	assert.True(t, snap.Contains("start.png"))
	assert.False(t, snap.Contains("notes.txt"))
	assert.Equal(t, snap, lib.Current())
}

func TestScan_Errors(t *testing.T) {
	_, err := resource.NewLibrary(t.TempDir(), resource.WithPatterns("[bad"))
	assert.Error(t, err)

	lib, err := resource.NewLibrary(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	_, err = lib.Scan(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestScanAsync(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.png")
	lib, err := resource.NewLibrary(root, resource.WithPatterns("*.png"))
	require.NoError(t, err)

	select {
	case res := <-lib.ScanAsync(context.Background()):
		require.NoError(t, res.Err)
		assert.Len(t, res.Snapshot.Images, 1)
	case <-time.After(5 * time.Second):
		t.Fatal("scan did not finish")
	}
}

func TestWatch_RescansOnChange(t *testing.T) {
	root := t.TempDir()
	lib, err := resource.NewLibrary(root, resource.WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	snaps := make(chan resource.Snapshot, 10)
	require.NoError(t, lib.Watch(ctx, func(s resource.Snapshot, err error) {
		if err == nil {
			snaps <- s
		}
	}))

	writeFile(t, root, "new.png")

	deadline := time.After(5 * time.Second)
	for {
		select {
		case s := <-snaps:
			if s.Contains("new.png") {
				return
			}
		case <-deadline:
			t.Fatal("watcher did not pick up the new image")
		}
	}
}

func TestAttachDetach(t *testing.T) {
	d := document.New()
	id, err := d.CreateNode(registry.TypeTask, domain.Position{}, nil)
	require.NoError(t, err)

	require.NoError(t, resource.Attach(d, id, "start.png"))
	require.NoError(t, resource.Attach(d, id, "start.png"))
	require.NoError(t, resource.Attach(d, id, "next.png"))

	n, _ := d.Graph().Node(id)
	assert.Equal(t, []any{"start.png", "next.png"}, n.Properties["template"])

	undone, err := d.Undo()
	require.NoError(t, err)
	assert.True(t, undone)
	n, _ = d.Graph().Node(id)
	assert.Equal(t, []any{"start.png"}, n.Properties["template"], "attach is one undoable edit")

	require.NoError(t, resource.Detach(d, id, "start.png"))
	n, _ = d.Graph().Node(id)
	assert.Equal(t, []any{}, n.Properties["template"])
}

func TestAttach_Rejects(t *testing.T) {
	d := document.New()
	log, err := d.CreateNode(registry.TypeLog, domain.Position{}, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, resource.Attach(d, log, "a.png"), domain.ErrTypeMismatch)
	assert.ErrorIs(t, resource.Attach(d, "ghost", "a.png"), domain.ErrNotFound)
}

func TestMissing(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "have.png")
	lib, err := resource.NewLibrary(root)
	require.NoError(t, err)
	snap, err := lib.Scan(context.Background())
	require.NoError(t, err)

	d := document.New()
	id, err := d.CreateNode(registry.TypeTask, domain.Position{}, map[string]any{"template": []any{"have.png", "gone.png"}})
	require.NoError(t, err)

	assert.Equal(t, map[domain.NodeID][]string{id: {"gone.png"}}, resource.Missing(d, snap))
}
