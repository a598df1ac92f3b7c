package persistence_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/tapestry/pkg/adapters/memory"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/layout"
	"github.com/aretw0/tapestry/pkg/persistence"
	"github.com/aretw0/tapestry/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutosaver_FlushWritesLatestOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	m := persistence.NewManager(store)
	d := sampleDocument(t)

	a := persistence.NewAutosaver(m, persistence.AutosaveKey("main"), d.Snapshot)
	detach := a.Attach(d.Bus())
	defer detach()

	require.NoError(t, a.Flush(ctx))
	assert.Equal(t, 0, a.Saves(), "nothing observed yet")

	_, err := d.CreateNode(registry.TypeLog, domain.Position{X: 0, Y: 200}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, a.Pending())

	require.NoError(t, a.Flush(ctx))
	require.NoError(t, a.Flush(ctx))
	assert.Equal(t, 1, a.Saves())
	assert.Equal(t, 0, a.Pending())

	got, err := m.LoadGraph(ctx, "main.autosave")
	require.NoError(t, err)
	assert.True(t, d.Snapshot().Equal(got))
}

func TestAutosaver_IgnoresSelection(t *testing.T) {
	m := persistence.NewManager(memory.NewStore())
	d := sampleDocument(t)
	a := persistence.NewAutosaver(m, "main.autosave", d.Snapshot)
	defer a.Attach(d.Bus())()

	require.NoError(t, d.SelectAll())
	assert.Equal(t, 0, a.Pending())
}

func TestAutosaver_EveryN(t *testing.T) {
	ctx := context.Background()
	m := persistence.NewManager(memory.NewStore())
	d := sampleDocument(t)
	a := persistence.NewAutosaver(m, "main.autosave", d.Snapshot, persistence.WithEvery(3))
	defer a.Attach(d.Bus())()
	a.Start(ctx)
	defer a.Stop(ctx)

	for i := 0; i < 2; i++ {
		_, err := d.CreateNode(registry.TypeLog, domain.Position{X: float64(i), Y: 0}, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 0, a.Saves())

	_, err := d.CreateNode(registry.TypeLog, domain.Position{X: 9, Y: 0}, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return a.Saves() == 1 }, time.Second, 5*time.Millisecond)
}

func TestAutosaver_Interval(t *testing.T) {
	ctx := context.Background()
	m := persistence.NewManager(memory.NewStore())
	d := sampleDocument(t)
	a := persistence.NewAutosaver(m, "main.autosave", d.Snapshot,
		persistence.WithInterval(10*time.Millisecond),
		persistence.WithLayoutSource(layout.Default),
	)
	defer a.Attach(d.Bus())()
	a.Start(ctx)
	defer a.Stop(ctx)

	require.NoError(t, d.Move(d.Snapshot().Nodes[0].ID, domain.Position{X: 1, Y: 1}))
	require.Eventually(t, func() bool { return a.Saves() == 1 }, time.Second, 5*time.Millisecond)

	_, lay, err := m.LoadDocument(ctx, "main.autosave")
	require.NoError(t, err)
	assert.Equal(t, layout.Default(), lay)
}

func TestAutosaver_StopFlushesPending(t *testing.T) {
	ctx := context.Background()
	m := persistence.NewManager(memory.NewStore())
	d := sampleDocument(t)
	a := persistence.NewAutosaver(m, "main.autosave", d.Snapshot, persistence.WithInterval(time.Hour))
	defer a.Attach(d.Bus())()
	a.Start(ctx)

	require.NoError(t, d.SetProperty(d.Snapshot().Nodes[0].ID, "name", "Renamed"))
	require.NoError(t, a.Stop(ctx))
	assert.Equal(t, 1, a.Saves())

	got, err := m.LoadGraph(ctx, "main.autosave")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Nodes[0].Properties["name"])
}

func TestAutosaver_FailureIsReported(t *testing.T) {
	ctx := context.Background()
	m := persistence.NewManager(failingStore{memory.NewStore()})
	d := sampleDocument(t)

	var results []error
	a := persistence.NewAutosaver(m, "main.autosave", d.Snapshot,
		persistence.WithResultHook(func(err error) { results = append(results, err) }))
	defer a.Attach(d.Bus())()

	_, err := d.CreateNode(registry.TypeLog, domain.Position{}, nil)
	require.NoError(t, err)

	err = a.Flush(ctx)
	assert.ErrorIs(t, err, errDiskFull)
	assert.ErrorIs(t, a.LastError(), errDiskFull)
	require.Len(t, results, 1)
	assert.Equal(t, 1, a.Pending(), "failed save keeps the change pending")

	_, err = d.CreateNode(registry.TypeLog, domain.Position{X: 5}, nil)
	assert.NoError(t, err, "editing continues after a failed autosave")
	assert.Equal(t, 2, a.Pending())
}

func TestAutosaver_CheckpointDropsPending(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	m := persistence.NewManager(store)
	d := sampleDocument(t)
	a := persistence.NewAutosaver(m, "main.autosave", d.Snapshot)
	defer a.Attach(d.Bus())()

	_, err := d.CreateNode(registry.TypeLog, domain.Position{}, nil)
	require.NoError(t, err)
	require.NoError(t, a.Checkpoint(func() error { return nil }))
	assert.Equal(t, 0, a.Pending())

	require.NoError(t, a.Flush(ctx))
	assert.Equal(t, 0, a.Saves())
	_, err = m.LoadGraph(ctx, "main.autosave")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestAutosaver_FailedCheckpointKeepsPending(t *testing.T) {
	ctx := context.Background()
	m := persistence.NewManager(memory.NewStore())
	d := sampleDocument(t)
	a := persistence.NewAutosaver(m, "main.autosave", d.Snapshot)
	defer a.Attach(d.Bus())()

	_, err := d.CreateNode(registry.TypeLog, domain.Position{}, nil)
	require.NoError(t, err)
	saveErr := errors.New("disk full")
	assert.ErrorIs(t, a.Checkpoint(func() error { return saveErr }), saveErr)
	assert.Equal(t, 1, a.Pending())

	require.NoError(t, a.Flush(ctx))
	assert.Equal(t, 1, a.Saves())
	got, err := m.LoadGraph(ctx, "main.autosave")
	require.NoError(t, err)
	assert.True(t, d.Snapshot().Equal(got))
}
