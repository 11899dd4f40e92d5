package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/core-tools/hsu-init/pkg/units"
)

func runAsync(sup *Supervisor, ctx context.Context) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- sup.Run(ctx)
	}()
	return done
}

func latest(store *SnapshotStore, name string) (units.Status, bool) {
	for _, st := range store.Units() {
		if st.Name == name {
			return st, true
		}
	}
	return units.Status{}, false
}

func TestRun_StartsReapsAndStopsOnRequest(t *testing.T) {
	h := newHarness(t, Options{GracePeriod: 20 * time.Millisecond},
		unit("worker", "daemon", units.RestartAlways, ""),
		unit("job", "batch", units.RestartNever, "worker"),
	)
	store := NewSnapshotStore()
	h.sup.AddObserver(store)

	done := runAsync(h.sup, context.Background())

	assert.Eventually(t, func() bool {
		return h.spawner.Count("worker") == 1 && h.spawner.Count("job") == 1
	}, time.Second, 5*time.Millisecond)

	h.waiter.push(exited(101, 1))

	assert.Eventually(t, func() bool {
		st, ok := latest(store, "worker")
		return ok && st.Restarts == 1 && st.State == units.StateRunning
	}, time.Second, 5*time.Millisecond)

	h.sup.RequestShutdown()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after shutdown request")
	}

	assert.NotEmpty(t, h.signaler.Terminated())
	assert.Equal(t, 2, h.spawner.Count("worker"))
}

func TestRun_ContextCancelShutsDown(t *testing.T) {
	h := newHarness(t, Options{GracePeriod: 10 * time.Millisecond},
		unit("svc", "daemon", units.RestartAlways, ""),
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(h.sup, ctx)

	assert.Eventually(t, func() bool {
		return h.spawner.Count("svc") == 1
	}, time.Second, 5*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancel")
	}
	assert.True(t, h.sup.ShutdownRequested())
	assert.Equal(t, []int{101}, h.signaler.Terminated())
}

func TestRun_RequestBeforeRunStillStartsAndStops(t *testing.T) {
	h := newHarness(t, Options{GracePeriod: 10 * time.Millisecond},
		unit("svc", "daemon", units.RestartAlways, ""),
	)
	h.sup.RequestShutdown()

	require.NoError(t, h.sup.Run(context.Background()))

	assert.Equal(t, 1, h.spawner.Count("svc"))
	assert.Len(t, h.signaler.Killed(), 1)
}

func TestRun_LoadsUnitFilesFromChannel(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(t, Options{GracePeriod: 10 * time.Millisecond},
		unit("base", "daemon", units.RestartNever, ""),
	)
	store := NewSnapshotStore()
	h.sup.AddObserver(store)

	paths := make(chan string, 4)
	h.sup.WatchUnitFiles(paths)

	done := runAsync(h.sup, context.Background())

	path := filepath.Join(dir, "late.service")
	require.NoError(t, os.WriteFile(path, []byte("NAME=late\nCMD=late-daemon\nAFTER=base\n"), 0644))
	paths <- path
	paths <- path

	assert.Eventually(t, func() bool {
		st, ok := latest(store, "late")
		return ok && st.State == units.StateRunning
	}, time.Second, 5*time.Millisecond)

	close(paths)
	h.sup.RequestShutdown()
	<-done

	assert.Equal(t, 1, h.spawner.Count("late"))
	assert.Len(t, store.Units(), 2)
}

func TestRun_RetriesFailedSpawn(t *testing.T) {
	h := newHarness(t, Options{GracePeriod: 10 * time.Millisecond, SpawnRetryInterval: 20 * time.Millisecond},
		unit("flaky", "daemon", units.RestartNever, ""),
	)
	h.spawner.failNext("flaky", 2)

	done := runAsync(h.sup, context.Background())

	assert.Eventually(t, func() bool {
		return h.spawner.Count("flaky") == 1
	}, 2*time.Second, 5*time.Millisecond)

	h.sup.RequestShutdown()
	<-done
}
