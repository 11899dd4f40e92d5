//go:build linux

package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/core-tools/hsu-init/pkg/logging"
	"github.com/core-tools/hsu-init/pkg/units"
)

func TestRun_RealProcesses(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns real processes")
	}

	registry := units.NewRegistry(0)
	for _, u := range []*units.Unit{
		unit("sleeper", "sleep 30", units.RestartNever, ""),
		unit("oneshot", "exit 4", units.RestartNever, "sleeper"),
		unit("stubborn", "trap '' TERM; sleep 30", units.RestartNever, ""),
	} {
		_, err := registry.Add(u)
		require.NoError(t, err)
	}

	sup := New(Options{
		PollInterval: 10 * time.Millisecond,
		GracePeriod:  200 * time.Millisecond,
	}, registry, Dependencies{}, logging.Discard())
	store := NewSnapshotStore()
	sup.AddObserver(store)

	done := runAsync(sup, context.Background())

	assert.Eventually(t, func() bool {
		st, ok := latest(store, "oneshot")
		return ok && st.State == units.StateStopped && st.LastExitCode != nil && *st.LastExitCode == 4
	}, 5*time.Second, 10*time.Millisecond)

	st, ok := latest(store, "sleeper")
	require.True(t, ok)
	assert.Equal(t, units.StateRunning, st.State)
	assert.Greater(t, st.PID, 1)

	sup.RequestShutdown()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}

	st, _ = latest(store, "sleeper")
	assert.Equal(t, units.StateStopped, st.State)
	require.NotNil(t, st.LastExitCode)
	assert.Equal(t, units.SignaledExitCode, *st.LastExitCode)
}
