//go:build unix

package units

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/core-tools/hsu-init/pkg/errors"
)

func TestLoadDir_SkipsFIFO(t *testing.T) {
	dir := t.TempDir()
	writeUnitFile(t, dir, "a", "NAME=a\nCMD=true\n")
	require.NoError(t, unix.Mkfifo(filepath.Join(dir, "b-fifo"), 0644))

	r := NewRegistry(DefaultCapacity)
	logger := newMockLogger()

	done := make(chan int, 1)
	go func() { done <- LoadDir(dir, r, logger) }()

	select {
	case loaded := <-done:
		assert.Equal(t, 1, loaded)
	case <-time.After(2 * time.Second):
		t.Fatal("LoadDir blocked on a FIFO entry")
	}
	require.Equal(t, 1, r.Len())
	assert.Equal(t, "a", r.At(0).Name)
	logger.AssertNumberOfCalls(t, "Warnf", 1)

	_, err := ParseUnitFile(filepath.Join(dir, "b-fifo"))
	require.Error(t, err)
	assert.True(t, errors.IsIOError(err))
}
