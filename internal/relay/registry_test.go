package relay

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryClaimRelease(t *testing.T) {
	reg := NewRegistry()
	s := NewSession("cam-1", "cat", 0, reg)

	require.NoError(t, reg.Claim("cam-1", s))
	assert.Equal(t, 1, reg.Len())
	assert.Same(t, s, reg.Get("cam-1"))

	// Second claim for the same camera is rejected
	other := NewSession("cam-1", "cat", 0, reg)
	assert.ErrorIs(t, reg.Claim("cam-1", other), ErrCameraBusy)

	reg.Release("cam-1", s)
	assert.Equal(t, 0, reg.Len())
	assert.Nil(t, reg.Get("cam-1"))

	// Slot is immediately reusable
	require.NoError(t, reg.Claim("cam-1", other))
}

func TestRegistryReleaseOnlyOwner(t *testing.T) {
	reg := NewRegistry()
	owner := NewSession("cam-1", "cat", 0, reg)
	intruder := NewSession("cam-1", "cat", 0, reg)

	require.NoError(t, reg.Claim("cam-1", owner))

	// A non-owner release must not evict the live session
	reg.Release("cam-1", intruder)
	assert.Same(t, owner, reg.Get("cam-1"))
}

func TestRegistryConcurrentClaims(t *testing.T) {
	reg := NewRegistry()

	const attempts = 64
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := NewSession("cam-1", "cat", 0, reg)
			if reg.Claim("cam-1", s) == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load(), "exactly one concurrent claim may win")
	assert.Equal(t, 1, reg.Len())
}

func TestRegistryActiveSnapshot(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Claim("cam-1", NewSession("cam-1", "cat", 0, reg)))
	require.NoError(t, reg.Claim("cam-2", NewSession("cam-2", "cat", 0, reg)))

	active := reg.Active()
	require.Len(t, active, 2)
	ids := []string{active[0].CameraID, active[1].CameraID}
	assert.ElementsMatch(t, []string{"cam-1", "cam-2"}, ids)
}
