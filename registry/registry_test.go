// File: registry/registry_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package registry

import (
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/relay-ws/api"
	"github.com/momentics/relay-ws/transport"
)

func newTestConn(t *testing.T) *transport.Conn {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() { a.Close(); b.Close() })
	return transport.NewConn(b)
}

func TestAddAndGet(t *testing.T) {
	r := New(nil)
	conn := newTestConn(t)

	require.NoError(t, r.Add("A", conn))

	got, ok := r.Get("A")
	require.True(t, ok)
	assert.Same(t, conn, got)
	assert.Equal(t, 1, r.Len())
}

func TestDuplicateDeviceRejected(t *testing.T) {
	r := New(nil)
	first := newTestConn(t)
	second := newTestConn(t)

	require.NoError(t, r.Add("A", first))
	err := r.Add("A", second)
	require.ErrorIs(t, err, api.ErrDuplicateDevice)

	// The first connection stays registered.
	got, ok := r.Get("A")
	require.True(t, ok)
	assert.Same(t, first, got)
	assert.Equal(t, 1, r.Len())
}

func TestRemoveIdempotent(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Add("A", newTestConn(t)))

	r.Remove("A")
	r.Remove("A")
	r.Remove("never-registered")

	_, ok := r.Get("A")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestReconnectAfterRemove(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Add("A", newTestConn(t)))
	r.Remove("A")
	require.NoError(t, r.Add("A", newTestConn(t)))
}

func TestAllSnapshot(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Add("A", newTestConn(t)))
	require.NoError(t, r.Add("B", newTestConn(t)))

	entries := r.All()
	require.Len(t, entries, 2)
	ids := map[string]bool{}
	for _, e := range entries {
		ids[e.DeviceID] = true
		assert.NotNil(t, e.Conn)
	}
	assert.True(t, ids["A"] && ids["B"])
	assert.ElementsMatch(t, []string{"A", "B"}, r.DeviceIDs())
}

func TestConcurrentAddSingleWinner(t *testing.T) {
	r := New(nil)
	const attempts = 32

	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- r.Add("A", newTestConnNoT())
		}()
	}
	wg.Wait()
	close(errs)

	okCount := 0
	for err := range errs {
		if err == nil {
			okCount++
		} else {
			require.ErrorIs(t, err, api.ErrDuplicateDevice)
		}
	}
	assert.Equal(t, 1, okCount)
	assert.Equal(t, 1, r.Len())
}

func newTestConnNoT() *transport.Conn {
	_, b := net.Pipe()
	return transport.NewConn(b)
}
