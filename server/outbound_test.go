// File: server/outbound_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/relay-ws/api"
	"github.com/momentics/relay-ws/protocol"
	"github.com/momentics/relay-ws/store"
	"github.com/momentics/relay-ws/transport"
)

func TestOutboundDeliveryMarksDelivered(t *testing.T) {
	mem := store.NewMemory()
	cfg := testConfig()
	cfg.OutboundPollInterval = Duration(50 * time.Millisecond)
	srv := New(cfg, WithOutboundStore(mem), WithDeviceResolver(mem))
	addr := startServer(t, srv)

	conn := dialDevice(t, addr, "A")
	require.Eventually(t, func() bool { return srv.Registry().Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	id := mem.Enqueue("A", []byte(`{"type":"notice","message":"hi"}`))

	frame := readFrame(t, conn)
	assert.Equal(t, protocol.OpcodeText, frame.Opcode)
	assert.False(t, frame.Masked)
	assert.Equal(t, `{"type":"notice","message":"hi"}`, string(frame.Payload))

	require.Eventually(t, func() bool {
		state, _ := mem.State(id)
		return state == api.DeliveryDelivered
	}, 2*time.Second, 10*time.Millisecond)
}

func TestOutboundSkipsDisconnectedDevice(t *testing.T) {
	mem := store.NewMemory()
	srv := New(testConfig(), WithOutboundStore(mem))

	id := mem.Enqueue("offline", []byte("msg"))
	srv.deliverPending() // no connected devices, nothing to hand out

	state, ok := mem.State(id)
	require.True(t, ok)
	assert.Equal(t, api.DeliveryPending, state, "message must stay pending for a later tick")
}

func TestOutboundWriteFailureMarksFailedAndRemoves(t *testing.T) {
	mem := store.NewMemory()
	srv := New(testConfig(), WithOutboundStore(mem))

	left, right := net.Pipe()
	dead := transport.NewConn(right)
	require.NoError(t, srv.Registry().Add("A", dead))
	dead.Close()
	left.Close()

	id := mem.Enqueue("A", []byte("msg"))
	srv.deliverPending()

	state, ok := mem.State(id)
	require.True(t, ok)
	assert.Equal(t, api.DeliveryFailed, state)

	_, still := srv.Registry().Get("A")
	assert.False(t, still, "dead connection must be removed from registry")
}

func TestOutboundPreservesStoreOrder(t *testing.T) {
	mem := store.NewMemory()
	srv := New(testConfig(), WithOutboundStore(mem))

	left, right := net.Pipe()
	defer left.Close()
	conn := transport.NewConn(right)
	require.NoError(t, srv.Registry().Add("A", conn))

	mem.Enqueue("A", []byte("first"))
	mem.Enqueue("A", []byte("second"))
	mem.Enqueue("A", []byte("third"))

	got := make(chan string, 3)
	go func() {
		var buf []byte
		tmp := make([]byte, 1024)
		for len(got) < 3 {
			n, err := left.Read(tmp)
			if err != nil {
				return
			}
			buf = append(buf, tmp[:n]...)
			for {
				frame, consumed, err := protocol.DecodeFrameFromBytes(buf)
				if err != nil || frame == nil {
					break
				}
				buf = buf[consumed:]
				got <- string(frame.Payload)
			}
		}
	}()

	srv.deliverPending()

	for _, want := range []string{"first", "second", "third"} {
		select {
		case payload := <-got:
			assert.Equal(t, want, payload)
		case <-time.After(2 * time.Second):
			t.Fatalf("missing delivery %q", want)
		}
	}
}

type failingStore struct {
	store.Memory
}

func (f *failingStore) FetchPending(connected []string) ([]api.OutboundMessage, error) {
	return nil, errors.New("database gone")
}

func TestOutboundFetchErrorIsNonFatal(t *testing.T) {
	srv := New(testConfig(), WithOutboundStore(&failingStore{}))

	left, right := net.Pipe()
	defer left.Close()
	require.NoError(t, srv.Registry().Add("A", transport.NewConn(right)))

	// Must not panic and must leave the registry untouched.
	srv.deliverPending()
	assert.Equal(t, 1, srv.Registry().Len())
}
