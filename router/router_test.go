// File: router/router_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package router

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/relay-ws/protocol"
	"github.com/momentics/relay-ws/registry"
	"github.com/momentics/relay-ws/transport"
)

// mapResolver resolves destination names from a fixed table.
type mapResolver map[string]string

func (m mapResolver) Resolve(name string) (string, bool) {
	id, ok := m[name]
	return id, ok
}

type testDevice struct {
	id     string
	conn   *transport.Conn
	peer   net.Conn
	frames chan *protocol.WSFrame
}

// newTestDevice registers a device backed by a net.Pipe and starts a reader
// that decodes frames arriving at the peer end.
func newTestDevice(t *testing.T, reg *registry.Registry, id string) *testDevice {
	t.Helper()
	serverEnd, clientEnd := net.Pipe()
	d := &testDevice{
		id:     id,
		conn:   transport.NewConn(serverEnd),
		peer:   clientEnd,
		frames: make(chan *protocol.WSFrame, 16),
	}
	require.NoError(t, reg.Add(id, d.conn))
	t.Cleanup(func() {
		d.conn.Close()
		clientEnd.Close()
	})

	go func() {
		var buf []byte
		tmp := make([]byte, 4096)
		for {
			n, err := clientEnd.Read(tmp)
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
				d.frames <- frame
			}
		}
	}()
	return d
}

func (d *testDevice) expectFrame(t *testing.T) *protocol.WSFrame {
	t.Helper()
	select {
	case f := <-d.frames:
		return f
	case <-time.After(2 * time.Second):
		t.Fatalf("device %s: no frame received", d.id)
		return nil
	}
}

func (d *testDevice) expectSilence(t *testing.T) {
	t.Helper()
	select {
	case f := <-d.frames:
		t.Fatalf("device %s: unexpected frame %q", d.id, f.Payload)
	case <-time.After(100 * time.Millisecond):
	}
}

func inboundFrame(payload string) *protocol.WSFrame {
	return &protocol.WSFrame{
		IsFinal:    true,
		Opcode:     protocol.OpcodeText,
		Masked:     true,
		PayloadLen: int64(len(payload)),
		Payload:    []byte(payload),
	}
}

func TestTargetedRouting(t *testing.T) {
	reg := registry.New(nil)
	a := newTestDevice(t, reg, "A")
	b := newTestDevice(t, reg, "B")
	r := New(reg, mapResolver{"B": "B"}, nil)

	payload := `{"destination":"B","x":1}`
	r.Route("A", inboundFrame(payload))

	frame := b.expectFrame(t)
	assert.Equal(t, protocol.OpcodeText, frame.Opcode)
	assert.False(t, frame.Masked, "server frames must be unmasked")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(frame.Payload, &decoded))
	assert.Equal(t, "B", decoded["destination"])
	assert.Equal(t, float64(1), decoded["x"])

	a.expectSilence(t)
}

func TestTargetedRoutingEnvelopeInArray(t *testing.T) {
	reg := registry.New(nil)
	a := newTestDevice(t, reg, "A")
	b := newTestDevice(t, reg, "B")
	c := newTestDevice(t, reg, "C")
	r := New(reg, mapResolver{"B": "B"}, nil)

	r.Route("A", inboundFrame(`[{"destination":"B","cmd":"print"}]`))

	b.expectFrame(t)
	a.expectSilence(t)
	c.expectSilence(t)
}

func TestBroadcastWithoutDestination(t *testing.T) {
	reg := registry.New(nil)
	a := newTestDevice(t, reg, "A")
	b := newTestDevice(t, reg, "B")
	c := newTestDevice(t, reg, "C")
	r := New(reg, nil, nil)

	r.Route("A", inboundFrame(`{"event":"refresh"}`))

	b.expectFrame(t)
	c.expectFrame(t)
	a.expectSilence(t)
}

func TestUnresolvedDestinationDropsMessage(t *testing.T) {
	reg := registry.New(nil)
	a := newTestDevice(t, reg, "A")
	b := newTestDevice(t, reg, "B")
	r := New(reg, mapResolver{}, nil)

	r.Route("A", inboundFrame(`{"destination":"nobody"}`))

	// Explicit addressing never falls back to broadcast.
	a.expectSilence(t)
	b.expectSilence(t)
}

func TestResolvedButOfflineDestinationDropsMessage(t *testing.T) {
	reg := registry.New(nil)
	a := newTestDevice(t, reg, "A")
	b := newTestDevice(t, reg, "B")
	r := New(reg, mapResolver{"X": "X"}, nil)

	r.Route("A", inboundFrame(`{"destination":"X"}`))

	a.expectSilence(t)
	b.expectSilence(t)
}

func TestNonJSONPayloadBroadcasts(t *testing.T) {
	reg := registry.New(nil)
	a := newTestDevice(t, reg, "A")
	b := newTestDevice(t, reg, "B")
	r := New(reg, nil, nil)

	r.Route("A", inboundFrame("not json at all"))

	frame := b.expectFrame(t)
	assert.Equal(t, "not json at all", string(frame.Payload))
	a.expectSilence(t)
}

func TestDeadConnectionRemovedOnWriteFailure(t *testing.T) {
	reg := registry.New(nil)
	newTestDevice(t, reg, "A")
	b := newTestDevice(t, reg, "B")
	c := newTestDevice(t, reg, "C")

	// Kill B's transport underneath the registry.
	b.conn.Close()
	b.peer.Close()

	r := New(reg, nil, nil)
	r.Route("A", inboundFrame(`{"event":"ping-all"}`))

	c.expectFrame(t)
	_, stillThere := reg.Get("B")
	assert.False(t, stillThere, "dead connection must be removed from registry")
	_, aThere := reg.Get("A")
	assert.True(t, aThere)
}
