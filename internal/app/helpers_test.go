package app

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

var errFull = errors.New("full")

// fakeConn records every frame it accepts.
type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	full   bool
	closed bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full || c.closed {
		return errFull
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) received() []core.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]core.Frame(nil), c.frames...)
}

func bindConn(reg *Registry, sid domain.SessionID, room domain.RoomName) *fakeConn {
	c := &fakeConn{}
	reg.Bind(sid, c, func() {})
	if room != "" {
		reg.Register(sid, room)
	}
	return c
}

func decode(t *testing.T, f core.Frame) domain.Envelope {
	t.Helper()
	var env domain.Envelope
	if err := json.Unmarshal(f, &env); err != nil {
		t.Fatalf("unmarshal frame %s: %v", f, err)
	}
	return env
}
