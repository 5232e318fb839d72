package orch

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/app/control"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/google/go-cmp/cmp"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

type fakeControl struct {
	cmds []control.Command
}

func (f *fakeControl) Request(cmd control.Command) bool {
	f.cmds = append(f.cmds, cmd)
	return true
}

func newOrch(ctl Controller) *Orchestrator {
	reg := app.NewRegistry()
	return &Orchestrator{
		Registry: reg,
		Relay:    app.NewRelay(reg, nil),
		Monitor:  app.NewMonitor(reg, nil, time.Second),
		Control:  ctl,
		Limiter:  app.NewCommandLimiter(3, time.Minute),
	}
}

func connect(o *Orchestrator, sid domain.SessionID) (*fakeConn, *bool) {
	c := &fakeConn{}
	canceled := new(bool)
	o.OnConnect(sid, c, func() { *canceled = true })
	return c, canceled
}

func event(t *testing.T, frame string) domain.Event {
	t.Helper()
	ev, err := domain.DecodeEvent([]byte(frame))
	if err != nil {
		t.Fatalf("DecodeEvent(%s): %v", frame, err)
	}
	return ev
}

func TestDispatch_RegisterAndRelay(t *testing.T) {
	o := newOrch(&fakeControl{})
	a, _ := connect(o, "A")
	b, _ := connect(o, "B")

	o.Dispatch("A", event(t, `{"event":"register-client-in-room","data":"lobby"}`))
	o.Dispatch("B", event(t, `{"event":"register_client_in_room","data":"lobby"}`))
	o.Dispatch("A", event(t, `{"event":"to-room-event","data":{"room":"lobby","roomEvent":"ping"}}`))

	if b.count() != 1 {
		t.Fatalf("B received %d frames, want 1", b.count())
	}
	if a.count() != 0 {
		t.Fatalf("A received %d frames, want 0", a.count())
	}
}

func TestDispatch_BadRegisterPayloadIgnored(t *testing.T) {
	o := newOrch(&fakeControl{})
	connect(o, "A")
	o.Dispatch("A", event(t, `{"event":"register-client-in-room","data":{"room":"x"}}`))
	o.Dispatch("A", event(t, `{"event":"register-client-in-room","data":""}`))
	if _, ok := o.Registry.RoomOf("A"); ok {
		t.Fatal("A should not be in a room")
	}
}

func TestDispatch_UnknownEventIgnored(t *testing.T) {
	ctl := &fakeControl{}
	o := newOrch(ctl)
	a, canceled := connect(o, "A")
	o.Dispatch("A", event(t, `{"event":"restart_client_connection"}`))
	if a.count() != 0 || *canceled || len(ctl.cmds) != 0 {
		t.Fatal("unknown event had an effect")
	}
}

func TestDispatch_ControlDisconnectsTrigger(t *testing.T) {
	ctl := &fakeControl{}
	o := newOrch(ctl)
	_, canceled := connect(o, "A")

	o.Dispatch("A", event(t, `{"event":"shut-down-server"}`))
	o.Dispatch("A", event(t, `{"event":"restart_server"}`))

	if !*canceled {
		t.Fatal("triggering session was not disconnected")
	}
	want := []control.Command{control.Shutdown, control.Restart}
	if diff := cmp.Diff(want, ctl.cmds); diff != "" {
		t.Fatalf("commands mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatch_ControlRateLimited(t *testing.T) {
	ctl := &fakeControl{}
	o := newOrch(ctl)
	connect(o, "A")
	for i := 0; i < 5; i++ {
		o.Dispatch("A", event(t, `{"event":"restart-server"}`))
	}
	if len(ctl.cmds) != 3 {
		t.Fatalf("commands = %d, want 3", len(ctl.cmds))
	}
	if wait := o.Limiter.RetryIn("A"); wait <= 0 || wait > time.Minute {
		t.Fatalf("RetryIn = %v, want within the window", wait)
	}
}

func TestOnDisconnect_RemovesSession(t *testing.T) {
	o := newOrch(&fakeControl{})
	connect(o, "A")
	o.Dispatch("A", event(t, `{"event":"register-client-in-room","data":"TPV"}`))
	o.OnDisconnect("A")
	if o.Registry.Len() != 0 {
		t.Fatalf("Len = %d, want 0", o.Registry.Len())
	}
}

func TestStatus(t *testing.T) {
	o := newOrch(&fakeControl{})
	connect(o, "X")
	connect(o, "Y")
	connect(o, "Z")
	o.Dispatch("X", event(t, `{"event":"register-client-in-room","data":"TPV"}`))

	got := o.Status()
	want := StatusDTO{ConnectedClients: 3, IsRoleAOnline: true, IsRoleBOnline: false}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("status mismatch (-want +got):\n%s", diff)
	}

	body, err := json.Marshal(got)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != `{"connectedClients":3,"isRoleAOnline":true,"isRoleBOnline":false}` {
		t.Fatalf("body = %s", body)
	}
}
