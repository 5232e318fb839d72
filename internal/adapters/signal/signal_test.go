package signal_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Relay/internal/adapters/signal"
	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/app/control"
	"github.com/dkeye/Relay/internal/app/orch"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type recordingControl struct {
	cmds chan control.Command
}

func (r *recordingControl) Request(cmd control.Command) bool {
	r.cmds <- cmd
	return true
}

// startServer serves the signal controller on an httptest server backed by a
// fresh registry. It returns the ws:// URL and the orchestrator.
func startServer(t *testing.T) (string, *orch.Orchestrator, *recordingControl) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := app.NewRegistry()
	ctl := &recordingControl{cmds: make(chan control.Command, 4)}
	o := &orch.Orchestrator{
		Registry: reg,
		Relay:    app.NewRelay(reg, nil),
		Monitor:  app.NewMonitor(reg, nil, time.Hour),
		Control:  ctl,
	}

	ctx, cancel := context.WithCancel(context.Background())
	ws := signal.NewSignalWSController(o)
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { ws.HandleSignal(ctx, c) })
	srv := httptest.NewServer(r)

	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws", o, ctl
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readEnvelope(t *testing.T, conn *websocket.Conn) domain.Envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var env domain.Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		t.Fatalf("unmarshal %s: %v", msg, err)
	}
	return env
}

func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	if _, msg, err := conn.ReadMessage(); err == nil {
		t.Fatalf("unexpected message %s", msg)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSignal_RelayBetweenRoomMembers(t *testing.T) {
	url, o, _ := startServer(t)
	a := dial(t, url)
	b := dial(t, url)

	send(t, a, `{"event":"register-client-in-room","data":"lobby"}`)
	send(t, b, `{"event":"register-client-in-room","data":"lobby"}`)
	waitFor(t, "both registered", func() bool { return len(o.Registry.MembersOf("lobby")) == 2 })

	payload := `{"room":"lobby","roomEvent":"ping","text":"hi"}`
	send(t, a, `{"event":"to-room-event","data":`+payload+`}`)

	env := readEnvelope(t, b)
	if env.Event != "ping" {
		t.Fatalf("event = %q, want ping", env.Event)
	}
	if string(env.Data) != payload {
		t.Fatalf("data = %s, want %s", env.Data, payload)
	}
	expectSilence(t, a)
}

func TestSignal_MalformedFramesKeepConnection(t *testing.T) {
	url, o, _ := startServer(t)
	a := dial(t, url)
	b := dial(t, url)

	send(t, a, `{"event":"register-client-in-room","data":"lobby"}`)
	send(t, b, `{"event":"register-client-in-room","data":"lobby"}`)
	waitFor(t, "both registered", func() bool { return len(o.Registry.MembersOf("lobby")) == 2 })

	send(t, a, `garbage`)
	send(t, a, `{"event":"to-room-event","data":{"roomEvent":"ping"}}`)
	send(t, a, `{"event":"no-such-event"}`)
	expectSilence(t, b)

	send(t, a, `{"event":"to-room-event","data":{"room":"lobby","roomEvent":"after"}}`)
	if env := readEnvelope(t, b); env.Event != "after" {
		t.Fatalf("event = %q, want after", env.Event)
	}
}

func TestSignal_DisconnectUnregisters(t *testing.T) {
	url, o, _ := startServer(t)
	a := dial(t, url)
	send(t, a, `{"event":"register-client-in-room","data":"TPV"}`)
	waitFor(t, "registered", func() bool { return o.Registry.IsRoomNonEmpty("TPV") })

	a.Close()
	waitFor(t, "unregistered", func() bool { return o.Registry.Len() == 0 })
}

func TestSignal_ControlCommandDisconnectsTrigger(t *testing.T) {
	url, o, ctl := startServer(t)
	a := dial(t, url)
	waitFor(t, "bound", func() bool { return o.Registry.Len() == 1 })

	send(t, a, `{"event":"shut-down-server"}`)
	select {
	case cmd := <-ctl.cmds:
		if cmd != control.Shutdown {
			t.Fatalf("command = %v", cmd)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no command reached the control plane")
	}

	_ = a.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := a.ReadMessage(); err != nil {
			break
		}
	}
	waitFor(t, "unregistered", func() bool { return o.Registry.Len() == 0 })
}

func TestSignal_LivenessReachesRoleRooms(t *testing.T) {
	url, o, _ := startServer(t)
	x := dial(t, url)
	y := dial(t, url)
	send(t, x, `{"event":"register-client-in-room","data":"TPV"}`)
	send(t, y, `{"event":"register-client-in-room","data":"second_screen"}`)
	waitFor(t, "both registered", func() bool {
		return o.Registry.IsRoomNonEmpty("TPV") && o.Registry.IsRoomNonEmpty("second_screen")
	})

	o.Monitor.Tick()
	for _, c := range []*websocket.Conn{x, y} {
		env := readEnvelope(t, c)
		if env.Event != domain.EventSentFromServer {
			t.Fatalf("event = %q", env.Event)
		}
		var msg domain.StatusMessage
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			t.Fatal(err)
		}
		if !msg.SecondaryRoleConnected {
			t.Fatal("secondaryRoleConnected = false, want true")
		}
	}
}
