package orch

import (
	"context"
	"encoding/json"

	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/app/control"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/dkeye/Relay/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Controller accepts shutdown and restart commands.
type Controller interface {
	Request(cmd control.Command) bool
}

type Orchestrator struct {
	Registry *app.Registry
	Relay    *app.Relay
	Monitor  *app.Monitor
	Control  Controller
	Limiter  *app.CommandLimiter
	Metrics  *metrics.Metrics
}

// OnConnect records a new connection. cancel tears the connection down.
func (o *Orchestrator) OnConnect(sid domain.SessionID, conn core.SignalConnection, cancel context.CancelFunc) {
	o.Registry.Bind(sid, conn, cancel)
	o.Metrics.SessionOpened()
	log.Info().Str("module", "orch").Str("sid", string(sid)).Msg("a client has connected")
}

func (o *Orchestrator) OnDisconnect(sid domain.SessionID) {
	o.Registry.Unregister(sid)
	o.Limiter.Forget(sid)
	o.Metrics.SessionClosed()
	log.Info().Str("module", "orch").Str("sid", string(sid)).Msg("a client has been disconnected")
}

// Dispatch runs the handler of one inbound event. Nothing here fails back to
// the client: bad input is logged and dropped.
func (o *Orchestrator) Dispatch(sid domain.SessionID, ev domain.Event) {
	switch ev.Kind {
	case domain.EventRegister:
		o.register(sid, ev.Data)
	case domain.EventToRoom:
		_, _ = o.Relay.Relay(sid, ev.Data)
	case domain.EventShutdown:
		o.command(sid, control.Shutdown)
	case domain.EventRestart:
		o.command(sid, control.Restart)
	case domain.EventUnknown:
		log.Debug().Str("module", "orch").Str("sid", string(sid)).Str("event", ev.Name).Msg("ignoring unknown event")
	}
}

func (o *Orchestrator) register(sid domain.SessionID, data json.RawMessage) {
	var room string
	if err := json.Unmarshal(data, &room); err != nil || room == "" {
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(sid)).Msg("bad register payload")
		return
	}
	o.Registry.Register(sid, domain.RoomName(room))
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", room).Msg("client registered in room")
}

// command disconnects the triggering session, then hands cmd to the control
// plane. No acknowledgement is sent before the disconnect.
func (o *Orchestrator) command(sid domain.SessionID, cmd control.Command) {
	if !o.Limiter.Allow(sid) {
		log.Warn().
			Str("module", "orch").
			Str("sid", string(sid)).
			Str("command", cmd.String()).
			Int("limit", o.Limiter.Limit()).
			Dur("retry_in", o.Limiter.RetryIn(sid)).
			Msg("control command rate limited, dropped")
		return
	}
	o.Registry.Cancel(sid)
	if o.Control == nil {
		log.Error().Str("module", "orch").Str("command", cmd.String()).Msg("no control plane attached")
		return
	}
	o.Control.Request(cmd)
}

// StatusDTO is the body of GET /status.
type StatusDTO struct {
	ConnectedClients int  `json:"connectedClients"`
	IsRoleAOnline    bool `json:"isRoleAOnline"`
	IsRoleBOnline    bool `json:"isRoleBOnline"`
}

func (o *Orchestrator) Status() StatusDTO {
	st := o.Monitor.Status()
	return StatusDTO{
		ConnectedClients: o.Registry.Len(),
		IsRoleAOnline:    st.RoleA,
		IsRoleBOnline:    st.RoleB,
	}
}
