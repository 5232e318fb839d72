// Package control runs the shutdown/restart state machine of the relay.
//
// A single loop owns the endpoint: Running -> Draining -> Terminated on
// shutdown, Running -> Draining -> Running on restart. Restart is a loop
// iteration, never a nested call, so repeated restarts do not grow the stack.
package control

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/metrics"
	"github.com/rs/zerolog/log"
)

type Command int

const (
	Shutdown Command = iota + 1
	Restart
)

func (c Command) String() string {
	switch c {
	case Shutdown:
		return "shutdown"
	case Restart:
		return "restart"
	default:
		return "unknown"
	}
}

type State int32

const (
	Idle State = iota
	Running
	Draining
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

const DefaultCloseTimeout = 5 * time.Second

type Plane struct {
	Endpoint core.Endpoint
	// Drain disconnects live sessions before the listeners close.
	Drain        func()
	Metrics      *metrics.Metrics
	CloseTimeout time.Duration

	cmds     chan Command
	state    atomic.Int32
	restarts atomic.Int32
}

func New(ep core.Endpoint, drain func(), m *metrics.Metrics) *Plane {
	return &Plane{
		Endpoint:     ep,
		Drain:        drain,
		Metrics:      m,
		CloseTimeout: DefaultCloseTimeout,
		cmds:         make(chan Command, 1),
	}
}

func (p *Plane) State() State { return State(p.state.Load()) }

// Restarts reports how many restarts completed.
func (p *Plane) Restarts() int { return int(p.restarts.Load()) }

// Request queues cmd for the control loop without blocking. It reports false
// when another command is already pending; the pending one wins.
func (p *Plane) Request(cmd Command) bool {
	select {
	case p.cmds <- cmd:
		p.Metrics.Control(cmd.String())
		log.Info().Str("module", "control").Str("command", cmd.String()).Msg("command accepted")
		return true
	default:
		log.Warn().Str("module", "control").Str("command", cmd.String()).Msg("command already pending, ignored")
		return false
	}
}

// Run starts the endpoint and serves commands until shutdown. Cancelling ctx
// is treated as a shutdown. It returns nil after a clean shutdown and an error
// when the endpoint cannot be bound, on startup or after a restart.
func (p *Plane) Run(ctx context.Context) error {
	if err := p.Endpoint.Start(); err != nil {
		p.setState(Terminated)
		return fmt.Errorf("start endpoint: %w", err)
	}
	p.setState(Running)

	for {
		var cmd Command
		select {
		case <-ctx.Done():
			cmd = Shutdown
		case cmd = <-p.cmds:
		}

		p.drain(cmd)

		if cmd != Restart {
			p.setState(Terminated)
			log.Info().Str("module", "control").Msg("server successfully shut down")
			return nil
		}

		if err := p.Endpoint.Start(); err != nil {
			p.setState(Terminated)
			return fmt.Errorf("restart endpoint: %w", err)
		}
		p.restarts.Add(1)
		p.setState(Running)
		log.Info().Str("module", "control").Int("restarts", p.Restarts()).Msg("server restarted")
	}
}

func (p *Plane) drain(cmd Command) {
	p.setState(Draining)
	log.Info().Str("module", "control").Str("command", cmd.String()).Msg("shutting down server")

	if p.Drain != nil {
		p.Drain()
	}

	timeout := p.CloseTimeout
	if timeout <= 0 {
		timeout = DefaultCloseTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := p.Endpoint.Close(ctx); err != nil {
		log.Error().Err(err).Str("module", "control").Msg("endpoint close")
	}
}

func (p *Plane) setState(s State) {
	old := State(p.state.Swap(int32(s)))
	if old != s {
		log.Debug().Str("module", "control").Str("from", old.String()).Str("to", s.String()).Msg("state change")
	}
}
