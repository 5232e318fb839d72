package app

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dkeye/Relay/internal/domain"
	"github.com/dkeye/Relay/internal/metrics"
	"github.com/rs/zerolog/log"
)

const DefaultHealthInterval = 10 * time.Second

// Monitor periodically tells the role rooms whether the secondary role is
// connected. Missed ticks are not replayed.
type Monitor struct {
	Registry *Registry
	Metrics  *metrics.Metrics
	Interval time.Duration
	RoleA    domain.RoomName
	RoleB    domain.RoomName
}

func NewMonitor(reg *Registry, m *metrics.Metrics, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultHealthInterval
	}
	return &Monitor{
		Registry: reg,
		Metrics:  m,
		Interval: interval,
		RoleA:    domain.RoomTPV,
		RoleB:    domain.RoomSecondScreen,
	}
}

// TickResult describes what one tick did.
type TickResult struct {
	Status       domain.LivenessStatus
	Destinations []domain.RoomName
	SendTo       int
	Skipped      bool
}

// Status computes the current liveness view.
func (m *Monitor) Status() domain.LivenessStatus {
	return domain.LivenessStatus{
		RoleA: m.Registry.IsRoomNonEmpty(m.RoleA),
		RoleB: m.Registry.IsRoomNonEmpty(m.RoleB),
	}
}

// Run ticks every Interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	t := time.NewTicker(m.Interval)
	defer t.Stop()

	log.Info().Str("module", "app.monitor").Dur("interval", m.Interval).Msg("liveness monitor started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.monitor").Msg("liveness monitor stopped")
			return
		case <-t.C:
			m.Tick()
		}
	}
}

func (m *Monitor) Tick() TickResult {
	count := m.Registry.Len()
	log.Debug().Str("module", "app.monitor").Int("connected_clients", count).Msg("liveness tick")
	if count == 0 {
		m.Metrics.Tick("skipped")
		return TickResult{Skipped: true}
	}

	status := m.Status()
	dest := status.Rooms(m.RoleA, m.RoleB)
	if len(dest) == 0 {
		m.Metrics.Tick("skipped")
		return TickResult{Status: status, Skipped: true}
	}

	data, err := json.Marshal(domain.NewStatusMessage(status.RoleB))
	if err != nil {
		log.Error().Err(err).Str("module", "app.monitor").Msg("status marshal")
		return TickResult{Status: status, Skipped: true}
	}
	frame, err := domain.EncodeEnvelope(domain.EventSentFromServer, data)
	if err != nil {
		log.Error().Err(err).Str("module", "app.monitor").Msg("status frame")
		return TickResult{Status: status, Skipped: true}
	}

	// Recipients is a snapshot; no registry lock is held while sending.
	res := Broadcast(m.Registry.Recipients("", dest...), frame)
	m.Metrics.Tick("broadcast")
	return TickResult{Status: status, Destinations: dest, SendTo: res.SendTo}
}
