package app

import (
	"encoding/json"
	"errors"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/dkeye/Relay/internal/metrics"
	"github.com/rs/zerolog/log"
)

var ErrMalformedEnvelope = errors.New("malformed room envelope")

type roomEnvelope struct {
	Room      domain.RoomName `json:"room"`
	RoomEvent string          `json:"roomEvent"`
}

// Relay fans a to-room-event payload out to the other members of its room.
// Delivery is best effort: a recipient whose queue is closed or full misses
// the message and nothing is retried.
type Relay struct {
	Registry *Registry
	Metrics  *metrics.Metrics
}

func NewRelay(reg *Registry, m *metrics.Metrics) *Relay {
	return &Relay{Registry: reg, Metrics: m}
}

// parseRoomEnvelope reads room and roomEvent from payload, which is either a
// JSON object or a JSON string holding one.
func parseRoomEnvelope(payload json.RawMessage) (roomEnvelope, error) {
	var env roomEnvelope
	if len(payload) == 0 {
		return env, ErrMalformedEnvelope
	}
	body := []byte(payload)
	if payload[0] == '"' {
		var s string
		if err := json.Unmarshal(payload, &s); err != nil {
			return env, errors.Join(ErrMalformedEnvelope, err)
		}
		body = []byte(s)
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return env, errors.Join(ErrMalformedEnvelope, err)
	}
	if env.Room == "" || env.RoomEvent == "" {
		return env, ErrMalformedEnvelope
	}
	return env, nil
}

// Relay delivers payload, unmodified, as event roomEvent to every session of
// the room named in it except sender.
func (r *Relay) Relay(sender domain.SessionID, payload json.RawMessage) (core.PublishResult, error) {
	env, err := parseRoomEnvelope(payload)
	if err != nil {
		r.Metrics.Malformed()
		log.Warn().Err(err).Str("module", "app.relay").Str("sid", string(sender)).Msg("dropping room event")
		return core.PublishResult{}, err
	}

	frame, err := domain.EncodeEnvelope(env.RoomEvent, payload)
	if err != nil {
		r.Metrics.Malformed()
		log.Warn().Err(err).Str("module", "app.relay").Str("sid", string(sender)).Msg("dropping room event")
		return core.PublishResult{}, errors.Join(ErrMalformedEnvelope, err)
	}

	res := Broadcast(r.Registry.Recipients(sender, env.Room), frame)
	r.Metrics.Relayed(res.SendTo, res.Dropped)
	log.Debug().
		Str("module", "app.relay").
		Str("from", string(sender)).
		Str("room", string(env.Room)).
		Str("room_event", env.RoomEvent).
		Int("sent_to", res.SendTo).
		Int("dropped", res.Dropped).
		Msg("broadcast result")
	return res, nil
}

// Broadcast sends one frame to each recipient. It never blocks on a slow peer.
func Broadcast(recipients []Recipient, frame core.Frame) core.PublishResult {
	res := core.PublishResult{}
	for _, rc := range recipients {
		if err := rc.Conn.TrySend(frame); err != nil {
			res.Dropped++
			continue
		}
		res.SendTo++
	}
	return res
}
