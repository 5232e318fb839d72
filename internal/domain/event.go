package domain

import "encoding/json"

// EventKind is the closed set of inbound events a session may send.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventRegister
	EventToRoom
	EventShutdown
	EventRestart
)

// Outbound-only event name for liveness broadcasts.
const EventSentFromServer = "sent-from-server"

var eventNames = map[string]EventKind{
	"register-client-in-room": EventRegister,
	"register_client_in_room": EventRegister,
	"to-room-event":           EventToRoom,
	"to_room_event":           EventToRoom,
	"shut-down-server":        EventShutdown,
	"shut_down_server":        EventShutdown,
	"restart-server":          EventRestart,
	"restart_server":          EventRestart,
}

// ParseEventKind maps a wire name to its kind. Both the dashed names and the
// underscore names used by older clients are accepted.
func ParseEventKind(name string) EventKind {
	if k, ok := eventNames[name]; ok {
		return k
	}
	return EventUnknown
}

func (k EventKind) String() string {
	switch k {
	case EventRegister:
		return "register-client-in-room"
	case EventToRoom:
		return "to-room-event"
	case EventShutdown:
		return "shut-down-server"
	case EventRestart:
		return "restart-server"
	default:
		return "unknown"
	}
}

// Envelope is the JSON frame exchanged over the socket in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Event is a decoded inbound envelope.
type Event struct {
	Kind EventKind
	Name string
	Data json.RawMessage
}

func DecodeEvent(frame []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Event{}, err
	}
	return Event{Kind: ParseEventKind(env.Event), Name: env.Event, Data: env.Data}, nil
}

// StatusMessage is the data of a sent-from-server event.
type StatusMessage struct {
	Message                string `json:"message"`
	SecondaryRoleConnected bool   `json:"secondaryRoleConnected"`
}

const (
	MsgSecondScreenConnected    = "second screen connected"
	MsgSecondScreenDisconnected = "second screen disconnected"
)

func NewStatusMessage(secondaryConnected bool) StatusMessage {
	msg := MsgSecondScreenDisconnected
	if secondaryConnected {
		msg = MsgSecondScreenConnected
	}
	return StatusMessage{Message: msg, SecondaryRoleConnected: secondaryConnected}
}

// EncodeEnvelope frames data under event without re-encoding it, so the
// receiver sees the exact bytes the sender produced. data must be valid JSON.
func EncodeEnvelope(event string, data []byte) ([]byte, error) {
	name, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		data = []byte("null")
	}
	out := make([]byte, 0, len(name)+len(data)+20)
	out = append(out, `{"event":`...)
	out = append(out, name...)
	out = append(out, `,"data":`...)
	out = append(out, data...)
	out = append(out, '}')
	return out, nil
}
