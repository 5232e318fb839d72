package app

import (
	"context"
	"sync"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/rs/zerolog/log"
)

type sessionEntry struct {
	RoomName domain.RoomName
	Conn     core.SignalConnection
	Cancel   context.CancelFunc
}

// Registry is the table of connected sessions and their room.
// Entries are keyed by session id, so a session is listed at most once and
// belongs to at most one room: Register replaces the room, it never adds one.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[domain.SessionID]*sessionEntry),
	}
}

// Bind records a freshly connected session that has not joined a room yet.
func (r *Registry) Bind(sid domain.SessionID, conn core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[sid]; ok {
		e.Conn = conn
		e.Cancel = cancel
	} else {
		r.sessions[sid] = &sessionEntry{Conn: conn, Cancel: cancel}
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("bound session")
}

// Register assigns sid to room. Unknown ids are accepted; whether the id
// belongs to a live connection is the caller's concern.
func (r *Registry) Register(sid domain.SessionID, room domain.RoomName) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[sid]; ok {
		e.RoomName = room
	} else {
		r.sessions[sid] = &sessionEntry{RoomName: room}
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(room)).Msg("registered in room")
}

func (r *Registry) Unregister(sid domain.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sid]; !ok {
		return
	}
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unregistered session")
}

func (r *Registry) RoomOf(sid domain.SessionID) (domain.RoomName, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.sessions[sid]
	if !ok || entry.RoomName == "" {
		return "", false
	}
	return entry.RoomName, true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// MembersOf returns a point-in-time snapshot of the sessions in room.
func (r *Registry) MembersOf(room domain.RoomName) []domain.SessionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.SessionID, 0)
	for sid, e := range r.sessions {
		if e.RoomName == room {
			out = append(out, sid)
		}
	}
	return out
}

func (r *Registry) IsRoomNonEmpty(room domain.RoomName) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.sessions {
		if e.RoomName == room {
			return true
		}
	}
	return false
}

// Recipient is one fan-out target captured from the registry.
type Recipient struct {
	SID  domain.SessionID
	Conn core.SignalConnection
}

// Recipients snapshots the members of the given rooms that have a live
// connection, skipping except. The caller sends after the lock is released.
func (r *Registry) Recipients(except domain.SessionID, rooms ...domain.RoomName) []Recipient {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Recipient, 0, len(r.sessions))
	for sid, e := range r.sessions {
		if sid == except || e.Conn == nil {
			continue
		}
		for _, room := range rooms {
			if e.RoomName == room {
				out = append(out, Recipient{SID: sid, Conn: e.Conn})
				break
			}
		}
	}
	return out
}

// Cancel disconnects one session by cancelling its connection context.
func (r *Registry) Cancel(sid domain.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	var cancel context.CancelFunc
	if ok {
		cancel = e.Cancel
	}
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if cancel != nil {
		cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}

// CancelAll disconnects every session. Entries are removed by the transport
// as each connection winds down.
func (r *Registry) CancelAll() int {
	r.mu.RLock()
	cancels := make([]context.CancelFunc, 0, len(r.sessions))
	for _, e := range r.sessions {
		if e.Cancel != nil {
			cancels = append(cancels, e.Cancel)
		}
	}
	r.mu.RUnlock()

	for _, cancel := range cancels {
		cancel()
	}
	log.Info().Str("module", "app.registry").Int("count", len(cancels)).Msg("canceled all sessions")
	return len(cancels)
}
