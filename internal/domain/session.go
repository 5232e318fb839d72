// Package domain contains entity without logic, just meta-data
package domain

import "github.com/google/uuid"

// SessionID identifies one live connection. It is never reused while the
// connection is open.
type SessionID string

func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}
