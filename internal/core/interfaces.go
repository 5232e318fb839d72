package core

import "context"

// Frame is a raw serialized envelope ready for the wire.
type Frame []byte

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// Endpoint is the pair of listeners the control plane starts and drains.
// Start must return only once the sockets are bound; Close must return only
// once every socket is released.
type Endpoint interface {
	Start() error
	Close(ctx context.Context) error
}

// PublishResult reports delivery stats/backpressure for one fan-out.
type PublishResult struct {
	SendTo  int
	Dropped int
}
