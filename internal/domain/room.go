package domain

type RoomName string

// Rooms watched by the liveness monitor. Any other name is relay-only.
const (
	RoomTPV          RoomName = "TPV"
	RoomSecondScreen RoomName = "second_screen"
)

// LivenessStatus is recomputed on every monitor tick and never stored.
type LivenessStatus struct {
	RoleA bool
	RoleB bool
}

// Rooms returns the rooms that currently have at least one member, role A first.
func (s LivenessStatus) Rooms(roleA, roleB RoomName) []RoomName {
	out := make([]RoomName, 0, 2)
	if s.RoleA {
		out = append(out, roleA)
	}
	if s.RoleB {
		out = append(out, roleB)
	}
	return out
}
