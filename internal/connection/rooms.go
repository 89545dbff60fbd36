package connection

// RoomSet is the set of rooms the client has asked to join, kept in join
// order so re-joins after a reconnect go out in a stable order.
// Not safe for concurrent use; the Manager guards it with its own lock.
type RoomSet struct {
	order []string
	index map[string]struct{}
}

// NewRoomSet creates an empty RoomSet.
func NewRoomSet() *RoomSet {
	return &RoomSet{index: make(map[string]struct{})}
}

// Add inserts room and reports whether it was not already present.
func (s *RoomSet) Add(room string) bool {
	if _, ok := s.index[room]; ok {
		return false
	}
	s.index[room] = struct{}{}
	s.order = append(s.order, room)
	return true
}

// Remove deletes room and reports whether it was present.
func (s *RoomSet) Remove(room string) bool {
	if _, ok := s.index[room]; !ok {
		return false
	}
	delete(s.index, room)
	for i, r := range s.order {
		if r == room {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Contains reports whether room is in the set.
func (s *RoomSet) Contains(room string) bool {
	_, ok := s.index[room]
	return ok
}

// Len returns the number of rooms.
func (s *RoomSet) Len() int {
	return len(s.order)
}

// Snapshot returns a copy of the rooms in join order.
func (s *RoomSet) Snapshot() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Clear empties the set.
func (s *RoomSet) Clear() {
	s.order = nil
	s.index = make(map[string]struct{})
}
