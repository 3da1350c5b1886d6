package room

// seats is an ordered set of at most Capacity connections, keyed by Conn.ID.
type seats struct {
	conns [Capacity]Conn
	n     int
}

func (s *seats) len() int {
	return s.n
}

// add appends c. It returns false when the set is full or already holds c.
func (s *seats) add(c Conn) bool {
	if s.n == Capacity || s.index(c.ID()) >= 0 {
		return false
	}
	s.conns[s.n] = c
	s.n++
	return true
}

// remove deletes the connection with the given id, keeping join order.
func (s *seats) remove(id string) bool {
	i := s.index(id)
	if i < 0 {
		return false
	}
	copy(s.conns[i:s.n], s.conns[i+1:s.n])
	s.n--
	s.conns[s.n] = nil
	return true
}

func (s *seats) index(id string) int {
	for i := 0; i < s.n; i++ {
		if s.conns[i].ID() == id {
			return i
		}
	}
	return -1
}

// members returns a copy of the occupied seats in join order.
func (s *seats) members() []Conn {
	out := make([]Conn, s.n)
	copy(out, s.conns[:s.n])
	return out
}
