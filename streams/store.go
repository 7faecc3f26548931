package streams

// Store indexes the live streams of one connection. Iteration follows
// insertion order so whole-store sweeps behave deterministically.
type Store struct {
	m   map[uint32]*Stream
	ids []uint32
}

func NewStore() *Store {
	return &Store{m: make(map[uint32]*Stream, 32)}
}

func (s *Store) Insert(stream *Stream) {
	if _, ok := s.m[stream.ID()]; !ok {
		s.ids = append(s.ids, stream.ID())
	}
	s.m[stream.ID()] = stream
}

func (s *Store) Get(id uint32) *Stream { return s.m[id] }

func (s *Store) Delete(id uint32) {
	if _, ok := s.m[id]; !ok {
		return
	}
	delete(s.m, id)
	for i, known := range s.ids {
		if known == id {
			s.ids = append(s.ids[:i], s.ids[i+1:]...)
			break
		}
	}
}

func (s *Store) Len() int { return len(s.m) }

// ForEach visits every stream in insertion order and stops on the first
// error, leaving earlier mutations in place.
func (s *Store) ForEach(fn func(*Stream) error) error {
	// the callback may delete the current stream
	ids := make([]uint32, len(s.ids))
	copy(ids, s.ids)

	for _, id := range ids {
		stream, ok := s.m[id]
		if !ok {
			continue
		}
		if err := fn(stream); err != nil {
			return err
		}
	}
	return nil
}
