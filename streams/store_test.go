package streams

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreInsertionOrder(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	store := NewStore()
	for _, id := range []uint32{5, 1, 3} {
		store.Insert(New(id, 65_535))
	}
	a.Equal(3, store.Len())

	var seen []uint32
	a.NoError(store.ForEach(func(s *Stream) error {
		seen = append(seen, s.ID())
		return nil
	}))
	a.Equal([]uint32{5, 1, 3}, seen)
}

func TestStoreForEachShortCircuit(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	store := NewStore()
	for id := uint32(1); id <= 7; id += 2 {
		store.Insert(New(id, 65_535))
	}

	boom := errors.New("boom")
	var seen []uint32
	err := store.ForEach(func(s *Stream) error {
		seen = append(seen, s.ID())
		if s.ID() == 3 {
			return boom
		}
		return nil
	})
	a.ErrorIs(err, boom)
	a.Equal([]uint32{1, 3}, seen, "iteration stops at the first error")
}

func TestStoreDelete(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	store := NewStore()
	store.Insert(New(1, 65_535))
	store.Insert(New(3, 65_535))

	a.NotNil(store.Get(1))
	store.Delete(1)
	store.Delete(1) // repeated delete is a no-op
	a.Nil(store.Get(1))
	a.Equal(1, store.Len())

	// deleting the visited stream mid-iteration must not skip others
	var seen []uint32
	a.NoError(store.ForEach(func(s *Stream) error {
		seen = append(seen, s.ID())
		store.Delete(s.ID())
		return nil
	}))
	a.Equal([]uint32{3}, seen)
	a.Equal(0, store.Len())
}

func TestCounts(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	c := NewCounts(2)
	a.True(c.CanIncNumSendStreams())
	c.IncNumSendStreams()
	c.IncNumSendStreams()
	a.False(c.CanIncNumSendStreams())
	a.EqualValues(2, c.NumSendStreams())

	c.DecNumSendStreams()
	a.True(c.CanIncNumSendStreams())

	c.SetMaxSendStreams(1)
	a.False(c.CanIncNumSendStreams())

	unlimited := NewCounts(0)
	for i := 0; i < 1000; i++ {
		a.True(unlimited.CanIncNumSendStreams())
		unlimited.IncNumSendStreams()
	}
}
