package flowcontrol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindowIncDec(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	w := New(100)
	a.EqualValues(100, w.WindowSize())
	a.EqualValues(0, w.Available())

	a.NoError(w.IncWindow(50))
	a.EqualValues(150, w.WindowSize())

	w.DecWindow(200)
	a.EqualValues(-50, w.WindowSize())
	a.EqualValues(-200, w.Available())
}

func TestWindowOverflow(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	w := New(MaxWindowSize)
	a.ErrorIs(w.IncWindow(1), ErrWindowOverflow)
	a.EqualValues(MaxWindowSize, w.WindowSize(), "failed increment must not change the window")

	a.NoError(w.IncWindow(0))
}

func TestWindowCapacity(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	w := New(1000)
	w.AssignCapacity(600)
	a.EqualValues(600, w.Available())

	w.ClaimCapacity(200)
	a.EqualValues(400, w.Available())
	a.EqualValues(1000, w.WindowSize(), "capacity moves must not touch the window")

	w.DecWindow(300)
	a.EqualValues(700, w.WindowSize())
	a.EqualValues(100, w.Available())
}

func TestConnWindowSpend(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	w := NewConn(65_535)
	a.EqualValues(65_535, w.Available(), "connection credit starts unassigned")

	w.ClaimCapacity(1000) // assigned to some stream
	w.SpendWindow(1000)   // the stream's bytes hit the wire
	a.EqualValues(64_535, w.WindowSize())
	a.EqualValues(64_535, w.Available())
}
