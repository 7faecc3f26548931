package flowcontrol

import "errors"

// MaxWindowSize is the largest legal flow-control window (RFC 7540 §6.9.1).
const MaxWindowSize = 1<<31 - 1

// ErrWindowOverflow is reported when a WINDOW_UPDATE would push a window
// past MaxWindowSize. Callers translate it into FLOW_CONTROL_ERROR.
var ErrWindowOverflow = errors.New("flow-control window exceeds 2^31-1")

// Window holds the send flow-control balances for one stream or for the
// connection as a whole.
//
// Two signed counters are kept. The window size is the credit advertised
// by the peer: it grows on WINDOW_UPDATE and shrinks as DATA goes out or
// when the peer lowers SETTINGS_INITIAL_WINDOW_SIZE mid-flight, which may
// drive it negative. The available balance is the part of that credit
// currently assigned for use; on the connection window it holds the
// unassigned remainder instead.
type Window struct {
	window    int32
	available int32
}

// New returns a stream window with the given peer credit and no assigned
// capacity.
func New(window uint32) Window {
	return Window{window: int32(window)}
}

// NewConn returns a connection window. All credit starts unassigned.
func NewConn(window uint32) Window {
	return Window{window: int32(window), available: int32(window)}
}

// WindowSize is the peer-advertised credit. May be negative.
func (w *Window) WindowSize() int32 { return w.window }

// Available is the assigned capacity. May be negative after a mid-flight
// SETTINGS_INITIAL_WINDOW_SIZE decrease.
func (w *Window) Available() int32 { return w.available }

// IncWindow adds peer-granted credit.
func (w *Window) IncWindow(n uint32) error {
	if int64(w.window)+int64(n) > MaxWindowSize {
		return ErrWindowOverflow
	}
	w.window += int32(n)
	return nil
}

// DecWindow removes credit and the capacity assigned against it. Both
// balances may go negative; the caller must stop sending until enough
// WINDOW_UPDATE credit arrives to make them positive again.
func (w *Window) DecWindow(n uint32) {
	w.window -= int32(n)
	w.available -= int32(n)
}

// SpendWindow consumes credit for DATA actually written without touching
// the assigned balance. Used on the connection window, whose capacity is
// claimed when it is assigned to a stream, not when the bytes go out.
func (w *Window) SpendWindow(n uint32) {
	w.window -= int32(n)
}

// AssignCapacity makes n more bytes of the credit usable.
func (w *Window) AssignCapacity(n uint32) {
	w.available += int32(n)
}

// ClaimCapacity takes n bytes of assigned capacity back.
func (w *Window) ClaimCapacity(n uint32) {
	w.available -= int32(n)
}
