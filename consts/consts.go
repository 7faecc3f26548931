package consts

import "time"

const (
	DefaultInitialWindowSize = 65_535
	DefaultMaxFrameSize      = 16384 // smallest value every peer must accept (RFC 7540 §4.2)
	DefaultTimeout           = 11 * time.Second

	// MaxStreamID is the largest stream identifier a peer may allocate.
	// Stream ids are 31-bit unsigned integers.
	MaxStreamID = 1<<31 - 1

	// StreamIDStep keeps the parity of locally allocated stream ids:
	// clients use odd ids, servers even ones.
	StreamIDStep = 2
)
