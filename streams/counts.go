package streams

// Counts tracks the connection's concurrent-stream budget for locally
// initiated streams. A limit of zero means unlimited, mirroring a peer
// that never sent SETTINGS_MAX_CONCURRENT_STREAMS.
type Counts struct {
	maxSendStreams uint32
	numSendStreams uint32
}

func NewCounts(maxConcurrentStreams uint32) *Counts {
	return &Counts{maxSendStreams: maxConcurrentStreams}
}

// CanIncNumSendStreams reports whether one more stream fits the budget.
func (c *Counts) CanIncNumSendStreams() bool {
	return c.maxSendStreams == 0 || c.numSendStreams < c.maxSendStreams
}

func (c *Counts) IncNumSendStreams() { c.numSendStreams++ }

func (c *Counts) DecNumSendStreams() {
	if c.numSendStreams == 0 {
		panic("send stream count underflow")
	}
	c.numSendStreams--
}

func (c *Counts) NumSendStreams() uint32 { return c.numSendStreams }

// SetMaxSendStreams applies a SETTINGS_MAX_CONCURRENT_STREAMS update.
// Lowering the limit below the current count only blocks new opens;
// running streams are unaffected.
func (c *Counts) SetMaxSendStreams(limit uint32) {
	c.maxSendStreams = limit
}
