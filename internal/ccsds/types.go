package ccsds

// SeqFlags is the two-bit segmentation field of the primary header.
type SeqFlags uint8

const (
	SeqContinuation SeqFlags = 0
	SeqFirst        SeqFlags = 1
	SeqLast         SeqFlags = 2
	SeqUnsegmented  SeqFlags = 3
)

func (f SeqFlags) String() string {
	switch f {
	case SeqContinuation:
		return "continuation"
	case SeqFirst:
		return "first"
	case SeqLast:
		return "last"
	case SeqUnsegmented:
		return "unsegmented"
	}
	return "invalid"
}

// Packet is one decoded space packet. Produced once by the parser and never
// mutated afterwards; Payload is an owned copy, not a view into the scan
// buffer.
type Packet struct {
	Version    uint8
	Type       uint8
	SecHdrFlag bool
	APID       uint16
	SeqFlags   SeqFlags
	PSC        uint16
	CoarseTime uint32
	FineTime   uint8
	Payload    []byte
	CRC        uint32

	// Offset is the byte position of the primary header in the stream.
	Offset int64
}

// FrameStatus is a combinable set of frame condition flags.
type FrameStatus uint8

const (
	StatusComplete FrameStatus = 1 << iota
	StatusHasGap
	StatusPartialStart
	StatusTruncated
	StatusInvalidCrcPresent
)

func (s FrameStatus) Has(flag FrameStatus) bool { return s&flag != 0 }

func (s FrameStatus) String() string {
	if s == 0 {
		return "open"
	}
	var out string
	add := func(label string) {
		if out != "" {
			out += "+"
		}
		out += label
	}
	if s.Has(StatusComplete) {
		add("complete")
	}
	if s.Has(StatusHasGap) {
		add("gap")
	}
	if s.Has(StatusPartialStart) {
		add("partial")
	}
	if s.Has(StatusTruncated) {
		add("truncated")
	}
	if s.Has(StatusInvalidCrcPresent) {
		add("badcrc")
	}
	return out
}

// Frame is one reconstructed unit for a channel, spanning the packets from a
// First flag (or forced resync point) through a Last flag or stream end.
type Frame struct {
	APID     uint16
	Index    int
	Status   FrameStatus
	Buffer   []byte
	FirstPSC uint16
	LastPSC  uint16

	// Anomalies holds the reporter sequence numbers of the records tied to
	// this frame, in arrival order.
	Anomalies []int
}

// Config carries the engine tunables. The modulus and fill sizes are
// injected here rather than read as package constants so the same engine can
// serve instruments with different packetization settings.
type Config struct {
	// GapThreshold bounds how many consecutive missing counters are treated
	// as a fillable gap; larger jumps force a resync.
	GapThreshold uint16
	// MaxFrameBytes caps a single frame buffer.
	MaxFrameBytes int
	// StrictCrc replaces payloads that fail the CRC check with zero fill.
	StrictCrc bool
	// PayloadSizeHint is the fill-block size used for missing packets.
	PayloadSizeHint int
	// InitialPSC, when positive, fixes the counter value the first packet of
	// every channel is expected to carry, so a delayed start is reported as
	// a leading gap. Zero adopts whatever arrives first. The downlink
	// convention starts counters at 1, never 0, so no baseline is lost.
	InitialPSC int
}

const (
	// PSCModulus is the wrap point of the 14-bit packet sequence counter.
	PSCModulus = 16384

	defaultGapThreshold    = 64
	defaultMaxFrameBytes   = 64 << 20
	defaultPayloadSizeHint = 1024
)

// DefaultConfig returns the engine defaults used when a field is left zero.
func DefaultConfig() Config {
	return Config{
		GapThreshold:    defaultGapThreshold,
		MaxFrameBytes:   defaultMaxFrameBytes,
		PayloadSizeHint: defaultPayloadSizeHint,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.GapThreshold == 0 {
		c.GapThreshold = d.GapThreshold
	}
	if c.MaxFrameBytes <= 0 {
		c.MaxFrameBytes = d.MaxFrameBytes
	}
	if c.PayloadSizeHint <= 0 {
		c.PayloadSizeHint = d.PayloadSizeHint
	}
	if c.InitialPSC < 0 {
		c.InitialPSC = 0
	}
	return c
}
