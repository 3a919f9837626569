package ccsds

import "fmt"

// SequenceEventKind classifies a packet's counter relative to expectation.
type SequenceEventKind uint8

const (
	SeqContinuous SequenceEventKind = iota
	SeqGap
	SeqDuplicate
	SeqReordered
)

func (k SequenceEventKind) String() string {
	switch k {
	case SeqContinuous:
		return "continuous"
	case SeqGap:
		return "gap"
	case SeqDuplicate:
		return "duplicate"
	case SeqReordered:
		return "reordered"
	}
	return "unknown"
}

// SequenceEvent is the tracker's verdict for one observed counter value.
// Missing is non-zero only for gaps and counts the skipped values.
type SequenceEvent struct {
	Kind    SequenceEventKind
	Missing uint16
	// FirstMissing is the first skipped counter value when Missing > 0.
	FirstMissing uint16
}

func (e SequenceEvent) String() string {
	if e.Kind == SeqGap {
		return fmt.Sprintf("gap(%d)", e.Missing)
	}
	return e.Kind.String()
}

// Tracker follows the rolling packet sequence counter of one channel. All
// arithmetic is modulo the injected modulus so the 16383 -> 0 wrap is
// indistinguishable from any other increment.
type Tracker struct {
	modulus      uint32
	gapThreshold uint16
	expected     uint16
	primed       bool
}

// NewTracker returns a tracker with no expectation yet; the first observed
// packet seeds it. A positive initialPSC seeds the expectation up front so a
// delayed stream start surfaces as a leading gap.
func NewTracker(gapThreshold uint16, initialPSC int) *Tracker {
	t := &Tracker{modulus: PSCModulus, gapThreshold: gapThreshold}
	if initialPSC > 0 {
		t.expected = uint16(initialPSC % PSCModulus)
		t.primed = true
	}
	return t
}

// Expected reports the counter value the next packet should carry.
func (t *Tracker) Expected() (uint16, bool) {
	return t.expected, t.primed
}

// Observe classifies psc against the current expectation and advances it.
func (t *Tracker) Observe(psc uint16) SequenceEvent {
	psc %= uint16(t.modulus)
	if !t.primed {
		t.primed = true
		t.expected = t.next(psc)
		return SequenceEvent{Kind: SeqContinuous}
	}

	delta := uint16((uint32(psc) + t.modulus - uint32(t.expected)) % t.modulus)
	switch {
	case delta == 0:
		t.expected = t.next(psc)
		return SequenceEvent{Kind: SeqContinuous}
	case delta <= t.gapThreshold:
		ev := SequenceEvent{Kind: SeqGap, Missing: delta, FirstMissing: t.expected}
		t.expected = t.next(psc)
		return ev
	case delta == uint16(t.modulus-1):
		// psc == expected-1: the packet we already consumed arrived again.
		return SequenceEvent{Kind: SeqDuplicate}
	default:
		// Unexplainable jump. Resynchronize on this packet.
		t.expected = t.next(psc)
		return SequenceEvent{Kind: SeqReordered}
	}
}

func (t *Tracker) next(psc uint16) uint16 {
	return uint16((uint32(psc) + 1) % t.modulus)
}
