package ccsds

import (
	"hash/crc32"

	"example.com/ccsdsgate/internal/anomaly"
)

// Validator recomputes per-packet integrity checks. It is stateless apart
// from the previous timestamp per channel, which is all the monotonicity
// check needs.
type Validator struct {
	strict   bool
	lastTime map[uint16]timestamp
}

type timestamp struct {
	coarse uint32
	fine   uint8
}

func (t timestamp) before(u timestamp) bool {
	if t.coarse != u.coarse {
		return t.coarse < u.coarse
	}
	return t.fine < u.fine
}

// NewValidator returns a validator. In strict mode payloads that fail the
// CRC check are replaced with zero fill before reassembly.
func NewValidator(strict bool) *Validator {
	return &Validator{strict: strict, lastTime: make(map[uint16]timestamp)}
}

// Checksum computes the CRC-32 (IEEE) trailer value for a payload.
func Checksum(payload []byte) uint32 {
	return crc32.ChecksumIEEE(payload)
}

// Check validates pkt, appending anomalies to rep. It returns the payload to
// reassemble, which differs from pkt.Payload only when strict mode zeroes a
// corrupt one, and whether the CRC matched.
func (v *Validator) Check(pkt Packet, rep *anomaly.Reporter) ([]byte, bool) {
	payload := pkt.Payload
	ok := Checksum(pkt.Payload) == pkt.CRC
	if !ok {
		rep.Appendf(anomaly.KindInvalidCrc, pkt.APID, pkt.PSC,
			"trailer 0x%08X does not match computed 0x%08X", pkt.CRC, Checksum(pkt.Payload))
		if v.strict {
			payload = make([]byte, len(pkt.Payload))
		}
	}

	if pkt.SecHdrFlag {
		now := timestamp{coarse: pkt.CoarseTime, fine: pkt.FineTime}
		if last, seen := v.lastTime[pkt.APID]; seen && now.before(last) {
			rep.Appendf(anomaly.KindTimeRegression, pkt.APID, pkt.PSC,
				"time %d.%03d before previous %d.%03d", now.coarse, now.fine, last.coarse, last.fine)
		}
		v.lastTime[pkt.APID] = now
	}
	return payload, ok
}
