// Package samples synthesizes deterministic CCSDS packet streams covering
// the downlink failure modes the engine must survive: a nominal capture, a
// missing packet, a delayed stream start, a truncated capture, and a
// corrupted checksum.
package samples

import (
	"encoding/binary"

	"example.com/ccsdsgate/internal/ccsds"
)

const (
	// DefaultAPID matches the instrument channel used by the flight
	// recorder fixtures.
	DefaultAPID uint16 = 1675
	// StartPSC is the counter value of the first packet of a capture.
	StartPSC uint16 = 1
	// CorruptPSC is the packet whose CRC trailer the corrupt-checksum
	// scenario zeroes.
	CorruptPSC uint16 = 10

	// File names exposed for generator consumers.
	NominalFileName    = "nominal_ccsds.bin"
	MissingFileName    = "missing_packet_ccsds.bin"
	DelayedFileName    = "delayed_start_ccsds.bin"
	TruncatedFileName  = "truncated_ccsds.bin"
	CorruptCrcFileName = "corrupt_crc_ccsds.bin"
)

// Options tweaks a generated capture away from nominal.
type Options struct {
	// Drop lists counter values whose packets never reach the ground.
	Drop []uint16
	// ZeroCrc lists counter values whose trailer is zeroed in transit.
	ZeroCrc []uint16
	// SkipLeading removes the first n packets of the capture.
	SkipLeading int
	// CutTrailing removes the last n packets of the capture.
	CutTrailing int
}

// BuildPacket serializes one packet. zeroCrc replaces the computed trailer
// with zero, which is how the corrupt scenario simulates bit rot.
func BuildPacket(apid, psc uint16, flags ccsds.SeqFlags, coarse uint32, fine uint8, payload []byte, zeroCrc bool) []byte {
	dataLen := 5 + len(payload) + 4
	pkt := make([]byte, 6+dataLen)

	binary.BigEndian.PutUint16(pkt[0:2], apid&0x07FF)
	pkt[0] |= 0x08 // secondary header present
	binary.BigEndian.PutUint16(pkt[2:4], uint16(flags)<<14|psc&0x3FFF)
	binary.BigEndian.PutUint16(pkt[4:6], uint16(dataLen-1))

	binary.BigEndian.PutUint32(pkt[6:10], coarse)
	pkt[10] = fine
	copy(pkt[11:], payload)

	crc := ccsds.Checksum(payload)
	if zeroCrc {
		crc = 0
	}
	binary.BigEndian.PutUint32(pkt[len(pkt)-4:], crc)
	return pkt
}

// PayloadFor returns the deterministic payload bytes of the packet with the
// given counter, so tests can predict reassembled buffers exactly.
func PayloadFor(psc uint16, size int) []byte {
	p := make([]byte, size)
	for i := range p {
		p[i] = byte(uint16(i) + psc)
	}
	return p
}

// Build generates a capture of frames on one channel. Each frame spans
// perFrame packets (First, continuations, Last); perFrame == 1 emits
// unsegmented packets. Packet times advance monotonically.
func Build(apid uint16, frames, perFrame, payloadLen int, opts Options) []byte {
	type raw struct {
		psc  uint16
		data []byte
	}
	var packets []raw

	psc := StartPSC
	coarse := uint32(1_700_000_000)
	fine := uint8(0)
	dropped := make(map[uint16]bool, len(opts.Drop))
	for _, d := range opts.Drop {
		dropped[d] = true
	}
	zeroed := make(map[uint16]bool, len(opts.ZeroCrc))
	for _, z := range opts.ZeroCrc {
		zeroed[z] = true
	}

	for f := 0; f < frames; f++ {
		for i := 0; i < perFrame; i++ {
			var flags ccsds.SeqFlags
			switch {
			case perFrame == 1:
				flags = ccsds.SeqUnsegmented
			case i == 0:
				flags = ccsds.SeqFirst
			case i == perFrame-1:
				flags = ccsds.SeqLast
			default:
				flags = ccsds.SeqContinuation
			}
			if !dropped[psc] {
				pkt := BuildPacket(apid, psc, flags, coarse, fine, PayloadFor(psc, payloadLen), zeroed[psc])
				packets = append(packets, raw{psc: psc, data: pkt})
			}
			psc = (psc + 1) % ccsds.PSCModulus
			fine += 64
			if fine == 0 {
				coarse++
			}
		}
	}

	if opts.SkipLeading > 0 && opts.SkipLeading < len(packets) {
		packets = packets[opts.SkipLeading:]
	}
	if opts.CutTrailing > 0 && opts.CutTrailing < len(packets) {
		packets = packets[:len(packets)-opts.CutTrailing]
	}

	var stream []byte
	for _, p := range packets {
		stream = append(stream, p.data...)
	}
	return stream
}

// BuildNominal is the clean capture: three 4-packet frames, fully
// contiguous.
func BuildNominal(payloadLen int) []byte {
	return Build(DefaultAPID, 3, 4, payloadLen, Options{})
}

// BuildMissingPacket drops the continuation packet with counter 10.
func BuildMissingPacket(payloadLen int) []byte {
	return Build(DefaultAPID, 3, 4, payloadLen, Options{Drop: []uint16{10}})
}

// BuildDelayedStart loses the first two packets of the capture, so
// reconstruction begins mid-frame.
func BuildDelayedStart(payloadLen int) []byte {
	return Build(DefaultAPID, 3, 4, payloadLen, Options{SkipLeading: 2})
}

// BuildTruncated cuts the capture before the final frame's Last packet.
func BuildTruncated(payloadLen int) []byte {
	return Build(DefaultAPID, 3, 4, payloadLen, Options{CutTrailing: 1})
}

// BuildCorruptCrc zeroes the trailer of the packet with counter 10.
func BuildCorruptCrc(payloadLen int) []byte {
	return Build(DefaultAPID, 3, 4, payloadLen, Options{ZeroCrc: []uint16{CorruptPSC}})
}
