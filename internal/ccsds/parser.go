package ccsds

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	primaryHeaderSize   = 6
	secondaryHeaderSize = 5
	crcTrailerSize      = 4
)

var (
	// ErrMalformedHeader marks the fatal tier: the stream cannot be walked
	// past this point because the header itself is unusable.
	ErrMalformedHeader = errors.New("malformed primary header")
	// ErrEmptyStream is returned for zero-length input.
	ErrEmptyStream = errors.New("empty packet stream")
)

// Parser walks a buffer of concatenated space packets. Packet boundaries are
// derived solely from each header's length field; there is no out-of-band
// delimiter.
type Parser struct {
	buf    []byte
	cursor int64
}

// NewParser returns a parser positioned at the start of buf.
func NewParser(buf []byte) *Parser {
	return &Parser{buf: buf}
}

// Offset reports the cursor position of the next unread byte.
func (p *Parser) Offset() int64 {
	return p.cursor
}

// Next decodes the packet at the cursor and advances past it. It returns
// io.EOF at a clean packet boundary and ErrMalformedHeader when the
// remaining bytes cannot hold the header or the declared body.
func (p *Parser) Next() (Packet, error) {
	remain := int64(len(p.buf)) - p.cursor
	if remain == 0 {
		return Packet{}, io.EOF
	}
	if remain < primaryHeaderSize {
		return Packet{}, fmt.Errorf("%w: %d bytes remain at offset %d, need %d",
			ErrMalformedHeader, remain, p.cursor, primaryHeaderSize)
	}

	hdr := p.buf[p.cursor : p.cursor+primaryHeaderSize]
	pkt := Packet{
		Version:    (hdr[0] & 0xE0) >> 5,
		Type:       (hdr[0] & 0x10) >> 4,
		SecHdrFlag: hdr[0]&0x08 != 0,
		APID:       binary.BigEndian.Uint16(hdr[0:2]) & 0x07FF,
		SeqFlags:   SeqFlags((hdr[2] & 0xC0) >> 6),
		PSC:        binary.BigEndian.Uint16(hdr[2:4]) & 0x3FFF,
		Offset:     p.cursor,
	}

	// The length field is "bytes in the data field minus one".
	dataLen := int64(binary.BigEndian.Uint16(hdr[4:6])) + 1
	total := primaryHeaderSize + dataLen
	if total > remain {
		return Packet{}, fmt.Errorf("%w: declared packet of %d bytes at offset %d exceeds remaining %d",
			ErrMalformedHeader, total, p.cursor, remain)
	}

	body := p.buf[p.cursor+primaryHeaderSize : p.cursor+total]
	if pkt.SecHdrFlag {
		if int64(len(body)) < secondaryHeaderSize {
			return Packet{}, fmt.Errorf("%w: data field of %d bytes at offset %d too short for secondary header",
				ErrMalformedHeader, len(body), p.cursor)
		}
		pkt.CoarseTime = binary.BigEndian.Uint32(body[0:4])
		pkt.FineTime = body[4]
		body = body[secondaryHeaderSize:]
	}
	if len(body) < crcTrailerSize {
		return Packet{}, fmt.Errorf("%w: data field at offset %d too short for CRC trailer", ErrMalformedHeader, p.cursor)
	}
	pkt.CRC = binary.BigEndian.Uint32(body[len(body)-crcTrailerSize:])
	pkt.Payload = append([]byte(nil), body[:len(body)-crcTrailerSize]...)

	p.cursor += total
	return pkt, nil
}
