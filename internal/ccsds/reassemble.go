package ccsds

import (
	"io"

	"example.com/ccsdsgate/internal/anomaly"
	"example.com/ccsdsgate/internal/common"
)

// Reassembler owns the per-channel frame buffers. It consumes parser output
// annotated by the sequence tracker and validator, and collects finalized
// frames in emission order.
type Reassembler struct {
	cfg Config
	rep *anomaly.Reporter

	channels map[uint16]*channelState
	order    []uint16
	frames   []Frame
}

type channelState struct {
	tracker *Tracker
	open    *Frame
	nextIdx int
}

// NewReassembler returns a reassembler writing anomalies to rep. The config
// must already carry defaults.
func NewReassembler(cfg Config, rep *anomaly.Reporter) *Reassembler {
	return &Reassembler{
		cfg:      cfg,
		rep:      rep,
		channels: make(map[uint16]*channelState),
	}
}

func (r *Reassembler) channel(apid uint16) *channelState {
	st, ok := r.channels[apid]
	if !ok {
		st = &channelState{tracker: NewTracker(r.cfg.GapThreshold, r.cfg.InitialPSC)}
		r.channels[apid] = st
		r.order = append(r.order, apid)
	}
	return st
}

// Track runs the packet's counter through its channel tracker.
func (r *Reassembler) Track(pkt Packet) SequenceEvent {
	return r.channel(pkt.APID).tracker.Observe(pkt.PSC)
}

// Apply folds one packet into its channel's frame buffer. payload is the
// validator-approved payload (zeroed in strict mode on CRC failure); crcOK
// reports whether the trailer matched.
func (r *Reassembler) Apply(pkt Packet, ev SequenceEvent, payload []byte, crcOK bool) {
	st := r.channel(pkt.APID)

	switch ev.Kind {
	case SeqDuplicate:
		// First-seen wins: record and drop the payload contribution.
		seq := r.rep.Appendf(anomaly.KindDuplicate, pkt.APID, pkt.PSC, "counter repeated, payload discarded")
		r.attach(st, seq)
		return
	case SeqReordered:
		seq := r.rep.Appendf(anomaly.KindReordered, pkt.APID, pkt.PSC, "unexplainable counter jump, resynchronizing")
		r.attach(st, seq)
		r.closeOpen(pkt.APID, st)
	case SeqGap:
		lastMissing := uint16((uint32(ev.FirstMissing) + uint32(ev.Missing) - 1) % PSCModulus)
		seq := r.rep.Appendf(anomaly.KindGap, pkt.APID, ev.FirstMissing,
			"%d packets missing, psc %d..%d", ev.Missing, ev.FirstMissing, lastMissing)
		switch {
		case pkt.SeqFlags == SeqFirst || pkt.SeqFlags == SeqUnsegmented:
			// The missing packets were the tail of the previous frame; its
			// true extent is unknown, so close it short rather than guess
			// at fill.
			r.attach(st, seq)
			r.closeOpen(pkt.APID, st)
		case st.open != nil:
			// Interior gap: hold the space so later payload lands at the
			// right offset.
			r.attach(st, seq)
			st.open.Status |= StatusHasGap
			r.fill(pkt.APID, st, int(ev.Missing))
		default:
			// The frame's First packet is among the missing. Start a new
			// frame with the leading portion zero-filled.
			r.openPartial(pkt, st, int(ev.Missing), seq)
		}
	}

	switch pkt.SeqFlags {
	case SeqFirst:
		r.closeOpen(pkt.APID, st)
		r.openFrame(pkt, st)
		r.appendPayload(pkt, st, payload, crcOK)
	case SeqUnsegmented:
		r.closeOpen(pkt.APID, st)
		r.openFrame(pkt, st)
		r.appendPayload(pkt, st, payload, crcOK)
		r.finalize(pkt.APID, st)
	case SeqContinuation:
		if st.open == nil {
			r.openPartial(pkt, st, 0, -1)
		}
		r.appendPayload(pkt, st, payload, crcOK)
	case SeqLast:
		if st.open == nil {
			r.openPartial(pkt, st, 0, -1)
		}
		r.appendPayload(pkt, st, payload, crcOK)
		r.finalize(pkt.APID, st)
	}
}

// Flush closes every still-open frame as truncated, in first-seen channel
// order, and returns all frames of the run in emission order.
func (r *Reassembler) Flush() []Frame {
	for _, apid := range r.order {
		r.closeOpen(apid, r.channels[apid])
	}
	return r.frames
}

func (r *Reassembler) openFrame(pkt Packet, st *channelState) {
	st.open = &Frame{
		APID:     pkt.APID,
		Index:    st.nextIdx,
		FirstPSC: pkt.PSC,
		LastPSC:  pkt.PSC,
	}
	st.nextIdx++
}

// openPartial opens a frame whose leading packets never arrived. missing is
// the number of hint-sized fill blocks to pre-insert; gapSeq links the gap
// record that exposed the loss, -1 when there is none to link.
func (r *Reassembler) openPartial(pkt Packet, st *channelState, missing int, gapSeq int) {
	r.openFrame(pkt, st)
	st.open.Status |= StatusPartialStart
	detail := "frame opened mid-stream, leading extent unknown"
	if missing > 0 {
		detail = "frame start packet lost, leading bytes zero-filled"
	}
	seq := r.rep.Append(anomaly.KindPartialStart, pkt.APID, pkt.PSC, detail)
	if gapSeq >= 0 {
		r.attach(st, gapSeq)
	}
	r.attach(st, seq)
	if missing > 0 {
		st.open.Status |= StatusHasGap
		r.fill(pkt.APID, st, missing)
	}
}

func (r *Reassembler) fill(apid uint16, st *channelState, blocks int) {
	for i := 0; i < blocks; i++ {
		r.appendBytes(apid, st, make([]byte, r.cfg.PayloadSizeHint))
	}
}

func (r *Reassembler) appendPayload(pkt Packet, st *channelState, payload []byte, crcOK bool) {
	r.appendBytes(pkt.APID, st, payload)
	if !crcOK {
		st.open.Status |= StatusInvalidCrcPresent
	}
	st.open.LastPSC = pkt.PSC
}

// appendBytes grows the open buffer, rolling over into a fresh continuation
// frame when MaxFrameBytes would be exceeded so one corrupt length or
// counter cannot balloon a single allocation.
func (r *Reassembler) appendBytes(apid uint16, st *channelState, b []byte) {
	if len(st.open.Buffer)+len(b) > r.cfg.MaxFrameBytes {
		seq := r.rep.Appendf(anomaly.KindFrameOverflow, apid, st.open.LastPSC,
			"frame exceeds %d bytes, splitting", r.cfg.MaxFrameBytes)
		r.attach(st, seq)
		prev := *st.open
		r.closeOpen(apid, st)
		st.open = &Frame{
			APID:     apid,
			Index:    st.nextIdx,
			Status:   StatusPartialStart,
			FirstPSC: prev.LastPSC,
			LastPSC:  prev.LastPSC,
		}
		st.nextIdx++
	}
	st.open.Buffer = append(st.open.Buffer, b...)
}

func (r *Reassembler) finalize(apid uint16, st *channelState) {
	if st.open == nil {
		return
	}
	if st.open.Status == 0 {
		st.open.Status = StatusComplete
	}
	r.emit(apid, st)
}

// closeOpen finalizes a frame that did not end on a Last flag.
func (r *Reassembler) closeOpen(apid uint16, st *channelState) {
	if st.open == nil {
		return
	}
	if !st.open.Status.Has(StatusComplete) {
		st.open.Status |= StatusTruncated
		seq := r.rep.Appendf(anomaly.KindTruncated, apid, st.open.LastPSC,
			"frame closed after %d bytes without end flag", len(st.open.Buffer))
		r.attach(st, seq)
	}
	r.emit(apid, st)
}

func (r *Reassembler) emit(apid uint16, st *channelState) {
	f := *st.open
	st.open = nil
	r.frames = append(r.frames, f)
	r.rep.AddFrame(anomaly.FrameSummary{
		Channel:   apid,
		Index:     f.Index,
		Bytes:     len(f.Buffer),
		Status:    f.Status.String(),
		Anomalies: len(f.Anomalies),
	})
}

func (r *Reassembler) attach(st *channelState, seq int) {
	if st.open == nil {
		return
	}
	st.open.Anomalies = append(st.open.Anomalies, seq)
}

// ProcessStream runs one sequential depacketization pass over data and
// returns the reconstructed frames together with the finalized report. On a
// fatal parse error the frames and report accumulated so far are still
// returned alongside the error.
func ProcessStream(data []byte, cfg Config) ([]Frame, anomaly.Report, error) {
	return ProcessStreamInto(data, cfg, anomaly.NewReporter(), nil)
}

// ProcessStreamInto is ProcessStream with a caller-owned reporter and
// optional metrics recorder, for callers that aggregate several inputs into
// one run log.
func ProcessStreamInto(data []byte, cfg Config, rep *anomaly.Reporter, m *common.Metrics) ([]Frame, anomaly.Report, error) {
	cfg = cfg.withDefaults()
	if m != nil {
		m.SetTotalBytes(int64(len(data)))
	}
	if len(data) == 0 {
		rep.SetFatal(0, ErrEmptyStream.Error())
		return nil, rep.Finalize(), ErrEmptyStream
	}

	parser := NewParser(data)
	validator := NewValidator(cfg.StrictCrc)
	reasm := NewReassembler(cfg, rep)

	var fatal error
	for {
		start := parser.Offset()
		pkt, err := parser.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			common.Logf("fatal parse error at offset %d: %v", start, err)
			rep.SetFatal(start, err.Error())
			fatal = err
			break
		}
		rep.CountPacket()
		if m != nil {
			m.AddPacket(parser.Offset() - start)
		}

		payload, crcOK := validator.Check(pkt, rep)
		ev := reasm.Track(pkt)
		if m != nil && ev.Kind == SeqGap {
			m.IncGap()
		}
		reasm.Apply(pkt, ev, payload, crcOK)
	}

	frames := reasm.Flush()
	if m != nil {
		m.SetFrames(int64(len(frames)))
	}
	return frames, rep.Finalize(), fatal
}
