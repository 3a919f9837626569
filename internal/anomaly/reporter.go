// Package anomaly accumulates the structured anomaly events of one
// depacketization run and produces the final triage report.
package anomaly

import "fmt"

// Kind names one class of recoverable anomaly.
type Kind string

const (
	KindGap            Kind = "Gap"
	KindDuplicate      Kind = "Duplicate"
	KindReordered      Kind = "Reordered"
	KindInvalidCrc     Kind = "InvalidCrc"
	KindTimeRegression Kind = "TimeRegression"
	KindPartialStart   Kind = "PartialStart"
	KindTruncated      Kind = "Truncated"
	KindFrameOverflow  Kind = "FrameOverflow"
)

// Record is one anomaly event. Records are immutable once appended and owned
// by the Reporter; frames refer to them by Seq.
type Record struct {
	Seq     int    `json:"seq"`
	Kind    Kind   `json:"kind"`
	Channel uint16 `json:"channel"`
	Psc     uint16 `json:"psc"`
	Detail  string `json:"detail,omitempty"`
}

// FrameSummary is the per-frame line of the final report.
type FrameSummary struct {
	Channel   uint16 `json:"channel"`
	Index     int    `json:"index"`
	Bytes     int    `json:"bytes"`
	Status    string `json:"status"`
	Anomalies int    `json:"anomalies"`
}

// KindStats aggregates one anomaly kind across the run.
type KindStats struct {
	Count    int    `json:"count"`
	FirstPsc uint16 `json:"firstPsc"`
	LastPsc  uint16 `json:"lastPsc"`
}

// FatalMarker notes that the run aborted and where.
type FatalMarker struct {
	Offset  int64  `json:"offset"`
	Message string `json:"message"`
}

// Report is the finalized output of a run. Its content is a pure function of
// the input stream, so re-running identical input yields an identical report.
type Report struct {
	Summary struct {
		Packets   int  `json:"packets"`
		Frames    int  `json:"frames"`
		Anomalies int  `json:"anomalies"`
		Clean     bool `json:"clean"`
	} `json:"summary"`
	Kinds   map[Kind]KindStats `json:"kinds"`
	Frames  []FrameSummary     `json:"frames"`
	Records []Record           `json:"records,omitempty"`
	Fatal   *FatalMarker       `json:"fatal,omitempty"`
}

// Reporter is the append-only anomaly log for one run. It is passed into the
// engine explicitly rather than living as package state, so independent runs
// (or per-channel workers feeding a shared run) stay untangled.
type Reporter struct {
	records []Record
	frames  []FrameSummary
	packets int
	fatal   *FatalMarker

	finalized bool
	report    Report
}

// NewReporter returns an empty run log.
func NewReporter() *Reporter {
	return &Reporter{}
}

// Append records one anomaly and returns its sequence number.
func (r *Reporter) Append(kind Kind, channel, psc uint16, detail string) int {
	rec := Record{Seq: len(r.records), Kind: kind, Channel: channel, Psc: psc, Detail: detail}
	r.records = append(r.records, rec)
	return rec.Seq
}

// Appendf is Append with a formatted detail string.
func (r *Reporter) Appendf(kind Kind, channel, psc uint16, format string, args ...interface{}) int {
	return r.Append(kind, channel, psc, fmt.Sprintf(format, args...))
}

// CountPacket tallies one successfully parsed packet.
func (r *Reporter) CountPacket() {
	r.packets++
}

// AddFrame records the summary line for a finalized frame.
func (r *Reporter) AddFrame(s FrameSummary) {
	r.frames = append(r.frames, s)
}

// SetFatal marks the run as aborted at the given stream offset. Only the
// first fatal sticks.
func (r *Reporter) SetFatal(offset int64, message string) {
	if r.fatal != nil {
		return
	}
	r.fatal = &FatalMarker{Offset: offset, Message: message}
}

// Records returns the log in arrival order.
func (r *Reporter) Records() []Record {
	return r.records
}

// Finalize builds the report. It is idempotent: the first call freezes the
// result and later calls return the same value, so a run that flushes on a
// fatal path and again on the normal exit path cannot double-report.
func (r *Reporter) Finalize() Report {
	if r.finalized {
		return r.report
	}
	r.finalized = true

	rep := Report{
		Kinds:   make(map[Kind]KindStats),
		Frames:  r.frames,
		Records: r.records,
		Fatal:   r.fatal,
	}
	for _, rec := range r.records {
		st, seen := rep.Kinds[rec.Kind]
		if !seen {
			st.FirstPsc = rec.Psc
		}
		st.Count++
		st.LastPsc = rec.Psc
		rep.Kinds[rec.Kind] = st
	}
	rep.Summary.Packets = r.packets
	rep.Summary.Frames = len(r.frames)
	rep.Summary.Anomalies = len(r.records)
	rep.Summary.Clean = len(r.records) == 0 && r.fatal == nil

	r.report = rep
	return rep
}
