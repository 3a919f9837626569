package ccsds_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"example.com/ccsdsgate/internal/anomaly"
	"example.com/ccsdsgate/internal/ccsds"
	"example.com/ccsdsgate/internal/samples"
)

func TestProcessStreamNominal(t *testing.T) {
	stream := samples.BuildNominal(testPayloadLen)
	frames, rep, err := ccsds.ProcessStream(stream, testConfig())
	require.NoError(t, err)

	require.True(t, rep.Summary.Clean, "nominal run must be clean: %+v", rep.Records)
	require.Equal(t, 12, rep.Summary.Packets)
	require.Len(t, frames, 3)
	require.Nil(t, rep.Fatal)

	// The reconstructed frames, concatenated, are exactly the payload bytes
	// that went over the wire.
	var got []byte
	for _, f := range frames {
		require.True(t, f.Status.Has(ccsds.StatusComplete), "frame %d: %s", f.Index, f.Status)
		got = append(got, f.Buffer...)
	}
	require.Equal(t, concatPayloads(1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12), got)
}

func TestProcessStreamMissingPacket(t *testing.T) {
	stream := samples.BuildMissingPacket(testPayloadLen)
	frames, rep, err := ccsds.ProcessStream(stream, testConfig())
	require.NoError(t, err)

	require.Equal(t, 11, rep.Summary.Packets)
	require.Len(t, frames, 3)
	require.Equal(t, 1, rep.Kinds[anomaly.KindGap].Count)
	require.Equal(t, uint16(samples.CorruptPSC), rep.Kinds[anomaly.KindGap].FirstPsc)

	// The fill block keeps the surviving payload at its true frame offset.
	third := frames[2]
	require.True(t, third.Status.Has(ccsds.StatusHasGap))
	off := 2 * testPayloadLen
	require.Equal(t, make([]byte, testPayloadLen), third.Buffer[testPayloadLen:off])
	require.Equal(t, samples.PayloadFor(11, testPayloadLen), third.Buffer[off:off+testPayloadLen])
}

func TestProcessStreamDelayedStartWithBaseline(t *testing.T) {
	stream := samples.BuildDelayedStart(testPayloadLen)
	cfg := testConfig()
	cfg.InitialPSC = int(samples.StartPSC)
	frames, rep, err := ccsds.ProcessStream(stream, cfg)
	require.NoError(t, err)
	require.Len(t, frames, 3)

	// The capture lost psc 1 and 2; the baseline lets the engine size the
	// leading pad exactly.
	first := frames[0]
	require.True(t, first.Status.Has(ccsds.StatusPartialStart))
	require.True(t, first.Status.Has(ccsds.StatusHasGap))
	want := append(make([]byte, 2*testPayloadLen), concatPayloads(3, 4)...)
	require.Equal(t, want, first.Buffer)

	require.Equal(t, 1, rep.Kinds[anomaly.KindGap].Count)
	require.Equal(t, 1, rep.Kinds[anomaly.KindPartialStart].Count)
	require.True(t, frames[1].Status.Has(ccsds.StatusComplete))
	require.True(t, frames[2].Status.Has(ccsds.StatusComplete))
}

func TestProcessStreamDelayedStartWithoutBaseline(t *testing.T) {
	stream := samples.BuildDelayedStart(testPayloadLen)
	frames, rep, err := ccsds.ProcessStream(stream, testConfig())
	require.NoError(t, err)
	require.Len(t, frames, 3)

	// Without a baseline the first counter is adopted as-is: the frame is
	// flagged partial but gets no speculative pad.
	first := frames[0]
	require.True(t, first.Status.Has(ccsds.StatusPartialStart))
	require.False(t, first.Status.Has(ccsds.StatusHasGap))
	require.Equal(t, concatPayloads(3, 4), first.Buffer)
	require.Equal(t, 0, rep.Kinds[anomaly.KindGap].Count)
}

func TestProcessStreamCorruptCrc(t *testing.T) {
	stream := samples.BuildCorruptCrc(testPayloadLen)

	t.Run("lenient", func(t *testing.T) {
		frames, rep, err := ccsds.ProcessStream(stream, testConfig())
		require.NoError(t, err)
		require.Len(t, frames, 3)
		require.Equal(t, 1, rep.Kinds[anomaly.KindInvalidCrc].Count)
		require.Equal(t, uint16(samples.CorruptPSC), rep.Kinds[anomaly.KindInvalidCrc].FirstPsc)

		// Non-strict keeps the suspect bytes; only the flag marks them.
		third := frames[2]
		require.True(t, third.Status.Has(ccsds.StatusInvalidCrcPresent))
		require.Equal(t, concatPayloads(9, 10, 11, 12), third.Buffer)
	})

	t.Run("strict", func(t *testing.T) {
		cfg := testConfig()
		cfg.StrictCrc = true
		frames, rep, err := ccsds.ProcessStream(stream, cfg)
		require.NoError(t, err)
		require.Len(t, frames, 3)
		require.Equal(t, 1, rep.Kinds[anomaly.KindInvalidCrc].Count)

		// Strict zero-fills the suspect payload but keeps its extent.
		third := frames[2]
		require.True(t, third.Status.Has(ccsds.StatusInvalidCrcPresent))
		require.Equal(t, concatPayloads(9, 0, 11, 12), third.Buffer)
	})
}

func TestProcessStreamGapAcrossCounterWrap(t *testing.T) {
	apid := uint16(7)
	var stream []byte
	var fine uint8
	add := func(psc uint16, flags ccsds.SeqFlags) {
		fine++
		stream = append(stream, samples.BuildPacket(apid, psc, flags, 100, fine, samples.PayloadFor(psc, testPayloadLen), false)...)
	}
	add(16382, ccsds.SeqFirst)
	add(16383, ccsds.SeqContinuation)
	// psc 0 lost across the wrap.
	add(1, ccsds.SeqContinuation)
	add(2, ccsds.SeqLast)

	frames, rep, err := ccsds.ProcessStream(stream, testConfig())
	require.NoError(t, err)
	require.Len(t, frames, 1)

	gaps := rep.Kinds[anomaly.KindGap]
	require.Equal(t, 1, gaps.Count)
	require.Equal(t, uint16(0), gaps.FirstPsc, "missing counter sits on the wrap boundary")

	want := concatPayloads(16382, 16383, 0, 1, 2)
	require.Equal(t, want, frames[0].Buffer)
}

func TestProcessStreamTruncatedCapture(t *testing.T) {
	stream := samples.BuildTruncated(testPayloadLen)
	frames, rep, err := ccsds.ProcessStream(stream, testConfig())
	require.NoError(t, err, "a capture cut at a packet boundary is not fatal")
	require.Nil(t, rep.Fatal)
	require.Len(t, frames, 3)

	third := frames[2]
	require.True(t, third.Status.Has(ccsds.StatusTruncated))
	require.Equal(t, concatPayloads(9, 10, 11), third.Buffer)
	require.Equal(t, 1, rep.Kinds[anomaly.KindTruncated].Count)
}

func TestProcessStreamMalformedTailIsFatal(t *testing.T) {
	nominal := samples.BuildNominal(testPayloadLen)
	stream := append(append([]byte(nil), nominal...), 0xFF, 0xFF, 0xFF)

	frames, rep, err := ccsds.ProcessStream(stream, testConfig())
	require.ErrorIs(t, err, ccsds.ErrMalformedHeader)

	// Everything decoded before the bad header is still delivered.
	require.Len(t, frames, 3)
	require.Equal(t, 12, rep.Summary.Packets)
	require.NotNil(t, rep.Fatal)
	require.Equal(t, int64(len(nominal)), rep.Fatal.Offset)
	require.False(t, rep.Summary.Clean)
}

func TestProcessStreamEmptyInput(t *testing.T) {
	frames, rep, err := ccsds.ProcessStream(nil, testConfig())
	require.ErrorIs(t, err, ccsds.ErrEmptyStream)
	require.Empty(t, frames)
	require.NotNil(t, rep.Fatal)
	require.Equal(t, int64(0), rep.Fatal.Offset)
}

func TestProcessStreamDeterministic(t *testing.T) {
	stream := samples.BuildMissingPacket(testPayloadLen)
	cfg := testConfig()

	frames1, rep1, err1 := ccsds.ProcessStream(stream, cfg)
	frames2, rep2, err2 := ccsds.ProcessStream(stream, cfg)
	require.NoError(t, err1)
	require.NoError(t, err2)

	if diff := cmp.Diff(frames1, frames2); diff != "" {
		t.Fatalf("frames differ across identical runs (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(rep1, rep2); diff != "" {
		t.Fatalf("reports differ across identical runs (-first +second):\n%s", diff)
	}
}
