package ccsds

import (
	"bytes"
	"testing"

	"example.com/ccsdsgate/internal/anomaly"
)

func TestValidatorCrc(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5}

	tests := []struct {
		name        string
		strict      bool
		crc         uint32
		wantOK      bool
		wantPayload []byte
		wantKinds   []anomaly.Kind
	}{
		{
			name:        "matching trailer",
			crc:         Checksum(payload),
			wantOK:      true,
			wantPayload: payload,
		},
		{
			name:        "mismatch keeps payload in lenient mode",
			crc:         0,
			wantOK:      false,
			wantPayload: payload,
			wantKinds:   []anomaly.Kind{anomaly.KindInvalidCrc},
		},
		{
			name:        "mismatch zero-fills in strict mode",
			strict:      true,
			crc:         0xDEADBEEF,
			wantOK:      false,
			wantPayload: make([]byte, len(payload)),
			wantKinds:   []anomaly.Kind{anomaly.KindInvalidCrc},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rep := anomaly.NewReporter()
			v := NewValidator(tc.strict)
			pkt := Packet{APID: 9, PSC: 3, Payload: payload, CRC: tc.crc}
			got, ok := v.Check(pkt, rep)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if !bytes.Equal(got, tc.wantPayload) {
				t.Fatalf("payload = %x, want %x", got, tc.wantPayload)
			}
			records := rep.Records()
			if len(records) != len(tc.wantKinds) {
				t.Fatalf("recorded %d anomalies, want %d", len(records), len(tc.wantKinds))
			}
			for i, k := range tc.wantKinds {
				if records[i].Kind != k {
					t.Fatalf("record %d kind = %s, want %s", i, records[i].Kind, k)
				}
				if records[i].Psc != pkt.PSC {
					t.Fatalf("record %d psc = %d, want %d", i, records[i].Psc, pkt.PSC)
				}
			}
		})
	}
}

func TestValidatorTimeRegression(t *testing.T) {
	rep := anomaly.NewReporter()
	v := NewValidator(false)

	mkpkt := func(psc uint16, coarse uint32, fine uint8) Packet {
		payload := []byte{byte(psc)}
		return Packet{
			APID: 4, PSC: psc, SecHdrFlag: true,
			CoarseTime: coarse, FineTime: fine,
			Payload: payload, CRC: Checksum(payload),
		}
	}

	v.Check(mkpkt(1, 100, 10), rep)
	v.Check(mkpkt(2, 100, 10), rep) // equal time is fine
	v.Check(mkpkt(3, 100, 9), rep)  // fine-time step backwards
	v.Check(mkpkt(4, 99, 200), rep) // coarse step backwards

	records := rep.Records()
	if len(records) != 2 {
		t.Fatalf("recorded %d anomalies, want 2: %+v", len(records), records)
	}
	for i, rec := range records {
		if rec.Kind != anomaly.KindTimeRegression {
			t.Fatalf("record %d kind = %s, want TimeRegression", i, rec.Kind)
		}
	}
	if records[0].Psc != 3 || records[1].Psc != 4 {
		t.Fatalf("regression pscs = %d,%d, want 3,4", records[0].Psc, records[1].Psc)
	}
}

func TestValidatorTracksChannelsIndependently(t *testing.T) {
	rep := anomaly.NewReporter()
	v := NewValidator(false)

	a := Packet{APID: 1, PSC: 1, SecHdrFlag: true, CoarseTime: 500, Payload: []byte{1}, CRC: Checksum([]byte{1})}
	b := Packet{APID: 2, PSC: 1, SecHdrFlag: true, CoarseTime: 100, Payload: []byte{2}, CRC: Checksum([]byte{2})}
	v.Check(a, rep)
	v.Check(b, rep)

	if n := len(rep.Records()); n != 0 {
		t.Fatalf("cross-channel time comparison produced %d anomalies, want 0", n)
	}
}
