package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"example.com/ccsdsgate/internal/anomaly"
)

func sampleReport() anomaly.Report {
	r := anomaly.NewReporter()
	r.CountPacket()
	r.CountPacket()
	r.CountPacket()
	r.Append(anomaly.KindGap, 1675, 10, "1 packets missing, psc 10..10")
	r.Append(anomaly.KindInvalidCrc, 1675, 12, "trailer 0x00000000 does not match computed 0xDEADBEEF")
	r.AddFrame(anomaly.FrameSummary{Channel: 1675, Index: 0, Bytes: 48, Status: "gap", Anomalies: 1})
	return r.Finalize()
}

func TestSaveAndLoadReportJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run_report.json")

	want := sampleReport()
	if err := SaveReportJSON(want, path); err != nil {
		t.Fatalf("SaveReportJSON: %v", err)
	}
	got, err := LoadReportJSON(path)
	if err != nil {
		t.Fatalf("LoadReportJSON: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("report did not survive the roundtrip (-want +got):\n%s", diff)
	}
}

func TestMarshalReportIsStable(t *testing.T) {
	rep := sampleReport()
	a, err := MarshalReport(rep)
	if err != nil {
		t.Fatalf("MarshalReport: %v", err)
	}
	b, err := MarshalReport(rep)
	if err != nil {
		t.Fatalf("MarshalReport: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("canonical encoding differs between calls; footer hash would be unstable")
	}
}

func TestSaveReportPDF(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run_report.pdf")

	if err := SaveReportPDF(sampleReport(), path); err != nil {
		t.Fatalf("SaveReportPDF: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pdf: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Fatalf("output does not start with a PDF header: %q", data[:min(8, len(data))])
	}
}

func TestSaveReportPDFEmptyRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty_report.pdf")

	rep := anomaly.NewReporter().Finalize()
	if err := SaveReportPDF(rep, path); err != nil {
		t.Fatalf("SaveReportPDF on empty run: %v", err)
	}
	if fi, err := os.Stat(path); err != nil || fi.Size() == 0 {
		t.Fatalf("empty-run pdf missing or zero bytes (err=%v)", err)
	}
}

func TestReportHashToQR(t *testing.T) {
	png, err := ReportHashToQR("ab54d286f7cc4851", 128)
	if err != nil {
		t.Fatalf("ReportHashToQR: %v", err)
	}
	if !bytes.HasPrefix(png, []byte{0x89, 'P', 'N', 'G'}) {
		t.Fatal("encoded QR is not a PNG")
	}
	if _, err := ReportHashToQR("  \t ", 128); err == nil {
		t.Fatal("expected error for blank hash")
	}
}

func TestSanitizeHash(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"ab54d286", "AB54D286"},
		{"  ab-54:d2 86  ", "AB54D286"},
		{"xyz", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := sanitizeHash(tc.in); got != tc.want {
			t.Errorf("sanitizeHash(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRunLabel(t *testing.T) {
	clean := anomaly.NewReporter().Finalize()
	if got := runLabel(clean); got != "CLEAN" {
		t.Fatalf("clean run label = %q", got)
	}

	degraded := sampleReport()
	if got := runLabel(degraded); got != "DEGRADED" {
		t.Fatalf("degraded run label = %q", got)
	}

	r := anomaly.NewReporter()
	r.SetFatal(64, "torn header")
	if got := runLabel(r.Finalize()); got != "ABORTED" {
		t.Fatalf("aborted run label = %q", got)
	}
}
