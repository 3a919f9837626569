package report

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"example.com/ccsdsgate/internal/anomaly"
	"example.com/ccsdsgate/internal/common"
)

// SaveReportPDF renders the run report into a PDF document with a QR code of
// the report's canonical JSON hash in the footer.
func SaveReportPDF(rep anomaly.Report, out string) error {
	canonical, err := MarshalReport(rep)
	if err != nil {
		return err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Depacketization Report", false)
	pdf.SetAuthor("ccsdsctl", false)
	pdf.SetCreator("ccsdsctl", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	addPDFTitle(pdf, "Depacketization Report")
	addSummarySection(pdf, rep)
	addKindMatrixSection(pdf, rep.Kinds)
	addFrameSection(pdf, rep.Frames)
	addRecordSection(pdf, rep.Records)
	if err := addHashFooter(pdf, common.Sha256OfBytes(canonical)); err != nil {
		return err
	}

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.OutputFileAndClose(out)
}

func addPDFTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)
}

func addSummarySection(pdf *gofpdf.Fpdf, rep anomaly.Report) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Summary")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	items := []struct {
		label string
		value string
	}{
		{label: "Packets", value: strconv.Itoa(rep.Summary.Packets)},
		{label: "Frames", value: strconv.Itoa(rep.Summary.Frames)},
		{label: "Anomalies", value: strconv.Itoa(rep.Summary.Anomalies)},
		{label: "Run", value: runLabel(rep)},
	}
	for _, item := range items {
		pdf.CellFormat(50, 6, item.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, item.value, "", 1, "L", false, 0, "")
	}
	if rep.Fatal != nil {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(0, 6, fmt.Sprintf("FATAL at byte offset %d: %s", rep.Fatal.Offset, rep.Fatal.Message), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func addKindMatrixSection(pdf *gofpdf.Fpdf, kinds map[anomaly.Kind]anomaly.KindStats) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Anomalies by Kind")
	pdf.Ln(9)

	headers := []string{"Kind", "Count", "First PSC", "Last PSC"}
	widths := []float64{70, 30, 40, 40}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	names := make([]string, 0, len(kinds))
	for k := range kinds {
		names = append(names, string(k))
	}
	sort.Strings(names)

	pdf.SetFont("Helvetica", "", 9)
	for _, name := range names {
		st := kinds[anomaly.Kind(name)]
		values := []string{
			name,
			strconv.Itoa(st.Count),
			strconv.Itoa(int(st.FirstPsc)),
			strconv.Itoa(int(st.LastPsc)),
		}
		renderTableRow(pdf, widths, values, 5.0)
	}
	if len(names) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, "No anomalies recorded.", "", "L", false)
	}
	pdf.Ln(4)
}

func addFrameSection(pdf *gofpdf.Fpdf, frames []anomaly.FrameSummary) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Frames")
	pdf.Ln(9)

	if len(frames) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, "No frames produced.", "", "L", false)
		return
	}

	headers := []string{"Channel", "Index", "Bytes", "Status", "Anomalies"}
	widths := []float64{30, 25, 35, 60, 30}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, f := range frames {
		values := []string{
			strconv.Itoa(int(f.Channel)),
			strconv.Itoa(f.Index),
			strconv.Itoa(f.Bytes),
			f.Status,
			strconv.Itoa(f.Anomalies),
		}
		renderTableRow(pdf, widths, values, 5.0)
	}
	pdf.Ln(4)
}

func addRecordSection(pdf *gofpdf.Fpdf, records []anomaly.Record) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Event Log")
	pdf.Ln(9)

	if len(records) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, "No events recorded.", "", "L", false)
		return
	}

	for _, rec := range records {
		pdf.SetFont("Helvetica", "B", 10)
		header := fmt.Sprintf("%d. %s (channel %d, psc %d)", rec.Seq+1, rec.Kind, rec.Channel, rec.Psc)
		pdf.MultiCell(0, 5, header, "", "L", false)
		if msg := strings.TrimSpace(rec.Detail); msg != "" {
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(0, 5, msg, "", "L", false)
		}
		pdf.Ln(1)
	}
}

func addHashFooter(pdf *gofpdf.Fpdf, hash string) error {
	png, err := ReportHashToQR(hash, 128)
	if err != nil {
		return err
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("report-hash-qr", opts, bytes.NewReader(png))
	pdf.Ln(4)
	pdf.ImageOptions("report-hash-qr", pdf.GetX(), pdf.GetY(), 24, 24, false, opts, 0, "")
	pdf.SetXY(pdf.GetX()+28, pdf.GetY()+8)
	pdf.SetFont("Helvetica", "", 8)
	pdf.MultiCell(0, 4, "Report SHA-256: "+hash, "", "L", false)
	return nil
}

func renderTableRow(pdf *gofpdf.Fpdf, widths []float64, values []string, lineHeight float64) {
	xStart := pdf.GetX()
	yStart := pdf.GetY()
	maxLines := 1
	splitCols := make([][]string, len(values))
	for i, val := range values {
		text := strings.TrimSpace(val)
		if text == "" {
			text = "-"
		}
		lines := pdf.SplitText(text, widths[i]-2)
		if len(lines) == 0 {
			lines = []string{""}
		}
		splitCols[i] = lines
		if len(lines) > maxLines {
			maxLines = len(lines)
		}
	}
	rowHeight := float64(maxLines) * lineHeight
	x := xStart
	for i, lines := range splitCols {
		pdf.SetXY(x, yStart)
		cellText := strings.Join(lines, "\n")
		pdf.MultiCell(widths[i], lineHeight, cellText, "1", "L", false)
		x += widths[i]
	}
	pdf.SetXY(xStart, yStart+rowHeight)
}

func runLabel(rep anomaly.Report) string {
	if rep.Fatal != nil {
		return "ABORTED"
	}
	if rep.Summary.Clean {
		return "CLEAN"
	}
	return "DEGRADED"
}
