package report

import (
	"encoding/json"
	"os"

	"example.com/ccsdsgate/internal/anomaly"
)

// SaveReportJSON writes the finalized run report as indented JSON.
func SaveReportJSON(rep anomaly.Report, out string) error {
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0644)
}

// LoadReportJSON reads a report previously written by SaveReportJSON.
func LoadReportJSON(path string) (anomaly.Report, error) {
	var rep anomaly.Report
	b, err := os.ReadFile(path)
	if err != nil {
		return rep, err
	}
	if err := json.Unmarshal(b, &rep); err != nil {
		return rep, err
	}
	return rep, nil
}

// MarshalReport returns the canonical JSON encoding of a report, used both
// for saving and for hashing into the PDF footer QR code.
func MarshalReport(rep anomaly.Report) ([]byte, error) {
	return json.MarshalIndent(rep, "", "  ")
}
