package manifest

import (
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"example.com/ccsdsgate/internal/common"
)

type Item struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Sha256 string `json:"sha256"`
	Type   string `json:"type"`
}

// Manifest inventories the artifacts of one depacketization job so the
// downstream archive can verify nothing was dropped or altered in transit.
type Manifest struct {
	JobID     string    `json:"jobId"`
	CreatedAt time.Time `json:"createdAt"`
	ShaAlgo   string    `json:"shaAlgo"`
	Items     []Item    `json:"items"`
}

func Build(paths []string) (Manifest, error) {
	m := Manifest{
		JobID:     uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		ShaAlgo:   "sha256",
	}
	for _, p := range paths {
		hex, sz, err := common.Sha256OfFile(p)
		if err != nil {
			return m, err
		}
		typ := "other"
		switch {
		case hasExt(p, ".frame"):
			typ = "frame"
		case hasExt(p, ".bin", ".ccsds"):
			typ = "stream"
		case hasExt(p, ".json"):
			typ = "report"
		case hasExt(p, ".pdf"):
			typ = "pdf"
		case hasExt(p, ".log"):
			typ = "log"
		}
		m.Items = append(m.Items, Item{Path: p, Size: sz, Sha256: hex, Type: typ})
	}
	return m, nil
}

func hasExt(path string, exts ...string) bool {
	for _, e := range exts {
		if strings.HasSuffix(path, e) {
			return true
		}
	}
	return false
}

func Save(m Manifest, out string) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0644)
}
