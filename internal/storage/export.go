package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/tethersim/internal/experiment"
	"github.com/san-kum/tethersim/internal/verlet"
)

// ExportData bundles everything stored for one run.
type ExportData struct {
	Run      RunMetadata         `json:"run"`
	Trace    []experiment.Sample `json:"trace"`
	Snapshot *verlet.Snapshot    `json:"snapshot"`
}

func (s *Store) Export(runID string) (*ExportData, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}
	trace, err := s.LoadTrace(runID)
	if err != nil {
		return nil, err
	}
	snap, err := s.LoadSnapshot(runID)
	if err != nil {
		return nil, err
	}
	return &ExportData{Run: *meta, Trace: trace, Snapshot: snap}, nil
}

func WriteJSON(w io.Writer, data *ExportData) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func ExportJSON(path string, data *ExportData) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteJSON(f, data)
}
