package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/tethersim/internal/config"
	"github.com/san-kum/tethersim/internal/experiment"
	"github.com/san-kum/tethersim/internal/verlet"
)

const (
	metadataFile = "metadata.json"
	traceFile    = "trace.csv"
	snapshotFile = "snapshot.json"
)

var traceHeader = []string{"step", "time", "x", "y", "z", "strain"}

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID         string             `json:"id"`
	Scene      string             `json:"scene"`
	Timestamp  time.Time          `json:"timestamp"`
	Dt         float64            `json:"dt"`
	Steps      int                `json:"steps"`
	Iterations int                `json:"iterations"`
	Isolation  string             `json:"isolation"`
	Points     int                `json:"points"`
	Links      int                `json:"links"`
	Torn       int                `json:"torn"`
	Degenerate int                `json:"degenerate"`
	ElapsedMS  float64            `json:"elapsed_ms"`
	Metrics    map[string]float64 `json:"metrics"`
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// Save writes a run directory with metadata, trace and final snapshot and
// returns the run id.
func (s *Store) Save(cfg *config.Config, result *experiment.Result) (string, error) {
	now := time.Now()
	runID := fmt.Sprintf("%s_%d", cfg.Scene, now.UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:         runID,
		Scene:      cfg.Scene,
		Timestamp:  now,
		Dt:         cfg.Dt,
		Steps:      result.StepsTaken,
		Iterations: cfg.Solver.Iterations,
		Isolation:  cfg.Solver.Isolation,
		Points:     len(result.Final.Points),
		Links:      len(result.Final.Links),
		Torn:       result.Torn,
		Degenerate: result.Degenerate,
		ElapsedMS:  float64(result.Elapsed.Microseconds()) / 1000,
		Metrics:    result.Metrics,
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, snapshotFile), result.Final); err != nil {
		return "", err
	}
	if err := writeTrace(filepath.Join(runDir, traceFile), result.Samples); err != nil {
		return "", err
	}
	return runID, nil
}

func writeTrace(path string, samples []experiment.Sample) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(traceHeader); err != nil {
		return err
	}

	format := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	for _, sm := range samples {
		row := []string{
			strconv.Itoa(sm.Step),
			format(sm.Time),
			format(sm.Position.X),
			format(sm.Position.Y),
			format(sm.Position.Z),
			format(sm.Strain),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// List returns every readable run, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		var meta RunMetadata
		if err := readJSON(filepath.Join(s.baseDir, entry.Name(), metadataFile), &meta); err != nil {
			continue
		}
		runs = append(runs, meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	var meta RunMetadata
	if err := readJSON(filepath.Join(s.baseDir, runID, metadataFile), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Store) LoadSnapshot(runID string) (*verlet.Snapshot, error) {
	var snap verlet.Snapshot
	if err := readJSON(filepath.Join(s.baseDir, runID, snapshotFile), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *Store) LoadTrace(runID string) ([]experiment.Sample, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, traceFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []experiment.Sample{}, nil
	}

	samples := make([]experiment.Sample, 0, len(records)-1)
	for _, record := range records[1:] {
		if len(record) != len(traceHeader) {
			continue
		}
		step, err := strconv.Atoi(record[0])
		if err != nil {
			continue
		}
		vals := make([]float64, len(record)-1)
		ok := true
		for j := range vals {
			if vals[j], err = strconv.ParseFloat(record[j+1], 64); err != nil {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		sm := experiment.Sample{Step: step, Time: vals[0], Strain: vals[4]}
		sm.Position.X, sm.Position.Y, sm.Position.Z = vals[1], vals[2], vals[3]
		samples = append(samples, sm)
	}
	return samples, nil
}
