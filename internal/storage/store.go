package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/san-kum/episim/internal/sim"
)

const (
	metadataFile = "metadata.json"
	resultsFile  = "results.csv"
)

// Store keeps one directory per run holding metadata.json and results.csv.
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
	ID         string                        `json:"id"`
	Name       string                        `json:"name"`
	Timestamp  time.Time                     `json:"timestamp"`
	Integrator string                        `json:"integrator"`
	Parameters sim.Parameters                `json:"parameters"`
	Species    []sim.Species                 `json:"species"`
	Metrics    map[string]map[string]float64 `json:"metrics,omitempty"`
	Stats      map[string]sim.SolverStats    `json:"stats,omitempty"`
}

var unsafeID = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Save writes a run and returns its ID. The ID, timestamp, metrics and
// stats are filled in from the result.
func (s *Store) Save(meta RunMetadata, res *sim.Result) (string, error) {
	now := time.Now()
	name := strings.Trim(unsafeID.ReplaceAllString(meta.Name, "-"), "-")
	if name == "" {
		name = "run"
	}
	meta.ID = fmt.Sprintf("%s_%d", name, now.UnixNano())
	meta.Timestamp = now
	meta.Metrics = res.Metrics
	meta.Stats = res.Stats

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(runDir, metadataFile), data, 0644); err != nil {
		return "", err
	}

	if err := ExportCSV(filepath.Join(runDir, resultsFile), res.Table); err != nil {
		return "", err
	}
	return meta.ID, nil
}

// List returns every readable run, oldest first. Directories without valid
// metadata are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

func (s *Store) LoadTable(runID string) (*sim.ResultTable, error) {
	return LoadCSV(s.ResultsPath(runID))
}

// LoadResult reads a run back into the per-species view, with the stored
// metrics and stats attached.
func (s *Store) LoadResult(runID string) (*RunMetadata, *sim.Result, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	table, err := s.LoadTable(runID)
	if err != nil {
		return nil, nil, err
	}
	res := sim.ResultFromTable(table)
	res.Metrics = meta.Metrics
	res.Stats = meta.Stats
	return meta, res, nil
}

// Latest returns the most recent run, or an error when the store is empty.
func (s *Store) Latest() (*RunMetadata, error) {
	runs, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("no runs in %s", s.baseDir)
	}
	return &runs[len(runs)-1], nil
}

func (s *Store) ResultsPath(runID string) string {
	return filepath.Join(s.baseDir, runID, resultsFile)
}
