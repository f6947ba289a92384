// Package snapshot mirrors accumulated run telemetry into a local JSON
// file, rewritten wholesale on every update.
package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"

	"codeberg.org/veldt/trainwatch/internal/errors"
)

const (
	defaultDirPerm  = 0o755
	defaultFilePerm = 0o644
)

const (
	ErrInvalidPath = errors.ErrorCode("snapshot_invalid_path")
	ErrWriteFailed = errors.ErrorCode("snapshot_write_failed")
)

// EnergyMetrics is one epoch's derived impact record.
type EnergyMetrics struct {
	CarbonKg                float64 `json:"carbon_kg"`
	TotalPower              float64 `json:"total_power"`
	PowerUsageEffectiveness float64 `json:"power_usage_effectiveness"`
	ExpLenHrs               float64 `json:"exp_len_hrs"`
}

// Schema is the full document written to disk. An empty schema
// marshals to {"model_info":{},"energy_metrics":[],"global_step_info":[]}.
type Schema struct {
	ModelInfo      map[string]int64 `json:"model_info"`
	EnergyMetrics  []EnergyMetrics  `json:"energy_metrics"`
	GlobalStepInfo []int64          `json:"global_step_info"`
}

func newSchema() *Schema {
	return &Schema{
		ModelInfo:      map[string]int64{},
		EnergyMetrics:  []EnergyMetrics{},
		GlobalStepInfo: []int64{},
	}
}

// Store holds the in-memory schema and its target path. It performs no
// locking: the recorder mutates it from a single sequential call
// stream.
type Store struct {
	path   string
	schema *Schema
}

// New initializes the empty schema and immediately performs the first
// full write, so the file exists and parses from construction on.
func New(path string) (*Store, error) {
	errFactory := errors.New()

	if path == "" {
		return nil, errFactory.New(ErrInvalidPath)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
			return nil, errFactory.Wrap(ErrWriteFailed, err)
		}
	}

	s := &Store{
		path:   path,
		schema: newSchema(),
	}

	if err := s.Write(); err != nil {
		return nil, err
	}

	return s, nil
}

// SetModelInfo records the parameter counts captured at train begin.
func (s *Store) SetModelInfo(numParameters, trainableParameters int64) {
	s.schema.ModelInfo = map[string]int64{
		"num_parameters":       numParameters,
		"trainable_parameters": trainableParameters,
	}
}

// AppendEnergy adds one epoch record to energy_metrics.
func (s *Store) AppendEnergy(m EnergyMetrics) {
	s.schema.EnergyMetrics = append(s.schema.EnergyMetrics, m)
}

// AppendStep adds one step counter to global_step_info.
func (s *Store) AppendStep(step int64) {
	s.schema.GlobalStepInfo = append(s.schema.GlobalStepInfo, step)
}

// Write rewrites the whole document. Writing the same in-memory state
// twice produces byte-identical file contents.
func (s *Store) Write() error {
	errFactory := errors.New()

	data, err := json.Marshal(s.schema)
	if err != nil {
		return errFactory.Wrap(ErrWriteFailed, err)
	}

	if err := os.WriteFile(s.path, data, defaultFilePerm); err != nil {
		return errFactory.Wrap(ErrWriteFailed, err)
	}

	return nil
}

// Schema exposes the current in-memory document.
func (s *Store) Schema() *Schema {
	return s.schema
}

// Path returns the target file path.
func (s *Store) Path() string {
	return s.path
}
