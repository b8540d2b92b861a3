// Package study reads the manifest describing one matching study: which
// snapshots or stored populations hold the treatment and control records and
// where results go.
package study

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"sigs.k8s.io/yaml"

	"github.com/roivaz/prcohort/internal/matching"
)

// ErrInvalid wraps every manifest validation failure.
var ErrInvalid = errors.New("invalid study manifest")

type Outputs struct {
	Pairs     string `json:"pairs"`
	Controls  string `json:"controls"`
	Matched   string `json:"matched,omitempty"`
	Unmatched string `json:"unmatched,omitempty"`
}

type Manifest struct {
	Name      string `json:"name"`
	Treatment string `json:"treatment,omitempty"`
	Control   string `json:"control,omitempty"`
	// TreatmentPopulation and ControlPopulation name populations cached in
	// Postgres, used instead of the snapshot files.
	TreatmentPopulation string    `json:"treatmentPopulation,omitempty"`
	ControlPopulation   string    `json:"controlPopulation,omitempty"`
	Weights             []float64 `json:"weights,omitempty"`
	Outputs             Outputs   `json:"outputs"`
}

// Load reads and validates a manifest. Relative paths are resolved against the
// manifest's directory.
func Load(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := yaml.UnmarshalStrict(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
	}
	m.resolve(filepath.Dir(path))
	if err := m.Validate(); err != nil {
		return Manifest{}, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func (m *Manifest) resolve(dir string) {
	for _, p := range []*string{&m.Treatment, &m.Control, &m.Outputs.Pairs, &m.Outputs.Controls, &m.Outputs.Matched, &m.Outputs.Unmatched} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}

func (m Manifest) Validate() error {
	switch {
	case m.Treatment == "" && m.TreatmentPopulation == "":
		return fmt.Errorf("%w: treatment snapshot or population is required", ErrInvalid)
	case m.Treatment != "" && m.TreatmentPopulation != "":
		return fmt.Errorf("%w: treatment snapshot and population are exclusive", ErrInvalid)
	case m.Control == "" && m.ControlPopulation == "":
		return fmt.Errorf("%w: control snapshot or population is required", ErrInvalid)
	case m.Control != "" && m.ControlPopulation != "":
		return fmt.Errorf("%w: control snapshot and population are exclusive", ErrInvalid)
	case m.Outputs.Pairs == "":
		return fmt.Errorf("%w: outputs.pairs is required", ErrInvalid)
	case m.Outputs.Controls == "":
		return fmt.Errorf("%w: outputs.controls is required", ErrInvalid)
	}
	if len(m.Weights) > 0 {
		if _, err := matching.WeightsFromSlice(m.Weights); err != nil {
			return fmt.Errorf("%w: weights: %v", ErrInvalid, err)
		}
	}
	return nil
}

// MatchWeights returns the manifest weights, or the defaults when none are set.
func (m Manifest) MatchWeights() (matching.Weights, error) {
	if len(m.Weights) == 0 {
		return matching.DefaultWeights, nil
	}
	return matching.WeightsFromSlice(m.Weights)
}

// RunID names the matching run when results are stored.
func (m Manifest) RunID() string {
	if m.Name != "" {
		return m.Name
	}
	return filepath.Base(m.Outputs.Pairs)
}
