// Package report writes what a run produced: the run.yaml manifest, the
// end-of-run summary and the exported.csv inventory written by verify.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	slicerpdf "github.com/porticus-lab/go-slicer-pdf"
	"github.com/porticus-lab/go-slicer-pdf/internal/atomicfile"
	"github.com/porticus-lab/go-slicer-pdf/internal/retry"
)

// ManifestFile is the manifest's name inside a run directory.
const ManifestFile = "run.yaml"

// Manifest describes one run directory.
type Manifest struct {
	RunID     string         `yaml:"run_id"`
	Dashboard string         `yaml:"dashboard"`
	Status    retry.Status   `yaml:"status"`
	Started   time.Time      `yaml:"started"`
	Finished  time.Time      `yaml:"finished"`
	Attempts  []AttemptEntry `yaml:"attempts"`
	Entities  []EntityEntry  `yaml:"entities"`
	Remaining []string       `yaml:"remaining,omitempty"`
}

// AttemptEntry summarizes one attempt.
type AttemptEntry struct {
	Attempt   int           `yaml:"attempt"`
	Entities  int           `yaml:"entities"`
	Succeeded int           `yaml:"succeeded"`
	Failed    int           `yaml:"failed"`
	Duration  time.Duration `yaml:"duration"`
}

// EntityEntry is the last outcome recorded for one entity.
type EntityEntry struct {
	Name       string                `yaml:"name"`
	Status     slicerpdf.Status      `yaml:"status"`
	Attempts   int                   `yaml:"attempts"`
	Kind       slicerpdf.FailureKind `yaml:"kind,omitempty"`
	Artifact   string                `yaml:"artifact,omitempty"`
	Diagnostic string                `yaml:"diagnostic,omitempty"`
}

// NewManifest builds the manifest of a finished run. Artifact paths are
// made relative to dir when they lie inside it.
func NewManifest(rep retry.Report, dashboard, dir string, started time.Time) Manifest {
	m := Manifest{
		RunID:     rep.RunID,
		Dashboard: dashboard,
		Status:    rep.Status,
		Started:   started.UTC(),
		Finished:  started.Add(rep.Duration).UTC(),
	}
	index := map[string]int{}
	for _, res := range rep.Attempts {
		m.Attempts = append(m.Attempts, AttemptEntry{
			Attempt:   res.Attempt,
			Entities:  len(res.Outcomes),
			Succeeded: len(res.Succeeded),
			Failed:    len(res.Failed),
			Duration:  res.Duration,
		})
		for _, o := range res.Outcomes {
			i, ok := index[o.Entity.Name]
			if !ok {
				i = len(m.Entities)
				index[o.Entity.Name] = i
				m.Entities = append(m.Entities, EntityEntry{Name: o.Entity.Name})
			}
			e := &m.Entities[i]
			e.Attempts++
			e.Status, e.Kind, e.Diagnostic = o.Status, o.Kind, o.Diagnostic
			e.Artifact = relative(dir, o.ArtifactPath)
		}
	}
	for _, e := range rep.Remaining {
		m.Remaining = append(m.Remaining, e.Name)
	}
	return m
}

func relative(dir, path string) string {
	if path == "" || dir == "" {
		return path
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil || !filepath.IsLocal(rel) {
		return path
	}
	return filepath.ToSlash(rel)
}

// Exported returns the entities whose last outcome is a success.
func (m Manifest) Exported() []EntityEntry {
	var out []EntityEntry
	for _, e := range m.Entities {
		if e.Status == slicerpdf.StatusSuccess {
			out = append(out, e)
		}
	}
	return out
}

// WriteManifest writes m to dir/run.yaml, replacing any earlier version.
func WriteManifest(dir string, m Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	return atomicfile.WriteFile(filepath.Join(dir, ManifestFile), data, 0o644)
}

// ReadManifest reads dir/run.yaml.
func ReadManifest(dir string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return m, err
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("decoding %s: %w", ManifestFile, err)
	}
	return m, nil
}
