package main

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/inodb/vibe-phase/internal/synced"
)

// runSummary is the YAML report of one sync run.
type runSummary struct {
	Version   string       `yaml:"version"`
	RunID     string       `yaml:"run_id,omitempty"`
	Ref       string       `yaml:"ref"`
	Target    string       `yaml:"target"`
	Map       string       `yaml:"genetic_map"`
	Output    string       `yaml:"output"`
	Chrom     int          `yaml:"chrom"`
	M         int          `yaml:"variants"`
	Nref      int          `yaml:"ref_samples"`
	Ntarget   int          `yaml:"target_samples"`
	Mseg64    int          `yaml:"segments"`
	CMmax     float64      `yaml:"cm_max"`
	PhysRange int64        `yaml:"physical_span_bp"`
	CMRange   float64      `yaml:"genetic_span_cm"`
	SNPsPerCM float64      `yaml:"snps_per_cm"`
	Stats     synced.Stats `yaml:"counts"`
}

func newSummary(cfg synced.Config, data *synced.Data) *runSummary {
	s := &runSummary{
		Version:   version,
		Ref:       cfg.RefPath,
		Target:    cfg.TargetPath,
		Map:       cfg.MapPath,
		Output:    cfg.OutputPath,
		M:         data.M(),
		Nref:      data.Nref(),
		Ntarget:   data.Ntarget(),
		Mseg64:    data.Mseg64(),
		CMmax:     cfg.CMmax,
		PhysRange: data.PhysRange,
		CMRange:   data.CMRange,
		Stats:     data.Stats,
	}
	if len(data.Keys) > 0 {
		s.Chrom = data.Keys[0].Chrom
	}
	if data.CMRange > 0 {
		s.SNPsPerCM = float64(data.M()) / data.CMRange
	}
	return s
}

// Print writes the summary as YAML.
func (s *runSummary) Print(w io.Writer) error {
	out, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}
	_, err = w.Write(out)
	return err
}

// WriteFile writes the summary as YAML to path.
func (s *runSummary) WriteFile(path string) error {
	out, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	return nil
}
