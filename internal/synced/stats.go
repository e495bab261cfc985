package synced

import "go.uber.org/zap"

// Stats counts the records skipped by each filter and the missing or
// unphased calls among accepted records. The counts are informational.
type Stats struct {
	TargetOnly   int `yaml:"target_only"`
	RefOnly      int `yaml:"ref_only"`
	MultiAllelic int `yaml:"multi_allelic"`
	Monomorphic  int `yaml:"monomorphic"`
	RefAltError  int `yaml:"ref_alt_error"`
	RefAltSwaps  int `yaml:"ref_alt_swaps"`

	WithMissingRef     int `yaml:"sites_with_missing_ref"`
	WithUnphasedRef    int `yaml:"sites_with_unphased_ref"`
	MissingRefCalls    int `yaml:"missing_ref_calls"`
	UnphasedRefCalls   int `yaml:"unphased_ref_calls"`
	MissingTargetCalls int `yaml:"missing_target_calls"`
}

func fraction(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// Log writes the filtering summary for m accepted variants.
func (st *Stats) Log(logger *zap.Logger, m, nref, ntarget int) {
	logger.Info("SNPs to analyze: SNPs in both target and reference", zap.Int("M", m))
	if st.RefAltSwaps > 0 {
		logger.Warn("REF/ALT were swapped in some of these SNPs", zap.Int("swapped", st.RefAltSwaps))
	}

	logger.Info("SNPs ignored",
		zap.Int("target_only", st.TargetOnly),
		zap.Int("ref_only", st.RefOnly),
		zap.Int("multi_allelic", st.MultiAllelic),
		zap.Int("monomorphic", st.Monomorphic),
		zap.Int("ref_alt_error", st.RefAltError))
	if st.TargetOnly > m/10 {
		logger.Warn("many target SNPs missing from reference; check REF/ALT agreement between target and ref",
			zap.Int("target_only", st.TargetOnly))
	}

	if st.WithMissingRef > 0 {
		logger.Warn("reference contains missing genotypes (set to reference allele)",
			zap.Float64("site_fraction", fraction(st.WithMissingRef, m)),
			zap.Float64("genotype_fraction", fraction(st.MissingRefCalls, m*nref)))
	}
	if st.WithUnphasedRef > 0 {
		logger.Warn("reference contains unphased genotypes (set to random phase)",
			zap.Float64("site_fraction", fraction(st.WithUnphasedRef, m)),
			zap.Float64("genotype_fraction", fraction(st.UnphasedRefCalls, m*nref)))
	}
	logger.Info("missing rate in target genotypes",
		zap.Float64("fraction", fraction(st.MissingTargetCalls, m*ntarget)))
}
