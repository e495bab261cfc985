// Package encode turns per-sample genotype calls into the compact forms used
// for phasing: a haplotype bit pair per reference sample and a 0/1/2/9
// genotype code per target sample.
package encode

import (
	"errors"
	"fmt"

	"github.com/inodb/vibe-phase/internal/vcf"
)

// Missing is the genotype code for a target call with a missing allele.
const Missing = 9

// Ploidy is the only ploidy the encoders accept.
const Ploidy = 2

var (
	// ErrHaploid is returned when a sample carries fewer alleles than the
	// record's ploidy.
	ErrHaploid = errors.New("genotypes contain haploid sample")

	// ErrMultiAllelicTarget is returned for a target allele index above 1.
	// Multi-allelic target sites are filtered before encoding.
	ErrMultiAllelicTarget = errors.New("multi-allelic site found in target; should have been filtered")
)

// SiteCounts holds per-site tallies produced while encoding.
type SiteCounts struct {
	Missing  int // samples with at least one missing allele
	Unphased int // samples whose second allele was not phased
}

// checkPloidy mirrors the flat genotype vector check: the widest call across
// samples sets the record ploidy, which must be exactly two.
func checkPloidy(calls []vcf.GenotypeCall, nsmpl int) error {
	ploidy := 0
	for _, c := range calls {
		if c.Ploidy > ploidy {
			ploidy = c.Ploidy
		}
	}
	if len(calls) != nsmpl || ploidy != Ploidy {
		return &vcf.PloidyError{Ploidy: ploidy, Samples: nsmpl}
	}
	return nil
}

// EncodeReference appends two haplotype booleans per sample to haps, in
// haplotype-0, haplotype-1 order. Missing calls are set to the REF allele on
// both haplotypes. Unphased heterozygous calls get a phase drawn from rng.
// When refAltSwap is set both booleans are inverted.
func EncodeReference(calls []vcf.GenotypeCall, nsmpl int, refAltSwap bool, rng *PhaseRNG, haps []bool) ([]bool, SiteCounts, error) {
	var counts SiteCounts
	if err := checkPloidy(calls, nsmpl); err != nil {
		return haps, counts, fmt.Errorf("ref: %w", err)
	}

	for _, call := range calls {
		var h [Ploidy]bool
		missing, unphased := false, false
		for j, a := range call.Alleles {
			if a.VectorEnd {
				return haps, counts, fmt.Errorf("ref: %w", ErrHaploid)
			}
			if a.Missing {
				missing = true
				continue
			}
			h[j] = a.Index >= 1
			if j == 1 && !a.Phased {
				unphased = true
			}
		}

		if missing {
			h[0], h[1] = false, false
			counts.Missing++
		} else if unphased {
			if h[0] != h[1] && rng.Next() {
				h[0], h[1] = h[1], h[0]
			}
			counts.Unphased++
		}
		if refAltSwap {
			h[0], h[1] = !h[0], !h[1]
		}
		haps = append(haps, h[0], h[1])
	}
	return haps, counts, nil
}

// EncodeTarget appends one genotype code per sample to codes: the sum of the
// two allele indices, or Missing when either allele is missing. It returns
// the number of missing calls.
func EncodeTarget(calls []vcf.GenotypeCall, nsmpl int, codes []byte) ([]byte, int, error) {
	if err := checkPloidy(calls, nsmpl); err != nil {
		return codes, 0, fmt.Errorf("target: %w", err)
	}

	numMissing := 0
	for _, call := range calls {
		var g byte
		missing := false
		for _, a := range call.Alleles {
			if a.VectorEnd {
				return codes, numMissing, fmt.Errorf("target: %w", ErrHaploid)
			}
			if a.Missing {
				missing = true
				continue
			}
			if a.Index > 1 {
				return codes, numMissing, ErrMultiAllelicTarget
			}
			g += byte(a.Index)
		}
		if missing {
			g = Missing
			numMissing++
		}
		codes = append(codes, g)
	}
	return codes, numMissing, nil
}
