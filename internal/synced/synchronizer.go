package synced

import (
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/inodb/vibe-phase/internal/encode"
	"github.com/inodb/vibe-phase/internal/genmap"
	"github.com/inodb/vibe-phase/internal/vcf"
)

var (
	// ErrInvalidChromosome is returned when the chromosome inferred from the
	// first accepted record is not an autosome number.
	ErrInvalidChromosome = errors.New("invalid chromosome number")

	// ErrTooFewVariants is returned when fewer than two variants survive
	// filtering.
	ErrTooFewVariants = errors.New("target and ref have too few matching SNPs")
)

// VariantKey identifies an accepted variant.
type VariantKey = genmap.Position

// Options control which records the synchronizer accepts.
type Options struct {
	// AllowRefAltSwap pairs records at the same position whose REF and ALT
	// are exchanged, inverting the reference haplotypes.
	AllowRefAltSwap bool

	// Chrom restricts input to one chromosome. Zero means use the
	// chromosome of the first accepted record.
	Chrom int

	// BpStart and BpEnd bound the region when Chrom is set. Zero leaves a
	// side open.
	BpStart int64
	BpEnd   int64
}

// Region returns the region restriction implied by the options, or nil.
func (o Options) Region() *vcf.Region {
	if o.Chrom == 0 {
		return nil
	}
	return &vcf.Region{Chrom: strconv.Itoa(o.Chrom), Start: o.BpStart, End: o.BpEnd}
}

// Result holds the encoded data of all accepted variants.
type Result struct {
	Keys        []VariantKey
	HapsRef     []bool // [variant][ref sample][haplotype]
	GenosTarget []byte // [variant][target sample], 0/1/2 or encode.Missing
	Swapped     []bool // per variant, reference REF/ALT were exchanged
	Nref        int
	Ntarget     int
	TargetIDs   []string
	Stats       Stats
}

// M returns the number of accepted variants.
func (r *Result) M() int {
	return len(r.Keys)
}

// regioner is implemented by sources that can skip records outside a region.
type regioner interface {
	SetRegion(r *vcf.Region)
}

// Synchronizer filters and encodes the variants shared by a reference and a
// target source.
type Synchronizer struct {
	opts   Options
	logger *zap.Logger
}

// NewSynchronizer creates a synchronizer with the given options.
func NewSynchronizer(opts Options) *Synchronizer {
	return &Synchronizer{
		opts:   opts,
		logger: zap.NewNop(),
	}
}

// SetLogger sets the logger for the run summary.
func (s *Synchronizer) SetLogger(l *zap.Logger) {
	s.logger = l
}

// Run iterates both sources jointly, encodes every accepted variant and
// copies its target record to sink. Only the first chromosome seen is
// processed unless Options.Chrom is set.
func (s *Synchronizer) Run(ref, target vcf.Source, sink vcf.Sink) (*Result, error) {
	if region := s.opts.Region(); region != nil {
		for _, src := range []vcf.Source{ref, target} {
			if r, ok := src.(regioner); ok {
				r.SetRegion(region)
			}
		}
	}

	if err := sink.WriteHeader(target.Header()); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	res := &Result{
		Nref:      len(ref.SampleNames()),
		Ntarget:   len(target.SampleNames()),
		TargetIDs: append([]string(nil), target.SampleNames()...),
	}
	s.logger.Info("samples",
		zap.Int("nref", res.Nref),
		zap.Int("ntarget", res.Ntarget))

	st := &res.Stats
	rng := encode.NewPhaseRNG()
	chrom := s.opts.Chrom
	firstContig := ""

	joiner := NewJoiner(ref, target, s.opts.AllowRefAltSwap)
	for {
		pair, ok, err := joiner.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}

		r, t := pair.Ref, pair.Target
		if r == nil {
			st.TargetOnly++
			continue
		}
		if t == nil {
			st.RefOnly++
			continue
		}

		// filter out multi-allelic and monomorphic markers
		if t.NumAlleles() > 2 {
			st.MultiAllelic++
			continue
		}
		if t.NumAlleles() < 2 {
			st.Monomorphic++
			continue
		}

		refAltSwap := false
		if s.opts.AllowRefAltSwap {
			if r.NumAlleles() != 2 {
				st.RefAltError++
				continue
			}
			switch {
			case sameAlleles(r, t):
			case swappedAlleles(r, t):
				refAltSwap = true
				st.RefAltSwaps++
			default:
				st.RefAltError++
				continue
			}
		}

		if firstContig == "" {
			firstContig = t.Chrom
			if chrom == 0 {
				chrom, err = strconv.Atoi(vcf.NormalizeChrom(t.Chrom))
				if err != nil || chrom < 1 || chrom > 22 {
					return nil, fmt.Errorf("%w: %s", ErrInvalidChromosome, t.Chrom)
				}
			}
		}
		if t.Chrom != firstContig {
			break
		}

		res.Keys = append(res.Keys, VariantKey{Chrom: chrom, BP: t.Pos})
		res.Swapped = append(res.Swapped, refAltSwap)

		refCalls, err := r.Genotypes()
		if err != nil {
			return nil, fmt.Errorf("ref genotypes: %w", err)
		}
		var counts encode.SiteCounts
		res.HapsRef, counts, err = encode.EncodeReference(refCalls, res.Nref, refAltSwap, rng, res.HapsRef)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", r.Chrom, r.Pos, err)
		}
		if counts.Missing > 0 {
			st.WithMissingRef++
		}
		if counts.Unphased > 0 {
			st.WithUnphasedRef++
		}
		st.MissingRefCalls += counts.Missing
		st.UnphasedRefCalls += counts.Unphased

		tgtCalls, err := t.Genotypes()
		if err != nil {
			return nil, fmt.Errorf("target genotypes: %w", err)
		}
		var numMissing int
		res.GenosTarget, numMissing, err = encode.EncodeTarget(tgtCalls, res.Ntarget, res.GenosTarget)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", t.Chrom, t.Pos, err)
		}
		st.MissingTargetCalls += numMissing

		if err := sink.Write(t); err != nil {
			return nil, fmt.Errorf("write target record: %w", err)
		}
	}

	st.Log(s.logger, res.M(), res.Nref, res.Ntarget)

	if res.M() <= 1 {
		return nil, fmt.Errorf("%w (M = %d)", ErrTooFewVariants, res.M())
	}
	return res, nil
}
