// Package segment groups variants into blocks of at most 64 and packs
// per-individual genotype data for each block into 64-bit masks.
package segment

import (
	"fmt"

	"go.uber.org/zap"
)

const (
	// SegmentMax is the most variants a segment holds, one per mask bit.
	SegmentMax = 64

	// SegmentMin is the fewest variants a segment holds before the genetic
	// span limit may close it. Only the last segment may be shorter.
	SegmentMin = 16
)

// genoMissing is the target genotype code for a missing call.
const genoMissing = 9

// Masks holds the bit planes of one individual over one segment. Bit j
// describes the j-th variant of the segment.
//
// Reference individuals store haplotype 0 in Is0 and haplotype 1 in Is2.
// Target individuals set Is0 for genotype 0, Is2 for genotype 2 and Is9 for
// missing; a heterozygous call leaves all three bits clear. Bits past the
// segment length have only Is9 set.
type Masks struct {
	Is0 uint64
	Is2 uint64
	Is9 uint64
}

// Partition splits variants with the given genetic coordinates into
// segments of consecutive variant indices. A segment closes when it reaches
// SegmentMax variants, or when it has at least SegmentMin variants and the
// next variant lies more than cMmax past the segment's first coordinate.
func Partition(cMs []float64, cMmax float64) [][]int {
	var segs [][]int
	var cur []int
	for m, cM := range cMs {
		if len(cur) == SegmentMax || (len(cur) >= SegmentMin && cM > cMs[cur[0]]+cMmax) {
			segs = append(segs, cur)
			cur = nil
		}
		cur = append(cur, m)
	}
	if len(cur) > 0 {
		segs = append(segs, cur)
	}
	return segs
}

// Packed is the bit-packed genotype data of all individuals. Individuals
// 0..Nref-1 are reference samples, Nref..N-1 target samples.
type Packed struct {
	Nref    int
	Ntarget int
	Mseg64  int
	M       int

	bits   []Masks // Mseg64 * N, segment-major
	segs   [][]int
	segCMs [][]float64
}

// N returns the total number of individuals.
func (p *Packed) N() int {
	return p.Nref + p.Ntarget
}

// At returns the masks of individual n in segment seg.
func (p *Packed) At(seg, n int) Masks {
	return p.bits[seg*p.N()+n]
}

// Bits returns the flat mask array, indexed [segment*N + individual].
func (p *Packed) Bits() []Masks {
	return p.bits
}

// Segments returns the variant indices of each segment.
func (p *Packed) Segments() [][]int {
	return p.segs
}

// SegmentCMs returns the genetic coordinates of each segment's variants.
func (p *Packed) SegmentCMs() [][]float64 {
	return p.segCMs
}

// Pack sets the masks of every (segment, individual) pair. hapsRef holds two
// booleans per reference sample per variant and genosTarget one code per
// target sample per variant, both variant-major.
func Pack(hapsRef []bool, genosTarget []byte, nref, ntarget int, segs [][]int) (*Packed, error) {
	return PackParallel(hapsRef, genosTarget, nref, ntarget, segs, 1)
}

func newPacked(hapsRef []bool, genosTarget []byte, nref, ntarget int, segs [][]int) (*Packed, error) {
	m := 0
	for _, seg := range segs {
		if len(seg) == 0 || len(seg) > SegmentMax {
			return nil, fmt.Errorf("segment of %d variants", len(seg))
		}
		m += len(seg)
	}
	if len(hapsRef) != 2*nref*m {
		return nil, fmt.Errorf("reference haplotypes: have %d, want %d", len(hapsRef), 2*nref*m)
	}
	if len(genosTarget) != ntarget*m {
		return nil, fmt.Errorf("target genotypes: have %d, want %d", len(genosTarget), ntarget*m)
	}

	return &Packed{
		Nref:    nref,
		Ntarget: ntarget,
		Mseg64:  len(segs),
		M:       m,
		bits:    make([]Masks, len(segs)*(nref+ntarget)),
		segs:    segs,
	}, nil
}

// packSegment fills the row of segment s. Rows of distinct segments do not
// overlap.
func (p *Packed) packSegment(s int, hapsRef []bool, genosTarget []byte) {
	nref, ntarget := p.Nref, p.Ntarget
	n := nref + ntarget
	seg := p.segs[s]
	row := p.bits[s*n : (s+1)*n]
	for j, v := range seg {
		bit := uint64(1) << uint(j)
		for i := 0; i < nref; i++ {
			if hapsRef[v*2*nref+2*i] {
				row[i].Is0 |= bit
			}
			if hapsRef[v*2*nref+2*i+1] {
				row[i].Is2 |= bit
			}
		}
		for i := 0; i < ntarget; i++ {
			switch genosTarget[v*ntarget+i] {
			case 0:
				row[nref+i].Is0 |= bit
			case 2:
				row[nref+i].Is2 |= bit
			case genoMissing:
				row[nref+i].Is9 |= bit
			}
		}
	}
	if pad := padMask(len(seg)); pad != 0 {
		for i := range row {
			row[i].Is9 |= pad
		}
	}
}

// padMask returns the bits at positions length..63.
func padMask(length int) uint64 {
	if length >= SegmentMax {
		return 0
	}
	return ^uint64(0) << uint(length)
}

// Build partitions the variants by cMs and packs them with the given number
// of workers, logging the segmentation summary.
func Build(hapsRef []bool, genosTarget []byte, nref, ntarget int, cMs []float64, cMmax float64, workers int, logger *zap.Logger) (*Packed, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	segs := Partition(cMs, cMmax)
	p, err := PackParallel(hapsRef, genosTarget, nref, ntarget, segs, workers)
	if err != nil {
		return nil, err
	}

	p.segCMs = make([][]float64, len(segs))
	for s, seg := range segs {
		p.segCMs[s] = make([]float64, len(seg))
		for j, v := range seg {
			p.segCMs[s][j] = cMs[v]
		}
	}

	mean := 0
	if p.Mseg64 > 0 {
		mean = p.M / p.Mseg64
	}
	logger.Info("built genotype bit segments",
		zap.Int("segments", p.Mseg64),
		zap.Float64("cMmax", cMmax),
		zap.Int("mean_snps_per_segment", mean))
	return p, nil
}
