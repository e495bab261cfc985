package vcf

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxPloidy is the largest number of alleles a GT value may carry.
const MaxPloidy = 2

// Allele is one allele of a genotype call.
type Allele struct {
	Index     int  // allele index into Variant.Alleles
	Missing   bool // "." in the GT value
	Phased    bool // separator preceding this allele was '|'
	VectorEnd bool // sample has fewer alleles than the record's ploidy
}

// GenotypeCall is the parsed GT value of one sample.
type GenotypeCall struct {
	Alleles [MaxPloidy]Allele
	Ploidy  int // number of alleles present in the GT value
}

// IsMissing reports whether any present allele is missing.
func (g GenotypeCall) IsMissing() bool {
	for i := 0; i < g.Ploidy; i++ {
		if g.Alleles[i].Missing {
			return true
		}
	}
	return false
}

// String formats the call the way it appears in a VCF GT column.
func (g GenotypeCall) String() string {
	var b strings.Builder
	for i := 0; i < g.Ploidy; i++ {
		a := g.Alleles[i]
		if i > 0 {
			if a.Phased {
				b.WriteByte('|')
			} else {
				b.WriteByte('/')
			}
		}
		if a.Missing {
			b.WriteByte('.')
		} else {
			b.WriteString(strconv.Itoa(a.Index))
		}
	}
	return b.String()
}

// PloidyError reports a genotype with more alleles than supported, or a
// record whose samples are not diploid.
type PloidyError struct {
	Chrom   string
	Pos     int64
	Ploidy  int
	Samples int
}

func (e *PloidyError) Error() string {
	return fmt.Sprintf("ploidy != %d at %s:%d: ploidy=%d, nsmpl=%d",
		MaxPloidy, e.Chrom, e.Pos, e.Ploidy, e.Samples)
}

// Genotypes parses the GT sub-field of every sample column.
// The result is cached on the variant.
func (v *Variant) Genotypes() ([]GenotypeCall, error) {
	if v.genotypes != nil {
		return v.genotypes, nil
	}
	if v.SampleColumns == "" {
		return nil, fmt.Errorf("%s:%d: no FORMAT column", v.Chrom, v.Pos)
	}

	columns := strings.Split(v.SampleColumns, "\t")
	gtIdx := -1
	for i, key := range strings.Split(columns[0], ":") {
		if key == "GT" {
			gtIdx = i
			break
		}
	}
	if gtIdx < 0 {
		return nil, fmt.Errorf("%s:%d: no GT field in FORMAT %q", v.Chrom, v.Pos, columns[0])
	}

	calls := make([]GenotypeCall, len(columns)-1)
	for i, sample := range columns[1:] {
		gt := subField(sample, gtIdx)
		call, err := ParseGT(gt)
		if err != nil {
			if pe, ok := err.(*PloidyError); ok {
				pe.Chrom, pe.Pos, pe.Samples = v.Chrom, v.Pos, len(columns)-1
				return nil, pe
			}
			return nil, fmt.Errorf("%s:%d sample %d: %w", v.Chrom, v.Pos, i, err)
		}
		calls[i] = call
	}
	v.genotypes = calls
	return calls, nil
}

// subField returns the idx-th colon-separated value of a sample column,
// or "." when the column is truncated.
func subField(sample string, idx int) string {
	for i := 0; i < idx; i++ {
		c := strings.IndexByte(sample, ':')
		if c < 0 {
			return "."
		}
		sample = sample[c+1:]
	}
	if c := strings.IndexByte(sample, ':'); c >= 0 {
		return sample[:c]
	}
	return sample
}

// ParseGT parses a single GT value such as "0|1", "1/0", "./." or "1".
// Calls with fewer than MaxPloidy alleles have the remaining slots marked
// VectorEnd.
func ParseGT(gt string) (GenotypeCall, error) {
	var call GenotypeCall
	if gt == "" {
		gt = "."
	}

	phased := false
	for {
		end := strings.IndexAny(gt, "|/")
		tok := gt
		if end >= 0 {
			tok = gt[:end]
		}
		if call.Ploidy == MaxPloidy {
			return GenotypeCall{}, &PloidyError{Ploidy: call.Ploidy + 1 + strings.Count(gt, "|") + strings.Count(gt, "/")}
		}

		a := Allele{Phased: phased}
		if tok == "." {
			a.Missing = true
		} else {
			idx, err := strconv.Atoi(tok)
			if err != nil || idx < 0 {
				return GenotypeCall{}, fmt.Errorf("invalid allele %q in GT %q", tok, gt)
			}
			a.Index = idx
		}
		call.Alleles[call.Ploidy] = a
		call.Ploidy++

		if end < 0 {
			break
		}
		phased = gt[end] == '|'
		gt = gt[end+1:]
	}

	for i := call.Ploidy; i < MaxPloidy; i++ {
		call.Alleles[i] = Allele{VectorEnd: true}
	}
	return call, nil
}
