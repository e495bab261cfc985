// Package vcf reads and writes VCF text records for synchronized reading.
package vcf

import "strings"

// Variant is one data line of a VCF file. Columns the synchronizer does not
// interpret are kept as raw text.
type Variant struct {
	Chrom  string // contig as written, e.g. "20" or "chr20"
	Pos    int64  // 1-based
	ID     string
	Ref    string
	Alt    string // comma-separated ALT alleles, "." if none
	Qual   string
	Filter string
	Info   string

	SampleColumns string // FORMAT + sample columns, tab-joined
	Line          string // full record text, written back verbatim by Writer

	genotypes []GenotypeCall // parsed lazily by Genotypes
}

// Alleles returns the REF allele followed by every ALT allele.
// A missing ALT (".") contributes nothing.
func (v *Variant) Alleles() []string {
	alleles := []string{v.Ref}
	if v.Alt == "" || v.Alt == "." {
		return alleles
	}
	return append(alleles, strings.Split(v.Alt, ",")...)
}

// NumAlleles returns the number of alleles at the site, REF included.
func (v *Variant) NumAlleles() int {
	if v.Alt == "" || v.Alt == "." {
		return 1
	}
	return strings.Count(v.Alt, ",") + 2
}

// IsSNP reports whether every allele of the site is a single base.
func (v *Variant) IsSNP() bool {
	for _, a := range v.Alleles() {
		if len(a) != 1 {
			return false
		}
	}
	return true
}

// NormalizeChrom returns the contig name without "chr" prefix.
func (v *Variant) NormalizeChrom() string {
	return NormalizeChrom(v.Chrom)
}

// NormalizeChrom strips a leading "chr" from a contig name.
func NormalizeChrom(chrom string) string {
	if len(chrom) > 3 && chrom[:3] == "chr" {
		return chrom[3:]
	}
	return chrom
}

// SameChrom reports whether two contig names refer to the same chromosome,
// ignoring a "chr" prefix and treating X as 23.
func SameChrom(a, b string) bool {
	return canonicalChrom(a) == canonicalChrom(b)
}

func canonicalChrom(chrom string) string {
	chrom = NormalizeChrom(chrom)
	if chrom == "X" || chrom == "x" {
		return "23"
	}
	return chrom
}
