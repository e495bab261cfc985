package vcf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVariant_Alleles(t *testing.T) {
	tests := []struct {
		name string
		ref  string
		alt  string
		want []string
	}{
		{"biallelic", "A", "G", []string{"A", "G"}},
		{"multi-allelic", "A", "G,T", []string{"A", "G", "T"}},
		{"monomorphic", "A", ".", []string{"A"}},
		{"indel", "AT", "A", []string{"AT", "A"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &Variant{Ref: tt.ref, Alt: tt.alt}
			assert.Equal(t, tt.want, v.Alleles())
			assert.Equal(t, len(tt.want), v.NumAlleles())
		})
	}
}

func TestVariant_IsSNP(t *testing.T) {
	tests := []struct {
		name string
		ref  string
		alt  string
		want bool
	}{
		{"A to G", "A", "G", true},
		{"multi-allelic SNP", "A", "G,T", true},
		{"monomorphic", "A", ".", true},
		{"deletion", "AT", "A", false},
		{"insertion", "A", "AT", false},
		{"MNV", "AT", "GC", false},
		{"one indel ALT", "A", "G,AT", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &Variant{Ref: tt.ref, Alt: tt.alt}
			assert.Equal(t, tt.want, v.IsSNP())
		})
	}
}

func TestVariant_NormalizeChrom(t *testing.T) {
	tests := []struct {
		name  string
		chrom string
		want  string
	}{
		{"with chr prefix", "chr12", "12"},
		{"without chr prefix", "12", "12"},
		{"chrX", "chrX", "X"},
		{"empty", "", ""},
		{"short chr", "ch", "ch"}, // too short for "chr" prefix
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &Variant{Chrom: tt.chrom}
			assert.Equal(t, tt.want, v.NormalizeChrom())
		})
	}
}

func TestSameChrom(t *testing.T) {
	assert.True(t, SameChrom("chr20", "20"))
	assert.True(t, SameChrom("X", "23"))
	assert.True(t, SameChrom("chrX", "23"))
	assert.False(t, SameChrom("20", "21"))
}
