package synced

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-phase/internal/vcf"
)

// vcfText builds a VCF with the given samples and tab-separated records.
func vcfText(samples []string, records ...string) string {
	var b strings.Builder
	b.WriteString("##fileformat=VCFv4.2\n")
	b.WriteString("#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT")
	for _, s := range samples {
		b.WriteString("\t" + s)
	}
	b.WriteByte('\n')
	for _, r := range records {
		b.WriteString(r)
		b.WriteByte('\n')
	}
	return b.String()
}

func parserFor(t *testing.T, text string) *vcf.Parser {
	t.Helper()
	p, err := vcf.NewParserFromReader(strings.NewReader(text))
	require.NoError(t, err)
	return p
}

// site formats a record at pos with one genotype column per sample.
func site(chrom string, pos int, ref, alt string, gts ...string) string {
	return strings.Join(append([]string{chrom, strconv.Itoa(pos), ".", ref, alt, ".", "PASS", ".", "GT"}, gts...), "\t")
}

type pairDesc struct {
	ref, target string
}

func describe(p Pair) pairDesc {
	d := pairDesc{}
	if p.Ref != nil {
		d.ref = p.Ref.Chrom + ":" + strconv.Itoa(int(p.Ref.Pos)) + ":" + p.Ref.Ref + ">" + p.Ref.Alt
	}
	if p.Target != nil {
		d.target = p.Target.Chrom + ":" + strconv.Itoa(int(p.Target.Pos)) + ":" + p.Target.Ref + ">" + p.Target.Alt
	}
	return d
}

func joinAll(t *testing.T, j *Joiner) []pairDesc {
	t.Helper()
	var out []pairDesc
	for {
		p, ok, err := j.Next()
		require.NoError(t, err)
		if !ok {
			return out
		}
		out = append(out, describe(p))
	}
}

func TestJoiner_Exact(t *testing.T) {
	ref := parserFor(t, vcfText([]string{"R"},
		site("1", 100, "A", "G", "0|1"),
		site("1", 200, "C", "T", "0|1"),
		site("1", 300, "G", "A", "0|1"),
		site("1", 400, "T", "C", "0|1"),
	))
	target := parserFor(t, vcfText([]string{"T"},
		site("1", 100, "A", "G", "0/1"),
		site("1", 150, "A", "C", "0/1"),
		site("1", 300, "A", "G", "0/1"),
		site("1", 400, "T", "C", "0/1"),
	))

	got := joinAll(t, NewJoiner(ref, target, false))
	assert.Equal(t, []pairDesc{
		{ref: "1:100:A>G", target: "1:100:A>G"},
		{target: "1:150:A>C"},
		{ref: "1:200:C>T"},
		{target: "1:300:A>G"},
		{ref: "1:300:G>A"},
		{ref: "1:400:T>C", target: "1:400:T>C"},
	}, got)
}

func TestJoiner_Collapse(t *testing.T) {
	ref := parserFor(t, vcfText([]string{"R"},
		site("1", 100, "G", "A", "0|1"),
		site("1", 200, "C", "T", "0|1"),
		site("1", 200, "C", "CT", "0|1"),
		site("1", 300, "A", "T", "0|1"),
	))
	target := parserFor(t, vcfText([]string{"T"},
		site("1", 100, "A", "G", "0/1"),
		site("1", 200, "C", "CT", "0/1"),
		site("1", 200, "C", "T", "0/1"),
		site("1", 300, "A", "C", "0/1"),
	))

	got := joinAll(t, NewJoiner(ref, target, true))
	assert.Equal(t, []pairDesc{
		{ref: "1:100:G>A", target: "1:100:A>G"},
		{ref: "1:200:C>CT", target: "1:200:C>CT"},
		{ref: "1:200:C>T", target: "1:200:C>T"},
		{ref: "1:300:A>T", target: "1:300:A>C"},
	}, got)
}

func TestJoiner_CollapseKeepsKindsApart(t *testing.T) {
	ref := parserFor(t, vcfText([]string{"R"}, site("1", 100, "A", "AT", "0|1")))
	target := parserFor(t, vcfText([]string{"T"}, site("1", 100, "A", "G", "0/1")))

	got := joinAll(t, NewJoiner(ref, target, true))
	assert.Equal(t, []pairDesc{{target: "1:100:A>G"}, {ref: "1:100:A>AT"}}, got)
}

// withContigs adds ##contig header lines to a VCF text.
func withContigs(text string, ids ...string) string {
	var b strings.Builder
	for _, id := range ids {
		b.WriteString("##contig=<ID=" + id + ",length=1000000>\n")
	}
	return strings.Replace(text, "#CHROM", b.String()+"#CHROM", 1)
}

func TestJoiner_ContigOrderFromHeader(t *testing.T) {
	ref := parserFor(t, withContigs(vcfText([]string{"R"},
		site("2", 50, "A", "G", "0|1"),
		site("10", 10, "A", "G", "0|1"),
	), "2", "9", "10"))
	target := parserFor(t, vcfText([]string{"T"},
		site("chr2", 50, "A", "G", "0/1"),
		site("chr9", 5, "A", "G", "0/1"),
		site("chr10", 10, "A", "G", "0/1"),
	))

	got := joinAll(t, NewJoiner(ref, target, false))
	assert.Equal(t, []pairDesc{
		{ref: "2:50:A>G", target: "chr2:50:A>G"},
		{target: "chr9:5:A>G"},
		{ref: "10:10:A>G", target: "chr10:10:A>G"},
	}, got)
}

func TestJoiner_ContigOrderOfAppearance(t *testing.T) {
	tests := []struct {
		name   string
		ref    []string
		target []string
		want   []pairDesc
	}{
		{
			name:   "lexical contig order",
			ref:    []string{site("1", 100, "A", "G", "0|1"), site("10", 100, "A", "G", "0|1"), site("2", 100, "A", "G", "0|1"), site("2", 200, "C", "T", "0|1")},
			target: []string{site("2", 100, "A", "G", "0/1"), site("2", 200, "C", "T", "0/1")},
			want: []pairDesc{
				{ref: "1:100:A>G"},
				{ref: "10:100:A>G"},
				{ref: "2:100:A>G", target: "2:100:A>G"},
				{ref: "2:200:C>T", target: "2:200:C>T"},
			},
		},
		{
			name:   "target contig missing from reference",
			ref:    []string{site("3", 100, "A", "G", "0|1")},
			target: []string{site("5", 100, "A", "G", "0/1"), site("6", 100, "A", "G", "0/1")},
			want: []pairDesc{
				{ref: "3:100:A>G"},
				{target: "5:100:A>G"},
				{target: "6:100:A>G"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := parserFor(t, vcfText([]string{"R"}, tt.ref...))
			target := parserFor(t, vcfText([]string{"T"}, tt.target...))
			assert.Equal(t, tt.want, joinAll(t, NewJoiner(ref, target, false)))
		})
	}
}

func TestJoiner_Unsorted(t *testing.T) {
	tests := []struct {
		name    string
		records []string
		line    string
	}{
		{"position decreases", []string{site("1", 200, "A", "G", "0|1"), site("1", 100, "A", "G", "0|1")}, "line 4"},
		{"contig reappears", []string{site("1", 100, "A", "G", "0|1"), site("2", 100, "A", "G", "0|1"), site("chr1", 300, "A", "G", "0|1")}, "line 5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := parserFor(t, vcfText([]string{"R"}, tt.records...))
			target := parserFor(t, vcfText([]string{"T"}))

			j := NewJoiner(ref, target, false)
			var err error
			for ok := true; ok && err == nil; {
				_, ok, err = j.Next()
			}
			assert.ErrorIs(t, err, ErrUnsorted)
			assert.Contains(t, err.Error(), tt.line)
		})
	}
}
