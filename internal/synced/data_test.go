package synced

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/inodb/vibe-phase/internal/genmap"
	"github.com/inodb/vibe-phase/internal/segment"
	"github.com/inodb/vibe-phase/internal/vcf"
)

const flatMap = `chr position COMBINED_rate(cM/Mb) Genetic_Map(cM)
20 1 1.0 0.0
20 10000001 1.0 10.0
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// fixture writes n shared sites 10 kb apart plus one target-only site.
func fixture(t *testing.T, n int) Config {
	t.Helper()
	dir := t.TempDir()

	var refSites, tgtSites []string
	for i := 0; i < n; i++ {
		pos := 10000 * (i + 1)
		refSites = append(refSites, site("20", pos, "A", "G", "0|1", "1|1"))
		tgtSites = append(tgtSites, site("20", pos, "A", "G", []string{"0/0", "0/1", "1/1", "./."}[i%4]))
		if i == 0 {
			tgtSites = append(tgtSites, site("20", pos+1, "C", "T", "0/1"))
		}
	}

	return Config{
		RefPath:    writeFile(t, dir, "ref.vcf", vcfText([]string{"R1", "R2"}, refSites...)),
		TargetPath: writeFile(t, dir, "target.vcf", vcfText([]string{"T1"}, tgtSites...)),
		MapPath:    writeFile(t, dir, "map.txt", flatMap),
		OutputPath: filepath.Join(dir, "out.vcf.gz"),
		WriteMode:  vcf.ModeVCFCompressed,
		CMmax:      1,
	}
}

func TestOpen_EndToEnd(t *testing.T) {
	cfg := fixture(t, 100)
	data, err := Open(cfg, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 2, data.Nref())
	assert.Equal(t, 1, data.Ntarget())
	assert.Equal(t, 100, data.M())
	assert.Equal(t, "T1", data.TargetID(0))
	assert.Equal(t, 1, data.Stats.TargetOnly)
	assert.Equal(t, int64(990000), data.PhysRange)
	assert.InDelta(t, 0.99, data.CMRange, 1e-9)

	// 0.01 cM apart: every segment fills to 64 before the span limit.
	require.Equal(t, 2, data.Mseg64())
	assert.Len(t, data.GenoBits(), 2*3)
	assert.Len(t, data.SegCMs()[0], 64)
	assert.Len(t, data.SegCMs()[1], 36)

	total := 0
	for _, seg := range data.Packed().Segments() {
		total += len(seg)
	}
	assert.Equal(t, data.M(), total)

	// reference sample 1 is 1|1 everywhere; target cycles 0,1,2,9
	first := data.Packed().At(0, 1)
	assert.Equal(t, ^uint64(0), first.Is0)
	assert.Equal(t, ^uint64(0), first.Is2)
	tgt := data.Packed().At(0, 2)
	assert.Equal(t, uint64(0x1111111111111111), tgt.Is0)
	assert.Equal(t, uint64(0x4444444444444444), tgt.Is2)
	assert.Equal(t, uint64(0x8888888888888888), tgt.Is9)

	last := data.Packed().At(1, 2)
	padding := uint64(0xFFFFFFF000000000) // bits 36..63
	assert.Equal(t, padding, last.Is9&padding)

	// the shared target records were copied out
	out, err := vcf.NewParser(cfg.OutputPath)
	require.NoError(t, err)
	defer out.Close()
	count := 0
	for {
		v, err := out.Next()
		require.NoError(t, err)
		if v == nil {
			break
		}
		count++
	}
	assert.Equal(t, 100, count)
	assert.Equal(t, []string{"T1"}, out.SampleNames())
}

func TestOpen_SpanLimitedSegments(t *testing.T) {
	cfg := fixture(t, 100)
	cfg.CMmax = 0.205 // sites are 0.01 cM apart

	data, err := Open(cfg, nil)
	require.NoError(t, err)
	for s, cMs := range data.SegCMs() {
		if s < data.Mseg64()-1 {
			assert.Len(t, cMs, 21)
		}
	}
}

func TestOpen_MissingFiles(t *testing.T) {
	cfg := fixture(t, 10)
	cfg.RefPath = filepath.Join(t.TempDir(), "missing.vcf")
	_, err := Open(cfg, nil)
	assert.ErrorIs(t, err, ErrOpen)

	cfg = fixture(t, 10)
	cfg.MapPath = filepath.Join(t.TempDir(), "missing.txt")
	_, err = Open(cfg, nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpen_UnsupportedWriteMode(t *testing.T) {
	cfg := fixture(t, 10)
	cfg.WriteMode = vcf.ModeBCF
	_, err := Open(cfg, nil)
	assert.ErrorIs(t, err, vcf.ErrUnsupportedMode)
}

func TestOpen_DegenerateGeneticSpan(t *testing.T) {
	cfg := fixture(t, 10)
	cfg.MapPath = writeFile(t, t.TempDir(), "flat.txt", "chr position rate cM\n20 1 0 5.0\n20 20000000 0 5.0\n")
	_, err := Open(cfg, nil)
	assert.ErrorIs(t, err, ErrDegenerateSpan)
}

func TestValidateSpan(t *testing.T) {
	keys := []VariantKey{{Chrom: 20, BP: 100}, {Chrom: 20, BP: 300}, {Chrom: 21, BP: 50}, {Chrom: 21, BP: 60}}
	phys, cM, err := ValidateSpan(keys, []float64{1, 1.5, 0, 0.25}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, int64(210), phys)
	assert.InDelta(t, 0.75, cM, 1e-12)

	_, _, err = ValidateSpan([]VariantKey{{Chrom: 20, BP: 100}, {Chrom: 20, BP: 100}}, []float64{1, 2}, zap.NewNop())
	assert.ErrorIs(t, err, ErrDegenerateSpan)

	_, _, err = ValidateSpan(nil, nil, zap.NewNop())
	assert.ErrorIs(t, err, ErrDegenerateSpan)
}

type linearInterp struct{}

func (linearInterp) Interp(_ int, bp int64) (float64, error) { return float64(bp) * 1e-8, nil }

func TestBuild_FromResult(t *testing.T) {
	res := &Result{Nref: 1, Ntarget: 1, TargetIDs: []string{"T"}}
	for i := 0; i < 20; i++ {
		res.Keys = append(res.Keys, VariantKey{Chrom: 1, BP: int64(1000000 * (i + 1))})
		res.HapsRef = append(res.HapsRef, i%2 == 0, false)
		res.GenosTarget = append(res.GenosTarget, 1)
	}

	data, err := build(res, genmap.NewMapper(linearInterp{}, "linear"), 5, 2, zap.NewNop())
	require.NoError(t, err)
	// 1 cM apart with a 5 cM limit: the first segment closes at 16 variants
	require.Equal(t, 2, data.Mseg64())
	assert.Len(t, data.SegCMs()[0], segment.SegmentMin)
	assert.Equal(t, uint64(0x5555), data.Packed().At(0, 0).Is0)
	assert.Equal(t, uint64(0xFFFFFFFFFFFF0000), data.Packed().At(0, 1).Is9)
}

func TestOpen_PreloadedMap(t *testing.T) {
	cfg := fixture(t, 40)
	gmap, err := genmap.Load(cfg.MapPath)
	require.NoError(t, err)

	cfg.Map = gmap
	cfg.MapPath = filepath.Join(t.TempDir(), "not-read.txt")
	data, err := Open(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 40, data.M())
	assert.InDelta(t, 0.39, data.CMRange, 1e-9)
}
