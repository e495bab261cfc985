package synced

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/inodb/vibe-phase/internal/genmap"
	"github.com/inodb/vibe-phase/internal/segment"
	"github.com/inodb/vibe-phase/internal/vcf"
)

var (
	// ErrOpen is returned when an input VCF cannot be opened.
	ErrOpen = errors.New("could not open for reading")

	// ErrDegenerateSpan is returned when the accepted variants cover no
	// physical or no genetic distance.
	ErrDegenerateSpan = errors.New("physical and genetic distance ranges must be positive")
)

// Config names the inputs and outputs of one synchronized read.
type Config struct {
	Options

	RefPath    string
	TargetPath string
	MapPath    string
	Map        genmap.Interpolator // preloaded map; MapPath is loaded when nil
	OutputPath string // target records shared with the reference
	WriteMode  string // vcf.ModeVCF or vcf.ModeVCFCompressed
	CMmax      float64
	Workers    int // segment packing workers; 0 uses every CPU
}

// Data is the packed genotype data of one chromosome, ready for phasing.
// It is read-only once Open returns.
type Data struct {
	Keys      []VariantKey
	CMs       []float64
	Swapped   []bool
	TargetIDs []string
	Stats     Stats
	PhysRange int64
	CMRange   float64

	packed *segment.Packed
}

// Nref returns the number of reference samples.
func (d *Data) Nref() int { return d.packed.Nref }

// Ntarget returns the number of target samples.
func (d *Data) Ntarget() int { return d.packed.Ntarget }

// M returns the number of accepted variants.
func (d *Data) M() int { return d.packed.M }

// Mseg64 returns the number of segments.
func (d *Data) Mseg64() int { return d.packed.Mseg64 }

// GenoBits returns the masks of every (segment, individual) pair,
// indexed [segment*(Nref+Ntarget) + individual].
func (d *Data) GenoBits() []segment.Masks { return d.packed.Bits() }

// Packed returns the underlying bit-packed representation.
func (d *Data) Packed() *segment.Packed { return d.packed }

// SegCMs returns the genetic coordinates of the variants of each segment.
func (d *Data) SegCMs() [][]float64 { return d.packed.SegmentCMs() }

// TargetID returns the sample name of target individual n.
func (d *Data) TargetID(n int) string { return d.TargetIDs[n] }

// Open reads the reference and target VCFs, writes the shared target
// records to cfg.OutputPath, maps the variants onto the genetic map and
// packs the genotypes into segments.
func Open(cfg Config, logger *zap.Logger) (*Data, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	ref, err := vcf.NewParser(cfg.RefPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: missing file? %v", ErrOpen, cfg.RefPath, err)
	}
	defer ref.Close()
	target, err := vcf.NewParser(cfg.TargetPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: missing file? %v", ErrOpen, cfg.TargetPath, err)
	}
	defer target.Close()

	out, err := vcf.NewWriter(cfg.OutputPath, cfg.WriteMode)
	if err != nil {
		return nil, err
	}

	syncer := NewSynchronizer(cfg.Options)
	syncer.SetLogger(logger)
	res, err := syncer.Run(ref, target, out)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close %s: %w", cfg.OutputPath, cerr)
	}
	if err != nil {
		return nil, err
	}

	gmap := cfg.Map
	if gmap == nil {
		if gmap, err = genmap.Load(cfg.MapPath); err != nil {
			return nil, err
		}
	}
	mapper := genmap.NewMapper(gmap, cfg.MapPath)
	mapper.SetLogger(logger)

	return build(res, mapper, cfg.CMmax, cfg.Workers, logger)
}

// build maps the accepted variants to centiMorgans, checks their span and
// packs them into segments.
func build(res *Result, mapper *genmap.Mapper, cMmax float64, workers int, logger *zap.Logger) (*Data, error) {
	cMs, err := mapper.CentiMorgans(res.Keys)
	if err != nil {
		return nil, err
	}

	physRange, cMRange, err := ValidateSpan(res.Keys, cMs, logger)
	if err != nil {
		return nil, err
	}

	packed, err := segment.Build(res.HapsRef, res.GenosTarget, res.Nref, res.Ntarget, cMs, cMmax, workers, logger)
	if err != nil {
		return nil, err
	}

	return &Data{
		Keys:      res.Keys,
		CMs:       cMs,
		Swapped:   res.Swapped,
		TargetIDs: res.TargetIDs,
		Stats:     res.Stats,
		PhysRange: physRange,
		CMRange:   cMRange,
		packed:    packed,
	}, nil
}

// ValidateSpan sums the physical and genetic distances between consecutive
// variants on the same chromosome. Either sum being zero is an error.
func ValidateSpan(keys []VariantKey, cMs []float64, logger *zap.Logger) (int64, float64, error) {
	var physRange int64
	var cMRange float64
	for m := 0; m+1 < len(keys); m++ {
		if keys[m+1].Chrom == keys[m].Chrom {
			physRange += keys[m+1].BP - keys[m].BP
			cMRange += cMs[m+1] - cMs[m]
		}
	}

	snpsPerCM := 0
	if cMRange > 0 {
		snpsPerCM = int(float64(len(keys))/cMRange + 0.5)
	}
	logger.Info("distance ranges",
		zap.Int64("physical_bp", physRange),
		zap.Float64("genetic_cM", cMRange),
		zap.Int("snps_per_cM", snpsPerCM),
		zap.String("recommended", "50-500 SNPs/cM"))

	if physRange == 0 || cMRange == 0 {
		first, last := 0, len(keys)-1
		if last < 0 {
			return 0, 0, ErrDegenerateSpan
		}
		return physRange, cMRange, fmt.Errorf("%w: first SNP chr=%d pos=%d cM=%g, last SNP chr=%d pos=%d cM=%g",
			ErrDegenerateSpan,
			keys[first].Chrom, keys[first].BP, cMs[first],
			keys[last].Chrom, keys[last].BP, cMs[last])
	}
	return physRange, cMRange, nil
}
