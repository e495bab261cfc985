package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-phase/internal/duckdb"
	"github.com/inodb/vibe-phase/internal/genmap"
	"github.com/inodb/vibe-phase/internal/synced"
	"github.com/inodb/vibe-phase/internal/vcf"
)

type syncFlags struct {
	refPath    string
	targetPath string
	mapPath    string
	outPrefix  string
	chrom      string
	bpStart    int64
	bpEnd      int64
	bpFlanking int64
	summary    string
	noMapCache bool
}

func newSyncCmd() *cobra.Command {
	var f syncFlags

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize a reference panel with a target VCF",
		Long: `Read the reference and target VCFs in lockstep, keep the biallelic target
variants found in the reference, write them to <outPrefix>.vcf[.gz] and pack
reference haplotypes and target genotypes into segments.`,
		Example: `  vibe-phase sync --ref ref.chr20.vcf.gz --target target.chr20.vcf.gz \
    --geneticMapFile genetic_map_hg19.txt.gz --outPrefix target.synced
  vibe-phase sync --ref ref.vcf.gz --target target.vcf.gz --geneticMapFile map.txt.gz \
    --outPrefix out --chrom 20 --bpStart 1000000 --bpEnd 2000000 --bpFlanking 100000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(viper.GetString("log_level"))
			if err != nil {
				return err
			}
			defer logger.Sync()
			return runSync(cmd, f, logger)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.refPath, "ref", "", "Reference panel VCF (phased, optionally gzip/BGZF)")
	fl.StringVar(&f.targetPath, "target", "", "Target VCF to be synchronized with the reference")
	fl.StringVar(&f.mapPath, "geneticMapFile", "", "Genetic map table: chr position rate(cM/Mb) map(cM)")
	fl.StringVar(&f.outPrefix, "outPrefix", "", "Prefix of the output VCF")
	fl.StringVar(&f.outPrefix, "out", "", "Alias for --outPrefix")
	fl.StringVar(&f.chrom, "chrom", "", "Restrict to one chromosome (1-22 or X)")
	fl.Int64Var(&f.bpStart, "bpStart", 0, "First base pair of the region (requires --chrom)")
	fl.Int64Var(&f.bpEnd, "bpEnd", 0, "Last base pair of the region (requires --chrom)")
	fl.Int64Var(&f.bpFlanking, "bpFlanking", 0, "Extra base pairs read on both sides of the region")
	fl.StringVar(&f.summary, "summary", "", "Write a YAML run summary to this file")
	fl.BoolVar(&f.noMapCache, "no-map-cache", false, "Always parse the genetic map instead of using the cache")

	fl.String("vcfOutFormat", vcf.ModeVCFCompressed, "Output mode: w (VCF), wz (BGZF VCF), wb (BCF), wbu (uncompressed BCF)")
	fl.Bool("allowRefAltSwap", false, "Accept target variants whose REF and ALT are exchanged in the reference")
	fl.Float64("cMmax", 1.0, "Maximum genetic span of a segment in cM")
	fl.String("sites-db", "", "DuckDB file cataloguing accepted sites (disabled when empty)")
	fl.String("map-cache", defaultCacheDir(), "Directory of the parsed genetic map cache")
	fl.Int("threads", 1, "Segment packing workers (0 = all CPUs)")
	viper.BindPFlag("vcf_out_format", fl.Lookup("vcfOutFormat"))
	viper.BindPFlag("allow_ref_alt_swap", fl.Lookup("allowRefAltSwap"))
	viper.BindPFlag("cm_max", fl.Lookup("cMmax"))
	viper.BindPFlag("sites_db", fl.Lookup("sites-db"))
	viper.BindPFlag("map_cache", fl.Lookup("map-cache"))
	viper.BindPFlag("threads", fl.Lookup("threads"))

	return cmd
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".vibe-phase")
}

// syncConfig turns command-line flags into a synchronized-read configuration.
func syncConfig(f syncFlags) (synced.Config, error) {
	for _, req := range []struct{ name, val string }{
		{"--ref", f.refPath},
		{"--target", f.targetPath},
		{"--geneticMapFile", f.mapPath},
		{"--outPrefix", f.outPrefix},
	} {
		if req.val == "" {
			return synced.Config{}, usagef("%s is required", req.name)
		}
	}

	mode := viper.GetString("vcf_out_format")
	ext, err := outputExtension(mode)
	if err != nil {
		return synced.Config{}, err
	}

	opts, err := regionOptions(f)
	if err != nil {
		return synced.Config{}, err
	}
	opts.AllowRefAltSwap = viper.GetBool("allow_ref_alt_swap")

	cMmax := viper.GetFloat64("cm_max")
	if cMmax <= 0 {
		return synced.Config{}, usagef("--cMmax must be positive, got %g", cMmax)
	}

	return synced.Config{
		Options:    opts,
		RefPath:    f.refPath,
		TargetPath: f.targetPath,
		MapPath:    f.mapPath,
		OutputPath: f.outPrefix + ext,
		WriteMode:  mode,
		CMmax:      cMmax,
		Workers:    viper.GetInt("threads"),
	}, nil
}

// outputExtension returns the file suffix for an output mode.
func outputExtension(mode string) (string, error) {
	switch mode {
	case vcf.ModeVCF:
		return ".vcf", nil
	case vcf.ModeVCFCompressed:
		return ".vcf.gz", nil
	case vcf.ModeBCF, vcf.ModeBCFRaw:
		return ".bcf", nil
	default:
		return "", usagef("invalid --vcfOutFormat %q: use w, wz, wb or wbu", mode)
	}
}

// regionOptions applies --chrom and the base-pair range widened by
// --bpFlanking.
func regionOptions(f syncFlags) (synced.Options, error) {
	var opts synced.Options
	if (f.bpStart > 0 || f.bpEnd > 0) && f.chrom == "" {
		return opts, usagef("--bpStart and --bpEnd require --chrom")
	}
	if f.bpStart < 0 || f.bpEnd < 0 || f.bpFlanking < 0 {
		return opts, usagef("base-pair bounds must not be negative")
	}
	if f.bpEnd > 0 && f.bpStart > f.bpEnd {
		return opts, usagef("--bpStart %d is past --bpEnd %d", f.bpStart, f.bpEnd)
	}

	if f.chrom != "" {
		chrom, err := genmap.ParseChrom(f.chrom)
		if err != nil || chrom > genmap.ChromX {
			return opts, usagef("invalid --chrom %q: use 1-22 or X", f.chrom)
		}
		opts.Chrom = chrom
	}
	if f.bpStart > 0 {
		opts.BpStart = max(1, f.bpStart-f.bpFlanking)
	}
	if f.bpEnd > 0 {
		opts.BpEnd = f.bpEnd + f.bpFlanking
	}
	return opts, nil
}

func runSync(cmd *cobra.Command, f syncFlags, logger *zap.Logger) error {
	cfg, err := syncConfig(f)
	if err != nil {
		return err
	}

	if dir := viper.GetString("map_cache"); dir != "" && !f.noMapCache {
		gmap, hit, err := duckdb.NewMapCache(dir).LoadMap(cfg.MapPath)
		if gmap == nil {
			return err
		}
		if err != nil {
			logger.Warn("could not update genetic map cache", zap.Error(err))
		}
		logger.Debug("genetic map loaded", zap.String("path", cfg.MapPath), zap.Bool("cached", hit))
		cfg.Map = gmap
	}

	data, err := synced.Open(cfg, logger)
	if err != nil {
		return err
	}

	sum := newSummary(cfg, data)
	if path := viper.GetString("sites_db"); path != "" {
		id, err := recordRun(path, cfg, data, logger)
		if err != nil {
			return err
		}
		sum.RunID = id
		logger.Info("sites recorded", zap.String("db", path), zap.String("run_id", id))
	}

	if f.summary != "" {
		if err := sum.WriteFile(f.summary); err != nil {
			return err
		}
	}
	return sum.Print(cmd.OutOrStdout())
}

// recordRun stores the accepted sites of the run in the DuckDB catalogue.
func recordRun(path string, cfg synced.Config, data *synced.Data, logger *zap.Logger) (string, error) {
	store, err := duckdb.Open(path)
	if err != nil {
		return "", fmt.Errorf("open sites db: %w", err)
	}
	defer store.Close()

	ref, err := duckdb.StatFile(cfg.RefPath)
	if err != nil {
		return "", err
	}
	target, err := duckdb.StatFile(cfg.TargetPath)
	if err != nil {
		return "", err
	}
	in := duckdb.Inputs{
		Ref:     ref,
		Target:  target,
		MapPath: cfg.MapPath,
		CMmax:   cfg.CMmax,
	}

	previous, err := store.FindRuns(in)
	if err != nil {
		return "", err
	}
	if len(previous) > 0 {
		logger.Info("inputs already synchronized",
			zap.Int("runs", len(previous)),
			zap.String("latest_run_id", previous[0]))
	}
	return store.WriteRun(in, data)
}
