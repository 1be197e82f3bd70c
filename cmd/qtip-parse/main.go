package main

/*
qtip-parse makes one pass over the SAM emitted by a tandem-aware aligner and
produces, per alignment category (unpaired, bad-end, concordant, discordant),
feature tables for the MAPQ model and reservoir-sampled input-model
templates. With -simulate it then re-scans the reference FASTA and emits a
batch of tandem reads drawn from those templates, with ground-truth origins
encoded in the read names.
*/

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BenLangmead/qtip/encoding/fastq"
	"github.com/BenLangmead/qtip/tandem"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"golang.org/x/exp/rand"
)

var (
	features   = flag.Bool("features", false, "Write per-category feature tables (<prefix>_rec_{u,b,c,d}.tsv)")
	inputModel = flag.Bool("input-model", false, "Write per-category template tables (<prefix>_mod_{u,b,c,d}.tsv)")
	simulate   = flag.Bool("simulate", false, "Simulate tandem reads from the input models (<prefix>_reads_*.fastq); requires -fasta")
	fastas     = flag.String("fasta", "", "Comma-separated reference FASTA paths; required with -simulate")
	outPrefix  = flag.String("out", "qtip-parse", "Output path prefix")

	wiggle       = flag.Int("wiggle", tandem.DefaultOpts.Wiggle, "Reported alignments within this many positions of the true origin count as correct")
	sampleSize   = flag.Int("input-model-size", tandem.DefaultOpts.SampleSize, "Templates retained per category")
	maxFraglen   = flag.Int("max-allowed-fraglen", tandem.DefaultOpts.MaxAllowedFraglen, "Inferred fragment lengths are clamped to this")
	simFactor    = flag.Float64("sim-factor", tandem.DefaultOpts.SimFactor, "Tandem reads simulated per unit of f(templates offered)")
	simFunction  = flag.String("sim-function", "sqrt", "f applied to templates offered when sizing simulation; 'sqrt' or 'linear'")
	simUnpMin    = flag.Int("sim-unp-min", tandem.DefaultOpts.SimUnpMin, "Minimum unpaired reads to simulate")
	simConcMin   = flag.Int("sim-conc-min", tandem.DefaultOpts.SimConcMin, "Minimum concordant pairs to simulate")
	simDiscMin   = flag.Int("sim-disc-min", tandem.DefaultOpts.SimDiscMin, "Minimum discordant pairs to simulate")
	simBadEndMin = flag.Int("sim-bad-end-min", tandem.DefaultOpts.SimBadEndMin, "Minimum bad-end pairs to simulate")
	seed         = flag.Uint64("seed", tandem.DefaultOpts.Seed, "Pseudo-random seed")
)

func qtipParseUsage() {
	fmt.Printf("Usage: %s [OPTIONS] sampath...\n", os.Args[0])
	fmt.Printf("Other options:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = qtipParseUsage
	shutdown := grail.Init()
	defer shutdown()

	sams := flag.Args()
	if len(sams) == 0 {
		log.Fatalf("Missing positional arguments (at least one SAM path required); please check flag syntax")
	}
	if !*features && !*inputModel && !*simulate {
		log.Fatalf("Nothing to do; pass at least one of -features, -input-model, -simulate")
	}
	opts := tandem.Opts{
		Wiggle:            *wiggle,
		SampleSize:        *sampleSize,
		MaxAllowedFraglen: *maxFraglen,
		SimFactor:         *simFactor,
		SimUnpMin:         *simUnpMin,
		SimConcMin:        *simConcMin,
		SimDiscMin:        *simDiscMin,
		SimBadEndMin:      *simBadEndMin,
		ChunkSize:         tandem.DefaultOpts.ChunkSize,
		Seed:              *seed,
	}
	switch *simFunction {
	case "sqrt":
		opts.SimFunction = tandem.SizingSqrt
	case "linear":
		opts.SimFunction = tandem.SizingLinear
	default:
		log.Fatalf("Could not parse -sim-function argument %q; want 'sqrt' or 'linear'", *simFunction)
	}
	var fastaPaths []string
	if *fastas != "" {
		fastaPaths = strings.Split(*fastas, ",")
	}
	if *simulate && len(fastaPaths) == 0 {
		log.Fatalf("-simulate requires -fasta")
	}

	ctx := vcontext.Background()
	if err := run(ctx, sams, fastaPaths, opts); err != nil {
		log.Panicf("%v", err)
	}
	log.Debug.Printf("exiting")
}

// outputs tracks every created output file so run can flush and close them
// all on any exit path.
type outputs struct {
	files []file.File
	bufs  []*bufio.Writer
}

func (o *outputs) create(ctx context.Context, path string) (io.Writer, error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return nil, errors.E(err, "create output:", path)
	}
	o.files = append(o.files, f)
	w := bufio.NewWriterSize(f.Writer(ctx), 64<<10)
	o.bufs = append(o.bufs, w)
	return w, nil
}

func (o *outputs) close(ctx context.Context, err *error) {
	e := errors.Once{}
	for _, w := range o.bufs {
		e.Set(w.Flush())
	}
	for _, f := range o.files {
		e.Set(f.Close(ctx))
	}
	if *err == nil {
		*err = e.Err()
	}
}

func run(ctx context.Context, sams, fastaPaths []string, opts tandem.Opts) (err error) {
	rng := rand.New(rand.NewSource(opts.Seed))
	var out outputs
	defer out.close(ctx, &err)

	var sinks tandem.Sinks
	if *features {
		var w [4]io.Writer
		for i, cat := range []string{"u", "b", "c", "d"} {
			if w[i], err = out.create(ctx, *outPrefix+"_rec_"+cat+".tsv"); err != nil {
				return err
			}
		}
		sinks.FeaturesU = tandem.NewUnpairedFeatureTable(w[0])
		sinks.FeaturesB = tandem.NewUnpairedFeatureTable(w[1])
		sinks.FeaturesC = tandem.NewPairedFeatureTable(w[2])
		sinks.FeaturesD = tandem.NewPairedFeatureTable(w[3])
	}
	if *inputModel {
		var w [4]io.Writer
		for i, cat := range []string{"u", "b", "c", "d"} {
			if w[i], err = out.create(ctx, *outPrefix+"_mod_"+cat+".tsv"); err != nil {
				return err
			}
		}
		sinks.TemplatesU = tandem.NewUnpairedTemplateTable(w[0])
		sinks.TemplatesB = tandem.NewUnpairedTemplateTable(w[1])
		sinks.TemplatesC = tandem.NewPairedTemplateTable(w[2])
		sinks.TemplatesD = tandem.NewPairedTemplateTable(w[3])
	}
	if *simulate {
		sinks.ReservoirU = tandem.NewUnpairedSampler(opts.SampleSize, rng)
		sinks.ReservoirB = tandem.NewUnpairedSampler(opts.SampleSize, rng)
		sinks.ReservoirC = tandem.NewPairedSampler(opts.SampleSize, rng)
		sinks.ReservoirD = tandem.NewPairedSampler(opts.SampleSize, rng)
	}

	var total tandem.Stats
	for _, path := range sams {
		log.Printf("Parsing SAM file %s", path)
		stats, perr := tandem.PassFile(ctx, path, opts, &sinks)
		if perr != nil {
			return perr
		}
		logStats(stats)
		total = total.Merge(stats)
	}
	if len(sams) > 1 {
		log.Printf("All SAM files parsed")
		logStats(total)
	}
	if err = sinks.Flush(); err != nil {
		return err
	}
	log.Printf("Finished parsing SAM")

	if !*simulate {
		return nil
	}
	log.Printf("Input model in memory:")
	log.Printf("  Saved %d unpaired templates", sinks.ReservoirU.Len())
	log.Printf("  Saved %d bad-end templates", sinks.ReservoirB.Len())
	log.Printf("  Saved %d concordant pair templates", sinks.ReservoirC.Len())
	log.Printf("  Saved %d discordant pair templates", sinks.ReservoirD.Len())

	var fq [7]io.Writer
	for i, suffix := range []string{
		"_reads_u.fastq",
		"_reads_b_1.fastq", "_reads_b_2.fastq",
		"_reads_c_1.fastq", "_reads_c_2.fastq",
		"_reads_d_1.fastq", "_reads_d_2.fastq",
	} {
		if fq[i], err = out.create(ctx, *outPrefix+suffix); err != nil {
			return err
		}
	}
	simSinks := tandem.SimSinks{
		U:  fastq.NewWriter(fq[0]),
		B1: fastq.NewWriter(fq[1]), B2: fastq.NewWriter(fq[2]),
		C1: fastq.NewWriter(fq[3]), C2: fastq.NewWriter(fq[4]),
		D1: fastq.NewWriter(fq[5]), D2: fastq.NewWriter(fq[6]),
	}

	log.Printf("Creating tandem read simulator")
	sim, err := tandem.NewStreamingSimulator(ctx, fastaPaths, opts,
		sinks.ReservoirU.Model(), sinks.ReservoirB.Model(),
		sinks.ReservoirC.Model(), sinks.ReservoirD.Model(),
		&simSinks, rng)
	if err != nil {
		return err
	}
	log.Printf("Simulating reads...")
	simStats, err := sim.Simulate(ctx)
	if err != nil {
		return err
	}
	log.Printf("Simulated %d unpaired, %d bad-end, %d concordant, %d discordant reads (%d draws dropped)",
		simStats.Unpaired, simStats.BadEnd, simStats.Concordant, simStats.Discordant, simStats.Dropped)
	return nil
}

func logStats(s tandem.Stats) {
	log.Printf("  %d lines", s.Lines)
	log.Printf("  %d header lines", s.HeaderLines)
	log.Printf("  %d supplementary alignments ignored", s.Supplementary)
	log.Printf("  %d alignment type didn't match simulated type", s.TypeMismatches)
	log.Printf("  %d unpaired", s.Unpaired)
	if s.Unpaired > 0 {
		log.Printf("    %d aligned", s.UnpairedAligned)
		log.Printf("    %d unaligned", s.UnpairedUnaligned)
	}
	log.Printf("  %d paired-end", s.Pairs)
	if s.Pairs > 0 {
		log.Printf("    %d concordant", s.PairsConcordant)
		log.Printf("    %d discordant", s.PairsDiscordant)
		log.Printf("    %d bad-end", s.PairsBadEnd)
		log.Printf("    %d unaligned", s.PairsUnaligned)
	}
	if s.MatesUnmatched > 0 {
		log.Printf("  %d paired records never saw their mate", s.MatesUnmatched)
	}
	if s.MapqSkipped > 0 {
		log.Printf("  %d records skipped for out-of-range MAPQ", s.MapqSkipped)
	}
}
