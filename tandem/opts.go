package tandem

// SizingFunction maps the number of input alignments observed in a category
// to a target number of tandem reads to simulate for it.
type SizingFunction int

const (
	// SizingSqrt targets SimFactor * sqrt(input count).
	SizingSqrt SizingFunction = iota
	// SizingLinear targets SimFactor * input count.
	SizingLinear
)

type Opts struct {
	// Wiggle is the maximum distance, in reference bases, by which an
	// alignment may miss the simulated point of origin and still count as
	// correct.
	Wiggle int

	// SampleSize caps the number of templates retained per category; beyond
	// it, reservoir sampling keeps a uniform subset.
	SampleSize int

	// MaxAllowedFraglen clamps fragment lengths inferred from concordant
	// pairs. Pairs that appear longer are recorded at this length.
	MaxAllowedFraglen int

	// SimFactor scales the sizing function when choosing how many tandem
	// reads to simulate per category.
	SimFactor float64
	// SimFunction chooses how the input count feeds the target size.
	SimFunction SizingFunction
	// Per-category floors for the target size.
	SimUnpMin    int
	SimConcMin   int
	SimDiscMin   int
	SimBadEndMin int

	// ChunkSize is the number of reference bases presented per FASTA window
	// during simulation.
	ChunkSize int

	// Seed fixes the pseudo-random sequence used by sampling, placement and
	// mutation. Runs with equal inputs and equal seeds produce identical
	// output.
	Seed uint64
}

// DefaultOpts sets the default values to Opts.
var DefaultOpts = Opts{
	Wiggle:            30,    // Go: -wiggle, qtip: --wiggle
	SampleSize:        30000, // Go: -input-model-size, qtip: --input-model-size
	MaxAllowedFraglen: 50000, // Go: -max-allowed-fraglen, qtip: --max-allowed-fraglen
	SimFactor:         30.0,  // Go: -sim-factor, qtip: --sim-factor
	SimFunction:       SizingSqrt,
	SimUnpMin:         30000, // Go: -sim-unp-min, qtip: --sim-unp-min
	SimConcMin:        30000, // Go: -sim-conc-min, qtip: --sim-conc-min
	SimDiscMin:        10000, // Go: -sim-disc-min, qtip: --sim-disc-min
	SimBadEndMin:      10000, // Go: -sim-bad-end-min, qtip: --sim-bad-end-min
	ChunkSize:         128 * 1024, // Go: -chunk-size, no qtip equivalent
	Seed:              99099,      // Go: -seed, qtip: --seed
}
