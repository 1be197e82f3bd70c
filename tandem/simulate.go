package tandem

import (
	"context"
	"io"
	"math"

	"github.com/BenLangmead/qtip/encoding/fasta"
	"github.com/BenLangmead/qtip/encoding/fastq"
	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// placementRetries bounds how many offsets are tried before a draw whose
// span keeps landing on non-ACGT sequence is dropped.
const placementRetries = 10

// SimSinks collects the FASTQ writers simulated reads are emitted to.
// Unpaired reads go to U; each paired category writes one file per mate.
// A nil writer disables its category.
type SimSinks struct {
	U      *fastq.Writer
	B1, B2 *fastq.Writer
	C1, C2 *fastq.Writer
	D1, D2 *fastq.Writer
}

// SimStats counts the reads one Simulate call emitted per category, plus
// draws dropped for want of a clean placement.
type SimStats struct {
	Unpaired   int
	BadEnd     int
	Concordant int
	Discordant int
	Dropped    int
}

// StreamingSimulator re-scans reference FASTA files in bounded overlapping
// windows and lays simulated reads into them, drawing templates from the
// four input models. The overlap is the largest reference span any retained
// template needs, so no placement is truncated at a window boundary, and a
// binomial thinning spreads each category's target across windows in
// proportion to the placements each window can host.
type StreamingSimulator struct {
	paths  []string
	opts   Opts
	modelU *InputModelUnpaired
	modelB *InputModelUnpaired
	modelC *InputModelPaired
	modelD *InputModelPaired
	sinks  *SimSinks
	rng    *rand.Rand

	chunk       int
	overlap     int
	totalRefLen int64
	stats       SimStats
}

type simTargets struct {
	u, b, c, d int
}

// NewStreamingSimulator sizes the window geometry from the models and
// estimates the total reference length from the FASTA file sizes. Header
// and newline bytes inflate the estimate slightly and compressed references
// deflate it; either way it only scales the per-window draw probability,
// which carries a 1.1 oversampling factor and a hard clamp.
func NewStreamingSimulator(ctx context.Context, fastaPaths []string, opts Opts,
	u, b *InputModelUnpaired, c, d *InputModelPaired,
	sinks *SimSinks, rng *rand.Rand) (*StreamingSimulator, error) {
	var total int64
	for _, path := range fastaPaths {
		info, err := file.Stat(ctx, path)
		if err != nil {
			return nil, errors.Wrapf(err, "stat %s", path)
		}
		total += info.Size()
	}
	if total == 0 {
		return nil, errors.New("reference FASTA input is empty")
	}
	olap := u.MaxSpan()
	for _, n := range []int{b.MaxSpan(), c.MaxSpan(), d.MaxSpan()} {
		if n > olap {
			olap = n
		}
	}
	chunk := opts.ChunkSize
	if chunk <= olap {
		chunk = olap + 1
	}
	return &StreamingSimulator{
		paths:       fastaPaths,
		opts:        opts,
		modelU:      u,
		modelB:      b,
		modelC:      c,
		modelD:      d,
		sinks:       sinks,
		rng:         rng,
		chunk:       chunk,
		overlap:     olap,
		totalRefLen: total,
	}, nil
}

// Simulate scans every reference file once and writes one batch of
// simulated reads, returning counts of what it emitted.
func (s *StreamingSimulator) Simulate(ctx context.Context) (SimStats, error) {
	t := s.targets()
	if t.u+t.b+t.c+t.d == 0 {
		return SimStats{}, errors.New("all input models are empty; nothing to simulate")
	}
	s.stats = SimStats{}
	for _, path := range s.paths {
		if err := s.simulateFile(ctx, path, t); err != nil {
			return s.stats, err
		}
	}
	return s.stats, nil
}

func (s *StreamingSimulator) targets() simTargets {
	var t simTargets
	if s.sinks.U != nil && !s.modelU.Empty() {
		t.u = sizeTarget(s.opts, s.modelU.Offered(), s.opts.SimUnpMin)
	}
	if s.sinks.B1 != nil && s.sinks.B2 != nil && !s.modelB.Empty() {
		t.b = sizeTarget(s.opts, s.modelB.Offered(), s.opts.SimBadEndMin)
	}
	if s.sinks.C1 != nil && s.sinks.C2 != nil && !s.modelC.Empty() {
		t.c = sizeTarget(s.opts, s.modelC.Offered(), s.opts.SimConcMin)
	}
	if s.sinks.D1 != nil && s.sinks.D2 != nil && !s.modelD.Empty() {
		t.d = sizeTarget(s.opts, s.modelD.Offered(), s.opts.SimDiscMin)
	}
	return t
}

// sizeTarget converts the number of templates a bucket was offered into the
// number of reads to simulate for it. The square-root default keeps the
// simulated volume sub-linear in input size; the floor keeps small inputs
// from starving the downstream model fit.
func sizeTarget(opts Opts, offered, floor int) int {
	f := float64(offered)
	if opts.SimFunction == SizingSqrt {
		f = math.Sqrt(f)
	}
	if n := int(opts.SimFactor * f); n > floor {
		return n
	}
	return floor
}

func (s *StreamingSimulator) simulateFile(ctx context.Context, path string, t simTargets) (err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	log.Debug.Printf("simulating reads over %s", path)
	var r io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(r, in.Name()); u != nil {
		r = u
	}
	sc := fasta.NewScanner(r, s.chunk, s.overlap)
	var w fasta.Window
	for sc.Scan(&w) {
		if err := s.window(&w, t); err != nil {
			return err
		}
	}
	return sc.Err()
}

func (s *StreamingSimulator) window(w *fasta.Window, t simTargets) error {
	if len(w.Seq) == 0 {
		return nil
	}
	ns := 0
	for _, b := range w.Seq {
		if b == 'N' {
			ns++
		}
	}
	// Mostly-N windows are masked or repeat-heavy reference; placements
	// there would be rejected anyway.
	if 10*ns >= 9*len(w.Seq) {
		return nil
	}
	chances := len(w.Seq) - s.overlap + 1
	if chances < 1 {
		chances = 1
	}
	p := 1.1 * float64(chances) / float64(s.totalRefLen)
	if p > 0.999 {
		p = 0.999
	}
	nu, nb := s.binomial(t.u, p), s.binomial(t.b, p)
	nc, nd := s.binomial(t.c, p), s.binomial(t.d, p)
	if nu+nb+nc+nd > 0 {
		log.Debug.Printf("window %s:%d: drawing %d unpaired, %d bad-end, %d concordant, %d discordant",
			w.ID, w.Start, nu, nb, nc, nd)
	}
	for ; nu > 0; nu-- {
		if err := s.placeUnpaired(w); err != nil {
			return err
		}
	}
	for ; nb > 0; nb-- {
		if err := s.placeBadEnd(w); err != nil {
			return err
		}
	}
	for ; nc > 0; nc-- {
		if err := s.placePair(w, s.modelC, "c", s.sinks.C1, s.sinks.C2, &s.stats.Concordant); err != nil {
			return err
		}
	}
	for ; nd > 0; nd-- {
		if err := s.placePair(w, s.modelD, "d", s.sinks.D1, s.sinks.D2, &s.stats.Discordant); err != nil {
			return err
		}
	}
	return nil
}

// binomial draws how many of a bucket's n target reads land in the current
// window.
func (s *StreamingSimulator) binomial(n int, p float64) int {
	if n == 0 {
		return 0
	}
	b := distuv.Binomial{N: float64(n), P: p, Src: s.rng}
	return int(b.Rand())
}

// place draws an offset whose span holds only ACGT, giving up after a
// bounded number of attempts.
func (s *StreamingSimulator) place(seq []byte, span int) (int, bool) {
	slots := len(seq) - span + 1
	if slots < 1 {
		return 0, false
	}
	for try := 0; try < placementRetries; try++ {
		off := s.rng.Intn(slots)
		if acgtOnly(seq[off : off+span]) {
			return off, true
		}
	}
	return 0, false
}

func acgtOnly(s []byte) bool {
	for _, b := range s {
		switch b {
		case 'A', 'C', 'G', 'T':
		default:
			return false
		}
	}
	return true
}

func (s *StreamingSimulator) placeUnpaired(w *fasta.Window) error {
	t := s.modelU.Draw(s.rng)
	span := t.RefLen()
	off, ok := s.place(w.Seq, span)
	if !ok {
		s.stats.Dropped++
		return nil
	}
	seq, err := mutate(t.Transcript, w.Seq[off:off+span], s.rng)
	if err != nil {
		return err
	}
	seq, qual := orient(seq, t.Qual, t.FW)
	name := simName(w.ID, t.FW, w.Start+off, t.BestScore, "u")
	if err := s.sinks.U.Write([]byte(name), seq, qual); err != nil {
		return err
	}
	s.stats.Unpaired++
	return nil
}

// placeBadEnd simulates the aligned end of a bad-end pair from its template
// and fabricates the unaligned mate: random bases that inherit the aligned
// end's origin with the opposite strand and a zero score.
func (s *StreamingSimulator) placeBadEnd(w *fasta.Window) error {
	t := s.modelB.Draw(s.rng)
	span := t.RefLen()
	off, ok := s.place(w.Seq, span)
	if !ok {
		s.stats.Dropped++
		return nil
	}
	seq, err := mutate(t.Transcript, w.Seq[off:off+span], s.rng)
	if err != nil {
		return err
	}
	seq, qual := orient(seq, t.Qual, t.FW)
	jseq, jqual := junkMate(t.OppLen, s.rng)
	refoff := w.Start + off
	if t.MateFlag == '2' {
		name := []byte(simNamePaired(w.ID, !t.FW, refoff, 0, t.FW, refoff, t.BestScore, "b2"))
		if err := s.sinks.B1.Write(name, jseq, jqual); err != nil {
			return err
		}
		if err := s.sinks.B2.Write(name, seq, qual); err != nil {
			return err
		}
	} else {
		name := []byte(simNamePaired(w.ID, t.FW, refoff, t.BestScore, !t.FW, refoff, 0, "b1"))
		if err := s.sinks.B1.Write(name, seq, qual); err != nil {
			return err
		}
		if err := s.sinks.B2.Write(name, jseq, jqual); err != nil {
			return err
		}
	}
	s.stats.BadEnd++
	return nil
}

func (s *StreamingSimulator) placePair(w *fasta.Window, m *InputModelPaired, typ string, out1, out2 *fastq.Writer, count *int) error {
	t := m.Draw(s.rng)
	r1, r2 := t.RefLen1(), t.RefLen2()
	rD := r2
	if !t.Upstream1 {
		rD = r1
	}
	// Downstream mate origin relative to the anchor; never negative, even
	// when the recorded fragment length is shorter than that mate's span.
	dOff := t.FragLen
	if rD > dOff {
		dOff = rD
	}
	dOff -= rD
	off, ok := s.place(w.Seq, t.Extent())
	if !ok {
		s.stats.Dropped++
		return nil
	}
	off1, off2 := off, off+dOff
	if !t.Upstream1 {
		off1, off2 = off+dOff, off
	}
	seq1, err := mutate(t.Transcript1, w.Seq[off1:off1+r1], s.rng)
	if err != nil {
		return err
	}
	seq2, err := mutate(t.Transcript2, w.Seq[off2:off2+r2], s.rng)
	if err != nil {
		return err
	}
	seq1, qual1 := orient(seq1, t.Qual1, t.FW1)
	seq2, qual2 := orient(seq2, t.Qual2, t.FW2)
	name := []byte(simNamePaired(w.ID, t.FW1, w.Start+off1, t.Score1, t.FW2, w.Start+off2, t.Score2, typ))
	if err := out1.Write(name, seq1, qual1); err != nil {
		return err
	}
	if err := out2.Write(name, seq2, qual2); err != nil {
		return err
	}
	*count++
	return nil
}
