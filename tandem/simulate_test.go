package tandem

import (
	"bytes"
	"io/ioutil"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/BenLangmead/qtip/encoding/fastq"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/exp/rand"
)

func TestSizeTarget(t *testing.T) {
	opts := Opts{SimFactor: 30, SimFunction: SizingSqrt}
	expect.EQ(t, sizeTarget(opts, 10000, 100), 3000)
	expect.EQ(t, sizeTarget(opts, 10000, 5000), 5000)
	expect.EQ(t, sizeTarget(opts, 0, 500), 500)

	opts.SimFunction = SizingLinear
	opts.SimFactor = 2
	expect.EQ(t, sizeTarget(opts, 100, 10), 200)
}

func TestBinomialBounds(t *testing.T) {
	s := &StreamingSimulator{rng: rand.New(rand.NewSource(7))}
	expect.EQ(t, s.binomial(0, 0.5), 0)
	total := 0
	for i := 0; i < 200; i++ {
		n := s.binomial(50, 0.3)
		expect.GE(t, n, 0)
		expect.LE(t, n, 50)
		total += n
	}
	// The sum of 200 draws with mean 15 concentrates tightly around 3000.
	expect.GE(t, total, 2300)
	expect.LE(t, total, 3700)
}

func TestPlace(t *testing.T) {
	s := &StreamingSimulator{rng: rand.New(rand.NewSource(3))}
	seq := []byte("ACGTACGTAC")
	for i := 0; i < 50; i++ {
		off, ok := s.place(seq, 4)
		expect.True(t, ok)
		expect.GE(t, off, 0)
		expect.LE(t, off, 6)
	}
	_, ok := s.place([]byte("ACG"), 5)
	expect.False(t, ok)
	_, ok = s.place([]byte("NNNNNNNNNN"), 4)
	expect.False(t, ok)

	expect.True(t, acgtOnly([]byte("ACGT")))
	expect.False(t, acgtOnly([]byte("ACGN")))
}

// testWriteRef writes a 600-base single-record reference FASTA and returns
// its path and sequence.
func testWriteRef(t *testing.T, dir string) (string, string) {
	t.Helper()
	refSeq := strings.Repeat("ACGTTAGGCCATCGAT", 40)[:600]
	var fb strings.Builder
	fb.WriteString(">chr1 test\n")
	for i := 0; i < len(refSeq); i += 60 {
		fb.WriteString(refSeq[i : i+60])
		fb.WriteByte('\n')
	}
	path := filepath.Join(dir, "ref.fa")
	testWriteFile(t, path, fb.String())
	return path, refSeq
}

type simOut struct {
	stats                     SimStats
	u, b1, b2, c1, c2, d1, d2 string
}

// runSimulation drives a StreamingSimulator over fastaPath with one
// 8-base all-match template per category: unpaired forward, bad-end with a
// mate-1 aligned end, a concordant fw/rev pair 20 apart and a discordant
// rev/fw pair 30 apart with mate 2 upstream.
func runSimulation(t *testing.T, fastaPath string, seed uint64) simOut {
	t.Helper()
	qual8 := []byte("IIIIJJJJ")
	match8 := []byte("========")
	modelU := NewInputModelUnpaired([]TemplateUnpaired{
		{BestScore: 55, FW: true, Len: 8, MateFlag: '0', Qual: qual8, Transcript: match8},
	}, 400)
	modelB := NewInputModelUnpaired([]TemplateUnpaired{
		{BestScore: 40, FW: true, Len: 8, MateFlag: '1', OppLen: 6, Qual: qual8, Transcript: match8},
	}, 400)
	modelC := NewInputModelPaired([]TemplatePaired{{
		Score12: 20,
		Score1:  10, Len1: 8, FW1: true, Qual1: qual8, Transcript1: match8,
		Score2: 10, Len2: 8, FW2: false, Qual2: qual8, Transcript2: match8,
		Upstream1: true, FragLen: 20,
	}}, 400)
	modelD := NewInputModelPaired([]TemplatePaired{{
		Score12: 16,
		Score1:  8, Len1: 8, FW1: false, Qual1: qual8, Transcript1: match8,
		Score2: 8, Len2: 8, FW2: true, Qual2: qual8, Transcript2: match8,
		Upstream1: false, FragLen: 30,
	}}, 400)

	var u, b1, b2, c1, c2, d1, d2 bytes.Buffer
	sinks := SimSinks{
		U:  fastq.NewWriter(&u),
		B1: fastq.NewWriter(&b1), B2: fastq.NewWriter(&b2),
		C1: fastq.NewWriter(&c1), C2: fastq.NewWriter(&c2),
		D1: fastq.NewWriter(&d1), D2: fastq.NewWriter(&d2),
	}
	opts := DefaultOpts
	opts.ChunkSize = 100
	opts.SimFactor = 1
	opts.SimUnpMin = 50
	opts.SimConcMin = 50
	opts.SimDiscMin = 50
	opts.SimBadEndMin = 50

	ctx := vcontext.Background()
	sim, err := NewStreamingSimulator(ctx, []string{fastaPath}, opts,
		modelU, modelB, modelC, modelD, &sinks, rand.New(rand.NewSource(seed)))
	assert.NoError(t, err)
	expect.EQ(t, sim.overlap, 30)
	stats, err := sim.Simulate(ctx)
	assert.NoError(t, err)
	return simOut{stats, u.String(), b1.String(), b2.String(), c1.String(), c2.String(), d1.String(), d2.String()}
}

type fqRead struct {
	name string
	seq  string
	qual string
}

func testParseFastq(t *testing.T, raw string) []fqRead {
	t.Helper()
	lines := strings.Split(raw, "\n")
	if len(lines)%4 != 1 || lines[len(lines)-1] != "" {
		t.Fatalf("fastq output is not whole 4-line records (%d lines)", len(lines))
	}
	var reads []fqRead
	for i := 0; i+4 <= len(lines); i += 4 {
		if !strings.HasPrefix(lines[i], "@") || lines[i+2] != "+" {
			t.Fatalf("malformed record at line %d", i+1)
		}
		reads = append(reads, fqRead{name: lines[i][1:], seq: lines[i+1], qual: lines[i+3]})
	}
	return reads
}

// testSplitName breaks a simulated name into its separator-delimited tokens,
// minus the leading prefix token.
func testSplitName(t *testing.T, name string) []string {
	t.Helper()
	parts := strings.Split(name, simSep)
	if parts[0] != simPrefix {
		t.Fatalf("name %q does not start with the simulated-read prefix", name)
	}
	return parts[1:]
}

func testRevComp(s string) string {
	comp := map[byte]byte{'A': 'T', 'C': 'G', 'G': 'C', 'T': 'A'}
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		out[len(s)-1-i] = comp[s[i]]
	}
	return string(out)
}

func TestSimulate(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	fastaPath, refSeq := testWriteRef(t, tempDir)

	out := runSimulation(t, fastaPath, DefaultOpts.Seed)
	expect.True(t, out.stats.Unpaired > 0)
	expect.True(t, out.stats.BadEnd > 0)
	expect.True(t, out.stats.Concordant > 0)
	expect.True(t, out.stats.Discordant > 0)
	// Every placement succeeds on an unambiguous reference.
	expect.EQ(t, out.stats.Dropped, 0)

	readsU := testParseFastq(t, out.u)
	expect.EQ(t, len(readsU), out.stats.Unpaired)
	for _, r := range readsU {
		tok := testSplitName(t, r.name)
		expect.EQ(t, len(tok), 5)
		expect.EQ(t, tok[0], "chr1")
		expect.EQ(t, tok[1], "+")
		expect.EQ(t, tok[3], "55")
		expect.EQ(t, tok[4], "u")
		off, err := strconv.Atoi(tok[2])
		assert.NoError(t, err)
		// All-match forward template: the read is the reference span.
		expect.EQ(t, r.seq, refSeq[off:off+8])
		expect.EQ(t, r.qual, "IIIIJJJJ")

		// The first pass would label an alignment to this origin correct.
		al := &Alignment{QName: r.name, RName: "chr1", Pos: off + 1, Correct: -1}
		al.setCorrectness(1)
		expect.EQ(t, al.Correct, int8(1))
	}

	readsB1 := testParseFastq(t, out.b1)
	readsB2 := testParseFastq(t, out.b2)
	expect.EQ(t, len(readsB1), out.stats.BadEnd)
	expect.EQ(t, len(readsB2), out.stats.BadEnd)
	for i, r := range readsB1 {
		tok := testSplitName(t, r.name)
		expect.EQ(t, len(tok), 9)
		expect.EQ(t, tok[8], "b1")
		// Both mates share one name.
		expect.EQ(t, readsB2[i].name, r.name)
		// The aligned end's tuple comes first for a mate-1 template.
		expect.EQ(t, tok[1], "+")
		expect.EQ(t, tok[3], "40")
		// The junk mate inherits the origin with the opposite strand and a
		// zero score.
		expect.EQ(t, tok[4], "chr1")
		expect.EQ(t, tok[5], "-")
		expect.EQ(t, tok[6], tok[2])
		expect.EQ(t, tok[7], "0")
		off, err := strconv.Atoi(tok[2])
		assert.NoError(t, err)
		expect.EQ(t, r.seq, refSeq[off:off+8])
		expect.EQ(t, len(readsB2[i].seq), 6)
		expect.EQ(t, readsB2[i].qual, "IIIIII")
	}

	readsC1 := testParseFastq(t, out.c1)
	readsC2 := testParseFastq(t, out.c2)
	expect.EQ(t, len(readsC1), out.stats.Concordant)
	expect.EQ(t, len(readsC2), out.stats.Concordant)
	for i, r := range readsC1 {
		tok := testSplitName(t, r.name)
		expect.EQ(t, len(tok), 9)
		expect.EQ(t, tok[8], "c")
		expect.EQ(t, readsC2[i].name, r.name)
		expect.EQ(t, tok[1], "+")
		expect.EQ(t, tok[5], "-")
		off1, err := strconv.Atoi(tok[2])
		assert.NoError(t, err)
		off2, err := strconv.Atoi(tok[6])
		assert.NoError(t, err)
		// Mate 1 is upstream; the 20-base fragment puts mate 2's origin 12
		// past it.
		expect.EQ(t, off2, off1+12)
		expect.EQ(t, r.seq, refSeq[off1:off1+8])
		expect.EQ(t, r.qual, "IIIIJJJJ")
		expect.EQ(t, readsC2[i].seq, testRevComp(refSeq[off2:off2+8]))
		expect.EQ(t, readsC2[i].qual, "JJJJIIII")

		al := &Alignment{QName: r.name, RName: "chr1", Pos: off2 + 1,
			Flags: sam.Paired | sam.Read2 | sam.Reverse, Correct: -1}
		al.setCorrectness(1)
		expect.EQ(t, al.Correct, int8(1))
	}

	readsD1 := testParseFastq(t, out.d1)
	readsD2 := testParseFastq(t, out.d2)
	expect.EQ(t, len(readsD1), out.stats.Discordant)
	expect.EQ(t, len(readsD2), out.stats.Discordant)
	for i, r := range readsD1 {
		tok := testSplitName(t, r.name)
		expect.EQ(t, tok[8], "d")
		expect.EQ(t, tok[1], "-")
		expect.EQ(t, tok[5], "+")
		off1, err := strconv.Atoi(tok[2])
		assert.NoError(t, err)
		off2, err := strconv.Atoi(tok[6])
		assert.NoError(t, err)
		// Mate 2 is upstream; the 30-base fragment puts mate 1's origin 22
		// past it.
		expect.EQ(t, off1, off2+22)
		expect.EQ(t, r.seq, testRevComp(refSeq[off1:off1+8]))
		expect.EQ(t, readsD2[i].seq, refSeq[off2:off2+8])

		al := &Alignment{QName: r.name, RName: "chr1", Pos: off1 + 1,
			Flags: sam.Paired | sam.Read1 | sam.Reverse, Correct: -1}
		al.setCorrectness(1)
		expect.EQ(t, al.Correct, int8(1))
	}
}

func TestSimulateDeterministic(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	fastaPath, _ := testWriteRef(t, tempDir)

	a := runSimulation(t, fastaPath, 42)
	b := runSimulation(t, fastaPath, 42)
	expect.EQ(t, a, b)
}

func TestSimulateGzipReference(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	fastaPath, _ := testWriteRef(t, tempDir)
	raw, err := ioutil.ReadFile(fastaPath)
	assert.NoError(t, err)
	var zbuf bytes.Buffer
	zw := gzip.NewWriter(&zbuf)
	_, err = zw.Write(raw)
	assert.NoError(t, err)
	assert.NoError(t, zw.Close())
	gzPath := filepath.Join(tempDir, "ref.fa.gz")
	testWriteFile(t, gzPath, zbuf.String())

	out := runSimulation(t, gzPath, 42)
	expect.True(t, out.stats.Unpaired > 0)
	expect.True(t, out.stats.Concordant > 0)
	expect.EQ(t, out.stats.Dropped, 0)
	reads := testParseFastq(t, out.u)
	expect.EQ(t, len(reads), out.stats.Unpaired)
}

func TestSimulateSkipsNWindows(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(tempDir, "n.fa")
	testWriteFile(t, path, ">chr1\n"+strings.Repeat("N", 600)+"\n")

	out := runSimulation(t, path, 1)
	expect.EQ(t, out.stats, SimStats{})
	expect.EQ(t, out.u, "")
	expect.EQ(t, out.c1, "")
}

func TestSimulateEmptyModels(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	fastaPath, _ := testWriteRef(t, tempDir)

	ctx := vcontext.Background()
	rng := rand.New(rand.NewSource(1))
	w := fastq.NewWriter(ioutil.Discard)
	sinks := SimSinks{U: w, B1: w, B2: w, C1: w, C2: w, D1: w, D2: w}
	sim, err := NewStreamingSimulator(ctx, []string{fastaPath}, DefaultOpts,
		NewInputModelUnpaired(nil, 0), NewInputModelUnpaired(nil, 0),
		NewInputModelPaired(nil, 0), NewInputModelPaired(nil, 0), &sinks, rng)
	assert.NoError(t, err)
	_, err = sim.Simulate(ctx)
	expect.True(t, err != nil && strings.Contains(err.Error(), "nothing to simulate"))
}

func TestSimulateBadReference(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := vcontext.Background()
	rng := rand.New(rand.NewSource(1))
	empty := filepath.Join(tempDir, "empty.fa")
	testWriteFile(t, empty, "")

	u, b := NewInputModelUnpaired(nil, 0), NewInputModelUnpaired(nil, 0)
	c, d := NewInputModelPaired(nil, 0), NewInputModelPaired(nil, 0)
	_, err := NewStreamingSimulator(ctx, []string{empty}, DefaultOpts, u, b, c, d, &SimSinks{}, rng)
	expect.True(t, err != nil && strings.Contains(err.Error(), "empty"))

	_, err = NewStreamingSimulator(ctx, []string{filepath.Join(tempDir, "nope.fa")}, DefaultOpts, u, b, c, d, &SimSinks{}, rng)
	expect.True(t, err != nil)
}

func TestSimulatorGeometry(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	fastaPath, _ := testWriteRef(t, tempDir)

	// A chunk size at or below the required overlap is widened past it.
	opts := DefaultOpts
	opts.ChunkSize = 10
	u := NewInputModelUnpaired([]TemplateUnpaired{
		{Len: 8, Qual: []byte("IIIIIIII"), Transcript: []byte("========")},
	}, 1)
	c := NewInputModelPaired([]TemplatePaired{{
		Len1: 8, Qual1: []byte("IIIIIIII"), Transcript1: []byte("========"),
		Len2: 8, Qual2: []byte("IIIIIIII"), Transcript2: []byte("========"),
		Upstream1: true, FragLen: 30,
	}}, 1)
	ctx := vcontext.Background()
	sim, err := NewStreamingSimulator(ctx, []string{fastaPath}, opts,
		u, NewInputModelUnpaired(nil, 0), c, NewInputModelPaired(nil, 0),
		&SimSinks{}, rand.New(rand.NewSource(1)))
	assert.NoError(t, err)
	expect.EQ(t, sim.overlap, 30)
	expect.EQ(t, sim.chunk, 31)
}
