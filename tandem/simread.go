package tandem

import (
	"strconv"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
)

// revComp maps a base to its complement. Anything outside ACGT maps to 'N',
// though simulated reads are drawn from ACGT-only spans.
var revComp [256]byte

func init() {
	for i := range revComp {
		revComp[i] = 'N'
	}
	revComp['A'], revComp['C'], revComp['G'], revComp['T'] = 'T', 'G', 'C', 'A'
}

var bases = [4]byte{'A', 'C', 'G', 'T'}

func randBase(r *rand.Rand) byte {
	return bases[r.Intn(4)]
}

// randBaseOther draws uniformly from the three bases other than ref.
func randBaseOther(r *rand.Rand, ref byte) byte {
	i := r.Intn(3)
	if bases[i] == ref {
		i = 3
	}
	return bases[i]
}

// mutate derives a read sequence from the reference span ref according to an
// edit transcript, always on the forward strand: '=' copies a reference
// base, 'X' substitutes a different one, 'I' inserts a random base, 'D'
// skips a reference base, and 'S' emits a random base while consuming a
// reference base.
func mutate(xscript, ref []byte, r *rand.Rand) ([]byte, error) {
	seq := make([]byte, 0, len(xscript))
	ri := 0
	for _, op := range xscript {
		switch op {
		case '=':
			seq = append(seq, ref[ri])
			ri++
		case 'X':
			seq = append(seq, randBaseOther(r, ref[ri]))
			ri++
		case 'I':
			seq = append(seq, randBase(r))
		case 'D':
			ri++
		case 'S':
			seq = append(seq, randBase(r))
			ri++
		default:
			return nil, errors.Errorf("cannot simulate edit transcript op %q", op)
		}
	}
	return seq, nil
}

// orient returns seq and qual as the sequencer would deliver them: reverse
// complemented sequence and reversed qualities for a reverse-strand read.
// The reverse path returns fresh buffers; forward returns the inputs.
func orient(seq, qual []byte, fw bool) ([]byte, []byte) {
	if fw {
		return seq, qual
	}
	rc := make([]byte, len(seq))
	for i, b := range seq {
		rc[len(seq)-1-i] = revComp[b]
	}
	rq := make([]byte, len(qual))
	for i, b := range qual {
		rq[len(qual)-1-i] = b
	}
	return rc, rq
}

// junkMate fabricates the unaligned end of a bad-end pair: n random bases
// under a uniformly high quality string.
func junkMate(n int, r *rand.Rand) (seq, qual []byte) {
	seq = make([]byte, n)
	qual = make([]byte, n)
	for i := range seq {
		seq[i] = randBase(r)
		qual[i] = 'I'
	}
	return seq, qual
}

// simTuple renders one aligned end's ground truth as it is embedded in a
// simulated read name: reference name, strand, 0-based offset and score,
// separator-joined.
func simTuple(refid string, fw bool, refoff, score int) string {
	strand := "-"
	if fw {
		strand = "+"
	}
	return refid + simSep + strand + simSep + strconv.Itoa(refoff) + simSep + strconv.Itoa(score)
}

// simName builds an unpaired simulated read name; typ is the category tag
// the first pass routes on.
func simName(refid string, fw bool, refoff, score int, typ string) string {
	return simPrefix + simSep + simTuple(refid, fw, refoff, score) + simSep + typ
}

// simNamePaired builds a paired simulated read name carrying mate 1's tuple
// then mate 2's. Both mates of a pair share the name.
func simNamePaired(refid string, fw1 bool, refoff1, score1 int, fw2 bool, refoff2, score2 int, typ string) string {
	return simPrefix + simSep + simTuple(refid, fw1, refoff1, score1) +
		simSep + simTuple(refid, fw2, refoff2, score2) + simSep + typ
}
