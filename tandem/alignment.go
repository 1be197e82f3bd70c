package tandem

import (
	"strconv"
	"strings"

	"github.com/grailbio/hts/sam"
	"github.com/pkg/errors"
)

// Read name sentinels for tandem reads. Simulator embeds them; the SAM pass
// recognizes them to recover ground truth.
const (
	simPrefix = "!!ts!!"
	simSep    = "!!ts-sep!!"
)

// errMapqOutOfRange marks a record whose MAPQ does not fit a byte. One such
// record should not abort a multi-gigabyte run; the pass skips it and counts
// it instead.
var errMapqOutOfRange = errors.New("MAPQ out of range")

// Alignment is one record from a SAM text file. Pass splits every line into
// name and flags only; parseRest fills in the remaining fields for records
// that reach an output.
type Alignment struct {
	QName string
	Flags sam.Flags
	// Line is the 1-based input line number. It doubles as the record id in
	// feature tables.
	Line int
	// Typ is the category tag recovered from a tandem read name ("u", "c",
	// "d", "b1" or "b2"), empty for all other reads.
	Typ string

	rest string // fields from RNAME on, unparsed until parseRest

	RName string
	Pos   int // 1-based position of the leftmost aligned base
	MapQ  int
	Cigar sam.Cigar
	RNext string
	PNext int
	Seq   string
	Qual  string

	LeftClip  int
	RightClip int
	// Transcript is the edit transcript, built from the CIGAR alone when it
	// carries '='/'X' ops and from the CIGAR merged with MD:Z otherwise.
	Transcript []byte
	// ZT holds the comma-split tokens of the ZT:Z field. BestScore is the
	// integer value of the first token.
	ZT        []string
	BestScore int
	// Correct is -1 (no ground truth in the name), 0 (ground truth present
	// but missed) or 1 (aligned within wiggle of the true origin).
	Correct int8
}

func (a *Alignment) IsAligned() bool    { return a.Flags&sam.Unmapped == 0 }
func (a *Alignment) IsFW() bool         { return a.Flags&sam.Reverse == 0 }
func (a *Alignment) IsConcordant() bool { return a.Flags&sam.ProperPair != 0 }
func (a *Alignment) IsPaired() bool     { return a.Flags&sam.Paired != 0 }

// MateFlag returns '1' or '2' for the first or second read of a pair and '0'
// for an unpaired read.
func (a *Alignment) MateFlag() byte {
	if a.Flags&sam.Read1 != 0 {
		return '1'
	}
	if a.Flags&sam.Read2 != 0 {
		return '2'
	}
	return '0'
}

func splitField(s string) (field, rest string) {
	if tab := strings.IndexByte(s, '\t'); tab >= 0 {
		return s[:tab], s[tab+1:]
	}
	return s, ""
}

// parseRest parses the fields from RNAME through QUAL plus the auxiliary
// fields this pipeline consumes (ZT:Z, MD:Z), and derives the clip lengths
// and the edit transcript. Only records routed to an output pay this cost.
func (a *Alignment) parseRest() error {
	rest := a.rest
	var f [9]string // RNAME POS MAPQ CIGAR RNEXT PNEXT TLEN SEQ QUAL
	for i := range f {
		if rest == "" {
			return errors.Errorf("line %d: truncated alignment record", a.Line)
		}
		f[i], rest = splitField(rest)
	}
	a.RName = f[0]
	var err error
	if a.Pos, err = strconv.Atoi(f[1]); err != nil {
		return errors.Wrapf(err, "line %d: POS", a.Line)
	}
	if a.MapQ, err = strconv.Atoi(f[2]); err != nil {
		return errors.Wrapf(err, "line %d: MAPQ", a.Line)
	}
	if a.MapQ < 0 || a.MapQ > 255 {
		return errors.Wrapf(errMapqOutOfRange, "line %d: MAPQ %d", a.Line, a.MapQ)
	}
	if a.Cigar, err = sam.ParseCigar([]byte(f[3])); err != nil {
		return errors.Wrapf(err, "line %d: CIGAR", a.Line)
	}
	a.RNext = f[4]
	if a.PNext, err = strconv.Atoi(f[5]); err != nil {
		return errors.Wrapf(err, "line %d: PNEXT", a.Line)
	}
	// f[6] is TLEN; fragment lengths come from positions and clips instead.
	a.Seq = f[7]
	a.Qual = f[8]

	equalX := false
	for i, co := range a.Cigar {
		switch co.Type() {
		case sam.CigarSoftClipped:
			if i == 0 {
				a.LeftClip = co.Len()
			} else if i == len(a.Cigar)-1 {
				a.RightClip = co.Len()
			}
		case sam.CigarEqual, sam.CigarMismatch:
			equalX = true
		}
	}

	var mdz string
	ztFound, mdFound := false, false
	for rest != "" && (!ztFound || !mdFound) {
		var tag string
		tag, rest = splitField(rest)
		switch {
		case !ztFound && strings.HasPrefix(tag, "ZT:Z:"):
			a.ZT = strings.Split(tag[5:], ",")
			ztFound = true
		case !mdFound && strings.HasPrefix(tag, "MD:Z:"):
			mdz = tag[5:]
			mdFound = true
		}
	}
	if !ztFound {
		return errors.Errorf("line %d: no ZT:Z field; run an aligner patched to emit it", a.Line)
	}
	if a.BestScore, err = strconv.Atoi(a.ZT[0]); err != nil {
		return errors.Wrapf(err, "line %d: first ZT:Z token is not a score", a.Line)
	}

	switch {
	case equalX:
		if a.Transcript, err = transcriptFromCigar(a.Cigar); err != nil {
			return errors.Wrapf(err, "line %d", a.Line)
		}
	case mdFound:
		md, err := parseMDZ(mdz)
		if err != nil {
			return errors.Wrapf(err, "line %d", a.Line)
		}
		if a.Transcript, err = transcriptFromMD(a.Cigar, md); err != nil {
			return errors.Wrapf(err, "line %d", a.Line)
		}
	default:
		return errors.Errorf("line %d: record has neither an extended CIGAR (with '='/'X') nor an MD:Z field", a.Line)
	}
	return nil
}

// lpos is the leftmost reference position involved in the alignment, with
// soft-clipped bases counted as covered.
func (a *Alignment) lpos() int {
	return a.Pos - a.LeftClip
}

// rpos is the rightmost reference position involved in the alignment, with
// soft-clipped bases counted as covered.
func (a *Alignment) rpos() int {
	return a.Pos + transcriptRightSpan(a.Transcript) - 1
}

// fragmentLength infers the fragment length for a pair from positions and
// clips. TLEN is not trusted: aligners disagree on how it treats soft
// clipping.
func fragmentLength(a, b *Alignment) int {
	up, dn := a, b
	if b.Pos < a.Pos {
		up, dn = b, a
	}
	return dn.rpos() - up.lpos() + 1
}

// seqFieldLen measures the SEQ field of an unparsed record remainder. It is
// how the bad-end path learns the unaligned mate's read length without
// paying for a full parse.
func seqFieldLen(rest string) int {
	for i := 0; i < 7; i++ {
		_, rest = splitField(rest)
	}
	seq, _ := splitField(rest)
	return len(seq)
}
