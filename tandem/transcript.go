package tandem

import (
	"github.com/grailbio/hts/sam"
	"github.com/pkg/errors"
)

// An edit transcript describes an alignment one character per base, using
// '=' (match), 'X' (mismatch), 'I' (insertion into the read), 'D' (deletion
// from the read), 'N' (reference skip) and 'S' (soft clip). Transcripts are
// what templates carry into simulation: Simulator replays them against fresh
// reference sequence to synthesize reads with the same edit profile.

// Kinds of MD:Z runs.
const (
	mdMatch    = 0 // run of matching bases
	mdMismatch = 1 // run of reference bases that mismatch the read
	mdDeletion = 2 // run of reference bases deleted from the read
)

type mdOp struct {
	kind int8
	run  int
}

// parseMDZ parses the value of an MD:Z tag into runs. Zero-length match runs
// are dropped.
func parseMDZ(s string) ([]mdOp, error) {
	var ops []mdOp
	for i := 0; i < len(s); {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			run := 0
			for i < len(s) && s[i] >= '0' && s[i] <= '9' {
				run = run*10 + int(s[i]-'0')
				i++
			}
			if run > 0 {
				ops = append(ops, mdOp{mdMatch, run})
			}
		case isAlpha(c):
			run := 0
			for i < len(s) && isAlpha(s[i]) {
				run++
				i++
			}
			ops = append(ops, mdOp{mdMismatch, run})
		case c == '^':
			i++
			run := 0
			for i < len(s) && isAlpha(s[i]) {
				run++
				i++
			}
			ops = append(ops, mdOp{mdDeletion, run})
		default:
			return nil, errors.Errorf("unexpected character %q at position %d of MD:Z string %q", c, i, s)
		}
	}
	return ops, nil
}

func isAlpha(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

// transcriptFromCigar builds the edit transcript directly from a CIGAR that
// already distinguishes matches from mismatches ('=' and 'X' ops). 'M' and
// 'P' ops are rejected; hard clips contribute nothing.
func transcriptFromCigar(cig sam.Cigar) ([]byte, error) {
	var x []byte
	for _, co := range cig {
		var c byte
		switch co.Type() {
		case sam.CigarEqual:
			c = '='
		case sam.CigarMismatch:
			c = 'X'
		case sam.CigarInsertion:
			c = 'I'
		case sam.CigarDeletion:
			c = 'D'
		case sam.CigarSkipped:
			c = 'N'
		case sam.CigarSoftClipped:
			c = 'S'
		case sam.CigarHardClipped:
			continue
		default:
			return nil, errors.Errorf("cannot derive edit transcript from %v op", co.Type())
		}
		x = appendRun(x, c, co.Len())
	}
	return x, nil
}

// transcriptFromMD builds the edit transcript by walking the CIGAR and MD:Z
// runs together. Each 'M' op consumes match and mismatch runs; match runs may
// straddle consecutive 'M' ops (an intervening insertion splits them) but a
// mismatch run must end within the op that started it. Each 'D' op must line
// up exactly with one MD:Z deletion run, and all runs must be consumed by the
// end of the CIGAR.
func transcriptFromMD(cig sam.Cigar, md []mdOp) ([]byte, error) {
	md = append([]mdOp(nil), md...) // consumed destructively below
	var x []byte
	mdo := 0
	for _, co := range cig {
		n := co.Len()
		switch co.Type() {
		case sam.CigarMatch:
			runleft := n
			for runleft > 0 && mdo < len(md) {
				runComb := runleft
				if md[mdo].run < runComb {
					runComb = md[mdo].run
				}
				runleft -= runComb
				switch md[mdo].kind {
				case mdMatch:
					x = appendRun(x, '=', runComb)
				case mdMismatch:
					if md[mdo].run != runComb {
						return nil, errors.Errorf("MD:Z mismatch run of %d crosses an M op boundary", md[mdo].run)
					}
					x = appendRun(x, 'X', runComb)
				default:
					return nil, errors.New("MD:Z deletion run inside an M op")
				}
				if runComb < md[mdo].run {
					md[mdo].run -= runComb
				} else {
					mdo++
				}
			}
		case sam.CigarInsertion:
			x = appendRun(x, 'I', n)
		case sam.CigarDeletion:
			if mdo >= len(md) || md[mdo].kind != mdDeletion || md[mdo].run != n {
				return nil, errors.Errorf("D op of length %d does not line up with an MD:Z deletion run", n)
			}
			mdo++
			x = appendRun(x, 'D', n)
		case sam.CigarSkipped:
			x = appendRun(x, 'N', n)
		case sam.CigarSoftClipped:
			x = appendRun(x, 'S', n)
		case sam.CigarHardClipped:
			// pass
		default:
			return nil, errors.Errorf("cannot merge %v op with MD:Z runs", co.Type())
		}
	}
	if mdo != len(md) {
		return nil, errors.Errorf("CIGAR left %d MD:Z runs unconsumed", len(md)-mdo)
	}
	return x, nil
}

func appendRun(x []byte, c byte, n int) []byte {
	for ; n > 0; n-- {
		x = append(x, c)
	}
	return x
}

// transcriptRefLen returns the number of reference characters the transcript
// covers, soft clips included.
func transcriptRefLen(x []byte) int {
	n := 0
	for _, c := range x {
		switch c {
		case 'S', '=', 'X', 'D':
			n++
		}
	}
	return n
}

// transcriptRightSpan counts the reference characters covered at or to the
// right of the leftmost aligned base. Leading soft clips sit to the left of
// that base and are excluded.
func transcriptRightSpan(x []byte) int {
	i := 0
	for i < len(x) && x[i] == 'S' {
		i++
	}
	n := 0
	for ; i < len(x); i++ {
		switch x[i] {
		case 'S', 'D', 'X', '=':
			n++
		}
	}
	return n
}
