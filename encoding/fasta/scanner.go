// Package fasta provides chunkwise scanning of FASTA files.  Briefly, FASTA
// files consist of a number of named sequences that may be interrupted by
// newlines.  For example:
//
// >chr7
// ACGTAC
// GAGGAC
// GCG
// >chr8
// ACGT
//
// Rather than loading whole sequences, the Scanner yields fixed-size windows
// of sequence with a configurable overlap carried forward between consecutive
// windows of the same record, so that any feature shorter than the overlap is
// wholly contained in at least one window.  Windows never span records.
//
// Note: Sequence names are defined to be the stretch of characters excluding
// spaces immediately after '>'.  Any text appearing after a space is retained
// separately as the full header.
package fasta

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
)

// dnaUpper maps sequence bytes to their uppercase form, folding every
// ambiguous or non-nucleotide code to 'N'.
var dnaUpper [256]byte

func init() {
	for i := range dnaUpper {
		dnaUpper[i] = 'N'
	}
	for _, c := range []byte("ACGT") {
		dnaUpper[c] = c
		dnaUpper[c+'a'-'A'] = c
	}
}

// A Window is one chunk of reference sequence along with its origin: the
// record it came from and the 0-based offset of its first base within that
// record.
type Window struct {
	// Seq is the window's sequence, uppercased with non-ACGT bytes folded
	// to 'N'.  It aliases the Scanner's internal buffer and is only valid
	// until the next call to Scan.
	Seq []byte
	// ID is the first whitespace-delimited token of the record header.
	ID string
	// Header is the full record header, without the leading '>'.
	Header string
	// Start is the 0-based offset of Seq[0] within the record.
	Start int
}

// Scanner reads FASTA data and yields overlapping windows of at most
// chunkSize bases.  The final overlap bases of each window are repeated at
// the start of the next window of the same record; a window shorter than
// chunkSize is always the last window of its record.  Scanners are not
// threadsafe.
type Scanner struct {
	br       *bufio.Reader
	err      error
	chunk    int
	overlap  int
	buf      []byte
	id       string
	header   string
	consumed int // bases of the current record consumed so far
	inRecord bool
	done     bool
	started  bool
}

// NewScanner constructs a Scanner that reads raw FASTA data from r.  overlap
// must be smaller than chunkSize; violations are reported by Err after the
// first call to Scan.
func NewScanner(r io.Reader, chunkSize, overlap int) *Scanner {
	s := &Scanner{
		br:      bufio.NewReader(r),
		chunk:   chunkSize,
		overlap: overlap,
	}
	if chunkSize <= 0 || overlap < 0 || overlap >= chunkSize {
		s.err = errors.Errorf("fasta: invalid window geometry chunk=%d overlap=%d", chunkSize, overlap)
	} else {
		s.buf = make([]byte, 0, chunkSize)
	}
	return s
}

// Scan advances to the next window, returning false when the input is
// exhausted or an error occurs.  Upon false, the caller should check Err.
func (s *Scanner) Scan(w *Window) bool {
	if s.err != nil || s.done {
		return false
	}
	// Carry the previous window's tail forward so placements near the
	// boundary appear whole in this window too.  A carry made just before
	// a record switch is discarded below.
	if s.started && len(s.buf) >= s.overlap {
		copy(s.buf, s.buf[len(s.buf)-s.overlap:])
		s.buf = s.buf[:s.overlap]
	}
	s.started = true
	first := true
	for {
		c, err := s.br.ReadByte()
		if err == io.EOF {
			if !first {
				s.emit(w)
				return true
			}
			s.done = true
			return false
		}
		if err != nil {
			s.err = err
			return false
		}
		switch c {
		case '>':
			if !first {
				if err := s.br.UnreadByte(); err != nil {
					s.err = err
					return false
				}
				s.emit(w)
				return true
			}
			s.buf = s.buf[:0]
			s.consumed = 0
			if !s.readHeader() {
				return false
			}
		case ' ', '\t', '\n', '\v', '\f', '\r':
			// skip
		default:
			if !s.inRecord {
				s.err = errors.New("fasta: sequence data before first header")
				return false
			}
			first = false
			s.buf = append(s.buf, dnaUpper[c])
			s.consumed++
			if len(s.buf) == s.chunk {
				s.emit(w)
				return true
			}
		}
	}
}

// Err returns the first error encountered while scanning, if any.
func (s *Scanner) Err() error {
	return s.err
}

func (s *Scanner) emit(w *Window) {
	w.Seq = s.buf
	w.ID = s.id
	w.Header = s.header
	w.Start = s.consumed - len(s.buf)
}

func (s *Scanner) readHeader() bool {
	line, err := s.br.ReadString('\n')
	if err != nil && err != io.EOF {
		s.err = err
		return false
	}
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	s.header = line
	s.id = line
	for i := 0; i < len(line); i++ {
		if line[i] == ' ' || line[i] == '\t' {
			s.id = line[:i]
			break
		}
	}
	s.inRecord = true
	return true
}
