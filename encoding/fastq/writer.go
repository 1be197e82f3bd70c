// Package fastq provides a writer for the FASTQ file format.
package fastq

import "io"

var (
	newline  = []byte{'\n'}
	atSign   = []byte{'@'}
	plusLine = []byte{'+', '\n'}
)

// Writer is a FASTQ file writer.
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter constructs a new FASTQ writer
// that writes reads to the underlying writer w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write writes one read as a four-line FASTQ record, adding the leading
// '@' to name and emitting a bare '+' separator line.
// An error is returned if any write failed.
func (w *Writer) Write(name, seq, qual []byte) error {
	w.write(atSign)
	w.writeln(name)
	w.writeln(seq)
	w.write(plusLine)
	w.writeln(qual)
	return w.err
}

func (w *Writer) write(p []byte) {
	if w.err != nil {
		return
	}
	_, w.err = w.w.Write(p)
}

func (w *Writer) writeln(line []byte) {
	w.write(line)
	w.write(newline)
}
