package tandem

import (
	"fmt"
	"io"

	"github.com/grailbio/base/tsv"
)

// Feature tables carry one row per qualifying alignment (two per pair) for
// the downstream MAPQ model trainer. The number of ZT:Z tokens is not known
// until the first record arrives, so header rows are written lazily.

// UnpairedFeatureTable writes rows of the form
//
//	id  len  olen  ztz0..ztzN  mapq  correct
//
// where id is the record's input line number and olen is the unaligned
// mate's read length (0 for truly unpaired reads).
type UnpairedFeatureTable struct {
	w      *tsv.Writer
	header bool
}

func NewUnpairedFeatureTable(w io.Writer) *UnpairedFeatureTable {
	return &UnpairedFeatureTable{w: tsv.NewWriter(w)}
}

func (t *UnpairedFeatureTable) Write(a *Alignment, ordlen int) error {
	if !t.header {
		t.header = true
		t.w.WriteString("id")
		t.w.WriteString("len")
		t.w.WriteString("olen")
		for i := range a.ZT {
			t.w.WriteString(fmt.Sprintf("ztz%d", i))
		}
		t.w.WriteString("mapq")
		t.w.WriteString("correct")
		if err := t.w.EndLine(); err != nil {
			return err
		}
	}
	t.w.WriteInt64(int64(a.Line))
	t.w.WriteInt64(int64(len(a.Seq)))
	t.w.WriteInt64(int64(ordlen))
	for _, tok := range a.ZT {
		t.w.WriteString(tok)
	}
	t.w.WriteInt64(int64(a.MapQ))
	t.w.WriteInt64(int64(a.Correct))
	return t.w.EndLine()
}

func (t *UnpairedFeatureTable) Flush() error { return t.w.Flush() }

// PairedFeatureTable writes two rows per pair, the earlier-line mate first.
// Each row carries its own mate's fields, then the other mate's length, the
// shared fragment length and the other mate's ZT:Z tokens:
//
//	id  len  ztz_0..ztz_N  olen  fraglen  oztz_0..oztz_N  mapq  correct
type PairedFeatureTable struct {
	w      *tsv.Writer
	header bool
}

func NewPairedFeatureTable(w io.Writer) *PairedFeatureTable {
	return &PairedFeatureTable{w: tsv.NewWriter(w)}
}

func (t *PairedFeatureTable) Write(a1, a2 *Alignment, fraglen int) error {
	if !t.header {
		t.header = true
		t.w.WriteString("id")
		t.w.WriteString("len")
		for i := range a1.ZT {
			t.w.WriteString(fmt.Sprintf("ztz_%d", i))
		}
		t.w.WriteString("olen")
		t.w.WriteString("fraglen")
		for i := range a1.ZT {
			t.w.WriteString(fmt.Sprintf("oztz_%d", i))
		}
		t.w.WriteString("mapq")
		t.w.WriteString("correct")
		if err := t.w.EndLine(); err != nil {
			return err
		}
	}
	if err := t.row(a1, a2, fraglen); err != nil {
		return err
	}
	return t.row(a2, a1, fraglen)
}

func (t *PairedFeatureTable) row(a, o *Alignment, fraglen int) error {
	t.w.WriteInt64(int64(a.Line))
	t.w.WriteInt64(int64(len(a.Seq)))
	for _, tok := range a.ZT {
		t.w.WriteString(tok)
	}
	t.w.WriteInt64(int64(len(o.Seq)))
	t.w.WriteInt64(int64(fraglen))
	for _, tok := range o.ZT {
		t.w.WriteString(tok)
	}
	t.w.WriteInt64(int64(a.MapQ))
	t.w.WriteInt64(int64(a.Correct))
	return t.w.EndLine()
}

func (t *PairedFeatureTable) Flush() error { return t.w.Flush() }

// Template tables serialize every qualifying template, headerless, in the
// same field order the in-memory templates use.

// UnpairedTemplateTable rows: score, fw, qual, len, mate flag, opposite
// mate's length, edit transcript.
type UnpairedTemplateTable struct {
	w *tsv.Writer
}

func NewUnpairedTemplateTable(w io.Writer) *UnpairedTemplateTable {
	return &UnpairedTemplateTable{w: tsv.NewWriter(w)}
}

func (t *UnpairedTemplateTable) Write(tp *TemplateUnpaired) error {
	t.w.WriteInt64(int64(tp.BestScore))
	t.w.WriteByte(tfChar(tp.FW))
	t.w.WriteString(string(tp.Qual))
	t.w.WriteInt64(int64(tp.Len))
	t.w.WriteByte(tp.MateFlag)
	t.w.WriteInt64(int64(tp.OppLen))
	t.w.WriteString(string(tp.Transcript))
	return t.w.EndLine()
}

func (t *UnpairedTemplateTable) Flush() error { return t.w.Flush() }

// PairedTemplateTable rows: summed score, then per-mate fw, qual, score,
// len and transcript, then the mate-1-upstream flag and fragment length.
type PairedTemplateTable struct {
	w *tsv.Writer
}

func NewPairedTemplateTable(w io.Writer) *PairedTemplateTable {
	return &PairedTemplateTable{w: tsv.NewWriter(w)}
}

func (t *PairedTemplateTable) Write(tp *TemplatePaired) error {
	t.w.WriteInt64(int64(tp.Score12))
	t.w.WriteByte(tfChar(tp.FW1))
	t.w.WriteString(string(tp.Qual1))
	t.w.WriteInt64(int64(tp.Score1))
	t.w.WriteInt64(int64(tp.Len1))
	t.w.WriteString(string(tp.Transcript1))
	t.w.WriteByte(tfChar(tp.FW2))
	t.w.WriteString(string(tp.Qual2))
	t.w.WriteInt64(int64(tp.Score2))
	t.w.WriteInt64(int64(tp.Len2))
	t.w.WriteString(string(tp.Transcript2))
	t.w.WriteByte(tfChar(tp.Upstream1))
	t.w.WriteInt64(int64(tp.FragLen))
	return t.w.EndLine()
}

func (t *PairedTemplateTable) Flush() error { return t.w.Flush() }

func tfChar(b bool) byte {
	if b {
		return 'T'
	}
	return 'F'
}
