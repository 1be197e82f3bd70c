package tandem

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"
	"github.com/grailbio/hts/sam"
	"github.com/pkg/errors"
)

// Sinks collects the outputs of one SAM pass, one set per category: u
// (unpaired), b (bad-end: one mate aligned), c (concordant pair), d
// (discordant pair). Any sink may be nil, which disables it; reservoirs are
// non-nil only when a simulation phase follows.
type Sinks struct {
	FeaturesU *UnpairedFeatureTable
	FeaturesB *UnpairedFeatureTable
	FeaturesC *PairedFeatureTable
	FeaturesD *PairedFeatureTable

	TemplatesU *UnpairedTemplateTable
	TemplatesB *UnpairedTemplateTable
	TemplatesC *PairedTemplateTable
	TemplatesD *PairedTemplateTable

	ReservoirU *UnpairedSampler
	ReservoirB *UnpairedSampler
	ReservoirC *PairedSampler
	ReservoirD *PairedSampler
}

// Flush flushes every table sink. Reservoirs hold no buffered output.
func (s *Sinks) Flush() error {
	var tables []interface{ Flush() error }
	if s.FeaturesU != nil {
		tables = append(tables, s.FeaturesU)
	}
	if s.FeaturesB != nil {
		tables = append(tables, s.FeaturesB)
	}
	if s.FeaturesC != nil {
		tables = append(tables, s.FeaturesC)
	}
	if s.FeaturesD != nil {
		tables = append(tables, s.FeaturesD)
	}
	if s.TemplatesU != nil {
		tables = append(tables, s.TemplatesU)
	}
	if s.TemplatesB != nil {
		tables = append(tables, s.TemplatesB)
	}
	if s.TemplatesC != nil {
		tables = append(tables, s.TemplatesC)
	}
	if s.TemplatesD != nil {
		tables = append(tables, s.TemplatesD)
	}
	for _, t := range tables {
		if err := t.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// Pass reads one SAM text stream and routes every primary alignment, or
// mated pair of alignments, to the matching category sinks. Mates are joined
// by query name, so the input does not need to keep pairs adjacent. Records
// flagged supplementary are skipped. Pairs whose mate never arrives are
// dropped at end of input and counted in the returned Stats.
func Pass(r io.Reader, opts Opts, sinks *Sinks) (Stats, error) {
	var stats Stats
	pending := make(map[string]*Alignment)
	br := bufio.NewReaderSize(r, 64<<10)
	for {
		line, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return stats, err
		}
		if line == "" && err == io.EOF {
			break
		}
		line = strings.TrimRight(line, "\r\n")
		stats.Lines++
		if len(line) == 0 {
			if err == io.EOF {
				break
			}
			continue
		}
		if line[0] == '@' {
			stats.HeaderLines++
			if err == io.EOF {
				break
			}
			continue
		}

		al, perr := newAlignment(line, stats.Lines)
		if perr != nil {
			return stats, perr
		}
		if al.Flags&sam.Supplementary != 0 {
			stats.Supplementary++
		} else if al.MateFlag() == '0' {
			stats.Unpaired++
			if perr = routeUnpaired(al, opts, sinks, &stats); perr != nil {
				return stats, perr
			}
		} else if mate, ok := pending[al.QName]; ok {
			if mate.MateFlag() == al.MateFlag() {
				return stats, errors.Errorf("line %d: two mate-%c records named %q", al.Line, al.MateFlag(), al.QName)
			}
			delete(pending, al.QName)
			stats.Pairs++
			if perr = routePair(al, mate, opts, sinks, &stats); perr != nil {
				return stats, perr
			}
		} else {
			pending[al.QName] = al
		}

		if err == io.EOF {
			break
		}
	}
	stats.MatesUnmatched = len(pending)
	return stats, nil
}

// PassFile runs Pass over one SAM path, decompressing transparently when the
// path names a compressed file.
func PassFile(ctx context.Context, path string, opts Opts, sinks *Sinks) (stats Stats, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return Stats{}, errors.Wrapf(err, "open %s", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	var r io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(r, in.Name()); u != nil {
		r = u
	}
	return Pass(r, opts, sinks)
}

// newAlignment splits off the name and flags; the rest parses lazily.
func newAlignment(line string, lineno int) (*Alignment, error) {
	qname, rest := splitField(line)
	flagStr, rest := splitField(rest)
	if flagStr == "" || rest == "" {
		return nil, errors.Errorf("line %d: truncated alignment record", lineno)
	}
	flag, err := strconv.Atoi(flagStr)
	if err != nil {
		return nil, errors.Wrapf(err, "line %d: FLAG", lineno)
	}
	al := &Alignment{
		QName:   qname,
		Flags:   sam.Flags(flag),
		Line:    lineno,
		rest:    rest,
		Correct: -1,
	}
	if strings.HasPrefix(qname, simPrefix) {
		if i := strings.LastIndexByte(qname, '!'); i >= 0 {
			al.Typ = qname[i+1:]
		}
	}
	return al, nil
}

// skipRecoverable absorbs per-record errors that should not abort a large
// run, counting them instead.
func skipRecoverable(err error, stats *Stats) error {
	if err != nil && errors.Cause(err) == errMapqOutOfRange {
		stats.MapqSkipped++
		return nil
	}
	return err
}

func routeUnpaired(al *Alignment, opts Opts, sinks *Sinks, stats *Stats) error {
	if !al.IsAligned() {
		stats.UnpairedUnaligned++
		return nil
	}
	if al.Typ != "" && al.Typ[0] != 'u' {
		stats.TypeMismatches++
	}
	stats.UnpairedAligned++
	err := emitUnpaired(al, 0, opts, sinks.FeaturesU, sinks.TemplatesU, sinks.ReservoirU)
	return skipRecoverable(err, stats)
}

func routePair(a, b *Alignment, opts Opts, sinks *Sinks, stats *Stats) error {
	switch {
	case !a.IsAligned() && !b.IsAligned():
		stats.PairsUnaligned++
		return nil

	case a.IsAligned() != b.IsAligned():
		alm, unal := a, b
		if !a.IsAligned() {
			alm, unal = b, a
		}
		if alm.Typ != "" && !(len(alm.Typ) >= 2 && alm.Typ[0] == 'b' && alm.Typ[1] == alm.MateFlag()) {
			stats.TypeMismatches++
		}
		stats.PairsBadEnd++
		err := emitUnpaired(alm, seqFieldLen(unal.rest), opts, sinks.FeaturesB, sinks.TemplatesB, sinks.ReservoirB)
		return skipRecoverable(err, stats)
	}

	// Feature rows list the earlier record of the pair first.
	first, second := a, b
	if b.Line < a.Line {
		first, second = b, a
	}
	if a.IsConcordant() {
		if a.Typ != "" && a.Typ[0] != 'c' {
			stats.TypeMismatches++
		}
		stats.PairsConcordant++
		err := emitPaired(first, second, opts, sinks.FeaturesC, sinks.TemplatesC, sinks.ReservoirC)
		return skipRecoverable(err, stats)
	}
	if a.Typ != "" && a.Typ[0] != 'd' {
		stats.TypeMismatches++
	}
	stats.PairsDiscordant++
	err := emitPaired(first, second, opts, sinks.FeaturesD, sinks.TemplatesD, sinks.ReservoirD)
	return skipRecoverable(err, stats)
}

func emitUnpaired(al *Alignment, ordlen int, opts Opts, feat *UnpairedFeatureTable, tmpl *UnpairedTemplateTable, res *UnpairedSampler) error {
	if err := al.parseRest(); err != nil {
		return err
	}
	al.setCorrectness(opts.Wiggle)
	t := TemplateUnpaired{
		BestScore:  al.BestScore,
		FW:         al.IsFW(),
		Len:        len(al.Seq),
		MateFlag:   al.MateFlag(),
		OppLen:     ordlen,
		Qual:       []byte(al.Qual),
		Transcript: al.Transcript,
	}
	if tmpl != nil {
		if err := tmpl.Write(&t); err != nil {
			return err
		}
	}
	if res != nil {
		res.Add(t)
	}
	if feat != nil {
		if err := feat.Write(al, ordlen); err != nil {
			return err
		}
	}
	return nil
}

func emitPaired(a1, a2 *Alignment, opts Opts, feat *PairedFeatureTable, tmpl *PairedTemplateTable, res *PairedSampler) error {
	if err := a1.parseRest(); err != nil {
		return err
	}
	if err := a2.parseRest(); err != nil {
		return err
	}
	a1.setCorrectness(opts.Wiggle)
	a2.setCorrectness(opts.Wiggle)
	fraglen := fragmentLength(a1, a2)
	if fraglen > opts.MaxAllowedFraglen {
		fraglen = opts.MaxAllowedFraglen
	}
	t := TemplatePaired{
		Score12:     a1.BestScore + a2.BestScore,
		Score1:      a1.BestScore,
		Len1:        len(a1.Seq),
		FW1:         a1.IsFW(),
		Qual1:       []byte(a1.Qual),
		Transcript1: a1.Transcript,
		Score2:      a2.BestScore,
		Len2:        len(a2.Seq),
		FW2:         a2.IsFW(),
		Qual2:       []byte(a2.Qual),
		Transcript2: a2.Transcript,
		Upstream1:   a1.Pos < a2.Pos,
		FragLen:     fraglen,
	}
	if tmpl != nil {
		if err := tmpl.Write(&t); err != nil {
			return err
		}
	}
	if res != nil {
		res.Add(t)
	}
	if feat != nil {
		if err := feat.Write(a1, a2, fraglen); err != nil {
			return err
		}
	}
	return nil
}
