package tandem

// TemplateUnpaired captures what simulation needs to re-create an unpaired
// read, or the aligned end of a bad-end pair: score, orientation, quality
// string, the two read lengths and the edit transcript.
type TemplateUnpaired struct {
	BestScore int
	FW        bool
	Len       int
	// MateFlag is '0' for a truly unpaired read, '1' or '2' for the aligned
	// end of a bad-end pair.
	MateFlag byte
	// OppLen is the unaligned mate's read length, 0 for unpaired reads.
	OppLen     int
	Qual       []byte
	Transcript []byte
}

// RefLen returns the number of reference characters the template's
// transcript covers, soft clips included.
func (t *TemplateUnpaired) RefLen() int {
	return transcriptRefLen(t.Transcript)
}

// TemplatePaired captures both ends of a concordant or discordant pair,
// mate 1 first, plus which mate was upstream and the fragment length.
type TemplatePaired struct {
	Score12 int

	Score1      int
	Len1        int
	FW1         bool
	Qual1       []byte
	Transcript1 []byte

	Score2      int
	Len2        int
	FW2         bool
	Qual2       []byte
	Transcript2 []byte

	Upstream1 bool
	FragLen   int
}

func (t *TemplatePaired) RefLen1() int {
	return transcriptRefLen(t.Transcript1)
}

func (t *TemplatePaired) RefLen2() int {
	return transcriptRefLen(t.Transcript2)
}

// Extent returns the reference length a placement of the whole pair covers.
// The downstream mate is pushed max(FragLen, its span) - span past the
// upstream mate's origin, so the extent is the larger of the two spans and
// the fragment length.
func (t *TemplatePaired) Extent() int {
	e := t.FragLen
	if r := t.RefLen1(); r > e {
		e = r
	}
	if r := t.RefLen2(); r > e {
		e = r
	}
	return e
}
