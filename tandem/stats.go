package tandem

// Stats represents high-level counts accumulated over one pass through a SAM
// input.
type Stats struct {
	// Lines is the total # of input lines, headers included.
	Lines int
	// HeaderLines is the # of lines starting with '@'.
	HeaderLines int
	// Supplementary is the # of alignment records skipped for carrying the
	// supplementary flag (0x800).
	Supplementary int
	// TypeMismatches counts records whose name declares one simulated
	// category but which aligned as another. They are still recorded under
	// the category they aligned as.
	TypeMismatches int

	// Unpaired is the # of records with neither mate flag set.
	Unpaired int
	// UnpairedAligned / UnpairedUnaligned split Unpaired by alignment state.
	UnpairedAligned   int
	UnpairedUnaligned int

	// Pairs is the # of mate pairs joined by name.
	Pairs int
	// PairsConcordant, PairsDiscordant, PairsBadEnd and PairsUnaligned split
	// Pairs by how the two mates aligned.
	PairsConcordant int
	PairsDiscordant int
	PairsBadEnd     int
	PairsUnaligned  int
	// MatesUnmatched is the # of paired records whose mate never showed up
	// by end of input. They are dropped.
	MatesUnmatched int
	// MapqSkipped is the # of records or pairs dropped because a MAPQ field
	// was outside [0, 255].
	MapqSkipped int
}

// Merge adds the field values of the two Stats objects and creates new Stats.
func (s Stats) Merge(o Stats) Stats {
	s.Lines += o.Lines
	s.HeaderLines += o.HeaderLines
	s.Supplementary += o.Supplementary
	s.TypeMismatches += o.TypeMismatches
	s.Unpaired += o.Unpaired
	s.UnpairedAligned += o.UnpairedAligned
	s.UnpairedUnaligned += o.UnpairedUnaligned
	s.Pairs += o.Pairs
	s.PairsConcordant += o.PairsConcordant
	s.PairsDiscordant += o.PairsDiscordant
	s.PairsBadEnd += o.PairsBadEnd
	s.PairsUnaligned += o.PairsUnaligned
	s.MatesUnmatched += o.MatesUnmatched
	s.MapqSkipped += o.MapqSkipped
	return s
}
