package tandem

import "strings"

// setCorrectness labels the alignment against ground truth embedded in its
// read name. Two grammars are recognized: the tandem-read convention this
// package emits, and the wgsim-style convention used for simulated input
// reads. A name matching neither leaves Correct at -1; a name that matches a
// grammar but fails any later field parse or comparison yields 0.
func (a *Alignment) setCorrectness(wiggle int) {
	if strings.HasPrefix(a.QName, simPrefix) {
		a.Correct = a.tandemNameCorrect(wiggle)
	} else {
		a.Correct = a.wgsimNameCorrect(wiggle)
	}
}

// tandemNameCorrect checks a name of the form
//
//	!!ts!! SEP refid SEP strand SEP refoff SEP score SEP tag
//
// where SEP is !!ts-sep!! and, for pairs, a second refid/strand/refoff/score
// tuple precedes the tag. Mate 1 and unpaired reads validate the first
// tuple; mate 2 parses past it and validates the second.
func (a *Alignment) tandemNameCorrect(wiggle int) int8 {
	cur, ok := skipToken(a.QName[len(simPrefix):], simSep)
	if !ok {
		return 0
	}
	mate2 := a.MateFlag() == '2'
	if !mate2 && !strings.HasPrefix(cur, a.RName) {
		return 0
	}
	if len(cur) < len(a.RName) {
		return 0
	}
	cur = cur[len(a.RName):]
	if cur, ok = skipToken(cur, simSep); !ok {
		return 0
	}
	if len(cur) == 0 {
		return 0
	}
	if !mate2 && cur[0] != a.strandChar() {
		return 0
	}
	cur = cur[1:]
	if cur, ok = skipToken(cur, simSep); !ok {
		return 0
	}
	refoff, n := parseUint(cur)
	cur = cur[n:]
	if !mate2 && absInt(refoff-(a.Pos-1)) >= wiggle {
		return 0
	}
	if cur, ok = skipToken(cur, simSep); !ok {
		return 0
	}
	_, n = parseInt(cur) // score, unused for correctness
	cur = cur[n:]
	if cur, ok = skipToken(cur, simSep); !ok {
		return 0
	}
	if len(cur) > 0 && cur[0] == 'u' && (len(cur) == 1 || isSpace(cur[1])) {
		return 1 // unpaired and correct
	}
	if !mate2 {
		return 1 // paired, mate 1, and correct
	}

	// Mate 2: the second tuple carries its ground truth.
	if !strings.HasPrefix(cur, a.RName) {
		return 0
	}
	cur = cur[len(a.RName):]
	if cur, ok = skipToken(cur, simSep); !ok {
		return 0
	}
	if len(cur) == 0 || cur[0] != a.strandChar() {
		return 0
	}
	cur = cur[1:]
	if cur, ok = skipToken(cur, simSep); !ok {
		return 0
	}
	refoff, n = parseUint(cur)
	cur = cur[n:]
	if absInt(refoff-(a.Pos-1)) >= wiggle {
		return 0
	}
	if cur, ok = skipToken(cur, simSep); !ok {
		return 0
	}
	_, n = parseInt(cur)
	cur = cur[n:]
	if _, ok = skipToken(cur, simSep); !ok {
		return 0
	}
	return 1 // paired, mate 2, and correct
}

// wgsimNameCorrect checks a wgsim-style name, e.g.
//
//	11_25006153_25006410_0:0:0_0:0:0_100_100_1_1/1
//
// holding refid, 1-based fragment start and end, two per-mate error count
// triples, the two read lengths and a flip bit. The grammar is recognized by
// its delimiter counts: at least eight '_' and exactly four ':'.
func (a *Alignment) wgsimNameCorrect(wiggle int) int8 {
	if strings.Count(a.QName, "_") < 8 || strings.Count(a.QName, ":") != 4 {
		return -1
	}
	cur := a.QName
	if !strings.HasPrefix(cur, a.RName) {
		return 0
	}
	cur = cur[len(a.RName):]
	if len(cur) == 0 || cur[0] != '_' {
		return 0
	}
	cur = cur[1:]
	fragStart, n := parseUint(cur)
	cur = cur[n:]
	if len(cur) == 0 || cur[0] != '_' {
		return 0
	}
	cur = cur[1:]
	fragEnd, n := parseUint(cur)
	cur = cur[n:]
	if len(cur) == 0 || cur[0] != '_' {
		return 0
	}
	cur = cur[1:]
	for colons := 4; colons > 0; {
		if len(cur) == 0 {
			return 0
		}
		if cur[0] == ':' {
			colons--
		}
		cur = cur[1:]
	}
	_, n = parseUint(cur) // second triple's trailing count
	cur = cur[n:]
	if len(cur) == 0 {
		return 0
	}
	cur = cur[1:]
	len1, n := parseUint(cur)
	cur = cur[n:]
	if len(cur) == 0 || cur[0] != '_' {
		return 0
	}
	cur = cur[1:]
	len2, n := parseUint(cur)
	cur = cur[n:]
	if len(cur) == 0 || cur[0] != '_' {
		return 0
	}
	cur = cur[1:]
	if len(cur) == 0 {
		return 0
	}
	flip := cur[0] == '1'
	mate1 := a.MateFlag() != '2'
	rdlen := len1
	if !mate1 {
		rdlen = len2
	}
	var d int
	if flip != mate1 {
		// Read comes from the left end of the fragment.
		d = absInt(a.Pos - fragStart)
	} else {
		// Right end; its 1-based start is fragEnd-rdlen+1.
		d = absInt(a.Pos - (fragEnd - rdlen + 1))
	}
	if d < wiggle {
		return 1
	}
	return 0
}

func (a *Alignment) strandChar() byte {
	if a.IsFW() {
		return '+'
	}
	return '-'
}

// skipToken strips prefix tok from s, reporting whether it was present.
func skipToken(s, tok string) (string, bool) {
	if !strings.HasPrefix(s, tok) {
		return s, false
	}
	return s[len(tok):], true
}

// parseUint reads a leading run of digits, returning the value and the
// number of bytes consumed (zero when s has no leading digit).
func parseUint(s string) (v, n int) {
	for n < len(s) && s[n] >= '0' && s[n] <= '9' {
		v = v*10 + int(s[n]-'0')
		n++
	}
	return v, n
}

// parseInt is parseUint with an optional leading minus sign.
func parseInt(s string) (v, n int) {
	if len(s) > 0 && s[0] == '-' {
		v, n = parseUint(s[1:])
		return -v, n + 1
	}
	return parseUint(s)
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}
