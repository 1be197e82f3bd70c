package tandem

import "golang.org/x/exp/rand"

// InputModelUnpaired holds one category's retained unpaired templates plus
// the summary statistics simulation sizing needs.
type InputModelUnpaired struct {
	ts      []TemplateUnpaired
	offered int
	avgLen  float64
	maxSpan int
}

// NewInputModelUnpaired builds a model over retained templates. offered is
// the total number of templates the reservoir was offered, which can exceed
// len(ts); sizing works from offers so that subsampling does not shrink the
// simulated batch.
func NewInputModelUnpaired(ts []TemplateUnpaired, offered int) *InputModelUnpaired {
	m := &InputModelUnpaired{ts: ts, offered: offered}
	for i := range ts {
		m.avgLen += float64(ts[i].Len) / float64(len(ts))
		if span := ts[i].RefLen(); span > m.maxSpan {
			m.maxSpan = span
		}
	}
	return m
}

func (m *InputModelUnpaired) Empty() bool     { return len(m.ts) == 0 }
func (m *InputModelUnpaired) Offered() int    { return m.offered }
func (m *InputModelUnpaired) AvgLen() float64 { return m.avgLen }

// MaxSpan is the widest reference span any retained template needs when
// placed; window overlap at least this large keeps placements whole.
func (m *InputModelUnpaired) MaxSpan() int { return m.maxSpan }

// Draw picks a retained template uniformly at random.
func (m *InputModelUnpaired) Draw(r *rand.Rand) *TemplateUnpaired {
	return &m.ts[r.Intn(len(m.ts))]
}

// InputModelPaired is the paired-template counterpart; its length statistics
// are over fragment lengths rather than read lengths.
type InputModelPaired struct {
	ts      []TemplatePaired
	offered int
	avgLen  float64
	maxSpan int
}

func NewInputModelPaired(ts []TemplatePaired, offered int) *InputModelPaired {
	m := &InputModelPaired{ts: ts, offered: offered}
	for i := range ts {
		m.avgLen += float64(ts[i].FragLen) / float64(len(ts))
		if span := ts[i].Extent(); span > m.maxSpan {
			m.maxSpan = span
		}
	}
	return m
}

func (m *InputModelPaired) Empty() bool     { return len(m.ts) == 0 }
func (m *InputModelPaired) Offered() int    { return m.offered }
func (m *InputModelPaired) AvgLen() float64 { return m.avgLen }

// MaxSpan is the widest reference extent any retained pair needs when
// placed; see TemplatePaired.Extent.
func (m *InputModelPaired) MaxSpan() int { return m.maxSpan }

// Draw picks a retained template uniformly at random.
func (m *InputModelPaired) Draw(r *rand.Rand) *TemplatePaired {
	return &m.ts[r.Intn(len(m.ts))]
}
