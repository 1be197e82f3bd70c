package tandem

import (
	"testing"

	"github.com/grailbio/testutil/expect"
	"golang.org/x/exp/rand"
)

func TestInputModelUnpaired(t *testing.T) {
	ts := []TemplateUnpaired{
		{Len: 10, Transcript: []byte("=====")},
		{Len: 20, Transcript: []byte("==========")},
	}
	m := NewInputModelUnpaired(ts, 50)
	expect.False(t, m.Empty())
	expect.EQ(t, m.Offered(), 50)
	expect.EQ(t, m.AvgLen(), 15.0)
	expect.EQ(t, m.MaxSpan(), 10)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		got := m.Draw(rng)
		expect.True(t, got.Len == 10 || got.Len == 20)
	}

	expect.True(t, NewInputModelUnpaired(nil, 0).Empty())
}

func TestInputModelPaired(t *testing.T) {
	ts := []TemplatePaired{
		{FragLen: 100, Transcript1: []byte("========"), Transcript2: []byte("========")},
		{FragLen: 6, Transcript1: []byte("=========="), Transcript2: []byte("====")},
	}
	m := NewInputModelPaired(ts, 7)
	expect.False(t, m.Empty())
	expect.EQ(t, m.Offered(), 7)
	expect.EQ(t, m.AvgLen(), 53.0)
	expect.EQ(t, m.MaxSpan(), 100)
}

func TestTemplatePairedExtent(t *testing.T) {
	// A placement covers the fragment, or a mate's span when that is wider
	// (overlapping or containing pairs).
	tp := TemplatePaired{FragLen: 50, Transcript1: []byte("=========="), Transcript2: []byte("============")}
	expect.EQ(t, tp.Extent(), 50)
	tp.FragLen = 8
	expect.EQ(t, tp.Extent(), 12)
	expect.EQ(t, tp.RefLen1(), 10)
	expect.EQ(t, tp.RefLen2(), 12)
}
