package tandem

import "golang.org/x/exp/rand"

// sampler holds the bookkeeping shared by the template reservoirs: count
// every offer, and pick which slot, if any, the next offer lands in. Every
// offer is equally likely to be retained no matter when it arrives.
type sampler struct {
	k, n int
	r    *rand.Rand
}

// offer returns the slot for the next item and whether to keep it at all.
func (s *sampler) offer() (int, bool) {
	s.n++
	if s.n <= s.k {
		return s.n - 1, true
	}
	j := s.r.Intn(s.n)
	return j, j < s.k
}

// UnpairedSampler reservoir-samples up to k unpaired templates.
type UnpairedSampler struct {
	sampler
	list []TemplateUnpaired
}

func NewUnpairedSampler(k int, r *rand.Rand) *UnpairedSampler {
	return &UnpairedSampler{sampler: sampler{k: k, r: r}}
}

func (s *UnpairedSampler) Add(t TemplateUnpaired) {
	j, keep := s.offer()
	if !keep {
		return
	}
	if j == len(s.list) {
		s.list = append(s.list, t)
		return
	}
	s.list[j] = t
}

// Offered returns the number of templates offered, retained or not.
func (s *UnpairedSampler) Offered() int { return s.n }

// Len returns the number of templates retained.
func (s *UnpairedSampler) Len() int { return len(s.list) }

// Model summarizes the retained templates for simulation.
func (s *UnpairedSampler) Model() *InputModelUnpaired {
	return NewInputModelUnpaired(s.list, s.n)
}

// PairedSampler reservoir-samples up to k paired templates.
type PairedSampler struct {
	sampler
	list []TemplatePaired
}

func NewPairedSampler(k int, r *rand.Rand) *PairedSampler {
	return &PairedSampler{sampler: sampler{k: k, r: r}}
}

func (s *PairedSampler) Add(t TemplatePaired) {
	j, keep := s.offer()
	if !keep {
		return
	}
	if j == len(s.list) {
		s.list = append(s.list, t)
		return
	}
	s.list[j] = t
}

// Offered returns the number of templates offered, retained or not.
func (s *PairedSampler) Offered() int { return s.n }

// Len returns the number of templates retained.
func (s *PairedSampler) Len() int { return len(s.list) }

// Model summarizes the retained templates for simulation.
func (s *PairedSampler) Model() *InputModelPaired {
	return NewInputModelPaired(s.list, s.n)
}
