package inference

import (
	"container/heap"
	"math"
	"slices"

	"github.com/LiboWorks/bitrag/internal/llama"
)

type candidate struct {
	id    llama.Token
	logit float32
	p     float32
}

type candidates struct {
	items  []candidate
	sorted bool // descending by logit
	chosen int
}

func (c *candidates) reset(logits []float32) {
	if cap(c.items) < len(logits) {
		c.items = make([]candidate, len(logits))
	}
	c.items = c.items[:len(logits)]
	for i, l := range logits {
		c.items[i] = candidate{id: llama.Token(i), logit: l}
	}
	c.sorted = false
	c.chosen = 0
}

func (c *candidates) sortDesc() {
	if c.sorted {
		return
	}
	slices.SortStableFunc(c.items, func(a, b candidate) int {
		switch {
		case a.logit > b.logit:
			return -1
		case a.logit < b.logit:
			return 1
		default:
			return 0
		}
	})
	c.sorted = true
}

// softmax fills p from logits.
func (c *candidates) softmax() {
	maxLogit := float32(math.Inf(-1))
	for _, it := range c.items {
		if it.logit > maxLogit {
			maxLogit = it.logit
		}
	}
	var sum float64
	for i := range c.items {
		e := math.Exp(float64(c.items[i].logit - maxLogit))
		c.items[i].p = float32(e)
		sum += e
	}
	for i := range c.items {
		c.items[i].p = float32(float64(c.items[i].p) / sum)
	}
}

type stage interface {
	name() string
	apply(c *candidates, s *Sampler)
}

// penaltyStage divides positive scores and multiplies negative scores of
// recently seen tokens.
type penaltyStage struct{ penalty float32 }

func (penaltyStage) name() string { return "penalties" }

func (st penaltyStage) apply(c *candidates, s *Sampler) {
	if len(s.history) == 0 {
		return
	}
	seen := make(map[llama.Token]struct{}, len(s.history))
	for _, t := range s.history {
		seen[t] = struct{}{}
	}
	for i := range c.items {
		if _, ok := seen[c.items[i].id]; !ok {
			continue
		}
		if c.items[i].logit > 0 {
			c.items[i].logit /= st.penalty
		} else {
			c.items[i].logit *= st.penalty
		}
	}
	c.sorted = false
}

// minHeap keeps the k best candidates seen so far.
type minHeap []candidate

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return h[i].logit < h[j].logit }
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)        { *h = append(*h, x.(candidate)) }
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

type topKStage struct{ k int }

func (topKStage) name() string { return "top-k" }

func (st topKStage) apply(c *candidates, _ *Sampler) {
	if st.k >= len(c.items) {
		c.sortDesc()
		return
	}
	h := make(minHeap, 0, st.k)
	for _, it := range c.items {
		if h.Len() < st.k {
			heap.Push(&h, it)
		} else if it.logit > h[0].logit {
			h[0] = it
			heap.Fix(&h, 0)
		}
	}
	c.items = c.items[:st.k]
	for i := st.k - 1; i >= 0; i-- {
		c.items[i] = heap.Pop(&h).(candidate)
	}
	c.sorted = true
}

// topPStage keeps the smallest prefix of the sorted distribution whose
// cumulative probability reaches p.
type topPStage struct{ p float32 }

func (topPStage) name() string { return "top-p" }

func (st topPStage) apply(c *candidates, _ *Sampler) {
	c.sortDesc()
	c.softmax()
	var cum float32
	for i, it := range c.items {
		cum += it.p
		if cum >= st.p {
			c.items = c.items[:i+1]
			return
		}
	}
}

// minPStage drops tokens whose probability is below p times the best one.
type minPStage struct{ p float32 }

func (minPStage) name() string { return "min-p" }

func (st minPStage) apply(c *candidates, _ *Sampler) {
	c.softmax()
	var maxP float32
	for _, it := range c.items {
		if it.p > maxP {
			maxP = it.p
		}
	}
	threshold := st.p * maxP
	kept := c.items[:0]
	for _, it := range c.items {
		if it.p >= threshold {
			kept = append(kept, it)
		}
	}
	c.items = kept
}

type tempStage struct{ t float32 }

func (tempStage) name() string { return "temperature" }

func (st tempStage) apply(c *candidates, _ *Sampler) {
	for i := range c.items {
		c.items[i].logit /= st.t
	}
}

// distStage draws one candidate according to its softmax probability.
type distStage struct{}

func (distStage) name() string { return "dist" }

func (distStage) apply(c *candidates, s *Sampler) {
	c.softmax()
	r := float32(s.rng.Float64())
	var cum float32
	for i, it := range c.items {
		cum += it.p
		if r < cum {
			c.chosen = i
			return
		}
	}
	c.chosen = len(c.items) - 1
}

type greedyStage struct{}

func (greedyStage) name() string { return "greedy" }

func (greedyStage) apply(c *candidates, _ *Sampler) {
	best := 0
	for i, it := range c.items {
		if it.logit > c.items[best].logit {
			best = i
		}
	}
	c.chosen = best
}
