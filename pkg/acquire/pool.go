package acquire

import (
	"container/heap"
	"image"
	"sort"

	"github.com/Sriram-PR/logo-scraper/pkg/models"
)

// --- Bounded Candidate Pool ---

// pooledCandidate keeps the decoded image so a fallback winner needs no second decode
type pooledCandidate struct {
	cand  *models.CandidateImage
	img   image.Image
	index int // The index of the item in the heap (required by heap interface)
}

// better orders candidates by score desc, then discovery order asc
func better(a, b *models.CandidateImage) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Order < b.Order
}

// candidateHeap is a min-heap on quality: the root is the worst retained candidate
type candidateHeap []*pooledCandidate

func (h candidateHeap) Len() int { return len(h) }

func (h candidateHeap) Less(i, j int) bool {
	return better(h[j].cand, h[i].cand)
}

func (h candidateHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

// Push adds an element to the heap
func (h *candidateHeap) Push(x any) {
	item := x.(*pooledCandidate)
	item.index = len(*h)
	*h = append(*h, item)
}

// Pop removes and returns the worst element
func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // avoid memory leak
	item.index = -1 // for safety
	*h = old[0 : n-1]
	return item
}

// candidatePool retains the best `capacity` candidates of one brand run.
// Owned by a single Acquire call, so it has no locking.
type candidatePool struct {
	h        candidateHeap
	capacity int
}

func newCandidatePool(capacity int) *candidatePool {
	if capacity < 1 {
		capacity = 1
	}
	p := &candidatePool{capacity: capacity}
	heap.Init(&p.h)
	return p
}

// offer keeps c if the pool has room or c beats the worst retained candidate
func (p *candidatePool) offer(c *models.CandidateImage, img image.Image) bool {
	if p.h.Len() < p.capacity {
		heap.Push(&p.h, &pooledCandidate{cand: c, img: img})
		return true
	}
	worst := p.h[0]
	if !better(c, worst.cand) {
		return false
	}
	worst.cand, worst.img = c, img
	heap.Fix(&p.h, 0)
	return true
}

func (p *candidatePool) len() int { return p.h.Len() }

// ranked returns retained candidates best first
func (p *candidatePool) ranked() []*pooledCandidate {
	out := make([]*pooledCandidate, len(p.h))
	copy(out, p.h)
	sort.Slice(out, func(i, j int) bool { return better(out[i].cand, out[j].cand) })
	return out
}
