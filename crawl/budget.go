package crawl

import "sync"

// Budget owns the process-wide crawl ceilings. All tasks interact with it
// through check-and-increment calls; counters never decrement, so the
// configured ceilings cannot be overshot under concurrent completions.
type Budget struct {
	mu          sync.Mutex
	saved       int
	pages       int
	maxProducts int // 0 = unlimited
	maxPages    int
}

// NewBudget builds a budget. maxProducts of 0 means unlimited products;
// maxPages always bounds the run.
func NewBudget(maxProducts, maxPages int) *Budget {
	return &Budget{maxProducts: maxProducts, maxPages: maxPages}
}

// ReservePage claims one page fetch. It returns false once the page
// ceiling is reached, leaving the counter at the ceiling.
func (b *Budget) ReservePage() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pages >= b.maxPages {
		return false
	}
	b.pages++
	return true
}

// CommitSaved claims room for n records and returns how many fit under
// the product ceiling. Excess beyond the allowance is the caller's to
// count as truncated.
func (b *Budget) CommitSaved(n int) int {
	if n <= 0 {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.maxProducts > 0 {
		remaining := b.maxProducts - b.saved
		if remaining <= 0 {
			return 0
		}
		if n > remaining {
			n = remaining
		}
	}
	b.saved += n
	return n
}

// ProductsExhausted reports whether the product ceiling has been reached.
func (b *Budget) ProductsExhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maxProducts > 0 && b.saved >= b.maxProducts
}

// Snapshot returns the current counters.
func (b *Budget) Snapshot() (saved, pages int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saved, b.pages
}
