package crawl

import (
	"sync"
	"testing"
)

func TestBudgetCommitSavedTruncates(t *testing.T) {
	b := NewBudget(5, 10)

	if got := b.CommitSaved(3); got != 3 {
		t.Fatalf("first commit = %d, want 3", got)
	}
	if got := b.CommitSaved(8); got != 2 {
		t.Fatalf("second commit = %d, want 2", got)
	}
	if got := b.CommitSaved(1); got != 0 {
		t.Fatalf("commit past ceiling = %d, want 0", got)
	}
	if !b.ProductsExhausted() {
		t.Fatalf("products should be exhausted")
	}

	saved, _ := b.Snapshot()
	if saved != 5 {
		t.Fatalf("saved = %d, want 5", saved)
	}
}

func TestBudgetUnlimitedProducts(t *testing.T) {
	b := NewBudget(0, 10)

	if got := b.CommitSaved(1000); got != 1000 {
		t.Fatalf("commit = %d, want 1000", got)
	}
	if b.ProductsExhausted() {
		t.Fatalf("unlimited budget must never exhaust")
	}
}

func TestBudgetReservePageCeiling(t *testing.T) {
	b := NewBudget(0, 3)

	for i := 0; i < 3; i++ {
		if !b.ReservePage() {
			t.Fatalf("reservation %d should succeed", i+1)
		}
	}
	if b.ReservePage() {
		t.Fatalf("reservation past ceiling should fail")
	}

	_, pages := b.Snapshot()
	if pages != 3 {
		t.Fatalf("pages = %d, want 3", pages)
	}
}

func TestBudgetConcurrentCommitsNeverOvershoot(t *testing.T) {
	b := NewBudget(100, 1000)

	var wg sync.WaitGroup
	total := make(chan int, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			total <- b.CommitSaved(7)
		}()
	}
	wg.Wait()
	close(total)

	sum := 0
	for n := range total {
		sum += n
	}
	if sum != 100 {
		t.Fatalf("committed %d records, want exactly 100", sum)
	}
}
