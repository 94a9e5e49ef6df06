package main

import "sync"

// errAgg aggregates non-fatal error messages across workers, retaining the
// first N samples for the summary log.
type errAgg struct {
	mu    sync.Mutex
	limit int
	count int
	first []string
}

func newErrAgg(limit int) *errAgg {
	return &errAgg{limit: limit}
}

func (a *errAgg) add(msg string) {
	a.mu.Lock()
	if a.count < a.limit {
		a.first = append(a.first, msg)
	}
	a.count++
	a.mu.Unlock()
}

func (a *errAgg) total() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

func (a *errAgg) samples() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.first...)
}
