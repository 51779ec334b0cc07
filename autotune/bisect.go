package autotune

import "math"

// Epsilon is the convergence tolerance the bisection stage runs to.
const Epsilon = 5e-4

// BinarySearch drives a scalar parameter search without coroutine
// semantics: the caller repeatedly evaluates Candidate(), derives a signed
// error (positive meaning the true value is higher than the candidate),
// and feeds it to Next. This replaces the source's lazy generator
// (yield/send) with a plain stateful struct, per the fitter's redesign
// toward an explicit driver over coroutine-style control flow.
//
// Candidate() starts at hi and doubles hi (tracking the previous hi as the
// new lo) while the error stays positive, establishing a bracket before
// switching to ordinary bisection within it.
type BinarySearch struct {
	lo, hi    float64
	epsilon   float64
	expanding bool
	candidate float64
}

// New creates a BinarySearch bracketed initially by [lo, hi].
func New(lo, hi float64) *BinarySearch {
	return &BinarySearch{lo: lo, hi: hi, epsilon: Epsilon, expanding: true, candidate: hi}
}

// Candidate returns the value to evaluate next.
func (b *BinarySearch) Candidate() float64 {
	return b.candidate
}

// Next reports the next candidate given the signed error observed at the
// current one, and whether the search has converged (in which case
// Candidate() holds the final estimate).
func (b *BinarySearch) Next(errorSignal float64) (candidate float64, done bool) {
	if b.expanding {
		if errorSignal > 0 {
			b.lo = b.hi
			b.hi *= 2
			b.candidate = b.hi
			return b.candidate, false
		}
		b.expanding = false
		b.candidate = (b.lo + b.hi) / 2
		return b.candidate, false
	}

	if errorSignal > 0 {
		b.lo = b.candidate
	} else {
		b.hi = b.candidate
	}
	b.candidate = (b.lo + b.hi) / 2
	return b.candidate, math.Abs(b.hi-b.lo) < b.epsilon
}

// Run drives the search to convergence against errFn, an error-function
// closure evaluated at each candidate, capping at maxIterations to bound a
// pathological non-converging search (a degenerate fit per the steady-state
// solver's error handling).
func Run(lo, hi float64, maxIterations int, errFn func(candidate float64) float64) (result float64, converged bool) {
	search := New(lo, hi)
	candidate := search.Candidate()
	for i := 0; i < maxIterations; i++ {
		errSignal := errFn(candidate)
		next, done := search.Next(errSignal)
		candidate = next
		if done {
			return candidate, true
		}
	}
	return candidate, false
}
