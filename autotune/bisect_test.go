package autotune

import (
	"math"
	"testing"
)

func TestRunConvergesToKnownRoot(t *testing.T) {
	const want = 0.3141593
	errFn := func(candidate float64) float64 {
		return want - candidate
	}

	got, converged := Run(0, 1, 200, errFn)
	if !converged {
		t.Fatal("Run() did not converge")
	}
	if math.Abs(got-want) > 5e-4 {
		t.Errorf("Run() = %v, want within 5e-4 of %v", got, want)
	}
}

func TestBinarySearchExpandsPastInitialUpperBound(t *testing.T) {
	const want = 5.5 // outside the initial [0, 1] bracket
	errFn := func(candidate float64) float64 {
		return want - candidate
	}

	got, converged := Run(0, 1, 200, errFn)
	if !converged {
		t.Fatal("Run() did not converge")
	}
	if math.Abs(got-want) > 5e-4 {
		t.Errorf("Run() = %v, want within 5e-4 of %v", got, want)
	}
}

func TestRunReportsNonConvergenceWithinBudget(t *testing.T) {
	// A target the iteration budget cannot reach in time should report
	// done=false rather than silently returning a bogus value.
	errFn := func(candidate float64) float64 {
		return 1e9 - candidate
	}

	_, converged := Run(0, 1, 3, errFn)
	if converged {
		t.Error("Run() reported convergence within an impossibly small iteration budget")
	}
}

func TestCandidateStartsAtUpperBound(t *testing.T) {
	b := New(2, 7)
	if b.Candidate() != 7 {
		t.Errorf("Candidate() = %v, want 7 (initial upper bound)", b.Candidate())
	}
}
