package engine

import "testing"

func TestSplitNoShow_ExactSum(t *testing.T) {
	// Awkward cent amounts included: the shares must reassemble the hold
	// exactly after 2-decimal rounding.
	amounts := []float64{0, 0.01, 0.03, 1, 9.99, 12.34, 25, 33.33, 50.55, 100, 249.99}
	for _, h := range amounts {
		split := SplitNoShow(h)
		if got := Round2(split.MasterCompensation + split.ClientWalletCredit); got != h {
			t.Fatalf("split of %.2f leaks: master=%.2f client=%.2f sum=%.2f",
				h, split.MasterCompensation, split.ClientWalletCredit, got)
		}
	}
}

func TestSplitNoShow_MasterMajority(t *testing.T) {
	split := SplitNoShow(50)
	if split.MasterCompensation != 40 || split.ClientWalletCredit != 10 {
		t.Fatalf("expected 40/10 split, got %.2f/%.2f", split.MasterCompensation, split.ClientWalletCredit)
	}
}

func TestSplitNoShow_NonNegativeShares(t *testing.T) {
	for _, h := range []float64{0, 0.01, 0.02, 5.55} {
		split := SplitNoShow(h)
		if split.MasterCompensation < 0 || split.ClientWalletCredit < 0 {
			t.Fatalf("negative share splitting %.2f: %+v", h, split)
		}
	}
}
