package engine

// masterShare is the provider's fixed share of a captured no-show hold.
// The remainder goes back to the client as wallet credit: the client is
// penalized but not stripped of the entire hold, which blunts backlash while
// still compensating the provider for lost time.
const masterShare = 0.80

// NoShowSplit divides a captured hold between provider compensation and
// client wallet credit.
type NoShowSplit struct {
	MasterCompensation float64
	ClientWalletCredit float64
}

// SplitNoShow splits a hold amount 80/20. The two shares always sum to the
// hold exactly at cent precision: the client share is computed as the
// remainder, never rounded independently.
func SplitNoShow(holdAmount float64) NoShowSplit {
	master := Round2(holdAmount * masterShare)
	return NoShowSplit{
		MasterCompensation: master,
		ClientWalletCredit: Round2(holdAmount - master),
	}
}
