package model

import "time"

type (
	// Account is one registered username and its stored envelopes. The
	// envelope order is fixed at registration and defines redemption order.
	Account struct {
		Username        string     `bson:"username" json:"username"`
		Envelopes       []string   `bson:"envelopes" json:"envelopes"`
		RedeemedIndices []int      `bson:"redeemedIndices" json:"redeemedIndices"`
		LastRequest     *time.Time `bson:"lastRequest" json:"lastRequest"`
		CreatedAt       time.Time  `bson:"createdAt" json:"createdAt"`
	}
)

// Redeemed reports whether envelope index i has already been handed out.
func (a *Account) Redeemed(i int) bool {
	for _, used := range a.RedeemedIndices {
		if used == i {
			return true
		}
	}
	return false
}

// NextUnredeemed returns the lowest unredeemed envelope index, or -1 when
// the account is exhausted.
func (a *Account) NextUnredeemed() int {
	for i := range a.Envelopes {
		if !a.Redeemed(i) {
			return i
		}
	}
	return -1
}

// Remaining is the number of envelopes not yet redeemed.
func (a *Account) Remaining() int {
	return len(a.Envelopes) - len(a.RedeemedIndices)
}
