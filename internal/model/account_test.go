package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccount_NextUnredeemed(t *testing.T) {
	a := &Account{Envelopes: []string{"e0", "e1", "e2"}}

	assert.Equal(t, 0, a.NextUnredeemed())

	a.RedeemedIndices = []int{0}
	assert.Equal(t, 1, a.NextUnredeemed())

	// Out-of-order redemption history still yields the lowest free index.
	a.RedeemedIndices = []int{2, 0}
	assert.Equal(t, 1, a.NextUnredeemed())

	a.RedeemedIndices = []int{0, 1, 2}
	assert.Equal(t, -1, a.NextUnredeemed())
}

func TestAccount_Remaining(t *testing.T) {
	a := &Account{Envelopes: []string{"e0", "e1", "e2"}}
	assert.Equal(t, 3, a.Remaining())

	a.RedeemedIndices = []int{1}
	assert.Equal(t, 2, a.Remaining())
	assert.True(t, a.Redeemed(1))
	assert.False(t, a.Redeemed(0))
}
