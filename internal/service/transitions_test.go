package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithdrawalTransitions(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{"pending", "approved", true},
		{"pending", "processing", true},
		{"pending", "paid", true},
		{"pending", "rejected", true},
		{"processing", "approved", true},
		{"processing", "pending", false},
		{"approved", "paid", true},
		{"approved", "rejected", false},
		{"paid", "rejected", false},
		{"rejected", "pending", false},
		{" PENDING ", "Approved", true},
		{"unknown", "paid", false},
	}
	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			assert.Equal(t, tt.want, withdrawalTransitions.canTransition(tt.from, tt.to))
		})
	}
}

func TestTerminalStates(t *testing.T) {
	assert.True(t, rentalTransitions.isTerminal("completed"))
	assert.True(t, rentalTransitions.isTerminal("failed"))
	assert.False(t, rentalTransitions.isTerminal("active"))
	assert.True(t, paymentTransitions.isTerminal("completed"))
	assert.False(t, paymentTransitions.isTerminal("pending"))
	assert.True(t, withdrawalTransitions.isTerminal("paid"))
	assert.False(t, withdrawalTransitions.isTerminal("approved"))
}
