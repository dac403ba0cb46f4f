package service

import (
	"strings"

	"github.com/liquifund/liquidity/internal/domain"
)

type transitionTable map[string]map[string]struct{}

var rentalTransitions = transitionTable{
	domain.RentalStatusActive: {
		domain.RentalStatusCompleted: {},
		domain.RentalStatusFailed:    {},
	},
	domain.RentalStatusCompleted: {},
	domain.RentalStatusFailed:    {},
}

var paymentTransitions = transitionTable{
	domain.PaymentStatusPending: {
		domain.PaymentStatusCompleted: {},
		domain.PaymentStatusFailed:    {},
	},
	domain.PaymentStatusCompleted: {},
	domain.PaymentStatusFailed:    {},
}

var withdrawalTransitions = transitionTable{
	domain.WithdrawalStatusPending: {
		domain.WithdrawalStatusApproved:   {},
		domain.WithdrawalStatusProcessing: {},
		domain.WithdrawalStatusPaid:       {},
		domain.WithdrawalStatusRejected:   {},
	},
	domain.WithdrawalStatusProcessing: {
		domain.WithdrawalStatusApproved: {},
		domain.WithdrawalStatusPaid:     {},
		domain.WithdrawalStatusRejected: {},
	},
	domain.WithdrawalStatusApproved: {
		domain.WithdrawalStatusPaid: {},
	},
	domain.WithdrawalStatusPaid:     {},
	domain.WithdrawalStatusRejected: {},
}

func normalizeState(state string) string {
	return strings.ToLower(strings.TrimSpace(state))
}

func (t transitionTable) canTransition(current, next string) bool {
	nextStates, ok := t[normalizeState(current)]
	if !ok {
		return false
	}
	_, ok = nextStates[normalizeState(next)]
	return ok
}

func (t transitionTable) isTerminal(state string) bool {
	nextStates, ok := t[normalizeState(state)]
	return ok && len(nextStates) == 0
}
