package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconciliationDetectsDrift(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "drift@example.com", nil)
	env.fund(t, user.ID, shillings(100))

	report, err := env.reconcile.Run(ctx)
	require.NoError(t, err)
	assert.True(t, report.Balanced)
	assert.Equal(t, int64(1), report.Wallets)
	assert.Equal(t, shillings(100), report.Balance)

	_, err = env.pool.Exec(ctx, `UPDATE wallets SET balance = balance + 1, rental_balance = 5 WHERE user_id = $1`, user.ID)
	require.NoError(t, err)

	report, err = env.reconcile.Run(ctx)
	require.NoError(t, err)
	assert.False(t, report.Balanced)
	require.Len(t, report.Drifts, 1)
	assert.Equal(t, user.ID, report.Drifts[0].UserID)
	assert.ElementsMatch(t, []string{"available_entries", "rental_entries", "active_rentals"}, report.Drifts[0].Checks)
}
