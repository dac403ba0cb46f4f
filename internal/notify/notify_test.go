package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type staticPrefs bool

func (p staticPrefs) EmailNotificationsEnabled(context.Context) bool { return bool(p) }

func TestLogNotifierRespectsPreferences(t *testing.T) {
	cases := []struct {
		name    string
		enabled bool
		want    int
	}{
		{name: "enabled", enabled: true, want: 2},
		{name: "disabled", enabled: false, want: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			core, logs := observer.New(zap.InfoLevel)
			n := NewLogNotifier(staticPrefs(tc.enabled), zap.New(core))

			require.NoError(t, n.PasswordReset(context.Background(), "a@example.com", "A", "https://app/reset?token=x"))
			require.NoError(t, n.WithdrawalStatusChanged(context.Background(), "a@example.com", WithdrawalNotice{
				ID:     "w1",
				Amount: "KES 100.00",
				Status: "paid",
			}))
			assert.Equal(t, tc.want, logs.Len())
		})
	}
}

func TestLogNotifierWithoutPreferences(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLogNotifier(nil, zap.New(core))

	require.NoError(t, n.PasswordReset(context.Background(), "a@example.com", "A", "link"))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "link", logs.All()[0].ContextMap()["link"])
}
