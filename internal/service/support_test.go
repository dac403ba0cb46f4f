package service

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupportMessages(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	support := NewSupportService(env.store)
	user := env.createUser(t, "help@example.com", nil)

	_, err := support.Create(ctx, CreateSupportMessageRequest{UserID: user.ID, Message: "   "})
	assert.Error(t, err)
	_, err = support.Create(ctx, CreateSupportMessageRequest{UserID: user.ID, Message: strings.Repeat("x", maxSupportMessage+1)})
	assert.Error(t, err)

	msg, err := support.Create(ctx, CreateSupportMessageRequest{UserID: user.ID, Message: "My deposit is missing"})
	require.NoError(t, err)
	assert.Equal(t, user.Email, msg.Email)
	assert.Equal(t, user.FullName, msg.Name)
	assert.False(t, msg.IsRead)

	unread, err := support.List(ctx, true, 10, 0)
	require.NoError(t, err)
	require.Len(t, unread.Items, 1)

	reply := "Found it, credited."
	read := true
	updated, err := support.Update(ctx, msg.ID, UpdateSupportMessageRequest{Reply: &reply, IsRead: &read})
	require.NoError(t, err)
	assert.Equal(t, reply, updated.Reply)
	assert.True(t, updated.IsRead)

	unread, err = support.List(ctx, true, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, unread.Items)

	own, err := support.ListOwn(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, own, 1)

	_, err = support.Update(ctx, uuid.New(), UpdateSupportMessageRequest{IsRead: &read})
	assert.ErrorIs(t, err, ErrSupportMessageAbsent)
	_, err = support.Update(ctx, msg.ID, UpdateSupportMessageRequest{})
	assert.Error(t, err)
}

func TestSettingsWithoutCache(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	settings := NewSettingsService(env.store, nil, 0)
	admin := env.createUser(t, "settings@example.com", nil)

	assert.False(t, settings.MaintenanceEnabled(ctx))
	assert.True(t, settings.EmailNotificationsEnabled(ctx))

	on := true
	updated, err := settings.Update(ctx, admin.ID, UpdateSettingsRequest{MaintenanceMode: &on})
	require.NoError(t, err)
	assert.True(t, updated.MaintenanceMode)
	assert.True(t, updated.EmailNotifications)
	assert.True(t, settings.MaintenanceEnabled(ctx))
}
