package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const supportColumns = `id, user_id, name, email, message, reply, is_read, created_at, updated_at`

func scanSupportMessage(row pgx.Row) (SupportMessage, error) {
	var m SupportMessage
	err := row.Scan(&m.ID, &m.UserID, &m.Name, &m.Email, &m.Message, &m.Reply, &m.IsRead, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

const insertSupportMessage = `
INSERT INTO support_messages (id, user_id, name, email, message)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + supportColumns

type InsertSupportMessageParams struct {
	ID      uuid.UUID
	UserID  *uuid.UUID
	Name    string
	Email   string
	Message string
}

func (q *Queries) InsertSupportMessage(ctx context.Context, arg InsertSupportMessageParams) (SupportMessage, error) {
	return scanSupportMessage(q.db.QueryRow(ctx, insertSupportMessage, arg.ID, arg.UserID, arg.Name, arg.Email, arg.Message))
}

const listUserSupportMessages = `SELECT ` + supportColumns + ` FROM support_messages WHERE user_id = $1 ORDER BY created_at DESC`

func (q *Queries) ListUserSupportMessages(ctx context.Context, userID uuid.UUID) ([]SupportMessage, error) {
	rows, err := q.db.Query(ctx, listUserSupportMessages, userID)
	return collect(rows, err, scanSupportMessage)
}

const listSupportMessages = `
SELECT ` + supportColumns + `
FROM support_messages
WHERE (NOT $1::boolean OR is_read = FALSE)
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

type ListSupportMessagesParams struct {
	UnreadOnly bool
	Limit      int32
	Offset     int32
}

func (q *Queries) ListSupportMessages(ctx context.Context, arg ListSupportMessagesParams) ([]SupportMessage, error) {
	rows, err := q.db.Query(ctx, listSupportMessages, arg.UnreadOnly, arg.Limit, arg.Offset)
	return collect(rows, err, scanSupportMessage)
}

const updateSupportMessage = `
UPDATE support_messages
SET reply = COALESCE($2, reply), is_read = COALESCE($3, is_read), updated_at = NOW()
WHERE id = $1
RETURNING ` + supportColumns

type UpdateSupportMessageParams struct {
	ID     uuid.UUID
	Reply  *string
	IsRead *bool
}

func (q *Queries) UpdateSupportMessage(ctx context.Context, arg UpdateSupportMessageParams) (SupportMessage, error) {
	return scanSupportMessage(q.db.QueryRow(ctx, updateSupportMessage, arg.ID, arg.Reply, arg.IsRead))
}

const getSystemSettings = `SELECT maintenance_mode, email_notifications, updated_at FROM system_settings WHERE id = 1`

func (q *Queries) GetSystemSettings(ctx context.Context) (SystemSettings, error) {
	var s SystemSettings
	err := q.db.QueryRow(ctx, getSystemSettings).Scan(&s.MaintenanceMode, &s.EmailNotifications, &s.UpdatedAt)
	return s, err
}

const updateSystemSettings = `
INSERT INTO system_settings (id, maintenance_mode, email_notifications)
VALUES (1, COALESCE($1, FALSE), COALESCE($2, TRUE))
ON CONFLICT (id) DO UPDATE
SET maintenance_mode = COALESCE($1, system_settings.maintenance_mode),
    email_notifications = COALESCE($2, system_settings.email_notifications),
    updated_at = NOW()
RETURNING maintenance_mode, email_notifications, updated_at`

type UpdateSystemSettingsParams struct {
	MaintenanceMode    *bool
	EmailNotifications *bool
}

func (q *Queries) UpdateSystemSettings(ctx context.Context, arg UpdateSystemSettingsParams) (SystemSettings, error) {
	var s SystemSettings
	err := q.db.QueryRow(ctx, updateSystemSettings, arg.MaintenanceMode, arg.EmailNotifications).
		Scan(&s.MaintenanceMode, &s.EmailNotifications, &s.UpdatedAt)
	return s, err
}
