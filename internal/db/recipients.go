package db

import (
	"context"
	"fmt"

	"task-timeout-service/internal/models"
)

// GetRecipientsByUserIDs resolves assignee identifiers to active recipients
// that hold a registered device token. Identifiers without one are simply
// absent from the result, never an error.
func (d *DB) GetRecipientsByUserIDs(ctx context.Context, userIDs []int64) ([]models.Recipient, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	query := `
	SELECT user_id, name, device_token, COALESCE(telegram_chat_id, 0), status
	FROM recipients
	WHERE user_id = ANY($1) AND status = 'active' AND device_token <> ''
	ORDER BY user_id`

	rows, err := d.Pool.Query(ctx, query, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get recipients: %w", err)
	}
	defer rows.Close()

	var recipients []models.Recipient
	for rows.Next() {
		var r models.Recipient
		if err := rows.Scan(&r.UserID, &r.Name, &r.DeviceToken, &r.TelegramChatID, &r.Status); err != nil {
			return nil, fmt.Errorf("failed to scan recipient: %w", err)
		}
		recipients = append(recipients, r)
	}
	return recipients, rows.Err()
}
