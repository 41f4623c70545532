package models

// Recipient maps an assignee identifier to its delivery destinations.
// TelegramChatID is zero when the user never registered the channel.
type Recipient struct {
	UserID         int64  `json:"user_id"`
	Name           string `json:"name"`
	DeviceToken    string `json:"device_token"`
	TelegramChatID int64  `json:"telegram_chat_id"`
	Status         string `json:"status"`
}
