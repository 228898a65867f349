package models

import (
	"time"
)

// ChatMessage - личное сообщение между двумя пользователями.
// ExpiresAt всегда заполнен: сообщение удаляется очисткой после истечения срока.
type ChatMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SenderID   int64     `gorm:"column:sender_id;not null;index:idx_chat_messages_pair,priority:1" json:"sender_id"`
	ReceiverID int64     `gorm:"column:receiver_id;not null;index:idx_chat_messages_pair,priority:2;index:idx_chat_messages_unread,priority:1" json:"receiver_id"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	FilePath   *string   `gorm:"size:500" json:"file_path"`
	FileName   *string   `gorm:"size:255" json:"file_name"`
	FileType   *string   `gorm:"size:50" json:"file_type"`
	IsRead     bool      `gorm:"not null;default:false;index:idx_chat_messages_unread,priority:2" json:"is_read"`
	CreatedAt  time.Time `gorm:"not null;index" json:"created_at"`
	ExpiresAt  time.Time `gorm:"not null;index" json:"expires_at"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}

// FileRef - необязательное вложение к сообщению
type FileRef struct {
	Path string `json:"file_path"`
	Name string `json:"file_name"`
	Type string `json:"file_type"`
}

// Counterpart возвращает собеседника относительно userID
func (m ChatMessage) Counterpart(userID int64) int64 {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}
