package services

import (
	"context"
	"fmt"
	"schoolchat/db"
	"schoolchat/models"
	"strings"
	"time"

	"gorm.io/gorm"
)

// MessageStore - единственный владелец таблицы chat_messages
type MessageStore struct {
	orm         *gorm.DB
	retention   time.Duration
	searchLimit int
	now         func() time.Time
}

func NewMessageStore(orm *gorm.DB, retention time.Duration, searchLimit int) *MessageStore {
	if searchLimit <= 0 {
		searchLimit = 50
	}
	return &MessageStore{
		orm:         orm,
		retention:   retention,
		searchLimit: searchLimit,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock подменяет источник времени (для тестов и утилит)
func (s *MessageStore) WithClock(now func() time.Time) *MessageStore {
	s.now = now
	return s
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorageUnavailable, op, err)
}

// Send сохраняет новое непрочитанное сообщение. Существование пользователей не проверяется.
func (s *MessageStore) Send(ctx context.Context, senderID, receiverID int64, content string, file *models.FileRef) (*models.ChatMessage, error) {
	createdAt := s.now()
	msg := &models.ChatMessage{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		IsRead:     false,
		CreatedAt:  createdAt,
		ExpiresAt:  ComputeExpiry(createdAt, s.retention),
	}
	if file != nil {
		msg.FilePath = &file.Path
		msg.FileName = &file.Name
		msg.FileType = &file.Type
	}
	if err := db.WriteDB(ctx, s.orm).Create(msg).Error; err != nil {
		chatMessagesTotal.WithLabelValues("error").Inc()
		return nil, storageErr("send", err)
	}
	chatMessagesTotal.WithLabelValues("stored").Inc()
	return msg, nil
}

func pairScope(a, b int64) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a)
	}
}

// Conversation возвращает переписку двух пользователей, новые первыми
func (s *MessageStore) Conversation(ctx context.Context, userA, userB int64, limit int) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	tx := db.ReadDB(ctx, s.orm).
		Model(&models.ChatMessage{}).
		Scopes(pairScope(userA, userB)).
		Order("created_at DESC").
		Order("id DESC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if err := tx.Find(&messages).Error; err != nil {
		return nil, storageErr("conversation", err)
	}
	return messages, nil
}

// MarkRead помечает прочитанными все сообщения от otherID к readerID.
// Один UPDATE с фильтром, повторный вызов ничего не меняет.
func (s *MessageStore) MarkRead(ctx context.Context, readerID, otherID int64) (int64, error) {
	res := db.WriteDB(ctx, s.orm).
		Model(&models.ChatMessage{}).
		Where("sender_id = ? AND receiver_id = ? AND is_read = ?", otherID, readerID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, storageErr("mark_read", res.Error)
	}
	return res.RowsAffected, nil
}

// MarkReadByIDs помечает прочитанными сообщения из ids, адресованные readerID.
// Возвращает затронутые id, сгруппированные по отправителю.
func (s *MessageStore) MarkReadByIDs(ctx context.Context, readerID int64, ids []int64) (map[int64][]int64, error) {
	if len(ids) == 0 {
		return map[int64][]int64{}, nil
	}
	var rows []models.ChatMessage
	err := db.WriteDB(ctx, s.orm).
		Model(&models.ChatMessage{}).
		Select("id", "sender_id").
		Where("id IN ? AND receiver_id = ? AND is_read = ?", ids, readerID, false).
		Find(&rows).Error
	if err != nil {
		return nil, storageErr("mark_read", err)
	}
	if len(rows) == 0 {
		return map[int64][]int64{}, nil
	}

	bySender := make(map[int64][]int64)
	affected := make([]int64, 0, len(rows))
	for _, r := range rows {
		bySender[r.SenderID] = append(bySender[r.SenderID], r.ID)
		affected = append(affected, r.ID)
	}
	err = db.WriteDB(ctx, s.orm).
		Model(&models.ChatMessage{}).
		Where("id IN ? AND receiver_id = ?", affected, readerID).
		Update("is_read", true).Error
	if err != nil {
		return nil, storageErr("mark_read", err)
	}
	return bySender, nil
}

func (s *MessageStore) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := db.ReadDB(ctx, s.orm).
		Model(&models.ChatMessage{}).
		Where("receiver_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, storageErr("unread_count", err)
	}
	return count, nil
}

// PurgeExpired удаляет сообщения с expires_at < now
func (s *MessageStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := db.WriteDB(ctx, s.orm).
		Where("expires_at < ?", now.UTC()).
		Delete(&models.ChatMessage{})
	if res.Error != nil {
		return 0, storageErr("purge_expired", res.Error)
	}
	return res.RowsAffected, nil
}

// Search - поиск по своей переписке без учета регистра
func (s *MessageStore) Search(ctx context.Context, userID int64, text string) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	pattern := likePattern(text)
	err := db.ReadDB(ctx, s.orm).
		Model(&models.ChatMessage{}).
		Where("(sender_id = ? OR receiver_id = ?) AND LOWER(content) LIKE ? ESCAPE '\\'", userID, userID, pattern).
		Order("created_at DESC").
		Order("id DESC").
		Limit(s.searchLimit).
		Find(&messages).Error
	if err != nil {
		return nil, storageErr("search", err)
	}
	return messages, nil
}

// ListConversations строит сводку по собеседникам из всех сообщений пользователя
func (s *MessageStore) ListConversations(ctx context.Context, userID int64) ([]ConversationSummary, error) {
	var messages []models.ChatMessage
	err := db.ReadDB(ctx, s.orm).
		Model(&models.ChatMessage{}).
		Select("id", "sender_id", "receiver_id", "is_read", "created_at").
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Find(&messages).Error
	if err != nil {
		return nil, storageErr("list_conversations", err)
	}
	return AggregateConversations(userID, messages), nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// likePattern - подстрока для LIKE ... ESCAPE '\' без подстановочных символов пользователя
func likePattern(text string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(text)) + "%"
}
