package services

import (
	"schoolchat/models"
	"sort"
	"time"
)

type ConversationSummary struct {
	CounterpartID   int64     `json:"counterpart_id"`
	LastMessageTime time.Time `json:"last_message_time"`
	UnreadCount     int64     `json:"unread_count"`
	// lastID - вторичный ключ сортировки при равном времени
	lastID int64
}

// AggregateConversations группирует сообщения по собеседнику.
// Непрочитанные считаются только входящие для userID.
func AggregateConversations(userID int64, messages []models.ChatMessage) []ConversationSummary {
	byCounterpart := make(map[int64]*ConversationSummary)
	for _, m := range messages {
		if m.SenderID != userID && m.ReceiverID != userID {
			continue
		}
		other := m.Counterpart(userID)
		summary, ok := byCounterpart[other]
		if !ok {
			summary = &ConversationSummary{CounterpartID: other}
			byCounterpart[other] = summary
		}
		if m.CreatedAt.After(summary.LastMessageTime) ||
			(m.CreatedAt.Equal(summary.LastMessageTime) && m.ID > summary.lastID) {
			summary.LastMessageTime = m.CreatedAt
			summary.lastID = m.ID
		}
		if m.ReceiverID == userID && m.SenderID == other && !m.IsRead {
			summary.UnreadCount++
		}
	}

	result := make([]ConversationSummary, 0, len(byCounterpart))
	for _, s := range byCounterpart {
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].LastMessageTime.Equal(result[j].LastMessageTime) {
			return result[i].LastMessageTime.After(result[j].LastMessageTime)
		}
		return result[i].lastID > result[j].lastID
	})
	return result
}
