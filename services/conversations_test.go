package services

import (
	"schoolchat/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateConversations(t *testing.T) {
	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	messages := []models.ChatMessage{
		{ID: 1, SenderID: 2, ReceiverID: 1, CreatedAt: base},
		{ID: 2, SenderID: 2, ReceiverID: 1, CreatedAt: base.Add(time.Minute)},
		{ID: 3, SenderID: 2, ReceiverID: 1, CreatedAt: base.Add(2 * time.Minute)},
		{ID: 4, SenderID: 1, ReceiverID: 2, IsRead: true, CreatedAt: base.Add(3 * time.Minute)},
		{ID: 5, SenderID: 1, ReceiverID: 3, CreatedAt: base.Add(10 * time.Minute)},
		{ID: 6, SenderID: 4, ReceiverID: 1, IsRead: true, CreatedAt: base.Add(-time.Hour)},
		// не относится к пользователю 1
		{ID: 7, SenderID: 5, ReceiverID: 6, CreatedAt: base.Add(time.Hour)},
	}

	summaries := AggregateConversations(1, messages)
	require.Len(t, summaries, 3)

	assert.Equal(t, int64(3), summaries[0].CounterpartID)
	assert.Zero(t, summaries[0].UnreadCount)

	assert.Equal(t, int64(2), summaries[1].CounterpartID)
	assert.Equal(t, int64(3), summaries[1].UnreadCount)
	assert.True(t, summaries[1].LastMessageTime.Equal(base.Add(3*time.Minute)))

	assert.Equal(t, int64(4), summaries[2].CounterpartID)
	assert.Zero(t, summaries[2].UnreadCount)
}

func TestAggregateConversationsEmpty(t *testing.T) {
	assert.Empty(t, AggregateConversations(1, nil))
}
