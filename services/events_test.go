package services

import (
	"encoding/json"
	"errors"
	"schoolchat/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeClientEvent(t *testing.T) {
	ev, err := DecodeClientEvent([]byte(`{"type":"message","receiver_id":5,"content":"hi"}`))
	require.NoError(t, err)
	msg, ok := ev.(*MessageEvent)
	require.True(t, ok)
	assert.Equal(t, int64(5), msg.ReceiverID)
	assert.Equal(t, "hi", msg.Content)
	assert.Nil(t, msg.File)

	ev, err = DecodeClientEvent([]byte(`{"type":"message","receiver_id":5,"file_path":"/f/a.png","file_name":"a.png","file_type":"image/png"}`))
	require.NoError(t, err)
	msg = ev.(*MessageEvent)
	require.NotNil(t, msg.File)
	assert.Equal(t, "a.png", msg.File.Name)

	ev, err = DecodeClientEvent([]byte(`{"type":"typing","receiver_id":9}`))
	require.NoError(t, err)
	assert.Equal(t, &TypingEvent{ReceiverID: 9}, ev)

	ev, err = DecodeClientEvent([]byte(`{"type":"mark_read","message_ids":[1,2,3]}`))
	require.NoError(t, err)
	assert.Equal(t, &MarkReadEvent{MessageIDs: []int64{1, 2, 3}}, ev)
}

func TestDecodeClientEventInvalid(t *testing.T) {
	cases := map[string]string{
		"not json":         `{"type":`,
		"missing type":     `{"receiver_id":1}`,
		"unknown type":     `{"type":"delete","receiver_id":1}`,
		"no receiver":      `{"type":"message","content":"hi"}`,
		"blank content":    `{"type":"message","receiver_id":1,"content":"   "}`,
		"typing no target": `{"type":"typing"}`,
		"empty ids":        `{"type":"mark_read","message_ids":[]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeClientEvent([]byte(body))
			assert.True(t, errors.Is(err, ErrInvalidEvent), "got %v", err)
		})
	}
}

func TestServerEventsWireShape(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	msg := &models.ChatMessage{ID: 10, SenderID: 1, ReceiverID: 2, Content: "hey", CreatedAt: created, ExpiresAt: created.Add(day)}

	data, err := json.Marshal(NewMessageEvent(msg, "Anna"))
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "message", decoded["type"])
	assert.Equal(t, "Anna", decoded["sender_name"])
	assert.NotContains(t, decoded, "file_path")

	data, err = json.Marshal(NewPresenceChange(3, false))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"user_status","user_id":3,"status":"offline"}`, string(data))

	assert.Equal(t, EventMessageSent, NewMessageSent(msg).EventType())
	assert.Equal(t, EventMessagesRead, NewReadReceipt(2, []int64{10}).EventType())
	assert.Equal(t, EventError, NewErrorEvent("invalid_event", "bad").EventType())
}
