package services

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	body, err := EncodeEnvelope(17, NewTypingNotice(3, "Oleg"))
	require.NoError(t, err)

	env, err := DecodeEnvelope(body)
	require.NoError(t, err)
	assert.Equal(t, int64(17), env.UserID)
	assert.Equal(t, EventTyping, env.Type)
	assert.NotEmpty(t, env.ID)
	assert.JSONEq(t, `{"type":"typing","user_id":3,"user_name":"Oleg"}`, string(env.Event))
	assert.Equal(t, "user.17", RoutingKey(17))
}

func TestDecodeEnvelopeRejectsMalformed(t *testing.T) {
	_, err := DecodeEnvelope([]byte(`nope`))
	assert.Error(t, err)
	_, err = DecodeEnvelope([]byte(`{"id":"x","user_id":0,"event":{}}`))
	assert.Error(t, err)
	_, err = DecodeEnvelope([]byte(`{"id":"x","user_id":5}`))
	assert.Error(t, err)
}

func TestBusDispatchPushesToLocalUser(t *testing.T) {
	registry := NewPresenceRegistry()
	ch := &fakeChannel{}
	registry.Connect(5, ch)
	bus := &EventBus{registry: registry, exchange: "chat_events", nodeID: "node"}

	body, err := EncodeEnvelope(5, NewPresenceChange(9, true))
	require.NoError(t, err)
	bus.dispatch(body)
	// пользователь не на этом узле - тихо пропускаем
	other, err := EncodeEnvelope(6, NewPresenceChange(9, true))
	require.NoError(t, err)
	bus.dispatch(other)

	sent := ch.Sent()
	require.Len(t, sent, 1)
	raw, err := json.Marshal(sent[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"user_status","user_id":9,"status":"online"}`, string(raw))
	assert.Equal(t, "chat_events.node", bus.queueName())
}
