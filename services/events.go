package services

import (
	"encoding/json"
	"fmt"
	"schoolchat/models"
	"strings"
	"time"
)

// Типы событий протокола
const (
	EventMessage      = "message"
	EventMessageSent  = "message_sent"
	EventTyping       = "typing"
	EventMarkRead     = "mark_read"
	EventUserStatus   = "user_status"
	EventMessagesRead = "messages_read"
	EventError        = "error"

	StatusOnline  = "online"
	StatusOffline = "offline"
)

// ClientEvent - закрытое множество событий от клиента:
// *MessageEvent, *TypingEvent, *MarkReadEvent
type ClientEvent interface {
	clientEvent()
}

type MessageEvent struct {
	ReceiverID int64
	Content    string
	File       *models.FileRef
}

type TypingEvent struct {
	ReceiverID int64
}

type MarkReadEvent struct {
	MessageIDs []int64
}

func (*MessageEvent) clientEvent()  {}
func (*TypingEvent) clientEvent()   {}
func (*MarkReadEvent) clientEvent() {}

type rawClientEvent struct {
	Type       string  `json:"type"`
	ReceiverID int64   `json:"receiver_id"`
	Content    string  `json:"content"`
	FilePath   string  `json:"file_path"`
	FileName   string  `json:"file_name"`
	FileType   string  `json:"file_type"`
	MessageIDs []int64 `json:"message_ids"`
}

// DecodeClientEvent разбирает и проверяет входящее событие
func DecodeClientEvent(data []byte) (ClientEvent, error) {
	var raw rawClientEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	switch raw.Type {
	case EventMessage:
		if raw.ReceiverID <= 0 {
			return nil, fmt.Errorf("%w: receiver_id is required", ErrInvalidEvent)
		}
		ev := &MessageEvent{ReceiverID: raw.ReceiverID, Content: raw.Content}
		if raw.FilePath != "" {
			ev.File = &models.FileRef{Path: raw.FilePath, Name: raw.FileName, Type: raw.FileType}
		}
		if strings.TrimSpace(ev.Content) == "" && ev.File == nil {
			return nil, fmt.Errorf("%w: content is empty", ErrInvalidEvent)
		}
		return ev, nil
	case EventTyping:
		if raw.ReceiverID <= 0 {
			return nil, fmt.Errorf("%w: receiver_id is required", ErrInvalidEvent)
		}
		return &TypingEvent{ReceiverID: raw.ReceiverID}, nil
	case EventMarkRead:
		if len(raw.MessageIDs) == 0 {
			return nil, fmt.Errorf("%w: message_ids is empty", ErrInvalidEvent)
		}
		return &MarkReadEvent{MessageIDs: raw.MessageIDs}, nil
	case "":
		return nil, fmt.Errorf("%w: type is missing", ErrInvalidEvent)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, raw.Type)
	}
}

// ServerEvent - событие, отправляемое клиенту
type ServerEvent interface {
	EventType() string
}

type NewMessage struct {
	Type       string    `json:"type"`
	ID         int64     `json:"id"`
	SenderID   int64     `json:"sender_id"`
	ReceiverID int64     `json:"receiver_id"`
	SenderName string    `json:"sender_name"`
	Content    string    `json:"content"`
	FilePath   *string   `json:"file_path,omitempty"`
	FileName   *string   `json:"file_name,omitempty"`
	FileType   *string   `json:"file_type,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type MessageSent struct {
	Type       string    `json:"type"`
	ID         int64     `json:"id"`
	ReceiverID int64     `json:"receiver_id"`
	CreatedAt  time.Time `json:"created_at"`
}

type TypingNotice struct {
	Type     string `json:"type"`
	UserID   int64  `json:"user_id"`
	UserName string `json:"user_name"`
}

type PresenceChange struct {
	Type   string `json:"type"`
	UserID int64  `json:"user_id"`
	Status string `json:"status"`
}

type ReadReceipt struct {
	Type       string  `json:"type"`
	ReaderID   int64   `json:"reader_id"`
	MessageIDs []int64 `json:"message_ids"`
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e NewMessage) EventType() string     { return e.Type }
func (e MessageSent) EventType() string    { return e.Type }
func (e TypingNotice) EventType() string   { return e.Type }
func (e PresenceChange) EventType() string { return e.Type }
func (e ReadReceipt) EventType() string    { return e.Type }
func (e ErrorEvent) EventType() string     { return e.Type }

func NewMessageEvent(msg *models.ChatMessage, senderName string) NewMessage {
	return NewMessage{
		Type:       EventMessage,
		ID:         msg.ID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		SenderName: senderName,
		Content:    msg.Content,
		FilePath:   msg.FilePath,
		FileName:   msg.FileName,
		FileType:   msg.FileType,
		CreatedAt:  msg.CreatedAt,
		ExpiresAt:  msg.ExpiresAt,
	}
}

func NewMessageSent(msg *models.ChatMessage) MessageSent {
	return MessageSent{Type: EventMessageSent, ID: msg.ID, ReceiverID: msg.ReceiverID, CreatedAt: msg.CreatedAt}
}

func NewTypingNotice(userID int64, userName string) TypingNotice {
	return TypingNotice{Type: EventTyping, UserID: userID, UserName: userName}
}

func NewPresenceChange(userID int64, online bool) PresenceChange {
	status := StatusOffline
	if online {
		status = StatusOnline
	}
	return PresenceChange{Type: EventUserStatus, UserID: userID, Status: status}
}

func NewReadReceipt(readerID int64, ids []int64) ReadReceipt {
	return ReadReceipt{Type: EventMessagesRead, ReaderID: readerID, MessageIDs: ids}
}

func NewErrorEvent(code, message string) ErrorEvent {
	return ErrorEvent{Type: EventError, Code: code, Message: message}
}
