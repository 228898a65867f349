package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"schoolchat/api/middleware"
	"schoolchat/services"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsChannel - websocket с сериализованной записью.
// gorilla допускает только одного писателя одновременно.
type wsChannel struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsChannel) WriteJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := w.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("%w: %v", services.ErrDeliveryFailed, err)
	}
	return nil
}

func (w *wsChannel) Close() error {
	return w.conn.Close()
}

func (w *wsChannel) closeWith(code int, reason string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	msg := websocket.FormatCloseMessage(code, reason)
	_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = w.conn.Close()
}

// ChatSocket - обработчик протокола реального времени
type ChatSocket struct {
	Registry  *services.PresenceRegistry
	Store     *services.MessageStore
	Directory services.UserDirectory
	Auth      services.Authenticator
	Delivery  services.Deliverer
}

// session - состояние одного подключения
type session struct {
	userID   int64
	userName string
	ch       *wsChannel
}

// Handle - GET /ws/chat?token=...
func (s *ChatSocket) Handle(c *gin.Context) {
	ctx := c.Request.Context()
	token := c.Query("token")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Println("ws: upgrade error:", err)
		return
	}
	ch := &wsChannel{conn: conn}

	userID, err := s.Auth.Authenticate(ctx, token)
	if err != nil {
		if !errors.Is(err, services.ErrAuthenticationFailed) {
			log.Printf("ERROR ws: authentication error: %v", err)
		}
		middleware.RecordChatEvent("connect", 0, err)
		ch.closeWith(websocket.ClosePolicyViolation, "authentication failed")
		return
	}

	sess := &session{userID: userID, ch: ch}
	if user, err := s.Directory.GetUser(ctx, userID); err == nil {
		sess.userName = user.FullName
		if sess.userName == "" {
			sess.userName = user.Username
		}
	}

	s.Registry.Connect(userID, ch)
	s.Registry.Broadcast(services.NewPresenceChange(userID, true), userID)
	log.Printf("ws: user %d connected", userID)

	defer func() {
		_ = ch.Close()
		// запись могла уже снять канал из реестра после ошибки отправки;
		// молчим только если слот занят более новым соединением
		released := s.Registry.Release(userID, ch)
		if released || !s.Registry.IsOnline(userID) {
			s.Registry.Broadcast(services.NewPresenceChange(userID, false), userID)
		}
		log.Printf("ws: user %d disconnected", userID)
	}()

	conn.SetReadLimit(maxMessageSize)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("ws: read error for user %d: %v", userID, err)
			}
			return
		}
		s.dispatch(ctx, sess, data)
	}
}

// dispatch обрабатывает одно событие; ошибки не рвут соединение
func (s *ChatSocket) dispatch(ctx context.Context, sess *session, data []byte) {
	start := time.Now()
	ev, err := services.DecodeClientEvent(data)
	if err != nil {
		middleware.RecordChatEvent("invalid", time.Since(start), err)
		s.replyError(sess, "invalid_event", err.Error())
		return
	}

	var name string
	switch e := ev.(type) {
	case *services.MessageEvent:
		name = services.EventMessage
		err = s.onMessage(ctx, sess, e)
	case *services.TypingEvent:
		name = services.EventTyping
		s.Delivery.Deliver(ctx, e.ReceiverID, services.NewTypingNotice(sess.userID, sess.userName))
	case *services.MarkReadEvent:
		name = services.EventMarkRead
		err = s.onMarkRead(ctx, sess, e)
	}
	middleware.RecordChatEvent(name, time.Since(start), err)
	if err != nil {
		log.Printf("ERROR ws: %s from user %d dropped: %v", name, sess.userID, err)
		s.replyError(sess, "storage_unavailable", "message could not be processed")
	}
}

func (s *ChatSocket) onMessage(ctx context.Context, sess *session, e *services.MessageEvent) error {
	msg, err := s.Store.Send(ctx, sess.userID, e.ReceiverID, e.Content, e.File)
	if err != nil {
		return err
	}
	// получатель может быть офлайн, сообщение уже сохранено
	s.Delivery.Deliver(ctx, e.ReceiverID, services.NewMessageEvent(msg, sess.userName))
	if err := sess.ch.WriteJSON(services.NewMessageSent(msg)); err != nil {
		log.Printf("ws: failed to confirm message %d to user %d: %v", msg.ID, sess.userID, err)
	}
	return nil
}

func (s *ChatSocket) onMarkRead(ctx context.Context, sess *session, e *services.MarkReadEvent) error {
	bySender, err := s.Store.MarkReadByIDs(ctx, sess.userID, e.MessageIDs)
	if err != nil {
		return err
	}
	for senderID, ids := range bySender {
		s.Delivery.Deliver(ctx, senderID, services.NewReadReceipt(sess.userID, ids))
	}
	return nil
}

func (s *ChatSocket) replyError(sess *session, code, message string) {
	if err := sess.ch.WriteJSON(services.NewErrorEvent(code, message)); err != nil {
		log.Printf("ws: failed to send error to user %d: %v", sess.userID, err)
	}
}
