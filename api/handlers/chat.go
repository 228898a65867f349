package handlers

import (
	"errors"
	"log"
	"net/http"
	"schoolchat/models"
	"schoolchat/services"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const searchUsersLimit = 20

// ChatHandlers - REST-доступ к тем же данным, что и websocket
type ChatHandlers struct {
	Registry     *services.PresenceRegistry
	Store        *services.MessageStore
	Directory    services.UserDirectory
	HistoryLimit int
}

func NewChatHandlers(registry *services.PresenceRegistry, store *services.MessageStore, directory services.UserDirectory, historyLimit int) *ChatHandlers {
	if historyLimit <= 0 {
		historyLimit = 50
	}
	return &ChatHandlers{Registry: registry, Store: store, Directory: directory, HistoryLimit: historyLimit}
}

type userView struct {
	ID       int64       `json:"id"`
	Username string      `json:"username"`
	FullName string      `json:"full_name"`
	Role     models.Role `json:"role"`
}

func toUserView(u models.User) userView {
	return userView{ID: u.ID, Username: u.Username, FullName: u.FullName, Role: u.Role}
}

type conversationView struct {
	User            *userView `json:"user,omitempty"`
	CounterpartID   int64     `json:"counterpart_id"`
	LastMessageTime time.Time `json:"last_message_time"`
	UnreadCount     int64     `json:"unread_count"`
	IsOnline        bool      `json:"is_online"`
}

func currentUser(c *gin.Context) (int64, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return 0, false
	}
	id, ok := userID.(int64)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return 0, false
	}
	return id, true
}

func paramUserID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user_id"})
		return 0, false
	}
	return id, true
}

func respondError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, services.ErrTargetNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
	default:
		log.Printf("ERROR %s: %v", op, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Storage unavailable"})
	}
}

// Conversations - GET /conversations
func (h *ChatHandlers) Conversations(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	summaries, err := h.Store.ListConversations(ctx, userID)
	if err != nil {
		respondError(c, "conversations", err)
		return
	}
	ids := make([]int64, 0, len(summaries))
	for _, s := range summaries {
		ids = append(ids, s.CounterpartID)
	}
	users, err := h.Directory.GetUsers(ctx, ids)
	if err != nil {
		respondError(c, "conversations", err)
		return
	}

	result := make([]conversationView, 0, len(summaries))
	for _, s := range summaries {
		view := conversationView{
			CounterpartID:   s.CounterpartID,
			LastMessageTime: s.LastMessageTime,
			UnreadCount:     s.UnreadCount,
			IsOnline:        h.Registry.IsOnline(s.CounterpartID),
		}
		if u, found := users[s.CounterpartID]; found {
			uv := toUserView(u)
			view.User = &uv
		}
		result = append(result, view)
	}
	c.JSON(http.StatusOK, result)
}

// Messages - GET /messages/:user_id. Открытие переписки помечает её прочитанной.
func (h *ChatHandlers) Messages(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	otherID, ok := paramUserID(c)
	if !ok {
		return
	}
	limit := h.HistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		if n < limit {
			limit = n
		}
	}
	ctx := c.Request.Context()

	other, err := h.Directory.GetUser(ctx, otherID)
	if err != nil {
		respondError(c, "messages", err)
		return
	}
	messages, err := h.Store.Conversation(ctx, userID, otherID, limit)
	if err != nil {
		respondError(c, "messages", err)
		return
	}
	if _, err := h.Store.MarkRead(ctx, userID, otherID); err != nil {
		respondError(c, "messages", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"other_user": toUserView(*other),
		"messages":   messages,
		"is_online":  h.Registry.IsOnline(otherID),
	})
}

// UnreadCount - GET /unread-count
func (h *ChatHandlers) UnreadCount(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	count, err := h.Store.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		respondError(c, "unread_count", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

// MarkRead - POST /mark-read/:user_id
func (h *ChatHandlers) MarkRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	otherID, ok := paramUserID(c)
	if !ok {
		return
	}
	if _, err := h.Store.MarkRead(c.Request.Context(), userID, otherID); err != nil {
		respondError(c, "mark_read", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Messages marked as read"})
}

// SearchMessages - GET /search-messages/:query
func (h *ChatHandlers) SearchMessages(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	query := c.Param("query")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query is required"})
		return
	}
	messages, err := h.Store.Search(c.Request.Context(), userID, query)
	if err != nil {
		respondError(c, "search_messages", err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

// SearchUsers - GET /search-users/:query
func (h *ChatHandlers) SearchUsers(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	users, err := h.Directory.SearchUsers(c.Request.Context(), c.Param("query"), userID, searchUsersLimit)
	if err != nil {
		respondError(c, "search_users", err)
		return
	}
	result := make([]gin.H, 0, len(users))
	for _, u := range users {
		result = append(result, gin.H{
			"user":      toUserView(u),
			"is_online": h.Registry.IsOnline(u.ID),
		})
	}
	c.JSON(http.StatusOK, result)
}

// OnlineUsers - GET /online-users, без текущего пользователя
func (h *ChatHandlers) OnlineUsers(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	ids := make([]int64, 0)
	for _, id := range h.Registry.OnlineUsers() {
		if id != userID {
			ids = append(ids, id)
		}
	}
	users, err := h.Directory.GetUsers(c.Request.Context(), ids)
	if err != nil {
		respondError(c, "online_users", err)
		return
	}
	result := make([]gin.H, 0, len(users))
	for _, id := range ids {
		u, found := users[id]
		if !found {
			continue
		}
		result = append(result, gin.H{
			"user_id":   u.ID,
			"username":  u.Username,
			"full_name": u.FullName,
			"role":      u.Role,
			"is_online": true,
		})
	}
	c.JSON(http.StatusOK, result)
}
