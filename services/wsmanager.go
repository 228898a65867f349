package services

import (
	"log"
	"sync"
)

// Channel - живой двунаправленный канал пользователя (обычно websocket)
type Channel interface {
	WriteJSON(v any) error
	Close() error
}

// PresenceRegistry хранит не более одного канала на пользователя.
// Состояние только в памяти, после рестарта все пользователи офлайн.
type PresenceRegistry struct {
	mu    sync.RWMutex
	users map[int64]Channel
}

func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{
		users: make(map[int64]Channel),
	}
}

// Connect регистрирует канал, заменяя предыдущий, если он был
func (m *PresenceRegistry) Connect(userID int64, ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID] = ch
	chatOnlineUsers.Set(float64(len(m.users)))
}

// Disconnect удаляет запись пользователя; no-op если её нет
func (m *PresenceRegistry) Disconnect(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, userID)
	chatOnlineUsers.Set(float64(len(m.users)))
}

// Release удаляет запись, только если она всё ещё указывает на ch.
// Закрытие старого соединения не должно выкидывать новое.
func (m *PresenceRegistry) Release(userID int64, ch Channel) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.users[userID]; !ok || cur != ch {
		return false
	}
	delete(m.users, userID)
	chatOnlineUsers.Set(float64(len(m.users)))
	return true
}

func (m *PresenceRegistry) channel(userID int64) (Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.users[userID]
	return ch, ok
}

// SendTo пытается доставить payload пользователю. Ошибка записи
// считается отключением. Никогда не паникует.
func (m *PresenceRegistry) SendTo(userID int64, payload any) bool {
	ch, ok := m.channel(userID)
	if !ok {
		return false
	}
	return m.write(userID, ch, payload)
}

func (m *PresenceRegistry) write(userID int64, ch Channel, payload any) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ws: panic while writing to user %d: %v", userID, r)
			m.Release(userID, ch)
			chatDeliveriesTotal.WithLabelValues("failed").Inc()
			ok = false
		}
	}()
	if err := ch.WriteJSON(payload); err != nil {
		log.Printf("ws: send to user %d failed: %v", userID, err)
		m.Release(userID, ch)
		chatDeliveriesTotal.WithLabelValues("failed").Inc()
		return false
	}
	chatDeliveriesTotal.WithLabelValues("delivered").Inc()
	return true
}

// Broadcast рассылает payload всем, кроме exclude (0 - без исключений).
// Ошибка одного получателя не мешает остальным.
func (m *PresenceRegistry) Broadcast(payload any, exclude int64) int {
	type target struct {
		userID int64
		ch     Channel
	}
	m.mu.RLock()
	targets := make([]target, 0, len(m.users))
	for userID, ch := range m.users {
		if userID == exclude {
			continue
		}
		targets = append(targets, target{userID, ch})
	}
	m.mu.RUnlock()

	delivered := 0
	for _, t := range targets {
		if m.write(t.userID, t.ch, payload) {
			delivered++
		}
	}
	return delivered
}

func (m *PresenceRegistry) IsOnline(userID int64) bool {
	_, ok := m.channel(userID)
	return ok
}

func (m *PresenceRegistry) OnlineUsers() []int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]int64, 0, len(m.users))
	for userID := range m.users {
		ids = append(ids, userID)
	}
	return ids
}
