package services

import (
	"context"
)

// Deliverer доставляет событие живому каналу пользователя (на этом или другом узле).
// Доставка best-effort: сообщение уже сохранено до вызова.
type Deliverer interface {
	Deliver(ctx context.Context, userID int64, ev ServerEvent) bool
}

// LocalDelivery - доставка через реестр текущего процесса
type LocalDelivery struct {
	Registry *PresenceRegistry
}

func NewLocalDelivery(registry *PresenceRegistry) *LocalDelivery {
	return &LocalDelivery{Registry: registry}
}

func (d *LocalDelivery) Deliver(_ context.Context, userID int64, ev ServerEvent) bool {
	return d.Registry.SendTo(userID, ev)
}
