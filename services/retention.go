package services

import (
	"context"
	"errors"
	"log"
	"time"
)

const cleanupLockKey = "chat:cleanup:lock"

// ComputeExpiry - момент, после которого сообщение подлежит удалению
func ComputeExpiry(createdAt time.Time, window time.Duration) time.Time {
	return createdAt.Add(window)
}

type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Locker - распределенная блокировка, чтобы очистку выполнял один узел
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Unlock(ctx context.Context, key, token string) error
}

// CleanupJob - единственная периодическая задача очистки.
// Если задан hour, запускается раз в сутки в этот час (UTC), иначе каждые interval.
type CleanupJob struct {
	store    Purger
	interval time.Duration
	hour     *int
	locker   Locker
	lockTTL  time.Duration
	now      func() time.Time
}

func NewCleanupJob(store Purger, interval time.Duration, hour *int) *CleanupJob {
	if interval <= 0 {
		interval = time.Hour
	}
	return &CleanupJob{
		store:    store,
		interval: interval,
		hour:     hour,
		lockTTL:  5 * time.Minute,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (j *CleanupJob) WithLocker(locker Locker, ttl time.Duration) *CleanupJob {
	j.locker = locker
	if ttl > 0 {
		j.lockTTL = ttl
	}
	return j
}

func (j *CleanupJob) WithClock(now func() time.Time) *CleanupJob {
	j.now = now
	return j
}

// nextRun вычисляет время следующего запуска после now
func (j *CleanupJob) nextRun(now time.Time) time.Time {
	if j.hour == nil {
		return now.Add(j.interval)
	}
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), *j.hour, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

// Sweep выполняет одну очистку. Если блокировку держит другой узел,
// ничего не удаляет и возвращает ErrCleanupSkipped.
func (j *CleanupJob) Sweep(ctx context.Context) (int64, error) {
	if j.locker != nil {
		token, ok, err := j.locker.TryLock(ctx, cleanupLockKey, j.lockTTL)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, ErrCleanupSkipped
		}
		defer func() {
			if err := j.locker.Unlock(context.Background(), cleanupLockKey, token); err != nil {
				log.Printf("chat cleanup: failed to release lock: %v", err)
			}
		}()
	}

	deleted, err := j.store.PurgeExpired(ctx, j.now())
	if err != nil {
		return 0, err
	}
	chatPurgedTotal.Add(float64(deleted))
	return deleted, nil
}

// RunOnce - обертка над Sweep: ошибки и паники логируются и поглощаются
func (j *CleanupJob) RunOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR chat cleanup panicked: %v", r)
			chatCleanupRuns.WithLabelValues("error").Inc()
		}
	}()
	deleted, err := j.Sweep(ctx)
	if errors.Is(err, ErrCleanupSkipped) {
		log.Println("chat cleanup: another node holds the lock, skipping")
		chatCleanupRuns.WithLabelValues("skipped").Inc()
		return
	}
	if err != nil {
		log.Printf("ERROR chat cleanup failed: %v", err)
		chatCleanupRuns.WithLabelValues("error").Inc()
		return
	}
	chatCleanupRuns.WithLabelValues("ok").Inc()
	if deleted > 0 {
		log.Printf("chat cleanup: deleted %d expired messages", deleted)
	}
}

// Start крутит расписание до отмены ctx
func (j *CleanupJob) Start(ctx context.Context) {
	for {
		now := j.now()
		timer := time.NewTimer(j.nextRun(now).Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			j.RunOnce(ctx)
		}
	}
}
