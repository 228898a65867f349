package services

import (
	"fmt"
	"schoolchat/db"
	"schoolchat/models"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB поднимает отдельную sqlite базу в памяти на каждый тест
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	orm, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := orm.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Migrate(orm))
	require.NoError(t, db.MigrateDirectory(orm))
	return orm
}

func createUser(t *testing.T, orm *gorm.DB, username, fullName string, active bool) models.User {
	t.Helper()
	user := models.User{Username: username, FullName: fullName, Role: models.RoleStudent, IsActive: true}
	require.NoError(t, orm.Create(&user).Error)
	if !active {
		// default:true не дает записать false через Create
		require.NoError(t, orm.Model(&user).Update("is_active", false).Error)
		user.IsActive = false
	}
	return user
}

// fakeClock - управляемые часы
type fakeClock struct {
	mu  sync.Mutex
	cur time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{cur: t.UTC()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(d)
}

// fakeChannel записывает все отправленные события
type fakeChannel struct {
	mu     sync.Mutex
	sent   []any
	fail   bool
	closed bool
}

func (c *fakeChannel) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return ErrDeliveryFailed
	}
	c.sent = append(c.sent, v)
	return nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeChannel) Sent() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]any, len(c.sent))
	copy(out, c.sent)
	return out
}
