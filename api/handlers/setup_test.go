package handlers

import (
	"database/sql"
	"fmt"
	"schoolchat/db"
	"schoolchat/models"
	"schoolchat/services"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	orm       *gorm.DB
	registry  *services.PresenceRegistry
	store     *services.MessageStore
	directory *services.GormDirectory
	auth      services.Authenticator
	sqlDB     *sql.DB
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	orm, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := orm.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Migrate(orm))
	require.NoError(t, db.MigrateDirectory(orm))

	directory := services.NewGormDirectory(orm)
	return &testEnv{
		orm:       orm,
		sqlDB:     sqlDB,
		registry:  services.NewPresenceRegistry(),
		store:     services.NewMessageStore(orm, 30*24*time.Hour, 50),
		directory: directory,
		auth: &services.ActiveUserAuthenticator{
			Inner:     services.NewTokenStoreAuthenticator(orm),
			Directory: directory,
		},
	}
}

// addUser создает пользователя и токен "token-<id>"
func (e *testEnv) addUser(t *testing.T, fullName string) (models.User, string) {
	t.Helper()
	user := models.User{Username: gofakeit.Username() + "_" + gofakeit.DigitN(6), FullName: fullName, Role: models.RoleStudent, IsActive: true}
	require.NoError(t, e.orm.Create(&user).Error)
	token := fmt.Sprintf("token-%d", user.ID)
	require.NoError(t, e.orm.Create(&models.UserTokens{UserID: user.ID, Token: token}).Error)
	return user, token
}

// asUser эмулирует аутентификацию, как делает AuthMiddleware
func asUser(userID int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Next()
	}
}

type nopChannel struct{}

func (nopChannel) WriteJSON(any) error { return nil }
func (nopChannel) Close() error        { return nil }
