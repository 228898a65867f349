package services

import (
	"context"
	"errors"
	"fmt"
	"schoolchat/db"
	"schoolchat/models"

	"gorm.io/gorm"
)

// UserDirectory - внешний справочник пользователей, только чтение
type UserDirectory interface {
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	GetUsers(ctx context.Context, ids []int64) (map[int64]models.User, error)
	SearchUsers(ctx context.Context, query string, excludeID int64, limit int) ([]models.User, error)
}

type GormDirectory struct {
	orm *gorm.DB
}

func NewGormDirectory(orm *gorm.DB) *GormDirectory {
	return &GormDirectory{orm: orm}
}

func (d *GormDirectory) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	var user models.User
	err := db.ReadDB(ctx, d.orm).Model(&models.User{}).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user %d", ErrTargetNotFound, userID)
	}
	if err != nil {
		return nil, storageErr("get_user", err)
	}
	return &user, nil
}

// GetUsers возвращает найденных пользователей; отсутствующие id просто пропускаются
func (d *GormDirectory) GetUsers(ctx context.Context, ids []int64) (map[int64]models.User, error) {
	result := make(map[int64]models.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var users []models.User
	if err := db.ReadDB(ctx, d.orm).Model(&models.User{}).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, storageErr("get_users", err)
	}
	for _, u := range users {
		result[u.ID] = u
	}
	return result, nil
}

// SearchUsers ищет активных пользователей по логину или ФИО, исключая excludeID
func (d *GormDirectory) SearchUsers(ctx context.Context, query string, excludeID int64, limit int) ([]models.User, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := likePattern(query)
	var users []models.User
	err := db.ReadDB(ctx, d.orm).
		Model(&models.User{}).
		Where("(LOWER(username) LIKE ? ESCAPE '\\' OR LOWER(full_name) LIKE ? ESCAPE '\\') AND is_active = ? AND id <> ?", pattern, pattern, true, excludeID).
		Order("full_name").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, storageErr("search_users", err)
	}
	return users, nil
}
