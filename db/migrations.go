package db

import (
	"fmt"
	"schoolchat/models"

	"gorm.io/gorm"
)

// Migrate создает таблицу сообщений чата и её индексы.
// Таблицы users и user_tokens принадлежат основному приложению и здесь не мигрируются.
func Migrate(orm *gorm.DB) error {
	if err := orm.AutoMigrate(&models.ChatMessage{}); err != nil {
		return fmt.Errorf("failed to migrate chat_messages: %w", err)
	}
	return nil
}

// MigrateDirectory создает справочные таблицы пользователей.
// Нужно только для standalone-режима (sqlite) и тестов.
func MigrateDirectory(orm *gorm.DB) error {
	if err := orm.AutoMigrate(&models.User{}, &models.UserTokens{}); err != nil {
		return fmt.Errorf("failed to migrate directory tables: %w", err)
	}
	return nil
}
