package db

import (
	"context"
	"fmt"
	"log"
	"schoolchat/config"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"
)

func dsnFromConfig(dbConf config.DBConfig) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
		dbConf.Host, dbConf.Port, dbConf.User, dbConf.Password, dbConf.DBName,
	)
}

// ConnectDB открывает подключение к мастеру и регистрирует реплики (если есть)
func ConnectDB(conf *config.ConfigSchema) (*gorm.DB, error) {
	if conf == nil {
		return nil, fmt.Errorf("AppConfig is nil")
	}

	gormConf := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	var orm *gorm.DB
	var err error
	switch conf.Databases.Driver {
	case "sqlite":
		orm, err = gorm.Open(sqlite.Open(conf.Databases.Path), gormConf)
	default:
		if conf.Databases.Master.Host == "" {
			return nil, fmt.Errorf("master database configuration is missing")
		}
		orm, err = gorm.Open(postgres.Open(dsnFromConfig(conf.Databases.Master)), gormConf)
	}
	if err != nil {
		return nil, err
	}

	if conf.Databases.Driver != "sqlite" && len(conf.Databases.Replicas) > 0 {
		replicas := make([]gorm.Dialector, 0, len(conf.Databases.Replicas))
		for _, r := range conf.Databases.Replicas {
			replicas = append(replicas, postgres.Open(dsnFromConfig(r)))
		}
		err = orm.Use(dbresolver.Register(dbresolver.Config{
			Replicas: replicas,
			Policy:   dbresolver.RandomPolicy{},
		}))
		if err != nil {
			return nil, err
		}
		log.Printf("db: registered %d read replicas", len(replicas))
	}

	if err = Migrate(orm); err != nil {
		return nil, err
	}
	return orm, nil
}

// ReadDB возвращает подключение для чтения (реплики)
func ReadDB(ctx context.Context, orm *gorm.DB) *gorm.DB {
	return orm.WithContext(ctx).Clauses(dbresolver.Read)
}

// WriteDB возвращает подключение для записи (мастер)
func WriteDB(ctx context.Context, orm *gorm.DB) *gorm.DB {
	return orm.WithContext(ctx).Clauses(dbresolver.Write)
}
