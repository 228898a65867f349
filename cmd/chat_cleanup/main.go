package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"schoolchat/config"
	"schoolchat/db"
	"schoolchat/services"
	"time"
)

// Разовая очистка просроченных сообщений для запуска из cron
func main() {
	var configPath string
	var timeout time.Duration
	flag.StringVar(&configPath, "config", "config/config.yaml", "Path to the configuration file")
	flag.DurationVar(&timeout, "timeout", 5*time.Minute, "Sweep timeout")
	flag.Parse()

	conf, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	orm, err := db.ConnectDB(conf)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}

	store := services.NewMessageStore(orm, conf.Chat.RetentionWindow(), conf.Chat.SearchLimit)
	job := services.NewCleanupJob(store, conf.Chat.CleanupInterval, conf.Chat.CleanupHour)
	if conf.Redis.Enabled {
		client, err := services.NewRedisClient(conf)
		if err != nil {
			log.Fatal("Failed to connect to Redis:", err)
		}
		defer client.Close()
		job.WithLocker(services.NewRedisLocker(client), conf.Chat.CleanupLockTTL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	deleted, err := job.Sweep(ctx)
	if errors.Is(err, services.ErrCleanupSkipped) {
		log.Println("chat cleanup: another node holds the lock, skipping")
		return
	}
	if err != nil {
		log.Printf("ERROR chat cleanup failed: %v", err)
		return
	}
	log.Printf("chat cleanup: deleted %d expired messages", deleted)
}
