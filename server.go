package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"schoolchat/api/handlers"
	"schoolchat/api/middleware"
	"schoolchat/api/routes"
	"schoolchat/config"
	"schoolchat/db"
	"schoolchat/services"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config/config.yaml", "Path to the configuration file")
	flag.Parse()

	conf, err := config.LoadConfig(configPath)
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}
	log.Printf("Starting chat server on %s (db driver %s)", conf.ListenAddr(), conf.Databases.Driver)

	orm, err := db.ConnectDB(conf)
	if err != nil {
		panic("Failed to connect to the database: " + err.Error())
	}
	if conf.Databases.Driver == "sqlite" {
		if err := db.MigrateDirectory(orm); err != nil {
			panic(err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := services.NewPresenceRegistry()
	store := services.NewMessageStore(orm, conf.Chat.RetentionWindow(), conf.Chat.SearchLimit)
	directory := services.NewGormDirectory(orm)
	auth, err := services.NewAuthenticator(conf, orm, directory)
	if err != nil {
		panic(err)
	}

	var delivery services.Deliverer = services.NewLocalDelivery(registry)
	if conf.RabbitMQ.Enabled {
		bus, err := services.NewEventBus(conf.RabbitMQ.URL, conf.RabbitMQ.Exchange, registry)
		if err != nil {
			panic("Failed to init RabbitMQ: " + err.Error())
		}
		defer bus.Close()
		if err := bus.StartConsumer(ctx); err != nil {
			panic("Failed to start RabbitMQ consumer: " + err.Error())
		}
		delivery = bus
	}

	cleanup := services.NewCleanupJob(store, conf.Chat.CleanupInterval, conf.Chat.CleanupHour)
	if conf.Redis.Enabled {
		client, err := services.NewRedisClient(conf)
		if err != nil {
			panic(err)
		}
		defer client.Close()
		cleanup.WithLocker(services.NewRedisLocker(client), conf.Chat.CleanupLockTTL)
	}
	go cleanup.Start(ctx)

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.PrometheusMiddleware("chat"))

	chat := handlers.NewChatHandlers(registry, store, directory, conf.Chat.HistoryLimit)
	socket := &handlers.ChatSocket{
		Registry:  registry,
		Store:     store,
		Directory: directory,
		Auth:      auth,
		Delivery:  delivery,
	}
	routes.ChatApi(router, chat, middleware.AuthMiddleware(auth))
	routes.RealtimeApi(router, socket)
	routes.ServiceApi(router)

	srv := &http.Server{Addr: conf.ListenAddr(), Handler: router}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR shutdown: %v", err)
	}
}
