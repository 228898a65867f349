package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
)

type Stats struct {
	TotalEvents   int64
	FailedEvents  int64
	Acked         int64
	Received      int64
	TotalAckNanos int64
}

type Config struct {
	ServerURL      string
	Workers        int
	Duration       int
	MessageCount   int
	UserIDFrom     int64
	UserIDTo       int64
	RequestsPerSec int
	Secret         string
	Tokens         string
}

// client - один пользователь со своим токеном
type client struct {
	userID int64
	token  string
}

var (
	stats Stats
)

func main() {
	config := parseFlags()

	clients, err := buildClients(config)
	if err != nil {
		log.Fatalf("Failed to prepare clients: %v", err)
	}
	log.Printf("Starting chat client: %d workers, users %d..%d, target %s", config.Workers, config.UserIDFrom, config.UserIDTo, config.ServerURL)

	done, stop := newStopper()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup

	requestsPerWorker := config.RequestsPerSec / config.Workers
	if requestsPerWorker == 0 {
		requestsPerWorker = 1
	}

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go worker(i, config, clients[i%len(clients)], requestsPerWorker, done, &wg)
	}

	go printStats()

	if config.Duration > 0 {
		go func() {
			time.Sleep(time.Duration(config.Duration) * time.Second)
			stop()
		}()
	}

	go func() {
		<-sigChan
		log.Println("\nReceived interrupt signal, shutting down...")
		stop()
	}()

	wg.Wait()
	printFinalStats()
}

// newStopper - канал остановки воркеров; stop можно звать из таймера и по сигналу
func newStopper() (chan bool, func()) {
	done := make(chan bool)
	var once sync.Once
	return done, func() { once.Do(func() { close(done) }) }
}

func parseFlags() Config {
	config := Config{}

	flag.StringVar(&config.ServerURL, "url", "http://localhost:8080", "Chat service URL")
	flag.IntVar(&config.Workers, "workers", 10, "Number of concurrent workers (one websocket each)")
	flag.IntVar(&config.Duration, "duration", 60, "Test duration in seconds (0 for infinite)")
	flag.IntVar(&config.MessageCount, "messages", 0, "Total events to send (0 for infinite)")
	flag.Int64Var(&config.UserIDFrom, "user-from", 1, "Starting user ID range")
	flag.Int64Var(&config.UserIDTo, "user-to", 100, "Ending user ID range")
	flag.IntVar(&config.RequestsPerSec, "rps", 100, "Events per second target")
	flag.StringVar(&config.Secret, "secret", "", "JWT secret to mint tokens for the user range")
	flag.StringVar(&config.Tokens, "tokens", "", "Comma separated id:token pairs (token auth mode)")

	flag.Parse()
	if config.Workers <= 0 {
		config.Workers = 1
	}
	return config
}

func buildClients(config Config) ([]client, error) {
	if config.Tokens != "" {
		var clients []client
		for _, pair := range strings.Split(config.Tokens, ",") {
			idStr, token, ok := strings.Cut(strings.TrimSpace(pair), ":")
			if !ok {
				return nil, fmt.Errorf("invalid token pair %q", pair)
			}
			id, err := strconv.ParseInt(idStr, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid user id in %q: %w", pair, err)
			}
			clients = append(clients, client{userID: id, token: token})
		}
		return clients, nil
	}
	if config.Secret == "" {
		return nil, fmt.Errorf("either -secret or -tokens is required")
	}
	var clients []client
	for id := config.UserIDFrom; id <= config.UserIDTo; id++ {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": strconv.FormatInt(id, 10),
			"exp": time.Now().Add(24 * time.Hour).Unix(),
		}).SignedString([]byte(config.Secret))
		if err != nil {
			return nil, err
		}
		clients = append(clients, client{userID: id, token: token})
	}
	return clients, nil
}

func wsURL(base, token string) string {
	u := strings.Replace(base, "http", "ws", 1)
	return fmt.Sprintf("%s/ws/chat?token=%s", u, url.QueryEscape(token))
}

func worker(id int, config Config, cl client, requestsPerSec int, done chan bool, wg *sync.WaitGroup) {
	defer wg.Done()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(config.ServerURL, cl.token), nil)
	if err != nil {
		log.Printf("Worker %d: dial failed: %v", id, err)
		atomic.AddInt64(&stats.FailedEvents, 1)
		return
	}
	defer conn.Close()

	// время отправки для подсчета задержки подтверждения
	var pending sync.Map
	var seq int64
	go readLoop(id, conn, &pending)

	httpClient := &http.Client{Timeout: 10 * time.Second}
	ticker := time.NewTicker(time.Second / time.Duration(requestsPerSec))
	defer ticker.Stop()

	messagesSent := 0

	for {
		select {
		case <-done:
			log.Printf("Worker %d stopping, sent %d messages", id, messagesSent)
			return
		case <-ticker.C:
			if config.MessageCount > 0 && int(atomic.LoadInt64(&stats.TotalEvents)) >= config.MessageCount {
				return
			}

			toUser := randUserID(config.UserIDFrom, config.UserIDTo)
			for toUser == cl.userID && config.UserIDTo > config.UserIDFrom {
				toUser = randUserID(config.UserIDFrom, config.UserIDTo)
			}

			operations := []string{"message", "message", "typing", "unread"}
			operation := operations[rand.Intn(len(operations))]

			switch operation {
			case "message":
				seq++
				pending.Store(seq, time.Now())
				err = conn.WriteJSON(map[string]any{
					"type":        "message",
					"receiver_id": toUser,
					"content":     gofakeit.Sentence(6),
				})
				if err == nil {
					messagesSent++
				}
			case "typing":
				err = conn.WriteJSON(map[string]any{"type": "typing", "receiver_id": toUser})
			case "unread":
				err = getUnread(httpClient, config.ServerURL, cl.token)
			}

			atomic.AddInt64(&stats.TotalEvents, 1)
			if err != nil {
				atomic.AddInt64(&stats.FailedEvents, 1)
				log.Printf("Worker %d: %s failed: %v", id, operation, err)
			}
		}
	}
}

func readLoop(id int, conn *websocket.Conn, pending *sync.Map) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var ev struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Printf("Worker %d: bad event: %v", id, err)
			continue
		}
		switch ev.Type {
		case "message_sent":
			// подтверждения приходят в порядке отправки
			var oldest int64 = -1
			pending.Range(func(k, _ any) bool {
				if key := k.(int64); oldest < 0 || key < oldest {
					oldest = key
				}
				return true
			})
			if v, ok := pending.LoadAndDelete(oldest); ok {
				atomic.AddInt64(&stats.TotalAckNanos, int64(time.Since(v.(time.Time))))
			}
			atomic.AddInt64(&stats.Acked, 1)
		case "error":
			atomic.AddInt64(&stats.FailedEvents, 1)
		default:
			atomic.AddInt64(&stats.Received, 1)
		}
	}
}

func getUnread(client *http.Client, baseURL, token string) error {
	req, err := http.NewRequest("GET", baseURL+"/api/v1/chat/unread-count", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func randUserID(from, to int64) int64 {
	return from + rand.Int63n(to-from+1)
}

func snapshot() (total, failed, acked, received, avgAckMs int64) {
	total = atomic.LoadInt64(&stats.TotalEvents)
	failed = atomic.LoadInt64(&stats.FailedEvents)
	acked = atomic.LoadInt64(&stats.Acked)
	received = atomic.LoadInt64(&stats.Received)
	if acked > 0 {
		avgAckMs = atomic.LoadInt64(&stats.TotalAckNanos) / acked / int64(time.Millisecond)
	}
	return
}

func printStats() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		total, failed, acked, received, avgAck := snapshot()
		log.Printf("[STATS] Sent: %d | Failed: %d | Acked: %d | Received: %d | Avg Ack: %dms",
			total, failed, acked, received, avgAck)
	}
}

func printFinalStats() {
	total, failed, acked, received, avgAck := snapshot()

	log.Println("\n========== FINAL STATISTICS ==========")
	log.Printf("Events Sent:        %d", total)
	log.Printf("Failed:             %d", failed)
	log.Printf("Acked Messages:     %d", acked)
	log.Printf("Received Events:    %d", received)
	log.Printf("Average Ack:        %dms", avgAck)
	log.Println("======================================")
}
