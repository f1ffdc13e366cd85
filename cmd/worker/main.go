package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"campusattend/internal/attendance"
	"campusattend/internal/config"
	"campusattend/internal/notify"
	"campusattend/internal/queue"
	"campusattend/internal/store"
	"campusattend/internal/timeutil"
)

// Worker consumes queued login notifications, sends the email, and records
// the audit row. Send failures are logged and the message is dropped; the
// attendance event itself is already durable.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()
	repo := attendance.NewRepository(db)

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	q := queue.NewRedisQueue(redisClient.Client, "campusattend:notifications")

	mailer := notify.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.SMTPPassword, cfg.NotifyRecipient)
	if !mailer.Configured() {
		log.Println("WARNING: SMTP not fully configured, deliveries will fail until it is")
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		if msg.Type != notify.MessageTypeLogin {
			continue
		}

		var job notify.LoginJob
		if err := json.Unmarshal(msg.Body, &job); err != nil {
			log.Printf("bad notification payload: %v", err)
			continue
		}

		if err := mailer.NotifyLogin(ctx, job.StudentID, job.Name); err != nil {
			log.Printf("notification for %s failed: %v", job.StudentID, err)
			continue
		}

		msgText := notify.LoginMessage(job.StudentID, job.Name, timeutil.Now())
		if err := repo.AppendNotification(ctx, job.StudentID, msgText); err != nil {
			log.Printf("notification audit row for %s failed: %v", job.StudentID, err)
		}
	}

	log.Println("worker stopped")
}
