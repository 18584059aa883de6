package main

import (
	"log"

	"github.com/hibiken/asynq"

	"servicehub/internal/config"
	"servicehub/internal/notify"
)

// The worker drains the emails queue and delivers booking notifications.
func main() {
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var mailer notify.Mailer = notify.LogMailer{}
	if cfg.MailHost != "" {
		mailer = notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.MailHost,
			Port:     cfg.MailPort,
			Username: cfg.MailUser,
			Password: cfg.MailPassword,
			From:     cfg.MailFrom,
		})
	} else {
		log.Println("MAIL_HOST not set, notifications are logged instead of sent")
	}

	mux := asynq.NewServeMux()
	notify.NewProcessor(mailer).Register(mux)

	srv := notify.NewServer(cfg.RedisAddr, cfg.WorkerConcurrency)
	log.Printf("Starting notification worker against %s", cfg.RedisAddr)
	// Run blocks until SIGINT or SIGTERM, then waits for in-flight tasks.
	if err := srv.Run(mux); err != nil {
		log.Fatalf("worker error: %v", err)
	}
}
