package main

import (
	"context"
	"log"

	"ai-trivia-bot/internal/bootstrap"
	"ai-trivia-bot/internal/config"
	"ai-trivia-bot/internal/server"
	"ai-trivia-bot/internal/tracer"
)

func main() {
	// 0. Initialize Tracer
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()
	if cfg.Telegram.BotToken == "" {
		log.Panic("TELEGRAM_BOT_TOKEN is required")
	}

	// 2. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(cfg)

	// 3. Start Background Services
	if container.SemanticEnabled {
		go func() {
			log.Println("Background: Rebuilding embedding index from archive...")
			if err := container.ConsumerService.RebuildIndex(context.Background()); err != nil {
				log.Printf("Background Index Rebuild Error: %v", err)
			}
		}()
		go func() {
			log.Println("Background: Starting Consumer Service...")
			if err := container.ConsumerService.Consume(context.Background()); err != nil {
				log.Printf("Background Consumer Error: %v", err)
			}
		}()
	}

	// 4. Start the bot's long-poll dispatcher
	go container.Dispatcher.Run(context.Background())

	// 5. Initialize Server
	srv := server.New(cfg, container)

	// 6. Run Server
	log.Fatal(srv.Run())
}
