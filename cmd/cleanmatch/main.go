package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"cleanmatch_client/client/app"
)

func main() {
	_ = godotenv.Load()

	cfg := app.LoadConfig()
	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("initialize app: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.RunREPL(ctx)

	if err := a.Shutdown(); err != nil {
		log.Printf("shutdown app: %v", err)
	}
}
