// Command wishbank serves the paid-credit wish API.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/wishbank/wishbank/internal/app/runtime"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	application, err := runtime.NewApplication(ctx)
	if err != nil {
		log.Fatalf("Failed to initialise wishbank: %v", err)
	}

	runErr := application.Run(ctx)
	if runErr != nil {
		log.Printf("Server error: %v", runErr)
	}

	log.Println("Shutting down...")
	if err := application.Shutdown(context.Background()); err != nil {
		log.Printf("Shutdown error: %v", err)
	}

	if runErr != nil {
		os.Exit(1)
	}
	log.Println("Service stopped")
}
