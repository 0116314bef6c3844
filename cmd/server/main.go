package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pockettherapist.dev/agent/internal/api"
	"pockettherapist.dev/agent/internal/auth"
	"pockettherapist.dev/agent/internal/config"
	"pockettherapist.dev/agent/internal/core"
	"pockettherapist.dev/agent/internal/store"
)

func main() {
	// Load configuration
	config.LoadConfig()

	// Setup logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if config.AppConfig.LogLevel == "DEBUG" {
		log.Println("Service starting in DEBUG mode")
	}

	// Command line flag for minting an admin token for the /history feed
	mintTokenFlag := flag.String("mint-admin-token", "", "Mint an admin token for the given subject and exit")
	flag.Parse()

	if *mintTokenFlag != "" {
		token, err := auth.GenerateAdminToken(*mintTokenFlag)
		if err != nil {
			log.Fatalf("Failed to mint admin token: %v", err)
		}
		fmt.Println(token)
		os.Exit(0)
	}

	// Initialize database store
	dbStore, err := store.NewSQLiteStore(config.AppConfig.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer dbStore.Close()

	// Initialize the shared Gemini client, injected into both pipelines
	llmClient := core.NewGeminiClient(config.AppConfig.GeminiAPIKey)
	defer llmClient.Close()

	// Initialize services
	checkinService := core.NewCheckinService(dbStore, llmClient)
	summaryService := core.NewSummaryService(dbStore, llmClient)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(checkinService, summaryService)
	router := api.NewRouter(apiHandler)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // LLM calls can take time
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		log.Printf("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", serverAddr, err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give active connections time to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting gracefully")
}
