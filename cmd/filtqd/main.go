package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/coffersTech/filtq/internal/controller"
	"github.com/coffersTech/filtq/internal/history"
	"github.com/coffersTech/filtq/internal/pkg/security"
	"github.com/coffersTech/filtq/internal/server"
)

func main() {
	// Command-line flags
	port := flag.Int("port", 8090, "HTTP port to listen on")
	dataDir := flag.String("data", "../data", "Directory for the edit journal")
	webDir := flag.String("web", "../web", "Directory for static web files")
	retentionStr := flag.String("retention", "720h", "Edit journal retention (e.g. 72h, 720h)")
	flag.Parse()

	retention, err := time.ParseDuration(*retentionStr)
	if err != nil {
		log.Fatalf("Invalid retention duration: %v", err)
	}

	log.Println("FiltQ v0.1 Started...")

	if err := os.MkdirAll(*dataDir, 0755); err != nil {
		log.Fatalf("Failed to create data dir: %v", err)
	}

	// 1. Master key for the encrypted metadata store
	generated, err := security.InitMasterKey(filepath.Join(*dataDir, "master.key"))
	if err != nil {
		log.Fatalf("Failed to initialize master key: %v", err)
	}
	if generated {
		log.Println("Generated a new master key")
	}

	// 2. Metadata store (users, tokens, saved searches)
	metaStore := controller.NewStore(filepath.Join(*dataDir, "meta.db"))
	if err := metaStore.Load(); err != nil {
		log.Fatalf("Failed to load metadata: %v", err)
	}
	log.Printf("Metadata loaded. Initialized: %v", metaStore.IsInitialized())

	// 3. Edit journal with retention sweeper
	journal, err := history.Open(filepath.Join(*dataDir, "journal"))
	if err != nil {
		log.Fatalf("Failed to open edit journal: %v", err)
	}
	log.Printf("Edit journal opened. Retention: %v", retention)

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	go journal.RunSweeper(sweepCtx, 1*time.Hour, retention)

	// 4. HTTP server
	srv := server.NewAPIServer(metaStore, journal, *webDir)
	addr := fmt.Sprintf(":%d", *port)

	go func() {
		log.Printf("Listening on %s", addr)
		if err := srv.Start(addr); err != nil {
			log.Printf("Server stopped: %v", err)
		}
	}()

	// 5. Graceful shutdown hook
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Printf("Received signal: %v. Shutting down...", sig)
	stopSweeper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	if err := journal.Close(); err != nil {
		log.Printf("Journal close error: %v", err)
	}

	log.Println("FiltQ exited gracefully.")
}
