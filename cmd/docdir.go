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

	"github.com/docdir/docdir/pkg/db"
	"github.com/docdir/docdir/pkg/engine"
	"github.com/docdir/docdir/pkg/server"
)

func main() {
	// Command line flags
	var (
		port            = flag.String("port", "8080", "Server port")
		dataDir         = flag.String("data-dir", ".", "Data directory holding the collection log files")
		syncWrites      = flag.Bool("sync-writes", false, "fsync after every appended record")
		compactInterval = flag.Duration("compact-interval", 0, "Background compaction check interval (e.g., 5m, 30s). Set to 0 to disable.")
		connectTimeout  = flag.Duration("connect-timeout", 30*time.Second, "Timeout for opening previously-known collections at startup")
		showHelp        = flag.Bool("help", false, "Show help message")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\ndocdir is an embedded multi-collection document store with an HTTP surface.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                   # Serve the current directory\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -data-dir /var/lib/docdir         # Custom data directory\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -sync-writes -compact-interval 5m # Durable writes, periodic compaction\n", os.Args[0])
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	// Build engine options based on flags
	var engineOptions []engine.Option
	if *syncWrites {
		engineOptions = append(engineOptions, engine.WithSyncWrites(true))
		log.Printf("INFO: Sync writes enabled")
	}
	if *compactInterval > 0 {
		engineOptions = append(engineOptions, engine.WithBackgroundCompact(*compactInterval))
		log.Printf("INFO: Background compaction enabled: every %v", *compactInterval)
	}

	log.Printf("INFO: Using data directory: %s", *dataDir)
	database := db.Open(*dataDir, db.WithEngineOptions(engineOptions...))

	srv := server.NewServer(database)
	defer srv.Close()

	// Open every collection the registry already knows about
	ctx, cancel := context.WithTimeout(context.Background(), *connectTimeout)
	if err := srv.Connect(ctx); err != nil {
		cancel()
		log.Fatalf("Failed to connect database: %v", err)
	}
	cancel()

	// Create HTTP server
	httpServer := &http.Server{
		Addr:    ":" + *port,
		Handler: srv.Router(),
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting docdir server on :%s", *port)
		log.Printf("API endpoints available at http://localhost:%s", *port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests a deadline for completion
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
